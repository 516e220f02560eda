package credential

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/oauth2"

	"github.com/codecoder/codecoder/pkg/types"
)

// wellKnownTokenURLs maps a service name to its OAuth2 token endpoint, used
// when a credential's stored TokenURL is empty.
var wellKnownTokenURLs = map[string]string{
	"google":    "https://oauth2.googleapis.com/token",
	"github":    "https://github.com/login/oauth/access_token",
	"microsoft": "https://login.microsoftonline.com/common/oauth2/v2.0/token",
	"slack":     "https://slack.com/api/oauth.v2.access",
	"discord":   "https://discord.com/api/oauth2/token",
}

// oauth2RefreshHandler is the default RefreshHandler: it performs a
// refresh_token grant against the credential's token_url, retrying a bounded
// number of times on transient network errors only.
func (r *Resolver) oauth2RefreshHandler(ctx context.Context, cred types.Credential) (string, *string, *int64, error) {
	if cred.OAuth == nil {
		return "", nil, nil, fmt.Errorf("credential %s has no oauth material", cred.ID)
	}
	tokenURL := cred.OAuth.TokenURL
	if tokenURL == "" {
		tokenURL = wellKnownTokenURLs[cred.Service]
	}
	if tokenURL == "" {
		return "", nil, nil, fmt.Errorf("no token_url known for service %q", cred.Service)
	}

	cfg := &oauth2.Config{
		ClientID:     cred.OAuth.ClientID,
		ClientSecret: cred.OAuth.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: tokenURL},
	}

	var token *oauth2.Token
	op := func() error {
		src := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.OAuth.RefreshToken})
		t, err := src.Token()
		if err != nil {
			if !isTransient(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		token = t
		return nil
	}

	policy := backoff.WithMaxRetries(
		backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(250*time.Millisecond),
			backoff.WithMultiplier(4),
			backoff.WithRandomizationFactor(0),
			backoff.WithMaxInterval(1*time.Second),
		),
		2,
	)
	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		return "", nil, nil, fmt.Errorf("oauth2 refresh: %w", err)
	}

	var expiresAt *int64
	if !token.Expiry.IsZero() {
		unix := token.Expiry.Unix()
		expiresAt = &unix
	}
	var refreshOut *string
	if token.RefreshToken != "" {
		refreshOut = &token.RefreshToken
	}
	return token.AccessToken, refreshOut, expiresAt, nil
}

// isTransient reports whether err looks like a network-class failure worth
// retrying, as opposed to a permanent rejection (invalid_grant, 4xx) that a
// retry cannot fix.
func isTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.Response != nil {
			return retrieveErr.Response.StatusCode >= http.StatusInternalServerError
		}
		return false
	}
	return false
}

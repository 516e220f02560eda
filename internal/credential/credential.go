// Package credential implements the credential resolver (C4): per-type auth
// header production and single-flighted OAuth token refresh.
package credential

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/codecoder/codecoder/internal/apperr"
	"github.com/codecoder/codecoder/internal/vault"
	"github.com/codecoder/codecoder/pkg/types"
)

// refreshSkew is how far ahead of expiry a refresh is triggered.
const refreshSkew = 60 * time.Second

// RefreshHandler performs an OAuth2 refresh_token grant for a credential and
// returns the new token material.
type RefreshHandler func(ctx context.Context, cred types.Credential) (access string, refresh *string, expiresAt *int64, err error)

// Resolved is the result of resolving a credential to request headers.
type Resolved struct {
	Credential  types.Credential
	Headers     map[string]string
	NeedsRefresh bool
}

// Resolver produces auth headers from vault-stored credentials, refreshing
// OAuth tokens on demand with single-flight semantics per credential ID.
type Resolver struct {
	vault *vault.Vault
	group singleflight.Group

	handlers       map[string]RefreshHandler
	defaultHandler RefreshHandler
}

// New creates a Resolver backed by v, registering the default OAuth2
// refresh_token-grant handler for every well-known service and allowing
// callers to override or add handlers via RegisterHandler.
func New(v *vault.Vault) *Resolver {
	r := &Resolver{
		vault:    v,
		handlers: make(map[string]RefreshHandler),
	}
	r.defaultHandler = r.oauth2RefreshHandler
	return r
}

// RegisterHandler overrides the refresh handler used for service.
func (r *Resolver) RegisterHandler(service string, h RefreshHandler) {
	r.handlers[service] = h
}

// handlerFor returns the refresh handler registered for service, falling
// back to the default OAuth2 grant handler.
func (r *Resolver) handlerFor(service string) RefreshHandler {
	if h, ok := r.handlers[service]; ok {
		return h
	}
	return r.defaultHandler
}

// Resolve finds the best credential for a URL and produces its auth headers.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (*Resolved, error) {
	cred, err := r.vault.ResolveForURL(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, nil
	}
	return r.headersFor(ctx, *cred)
}

// ResolveService finds the best credential for a service name and produces
// its auth headers.
func (r *Resolver) ResolveService(ctx context.Context, service string) (*Resolved, error) {
	cred, err := r.vault.ResolveForService(ctx, service)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, nil
	}
	return r.headersFor(ctx, *cred)
}

// HeadersForURL resolves a credential for rawURL, auto-refreshing OAuth
// tokens that are within refreshSkew of expiry, then returns its headers.
func (r *Resolver) HeadersForURL(ctx context.Context, rawURL string) (map[string]string, error) {
	resolved, err := r.Resolve(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if resolved == nil {
		return nil, fmt.Errorf("no credential for %s: %w", rawURL, apperr.ErrNotFound)
	}
	if resolved.NeedsRefresh {
		refreshed, err := r.refresh(ctx, resolved.Credential)
		if err == nil {
			resolved = refreshed
		}
		// On handler failure the stale token's headers are returned; only
		// the header map reaches the caller, so use Resolve to see
		// NeedsRefresh.
	}
	return resolved.Headers, nil
}

// Inject sets auth headers on an existing header map without overriding any
// header already present.
func (r *Resolver) Inject(ctx context.Context, rawURL string, headers map[string]string) error {
	produced, err := r.HeadersForURL(ctx, rawURL)
	if err != nil {
		return err
	}
	for k, v := range produced {
		if _, exists := headers[k]; !exists {
			headers[k] = v
		}
	}
	return nil
}

// headersFor produces the header map for cred per its type, computing
// NeedsRefresh for oauth credentials.
func (r *Resolver) headersFor(ctx context.Context, cred types.Credential) (*Resolved, error) {
	headers := make(map[string]string)
	needsRefresh := false

	switch cred.Type {
	case types.CredentialAPIKey:
		headers["X-API-Key"] = cred.APIKey
	case types.CredentialBearerToken:
		headers["Authorization"] = "Bearer " + cred.BearerToken
	case types.CredentialOAuth:
		if cred.OAuth != nil {
			headers["Authorization"] = "Bearer " + cred.OAuth.AccessToken
			if cred.OAuth.ExpiresAt != nil {
				remaining := time.Duration(*cred.OAuth.ExpiresAt-time.Now().Unix()) * time.Second
				needsRefresh = remaining < refreshSkew
			}
		}
	case types.CredentialLogin:
		// No headers: caller falls back to the stored session blob.
	}

	return &Resolved{Credential: cred, Headers: headers, NeedsRefresh: needsRefresh}, nil
}

// refresh performs a single-flighted token refresh for cred, persisting the
// new tokens to the vault on success.
func (r *Resolver) refresh(ctx context.Context, cred types.Credential) (*Resolved, error) {
	v, err, _ := r.group.Do(cred.ID, func() (any, error) {
		handler := r.handlerFor(cred.Service)
		access, refreshTok, expiresAt, err := handler(ctx, cred)
		if err != nil {
			return nil, err
		}
		if err := r.vault.UpdateOAuthTokens(ctx, cred.ID, access, refreshTok, expiresAt); err != nil {
			return nil, err
		}
		updated, err := r.vault.Get(ctx, cred.ID)
		if err != nil {
			return nil, err
		}
		return updated, nil
	})
	if err != nil {
		return nil, err
	}
	return r.headersFor(ctx, v.(types.Credential))
}

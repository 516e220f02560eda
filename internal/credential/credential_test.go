package credential

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codecoder/codecoder/internal/clock"
	"github.com/codecoder/codecoder/internal/vault"
	"github.com/codecoder/codecoder/pkg/types"
)

func newTestVault(t *testing.T) *vault.Vault {
	t.Helper()
	v, err := vault.Open(context.Background(), filepath.Join(t.TempDir(), "vault.json"), []byte("seed"), clock.New())
	require.NoError(t, err)
	return v
}

func TestResolver_HeadersByType(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t)
	r := New(v)

	apiKeyID, err := v.Add(ctx, types.Credential{Type: types.CredentialAPIKey, Name: "a", Service: "svc", APIKey: "key123", Patterns: []string{"*.svc.test"}})
	require.NoError(t, err)

	resolved, err := r.Resolve(ctx, "https://api.svc.test")
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, "key123", resolved.Headers["X-API-Key"])
	_ = apiKeyID
}

func TestResolver_BearerToken(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t)
	r := New(v)

	_, err := v.Add(ctx, types.Credential{Type: types.CredentialBearerToken, Name: "a", Service: "svc", BearerToken: "tok456", Patterns: []string{"*.svc.test"}})
	require.NoError(t, err)

	resolved, err := r.Resolve(ctx, "https://api.svc.test")
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, "Bearer tok456", resolved.Headers["Authorization"])
}

func TestResolver_OAuthNeedsRefreshNearExpiry(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t)
	r := New(v)

	soon := time.Now().Add(10 * time.Second).Unix()
	_, err := v.Add(ctx, types.Credential{
		Type:    types.CredentialOAuth,
		Name:    "a",
		Service: "svc",
		OAuth:   &types.OAuthMaterial{AccessToken: "acc", ExpiresAt: &soon},
		Patterns: []string{"*.svc.test"},
	})
	require.NoError(t, err)

	resolved, err := r.Resolve(ctx, "https://api.svc.test")
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.True(t, resolved.NeedsRefresh)
}

func TestResolver_LoginProducesNoHeaders(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t)
	r := New(v)

	_, err := v.Add(ctx, types.Credential{Type: types.CredentialLogin, Name: "a", Service: "svc", Login: &types.LoginMaterial{Username: "u", Password: "p"}, Patterns: []string{"*.svc.test"}})
	require.NoError(t, err)

	resolved, err := r.Resolve(ctx, "https://api.svc.test")
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Empty(t, resolved.Headers)
}

func TestResolver_RefreshIsSingleFlighted(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t)
	r := New(v)

	expired := time.Now().Add(-time.Hour).Unix()
	id, err := v.Add(ctx, types.Credential{
		Type:    types.CredentialOAuth,
		Name:    "a",
		Service: "singleflight-svc",
		OAuth:   &types.OAuthMaterial{AccessToken: "stale", RefreshToken: "rt", ExpiresAt: &expired},
		Patterns: []string{"*.svc.test"},
	})
	require.NoError(t, err)

	var calls int32
	r.RegisterHandler("singleflight-svc", func(ctx context.Context, cred types.Credential) (string, *string, *int64, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(20 * time.Millisecond)
		fresh := time.Now().Add(time.Hour).Unix()
		return "new-token", nil, &fresh, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cred, _ := v.Get(ctx, id)
			_, _ = r.refresh(ctx, cred)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(1))
}

func TestResolver_RefreshHandlerFailureReturnsStale(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t)
	r := New(v)

	expired := time.Now().Add(-time.Hour).Unix()
	_, err := v.Add(ctx, types.Credential{
		Type:    types.CredentialOAuth,
		Name:    "a",
		Service: "failing-svc",
		OAuth:   &types.OAuthMaterial{AccessToken: "stale-token", RefreshToken: "rt", ExpiresAt: &expired},
		Patterns: []string{"*.svc.test"},
	})
	require.NoError(t, err)

	r.RegisterHandler("failing-svc", func(ctx context.Context, cred types.Credential) (string, *string, *int64, error) {
		return "", nil, nil, errors.New("refresh rejected")
	})

	headers, err := r.HeadersForURL(ctx, "https://api.svc.test")
	require.NoError(t, err)
	assert.Equal(t, "Bearer stale-token", headers["Authorization"])
}

func TestResolver_InjectNeverOverridesExistingHeader(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t)
	r := New(v)

	_, err := v.Add(ctx, types.Credential{Type: types.CredentialAPIKey, Name: "a", Service: "svc", APIKey: "key123", Patterns: []string{"*.svc.test"}})
	require.NoError(t, err)

	headers := map[string]string{"X-API-Key": "already-set"}
	require.NoError(t, r.Inject(ctx, "https://api.svc.test", headers))
	assert.Equal(t, "already-set", headers["X-API-Key"])
}

package vault

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codecoder/codecoder/internal/apperr"
	"github.com/codecoder/codecoder/internal/clock"
	"github.com/codecoder/codecoder/pkg/types"
)

func testVaultPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "vault.json")
}

func TestVault_AddGetRoundtrip(t *testing.T) {
	ctx := context.Background()
	v, err := Open(ctx, testVaultPath(t), []byte("seed-material"), clock.New())
	require.NoError(t, err)

	id, err := v.Add(ctx, types.Credential{
		Type:    types.CredentialAPIKey,
		Name:    "default",
		Service: "github",
		APIKey:  "sk-test-secret",
		Patterns: []string{"*.github.com"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	got, err := v.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "sk-test-secret", got.APIKey)
}

func TestVault_SecretsNeverTouchDiskPlaintext(t *testing.T) {
	ctx := context.Background()
	path := testVaultPath(t)
	v, err := Open(ctx, path, []byte("seed-material"), clock.New())
	require.NoError(t, err)

	_, err = v.Add(ctx, types.Credential{
		Type:    types.CredentialAPIKey,
		Name:    "default",
		Service: "github",
		APIKey:  "sk-super-secret-value",
	})
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "sk-super-secret-value")
}

func TestVault_WrongKeyFailsToDecrypt(t *testing.T) {
	ctx := context.Background()
	path := testVaultPath(t)
	v, err := Open(ctx, path, []byte("right-seed"), clock.New())
	require.NoError(t, err)
	_, err = v.Add(ctx, types.Credential{Type: types.CredentialAPIKey, Name: "a", Service: "github", APIKey: "x"})
	require.NoError(t, err)

	_, err = Open(ctx, path, []byte("wrong-seed"), clock.New())
	assert.ErrorIs(t, err, apperr.ErrVaultCorrupt)
}

func TestVault_AddRejectsDuplicateNameService(t *testing.T) {
	ctx := context.Background()
	v, err := Open(ctx, testVaultPath(t), []byte("seed"), clock.New())
	require.NoError(t, err)

	cred := types.Credential{Type: types.CredentialAPIKey, Name: "default", Service: "github", APIKey: "x"}
	_, err = v.Add(ctx, cred)
	require.NoError(t, err)

	_, err = v.Add(ctx, cred)
	assert.ErrorIs(t, err, apperr.ErrCredentialConflict)
}

func TestVault_ResolveForURL_HostGlobMatch(t *testing.T) {
	ctx := context.Background()
	v, err := Open(ctx, testVaultPath(t), []byte("seed"), clock.New())
	require.NoError(t, err)

	_, err = v.Add(ctx, types.Credential{
		Type:     types.CredentialAPIKey,
		Name:     "default",
		Service:  "github",
		APIKey:   "x",
		Patterns: []string{"*.github.com"},
	})
	require.NoError(t, err)

	cred, err := v.ResolveForURL(ctx, "https://api.github.com/repos/foo/bar")
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, "github", cred.Service)

	none, err := v.ResolveForURL(ctx, "https://api.gitlab.com/repos/foo/bar")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestVault_ResolveForURL_GlobDoesNotCrossLabelBoundary(t *testing.T) {
	ctx := context.Background()
	v, err := Open(ctx, testVaultPath(t), []byte("seed"), clock.New())
	require.NoError(t, err)

	_, err = v.Add(ctx, types.Credential{
		Type:     types.CredentialAPIKey,
		Name:     "default",
		Service:  "github",
		APIKey:   "x",
		Patterns: []string{"*.github.com"},
	})
	require.NoError(t, err)

	// "evil.com/github.com" style hosts must not match a single "*" label.
	none, err := v.ResolveForURL(ctx, "https://evil.attacker.github.com.example.net/x")
	require.NoError(t, err)
	assert.Nil(t, none)

	// "evilgithub.com" concatenates onto the suffix without a label
	// boundary and must not match either.
	concat, err := v.ResolveForURL(ctx, "https://evilgithub.com/x")
	require.NoError(t, err)
	assert.Nil(t, concat)
}

func TestVault_ResolveForURL_HostGlobMatchesBareDomain(t *testing.T) {
	ctx := context.Background()
	v, err := Open(ctx, testVaultPath(t), []byte("seed"), clock.New())
	require.NoError(t, err)

	_, err = v.Add(ctx, types.Credential{
		Type:     types.CredentialAPIKey,
		Name:     "default",
		Service:  "github",
		APIKey:   "x",
		Patterns: []string{"*.github.com"},
	})
	require.NoError(t, err)

	// "*.github.com" matches zero leading labels too: the bare domain itself.
	cred, err := v.ResolveForURL(ctx, "https://github.com/repos/foo/bar")
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, "github", cred.Service)
}

func TestVault_ResolveForURL_HostGlobMatchesMultiLabelPrefix(t *testing.T) {
	ctx := context.Background()
	v, err := Open(ctx, testVaultPath(t), []byte("seed"), clock.New())
	require.NoError(t, err)

	_, err = v.Add(ctx, types.Credential{
		Type:     types.CredentialAPIKey,
		Name:     "default",
		Service:  "github",
		APIKey:   "x",
		Patterns: []string{"*.github.com"},
	})
	require.NoError(t, err)

	// "*.github.com" matches more than one leading label as well.
	cred, err := v.ResolveForURL(ctx, "https://a.b.github.com/repos/foo/bar")
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, "github", cred.Service)
}

func TestVault_ResolveForURL_PrefersOAuthOverAPIKey(t *testing.T) {
	ctx := context.Background()
	v, err := Open(ctx, testVaultPath(t), []byte("seed"), clock.New())
	require.NoError(t, err)

	_, err = v.Add(ctx, types.Credential{
		Type:     types.CredentialAPIKey,
		Name:     "apikey",
		Service:  "github",
		APIKey:   "x",
		Patterns: []string{"*.github.com"},
	})
	require.NoError(t, err)
	_, err = v.Add(ctx, types.Credential{
		Type:     types.CredentialOAuth,
		Name:     "oauth",
		Service:  "github",
		OAuth:    &types.OAuthMaterial{AccessToken: "tok"},
		Patterns: []string{"*.github.com"},
	})
	require.NoError(t, err)

	cred, err := v.ResolveForURL(ctx, "https://api.github.com")
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, types.CredentialOAuth, cred.Type)
}

func TestVault_ListRedactsSecrets(t *testing.T) {
	ctx := context.Background()
	v, err := Open(ctx, testVaultPath(t), []byte("seed"), clock.New())
	require.NoError(t, err)

	_, err = v.Add(ctx, types.Credential{Type: types.CredentialAPIKey, Name: "default", Service: "github", APIKey: "top-secret"})
	require.NoError(t, err)

	summaries, err := v.List(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	raw, err := json.Marshal(summaries)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "top-secret")
}

func TestVault_DeleteThenGetNotFound(t *testing.T) {
	ctx := context.Background()
	v, err := Open(ctx, testVaultPath(t), []byte("seed"), clock.New())
	require.NoError(t, err)

	id, err := v.Add(ctx, types.Credential{Type: types.CredentialAPIKey, Name: "default", Service: "github", APIKey: "x"})
	require.NoError(t, err)

	require.NoError(t, v.Delete(ctx, id))

	_, err = v.Get(ctx, id)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestVault_ReopenPersistsAcrossProcesses(t *testing.T) {
	ctx := context.Background()
	path := testVaultPath(t)
	seed := []byte("seed")

	v1, err := Open(ctx, path, seed, clock.New())
	require.NoError(t, err)
	id, err := v1.Add(ctx, types.Credential{Type: types.CredentialAPIKey, Name: "default", Service: "github", APIKey: "x"})
	require.NoError(t, err)

	v2, err := Open(ctx, path, seed, clock.New())
	require.NoError(t, err)
	got, err := v2.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "x", got.APIKey)
}

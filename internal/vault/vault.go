// Package vault implements the encrypted-at-rest credential store (C3).
package vault

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/codecoder/codecoder/internal/apperr"
	"github.com/codecoder/codecoder/internal/clock"
	"github.com/codecoder/codecoder/internal/storage"
	"github.com/codecoder/codecoder/pkg/types"
)

// envelopeVersion is the vault file format version.
const envelopeVersion = "v1"

// aad is the authenticated-associated-data string bound into every
// ciphertext, matching spec.md's wire format exactly.
const aad = "codecoder-vault-v1"

// envelope is the on-disk JSON shape of the vault file.
type envelope struct {
	Version    string `json:"version"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// Vault is the encrypted single-file credential store.
type Vault struct {
	mu       sync.RWMutex
	path     string
	keySeed  []byte // per-install secret used to derive the symmetric key
	clock    *clock.Clock
	creds    map[string]types.Credential
	unlocked bool
}

// Open loads (or initializes) a vault backed by path, deriving its key from
// keySeed (the per-install secret, read from the OS keychain when available
// or a 0600 file otherwise — keySeed itself is supplied by the caller).
func Open(ctx context.Context, path string, keySeed []byte, c *clock.Clock) (*Vault, error) {
	if len(keySeed) == 0 {
		return nil, fmt.Errorf("vault: empty key seed: %w", apperr.ErrVaultLocked)
	}
	v := &Vault{path: path, keySeed: keySeed, clock: c, creds: make(map[string]types.Credential)}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		v.unlocked = true
		return v, nil
	}
	if err != nil {
		return nil, fmt.Errorf("vault: read: %w", apperr.ErrInternal)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("vault: parse envelope: %w", apperr.ErrVaultCorrupt)
	}
	if env.Version != envelopeVersion {
		return nil, fmt.Errorf("vault: version mismatch %q: %w", env.Version, apperr.ErrVaultCorrupt)
	}

	salt, err := base64.StdEncoding.DecodeString(env.Salt)
	if err != nil {
		return nil, fmt.Errorf("vault: bad salt: %w", apperr.ErrVaultCorrupt)
	}
	nonce, err := base64.StdEncoding.DecodeString(env.Nonce)
	if err != nil {
		return nil, fmt.Errorf("vault: bad nonce: %w", apperr.ErrVaultCorrupt)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("vault: bad ciphertext: %w", apperr.ErrVaultCorrupt)
	}

	plaintext, err := decrypt(keySeed, salt, nonce, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("vault: decrypt: %w", apperr.ErrVaultCorrupt)
	}

	var creds map[string]types.Credential
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return nil, fmt.Errorf("vault: parse plaintext: %w", apperr.ErrVaultCorrupt)
	}

	v.creds = creds
	v.unlocked = true
	return v, nil
}

// Add inserts a new credential, rejecting duplicate (name, service) pairs.
func (v *Vault) Add(ctx context.Context, cred types.Credential) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.unlocked {
		return "", apperr.ErrVaultLocked
	}

	for _, existing := range v.creds {
		if existing.Name == cred.Name && existing.Service == cred.Service {
			return "", fmt.Errorf("credential %s/%s already exists: %w", cred.Service, cred.Name, apperr.ErrCredentialConflict)
		}
	}

	now := v.clock.Now()
	cred.ID = v.clock.NewID(clock.PrefixCredential)
	cred.CreatedAt = now
	cred.UpdatedAt = now
	v.creds[cred.ID] = cred

	if err := v.persistLocked(); err != nil {
		delete(v.creds, cred.ID)
		return "", err
	}
	return cred.ID, nil
}

// Get returns a credential by id with its secret material intact.
func (v *Vault) Get(ctx context.Context, id string) (types.Credential, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if !v.unlocked {
		return types.Credential{}, apperr.ErrVaultLocked
	}
	cred, ok := v.creds[id]
	if !ok {
		return types.Credential{}, fmt.Errorf("credential %s: %w", id, apperr.ErrNotFound)
	}
	return cred, nil
}

// List returns redacted summaries of every credential.
func (v *Vault) List(ctx context.Context) ([]types.Summary, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if !v.unlocked {
		return nil, apperr.ErrVaultLocked
	}
	out := make([]types.Summary, 0, len(v.creds))
	for _, cred := range v.creds {
		out = append(out, cred.Redact())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Update applies a partial update to a credential; fn mutates a copy in
// place and the result is persisted.
func (v *Vault) Update(ctx context.Context, id string, fn func(*types.Credential)) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.unlocked {
		return apperr.ErrVaultLocked
	}
	cred, ok := v.creds[id]
	if !ok {
		return fmt.Errorf("credential %s: %w", id, apperr.ErrNotFound)
	}
	before := cred
	fn(&cred)
	cred.UpdatedAt = v.clock.Now()
	v.creds[id] = cred
	if err := v.persistLocked(); err != nil {
		v.creds[id] = before
		return err
	}
	return nil
}

// UpdateOAuthTokens refreshes an OAuth credential's token material.
func (v *Vault) UpdateOAuthTokens(ctx context.Context, id, access string, refresh *string, expiresAt *int64) error {
	return v.Update(ctx, id, func(c *types.Credential) {
		if c.OAuth == nil {
			c.OAuth = &types.OAuthMaterial{}
		}
		c.OAuth.AccessToken = access
		if refresh != nil {
			c.OAuth.RefreshToken = *refresh
		}
		c.OAuth.ExpiresAt = expiresAt
	})
}

// Delete removes a credential permanently.
func (v *Vault) Delete(ctx context.Context, id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.unlocked {
		return apperr.ErrVaultLocked
	}
	if _, ok := v.creds[id]; !ok {
		return fmt.Errorf("credential %s: %w", id, apperr.ErrNotFound)
	}
	before := v.creds[id]
	delete(v.creds, id)
	if err := v.persistLocked(); err != nil {
		v.creds[id] = before
		return err
	}
	return nil
}

// ResolveForURL finds the best-matching credential for a URL's host,
// preferring oauth > bearer_token > api_key > login, then most recently
// updated within the same type.
func (v *Vault) ResolveForURL(ctx context.Context, rawURL string) (*types.Credential, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if !v.unlocked {
		return nil, apperr.ErrVaultLocked
	}

	host := extractHost(rawURL)
	if host == "" {
		return nil, nil
	}

	var best *types.Credential
	for id := range v.creds {
		cred := v.creds[id]
		if len(cred.Patterns) == 0 {
			continue
		}
		matched := false
		for _, pattern := range cred.Patterns {
			if matchHostGlob(pattern, host) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		if best == nil || better(cred, *best) {
			c := cred
			best = &c
		}
	}
	return best, nil
}

// ResolveForService finds a credential by exact service name, preferring
// the same type ranking and recency rule as ResolveForURL.
func (v *Vault) ResolveForService(ctx context.Context, service string) (*types.Credential, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if !v.unlocked {
		return nil, apperr.ErrVaultLocked
	}

	var best *types.Credential
	for id := range v.creds {
		cred := v.creds[id]
		if cred.Service != service {
			continue
		}
		if best == nil || better(cred, *best) {
			c := cred
			best = &c
		}
	}
	return best, nil
}

// better reports whether a ranks above b for resolve tie-breaking: higher
// type rank wins, then most recently updated.
func better(a, b types.Credential) bool {
	ra, rb := types.TypeRank(a.Type), types.TypeRank(b.Type)
	if ra != rb {
		return ra > rb
	}
	return a.UpdatedAt > b.UpdatedAt
}

// matchHostGlob matches a pattern like "*.github.com" against a host. A
// leading "*." matches zero or more leading dot-separated labels, so
// "*.github.com" matches the bare suffix "github.com" itself, a single
// label "api.github.com", and multiple labels "a.b.github.com" alike, but
// never a partial-label concatenation like "evilgithub.com" (the matched
// suffix always starts right after a literal "."). Any other "*" position
// falls back to doublestar's per-label path match, where "*" matches
// exactly one label.
func matchHostGlob(pattern, host string) bool {
	if pattern == host {
		return true
	}

	if strings.HasPrefix(pattern, "*.") {
		suffix := pattern[1:] // ".github.com"
		bare := pattern[2:]   // "github.com"
		return host == bare || strings.HasSuffix(host, suffix)
	}

	ok, err := doublestar.Match(labelGlobToPathGlob(pattern), labelGlobToPathGlob(host))
	if err != nil {
		return false
	}
	return ok
}

// labelGlobToPathGlob rewrites a dotted host glob into a doublestar path
// glob by treating each label as a path segment, so "*" matches one label
// only (doublestar's single "*" does not cross "/" boundaries).
func labelGlobToPathGlob(s string) string {
	return strings.ReplaceAll(s, ".", "/")
}

// extractHost pulls the host out of a URL-ish string without requiring a
// scheme.
func extractHost(raw string) string {
	s := raw
	if idx := strings.Index(s, "://"); idx >= 0 {
		s = s[idx+3:]
	}
	if idx := strings.IndexAny(s, "/?#"); idx >= 0 {
		s = s[:idx]
	}
	if idx := strings.LastIndex(s, "@"); idx >= 0 {
		s = s[idx+1:]
	}
	if idx := strings.LastIndex(s, ":"); idx >= 0 {
		// Avoid stripping an IPv6 literal's colons; only strip a trailing port.
		if !strings.Contains(s[idx:], "]") {
			s = s[:idx]
		}
	}
	return s
}

// persistLocked encrypts and atomically writes the vault; caller must hold v.mu.
func (v *Vault) persistLocked() error {
	plaintext, err := json.Marshal(v.creds)
	if err != nil {
		return fmt.Errorf("vault: marshal: %w", apperr.ErrInternal)
	}

	salt, nonce, ciphertext, err := encrypt(v.keySeed, plaintext)
	if err != nil {
		return fmt.Errorf("vault: encrypt: %w", apperr.ErrInternal)
	}

	env := envelope{
		Version:    envelopeVersion,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("vault: marshal envelope: %w", apperr.ErrInternal)
	}

	if err := os.MkdirAll(filepath.Dir(v.path), 0700); err != nil {
		return fmt.Errorf("vault: mkdir: %w", apperr.ErrInternal)
	}
	return storage.AtomicWriteFile(v.path, data, 0600)
}

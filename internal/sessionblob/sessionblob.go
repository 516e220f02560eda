// Package sessionblob implements the session store (C5): Playwright-compatible
// browser storage state, persisted one file per credential's service.
package sessionblob

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/codecoder/codecoder/internal/apperr"
	"github.com/codecoder/codecoder/internal/clock"
	"github.com/codecoder/codecoder/internal/clog"
	"github.com/codecoder/codecoder/internal/storage"
	"github.com/codecoder/codecoder/pkg/types"
)

// maxAge is the mtime-based validity window.
const maxAge = 30 * 24 * time.Hour

var sanitizeRe = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// sanitize replaces any character outside [A-Za-z0-9_-] with "_".
func sanitize(service string) string {
	return sanitizeRe.ReplaceAllString(service, "_")
}

// Info is the list() summary of a stored session.
type Info struct {
	Service   string `json:"service"`
	Valid     bool   `json:"valid"`
	UpdatedAt int64  `json:"updated_at"`
}

// Store persists session blobs under <workspace>/sessions/.
type Store struct {
	dir   string
	clock *clock.Clock
}

// New creates a Store rooted at workspaceDir/sessions, creating the
// directory (mode 0700) if absent.
func New(workspaceDir string, c *clock.Clock) (*Store, error) {
	dir := filepath.Join(workspaceDir, "sessions")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("sessionblob: mkdir: %w", apperr.ErrInternal)
	}
	return &Store{dir: dir, clock: c}, nil
}

func (s *Store) path(service string) string {
	return filepath.Join(s.dir, sanitize(service)+".json")
}

// Save persists blob for credID/service and returns the file path.
func (s *Store) Save(credID, service string, payload types.SessionBlobPayload, expiresAt int64) (string, error) {
	blob := types.SessionBlob{
		CredentialID: credID,
		Service:      service,
		Payload:      payload,
		UpdatedAt:    s.clock.Now(),
		ExpiresAt:    expiresAt,
	}
	data, err := json.MarshalIndent(blob, "", "  ")
	if err != nil {
		return "", fmt.Errorf("sessionblob: marshal: %w", apperr.ErrInternal)
	}
	path := s.path(service)
	if err := storage.AtomicWriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("sessionblob: write: %w", apperr.ErrInternal)
	}
	return path, nil
}

// Load returns the session blob for service, or nil if none exists.
func (s *Store) Load(service string) (*types.SessionBlob, error) {
	data, err := os.ReadFile(s.path(service))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sessionblob: read: %w", apperr.ErrInternal)
	}
	var blob types.SessionBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		return nil, fmt.Errorf("sessionblob: parse: %w", apperr.ErrInternal)
	}
	return &blob, nil
}

// HasValid reports whether service has a session blob satisfying every
// validity rule: file exists, mtime within maxAge, at least one cookie, and
// at least one cookie that is session-scoped or unexpired. Any one rule
// failing invalidates the session; the failing rule is logged.
func (s *Store) HasValid(service string) bool {
	path := s.path(service)
	fi, err := os.Stat(path)
	if err != nil {
		return false
	}

	age := time.Since(fi.ModTime())
	if age >= maxAge {
		clog.Debug().Str("service", service).Dur("age", age).Msg("sessionblob: invalid: mtime expired")
		return false
	}

	blob, err := s.Load(service)
	if err != nil || blob == nil {
		clog.Debug().Str("service", service).Msg("sessionblob: invalid: unreadable")
		return false
	}

	if len(blob.Payload.Cookies) == 0 {
		clog.Debug().Str("service", service).Msg("sessionblob: invalid: no cookies")
		return false
	}

	now := float64(s.clock.Now()) / 1000
	hasUsable := false
	for _, c := range blob.Payload.Cookies {
		if c.Expires < 0 || c.Expires > now {
			hasUsable = true
			break
		}
	}
	if !hasUsable {
		clog.Debug().Str("service", service).Msg("sessionblob: invalid: all cookies expired")
		return false
	}

	return true
}

// Clear removes the stored session for service.
func (s *Store) Clear(service string) error {
	err := os.Remove(s.path(service))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("sessionblob: remove: %w", apperr.ErrInternal)
	}
	return nil
}

// List returns info for every stored session.
func (s *Store) List() ([]Info, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Info{}, nil
		}
		return nil, fmt.Errorf("sessionblob: readdir: %w", apperr.ErrInternal)
	}

	var out []Info
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		service := e.Name()[:len(e.Name())-len(".json")]
		blob, err := s.Load(service)
		if err != nil || blob == nil {
			continue
		}
		out = append(out, Info{
			Service:   blob.Service,
			Valid:     s.HasValid(blob.Service),
			UpdatedAt: blob.UpdatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Service < out[j].Service })
	return out, nil
}

// CleanupExpired removes every stored session that is no longer valid,
// returning the number removed.
func (s *Store) CleanupExpired() (int, error) {
	infos, err := s.List()
	if err != nil {
		return 0, err
	}
	count := 0
	for _, info := range infos {
		if info.Valid {
			continue
		}
		if err := s.Clear(info.Service); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

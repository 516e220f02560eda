// Package apperr holds the system-wide error taxonomy. All components wrap
// one of these sentinels with fmt.Errorf("...: %w", err) so callers can
// test kind with errors.Is regardless of which component raised it.
package apperr

import "errors"

// Sentinel kinds, matching the taxonomy in the error-handling design.
var (
	ErrInvalidArgument    = errors.New("invalid_argument")
	ErrNotFound           = errors.New("not_found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrPermissionRejected = errors.New("permission_rejected")
	ErrVaultLocked        = errors.New("vault_locked")
	ErrVaultCorrupt       = errors.New("vault_corrupt")
	ErrCredentialConflict = errors.New("credential_conflict")
	ErrDeadlineExceeded   = errors.New("deadline_exceeded")
	ErrAlreadyDecided     = errors.New("already_decided")
	ErrTerminalState      = errors.New("terminal_state")
	ErrDoomLoop           = errors.New("doom_loop_detected")
	ErrInternal           = errors.New("internal")
)

// Code returns the short machine-readable identifier for an error, matching
// one of the sentinel kinds above, or "internal" if none match.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrPermissionRejected):
		return "permission_rejected"
	case errors.Is(err, ErrVaultLocked):
		return "vault_locked"
	case errors.Is(err, ErrVaultCorrupt):
		return "vault_corrupt"
	case errors.Is(err, ErrCredentialConflict):
		return "credential_conflict"
	case errors.Is(err, ErrDeadlineExceeded):
		return "deadline_exceeded"
	case errors.Is(err, ErrAlreadyDecided):
		return "already_decided"
	case errors.Is(err, ErrTerminalState):
		return "terminal_state"
	case errors.Is(err, ErrDoomLoop):
		return "doom_loop_detected"
	default:
		return "internal"
	}
}

// Envelope is the uniform error shape returned at the RPC boundary.
type Envelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ToEnvelope converts any error into the uniform RPC error envelope.
func ToEnvelope(err error) Envelope {
	if err == nil {
		return Envelope{}
	}
	return Envelope{Code: Code(err), Message: err.Error()}
}

// Package permission implements the permission engine (C7): risk assessment,
// adaptive adjustment, the approve/defer/reject decision procedure, the
// remote gate, and the audit log.
package permission

import (
	"github.com/codecoder/codecoder/pkg/types"
)

// Request is one permission check submitted to the engine.
type Request struct {
	ID          string
	SessionID   string
	TaskID      string
	Tool        string
	Input       any
	Pattern     []string
	Title       string
	TaskContext types.TaskContextForPermission
}

// Decision is the outcome of evaluate().
type Decision struct {
	PermissionID string
	Risk         types.RiskLevel
	Outcome      Outcome
	Reason       string
	DecidedBy    types.DecidedBy
}

// Outcome is the closed set of decision outcomes evaluate() can produce.
type Outcome string

const (
	OutcomeApproved         Outcome = "approved"
	OutcomeRejected         Outcome = "rejected"
	OutcomeDeferToHuman     Outcome = "defer_to_human"
	OutcomeTimeoutApproved  Outcome = "timeout_approved"
)

// RejectedError is returned when a permission request is ultimately denied.
type RejectedError struct {
	SessionID string
	Tool      string
	Reason    string
}

func (e *RejectedError) Error() string { return e.Reason }

// IsRejectedError reports whether err is a permission rejection.
func IsRejectedError(err error) bool {
	_, ok := err.(*RejectedError)
	return ok
}

// Response is a human's decision on a pending permission request.
type Response struct {
	RequestID string
	Decision  types.PermissionDecision
}

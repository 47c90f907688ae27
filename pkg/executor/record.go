package executor

import (
	"context"
	"errors"
	"time"

	"github.com/planora/planora/pkg/policy"
)

// Status is the lifecycle state of a call record
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusExecuted  Status = "executed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether no further transitions are possible
func (s Status) IsTerminal() bool {
	return s == StatusExecuted || s == StatusFailed || s == StatusCancelled
}

// CallRecord is the durable record of one invocation attempt. It is
// created once per call, mutated only by the executor, never deleted.
type CallRecord struct {
	ID           string                 `json:"id"`
	ToolName     string                 `json:"tool_name"`
	WorkspaceID  string                 `json:"workspace_id"`
	ProjectID    string                 `json:"project_id,omitempty"`
	ActorID      string                 `json:"actor_id"`
	SessionID    string                 `json:"session_id,omitempty"`
	Input        map[string]interface{} `json:"input"`
	Output       interface{}            `json:"output,omitempty"`
	Status       Status                 `json:"status"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	ConfirmedBy  string                 `json:"confirmed_by,omitempty"`
	ConfirmedAt  *time.Time             `json:"confirmed_at,omitempty"`
	ExecutedAt   *time.Time             `json:"executed_at,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

// RecordPatch carries the fields a transition may update. Nil fields
// are left untouched.
type RecordPatch struct {
	Output       interface{}
	ErrorMessage *string
	ConfirmedBy  *string
	ConfirmedAt  *time.Time
	ExecutedAt   *time.Time
}

// ErrCallNotFound is returned when a call record id does not exist
var ErrCallNotFound = errors.New("call record not found")

// ErrInvalidState is returned when a call record is not in the state
// an operation requires, e.g. confirming a call that is no longer
// pending
var ErrInvalidState = errors.New("call record is not in the expected state")

// Ledger is the persistence collaborator for call records. The
// executor reads and writes it but does not own its storage.
//
// TransitionCallRecord must be a single conditional update at the
// storage layer: the status changes from exactly `from` to `to`, or
// the call reports false. This is what keeps pending -> confirmed safe
// against two concurrent confirmations.
type Ledger interface {
	CreateCallRecord(ctx context.Context, rec *CallRecord) error
	UpdateCallRecord(ctx context.Context, id string, patch RecordPatch) error
	GetCallRecord(ctx context.Context, id string) (*CallRecord, error)
	TransitionCallRecord(ctx context.Context, id string, from, to Status, patch RecordPatch) (bool, error)
}

// AuditEntry is one policy-relevant action appended to the audit sink
type AuditEntry struct {
	ID          string                 `json:"id"`
	WorkspaceID string                 `json:"workspace_id"`
	Actor       string                 `json:"actor"`
	Action      string                 `json:"action"`
	Resource    string                 `json:"resource"`
	Details     map[string]interface{} `json:"details,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
}

// AuditSink is the append-only audit collaborator. Writes are
// best-effort from the executor's point of view.
type AuditSink interface {
	AppendAuditEntry(ctx context.Context, entry AuditEntry) error
}

// PolicySource loads the per-workspace policy configuration, falling
// back to policy.DefaultConfig when none is stored
type PolicySource interface {
	LoadPolicyConfig(ctx context.Context, workspaceID string) (policy.Config, error)
}

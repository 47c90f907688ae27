package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/planora/planora/internal/tracing"
	"github.com/planora/planora/pkg/policy"
	"github.com/planora/planora/pkg/tools"
)

// Notifier receives lifecycle events for calls that need human
// attention. All notifications are best-effort.
type Notifier interface {
	CallProposed(rec *CallRecord)
	CallResolved(rec *CallRecord)
}

// MetricsRecorder receives execution metrics. Optional; a nil
// recorder disables instrumentation.
type MetricsRecorder interface {
	ObserveCall(tool, status string, duration time.Duration)
	ObserveDenial(tool string)
	ObservePending(delta int)
}

// Config holds executor configuration
type Config struct {
	Catalog       *tools.Catalog
	Ledger        Ledger
	Audit         AuditSink
	Policies      PolicySource
	Engine        *policy.Engine
	Notifier      Notifier        // optional
	Metrics       MetricsRecorder // optional
	EffectTimeout time.Duration
	Logger        zerolog.Logger
}

// Executor orchestrates one tool invocation end to end: contract
// validation, policy evaluation, ledger bookkeeping, the two-phase
// confirmation protocol, and running the effect under a deadline.
type Executor struct {
	catalog       *tools.Catalog
	ledger        Ledger
	auditSink     AuditSink
	policies      PolicySource
	engine        *policy.Engine
	notifier      Notifier
	metrics       MetricsRecorder
	effectTimeout time.Duration
	logger        zerolog.Logger
}

// New creates an executor
func New(cfg Config) (*Executor, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	if cfg.Policies == nil {
		return nil, fmt.Errorf("policy source is required")
	}
	if cfg.Engine == nil {
		cfg.Engine = policy.NewEngine()
	}
	if cfg.EffectTimeout <= 0 {
		cfg.EffectTimeout = 60 * time.Second
	}

	return &Executor{
		catalog:       cfg.Catalog,
		ledger:        cfg.Ledger,
		auditSink:     cfg.Audit,
		policies:      cfg.Policies,
		engine:        cfg.Engine,
		notifier:      cfg.Notifier,
		metrics:       cfg.Metrics,
		effectTimeout: cfg.EffectTimeout,
		logger:        cfg.Logger,
	}, nil
}

// Execute runs one tool call. Lookup and validation failures return
// immediately without a ledger entry. Policy evaluation is a mandatory
// pre-condition: no effect runs on a denied call. When the decision
// requires confirmation the call is parked as a pending record and the
// effect is not invoked; ConfirmAndExecute resumes it.
func (e *Executor) Execute(ctx context.Context, toolName string, rawInput map[string]interface{}, inv tools.InvocationContext) ToolResult {
	tool, err := e.catalog.Get(toolName)
	if err != nil {
		e.logger.Error().Str("tool", toolName).Msg("Tool not found")
		return errorResult(err.Error())
	}

	contract, err := e.catalog.Contract(toolName)
	if err != nil {
		return errorResult(err.Error())
	}
	if err := contract.Validate(rawInput); err != nil {
		e.logger.Warn().Str("tool", toolName).Err(err).Msg("Input validation failed")
		return errorResult(fmt.Sprintf("input validation failed: %v", err))
	}

	cfg, err := e.policies.LoadPolicyConfig(ctx, inv.WorkspaceID)
	if err != nil {
		// Fail closed: never run an effect without a policy decision
		e.logger.Error().Str("workspace_id", inv.WorkspaceID).Err(err).Msg("Failed to load policy config")
		return errorResult(fmt.Sprintf("failed to load policy config: %v", err))
	}

	decision := e.engine.DecideExecution(toolName, tool.Risk, tool.RequiresConfirmation, cfg)
	if !decision.Allowed {
		if e.metrics != nil {
			e.metrics.ObserveDenial(toolName)
		}
		e.auditAction(ctx, inv.WorkspaceID, inv.ActorID, "call.denied", toolName, map[string]interface{}{
			"reason": decision.Reason,
		})
		return errorResult(fmt.Sprintf("policy denied: %s", decision.Reason))
	}

	id, err := gonanoid.New()
	if err != nil {
		return errorResult(fmt.Sprintf("failed to generate call id: %v", err))
	}

	rec := &CallRecord{
		ID:          id,
		ToolName:    toolName,
		WorkspaceID: inv.WorkspaceID,
		ProjectID:   inv.ProjectID,
		ActorID:     inv.ActorID,
		SessionID:   inv.SessionID,
		Input:       rawInput,
		Status:      StatusPending,
		CreatedAt:   time.Now().UTC(),
	}

	tracked := true
	if err := e.ledger.CreateCallRecord(ctx, rec); err != nil {
		if decision.RequiresConfirmation {
			// Never report "pending" without a durable record
			e.logger.Error().Str("tool", toolName).Err(err).Msg("Primary ledger write failed")
			return errorResult(fmt.Sprintf("failed to record call: %v", err))
		}
		e.logger.Error().Str("tool", toolName).Err(err).Msg("Ledger write failed, proceeding without record")
		tracked = false
	}

	if decision.RequiresConfirmation {
		e.logger.Info().
			Str("tool", toolName).
			Str("call_id", rec.ID).
			Str("reason", decision.Reason).
			Msg("Call parked for confirmation")

		if e.notifier != nil {
			e.notifier.CallProposed(rec)
		}
		if e.metrics != nil {
			e.metrics.ObservePending(1)
		}
		e.auditRecord(ctx, rec, "call.proposed", map[string]interface{}{
			"reason": decision.Reason,
		})

		return successResult(ConfirmationRequest{
			RequiresConfirmation: true,
			CallID:               rec.ID,
			Message:              fmt.Sprintf("%s requires confirmation before running", toolName),
		})
	}

	return e.runEffect(ctx, tool, rec, inv, StatusPending, tracked)
}

// ConfirmAndExecute resumes a pending call. The pending -> confirmed
// transition is a single conditional update against the ledger, so a
// second concurrent confirmation loses the race and gets an error
// instead of double-executing the effect.
func (e *Executor) ConfirmAndExecute(ctx context.Context, callID, actorID string) ToolResult {
	rec, err := e.ledger.GetCallRecord(ctx, callID)
	if err != nil {
		if errors.Is(err, ErrCallNotFound) {
			return errorResult(fmt.Sprintf("call record not found: %s", callID))
		}
		return errorResult(fmt.Sprintf("failed to load call record: %v", err))
	}

	now := time.Now().UTC()
	ok, err := e.ledger.TransitionCallRecord(ctx, callID, StatusPending, StatusConfirmed, RecordPatch{
		ConfirmedBy: &actorID,
		ConfirmedAt: &now,
	})
	if err != nil {
		return errorResult(fmt.Sprintf("failed to confirm call: %v", err))
	}
	if !ok {
		e.logger.Warn().
			Str("call_id", callID).
			Str("status", string(rec.Status)).
			Msg("Confirmation rejected: call is not pending")
		return errorResult(fmt.Sprintf("%v: call %s is not pending", ErrInvalidState, callID))
	}
	if e.metrics != nil {
		e.metrics.ObservePending(-1)
	}

	rec.Status = StatusConfirmed
	rec.ConfirmedBy = actorID
	rec.ConfirmedAt = &now

	tool, err := e.catalog.Get(rec.ToolName)
	if err != nil {
		// Tool unregistered since the call was proposed: the record
		// must not stay stuck in confirmed
		msg := err.Error()
		if _, terr := e.ledger.TransitionCallRecord(ctx, callID, StatusConfirmed, StatusFailed, RecordPatch{
			ErrorMessage: &msg,
		}); terr != nil {
			e.logger.Error().Str("call_id", callID).Err(terr).Msg("Failed to fail orphaned call record")
		}
		return errorResult(msg)
	}

	e.auditRecord(ctx, rec, "call.confirmed", map[string]interface{}{
		"confirmed_by": actorID,
	})

	inv := tools.InvocationContext{
		ActorID:     rec.ActorID,
		WorkspaceID: rec.WorkspaceID,
		ProjectID:   rec.ProjectID,
		SessionID:   rec.SessionID,
	}

	return e.runEffect(ctx, tool, rec, inv, StatusConfirmed, true)
}

// Cancel moves a pending call to cancelled without running its effect
func (e *Executor) Cancel(ctx context.Context, callID, actorID string) ToolResult {
	rec, err := e.ledger.GetCallRecord(ctx, callID)
	if err != nil {
		if errors.Is(err, ErrCallNotFound) {
			return errorResult(fmt.Sprintf("call record not found: %s", callID))
		}
		return errorResult(fmt.Sprintf("failed to load call record: %v", err))
	}

	ok, err := e.ledger.TransitionCallRecord(ctx, callID, StatusPending, StatusCancelled, RecordPatch{})
	if err != nil {
		return errorResult(fmt.Sprintf("failed to cancel call: %v", err))
	}
	if !ok {
		return errorResult(fmt.Sprintf("%v: call %s is not pending", ErrInvalidState, callID))
	}
	if e.metrics != nil {
		e.metrics.ObservePending(-1)
	}

	rec.Status = StatusCancelled
	e.logger.Info().Str("call_id", callID).Str("actor_id", actorID).Msg("Call cancelled")

	if e.notifier != nil {
		e.notifier.CallResolved(rec)
	}
	e.auditRecord(ctx, rec, "call.cancelled", map[string]interface{}{
		"cancelled_by": actorID,
	})

	return successResult(map[string]interface{}{"call_id": callID, "status": string(StatusCancelled)})
}

// runEffect invokes the tool's effect under the executor's deadline
// and finalizes the record from the given status
func (e *Executor) runEffect(ctx context.Context, tool *tools.Descriptor, rec *CallRecord, inv tools.InvocationContext, from Status, tracked bool) ToolResult {
	startTime := time.Now()

	ctx = tracing.NewCallContext(ctx, rec.ID)
	ctx, span := tracing.StartSpan(ctx, "executor", "tool.execute",
		attribute.String("tool.name", tool.Name),
		attribute.String("call.id", rec.ID),
		attribute.String("workspace.id", rec.WorkspaceID),
	)
	defer span.End()

	logger := tracing.LoggerFromContext(ctx, e.logger)

	// Only confirmation-path calls were announced with CallProposed;
	// resolving a call nobody saw proposed would confuse clients
	notifyResolved := e.notifier != nil && from == StatusConfirmed

	timeoutCtx, cancel := context.WithTimeout(ctx, e.effectTimeout)
	defer cancel()

	resultChan := make(chan interface{}, 1)
	errChan := make(chan error, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				errChan <- fmt.Errorf("tool panicked: %v", r)
			}
		}()
		output, err := tool.Effect(timeoutCtx, rec.Input, inv)
		if err != nil {
			errChan <- err
		} else {
			resultChan <- output
		}
	}()

	select {
	case output := <-resultChan:
		e.finalize(ctx, rec, from, StatusExecuted, RecordPatch{Output: output}, tracked)
		if e.metrics != nil {
			e.metrics.ObserveCall(tool.Name, string(StatusExecuted), time.Since(startTime))
		}

		logger.Debug().
			Str("tool", tool.Name).
			Dur("duration", time.Since(startTime)).
			Msg("Tool execution completed")

		e.auditRecord(ctx, rec, "call.executed", map[string]interface{}{
			"duration_ms": time.Since(startTime).Milliseconds(),
		})
		if notifyResolved {
			e.notifier.CallResolved(rec)
		}
		return successResult(output)

	case err := <-errChan:
		msg := err.Error()
		e.finalize(ctx, rec, from, StatusFailed, RecordPatch{ErrorMessage: &msg}, tracked)
		if e.metrics != nil {
			e.metrics.ObserveCall(tool.Name, string(StatusFailed), time.Since(startTime))
		}

		logger.Error().
			Str("tool", tool.Name).
			Err(err).
			Msg("Tool execution failed")

		e.auditRecord(ctx, rec, "call.failed", map[string]interface{}{
			"error": msg,
		})
		if notifyResolved {
			e.notifier.CallResolved(rec)
		}
		return errorResult(msg)

	case <-timeoutCtx.Done():
		msg := fmt.Sprintf("tool execution timeout after %v", e.effectTimeout)
		if errors.Is(timeoutCtx.Err(), context.Canceled) {
			msg = "tool execution cancelled"
		}
		e.finalize(ctx, rec, from, StatusFailed, RecordPatch{ErrorMessage: &msg}, tracked)
		if e.metrics != nil {
			e.metrics.ObserveCall(tool.Name, string(StatusFailed), time.Since(startTime))
		}

		logger.Error().
			Str("tool", tool.Name).
			Dur("duration", time.Since(startTime)).
			Msg("Tool execution timed out")

		e.auditRecord(ctx, rec, "call.failed", map[string]interface{}{
			"error": msg,
		})
		if notifyResolved {
			e.notifier.CallResolved(rec)
		}
		return errorResult(msg)
	}
}

// finalize records the terminal status. Failures here are logged but
// do not change the caller's result.
func (e *Executor) finalize(ctx context.Context, rec *CallRecord, from, to Status, patch RecordPatch, tracked bool) {
	executedAt := time.Now().UTC()
	patch.ExecutedAt = &executedAt

	rec.Status = to
	rec.ExecutedAt = &executedAt
	if patch.Output != nil {
		rec.Output = patch.Output
	}
	if patch.ErrorMessage != nil {
		rec.ErrorMessage = *patch.ErrorMessage
	}

	if !tracked {
		return
	}

	ok, err := e.ledger.TransitionCallRecord(ctx, rec.ID, from, to, patch)
	if err != nil {
		e.logger.Error().Str("call_id", rec.ID).Err(err).Msg("Failed to finalize call record")
		return
	}
	if !ok {
		e.logger.Warn().
			Str("call_id", rec.ID).
			Str("from", string(from)).
			Str("to", string(to)).
			Msg("Call record changed state mid-flight, finalization skipped")
	}
}

// auditRecord appends an audit entry for a call record
func (e *Executor) auditRecord(ctx context.Context, rec *CallRecord, action string, details map[string]interface{}) {
	if details == nil {
		details = map[string]interface{}{}
	}
	details["call_id"] = rec.ID
	e.auditAction(ctx, rec.WorkspaceID, rec.ActorID, action, rec.ToolName, details)
}

// auditAction appends an audit entry. Audit writes are best-effort:
// failures are logged, never surfaced to the caller.
func (e *Executor) auditAction(ctx context.Context, workspaceID, actor, action, resource string, details map[string]interface{}) {
	if e.auditSink == nil {
		return
	}

	entry := AuditEntry{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		Actor:       actor,
		Action:      action,
		Resource:    resource,
		Details:     details,
		Timestamp:   time.Now().UTC(),
	}

	if err := e.auditSink.AppendAuditEntry(ctx, entry); err != nil {
		e.logger.Warn().Str("action", action).Err(err).Msg("Failed to append audit entry")
	}
}

package tracing

import (
	"context"

	"github.com/rs/zerolog"
)

// LoggerFromContext returns the base logger annotated with whatever
// tracing fields the context carries
func LoggerFromContext(ctx context.Context, baseLogger zerolog.Logger) zerolog.Logger {
	tc := FromContext(ctx)

	if tc.TraceID != "" {
		baseLogger = baseLogger.With().Str("trace_id", tc.TraceID).Logger()
	}
	if tc.CallID != "" {
		baseLogger = baseLogger.With().Str("call_id", tc.CallID).Logger()
	}
	if tc.WorkspaceID != "" {
		baseLogger = baseLogger.With().Str("workspace_id", tc.WorkspaceID).Logger()
	}
	if tc.SessionID != "" {
		baseLogger = baseLogger.With().Str("session_id", tc.SessionID).Logger()
	}

	return baseLogger
}

// MergeContext copies tracing fields from source into target without
// overwriting fields target already has
func MergeContext(target, source context.Context) context.Context {
	tc := FromContext(source)

	if tc.TraceID != "" && GetTraceID(target) == "" {
		target = WithTraceID(target, tc.TraceID)
	}
	if tc.CallID != "" && GetCallID(target) == "" {
		target = WithCallID(target, tc.CallID)
	}
	if tc.WorkspaceID != "" && GetWorkspaceID(target) == "" {
		target = WithWorkspaceID(target, tc.WorkspaceID)
	}
	if tc.SessionID != "" && GetSessionID(target) == "" {
		target = WithSessionID(target, tc.SessionID)
	}

	return target
}

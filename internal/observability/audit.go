package observability

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/planora/planora/pkg/executor"
)

// AuditLogger is the default append-only audit sink: structured JSON
// lines written through zerolog. The durable sink for compliance
// queries is the ledger store; this one is for operators tailing a
// file.
type AuditLogger struct {
	logger zerolog.Logger
	mu     sync.Mutex
	file   *os.File
}

// NewAuditLogger writes audit entries to the given file, or stderr
// when path is empty
func NewAuditLogger(path string) (*AuditLogger, error) {
	if path == "" {
		return &AuditLogger{
			logger: zerolog.New(os.Stderr).With().Timestamp().Logger(),
		}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}

	return &AuditLogger{
		logger: zerolog.New(file).With().Timestamp().Logger(),
		file:   file,
	}, nil
}

// AppendAuditEntry implements executor.AuditSink
func (a *AuditLogger) AppendAuditEntry(_ context.Context, entry executor.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	event := a.logger.Log().
		Str("id", entry.ID).
		Str("workspace_id", entry.WorkspaceID).
		Str("actor", entry.Actor).
		Str("action", entry.Action).
		Str("resource", entry.Resource).
		Time("at", entry.Timestamp)

	if entry.Details != nil {
		event = event.Interface("details", entry.Details)
	}

	event.Msg("")
	return nil
}

// Close closes the audit log file handle
func (a *AuditLogger) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file != nil {
		return a.file.Close()
	}
	return nil
}

// MultiSink fans one audit entry out to several sinks. Every sink is
// attempted; the first error is returned.
type MultiSink struct {
	sinks []executor.AuditSink
}

// NewMultiSink creates a fan-out audit sink
func NewMultiSink(sinks ...executor.AuditSink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// AppendAuditEntry implements executor.AuditSink
func (m *MultiSink) AppendAuditEntry(ctx context.Context, entry executor.AuditEntry) error {
	var firstErr error
	for _, sink := range m.sinks {
		if err := sink.AppendAuditEntry(ctx, entry); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

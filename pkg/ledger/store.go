package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/planora/planora/pkg/executor"
	"github.com/planora/planora/pkg/policy"
)

// Store is the SQLite-backed persistence collaborator: call records,
// audit log, usage counters and per-workspace policy configs.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Config holds store configuration
type Config struct {
	DBPath string
	Logger zerolog.Logger
}

// NewStore opens the database and initializes the schema
func NewStore(cfg Config) (*Store, error) {
	if cfg.DBPath == "" {
		return nil, errors.New("database path is required")
	}

	// Immediate transactions take the write lock up front, which is
	// what makes ReserveUsage's sum-compare-insert atomic
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Store{db: db, logger: cfg.Logger}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s.logger.Info().Str("path", cfg.DBPath).Msg("Ledger store initialized")
	return s, nil
}

// initSchema creates database tables
func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS call_records (
			id TEXT PRIMARY KEY,
			tool_name TEXT NOT NULL,
			workspace_id TEXT NOT NULL,
			project_id TEXT,
			actor_id TEXT NOT NULL,
			session_id TEXT,
			input TEXT NOT NULL,
			output TEXT,
			status TEXT NOT NULL,
			error_message TEXT,
			confirmed_by TEXT,
			confirmed_at TIMESTAMP,
			executed_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_call_records_workspace
			ON call_records(workspace_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_call_records_status
			ON call_records(status, created_at);

		CREATE TABLE IF NOT EXISTS audit_log (
			id TEXT PRIMARY KEY,
			workspace_id TEXT NOT NULL,
			actor TEXT NOT NULL,
			action TEXT NOT NULL,
			resource TEXT NOT NULL,
			details TEXT,
			timestamp TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_audit_log_workspace
			ON audit_log(workspace_id, timestamp);

		CREATE TABLE IF NOT EXISTS usage (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			workspace_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			amount REAL NOT NULL,
			recorded_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_usage_window
			ON usage(workspace_id, kind, recorded_at);

		CREATE TABLE IF NOT EXISTS policy_configs (
			workspace_id TEXT PRIMARY KEY,
			config TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateCallRecord inserts a new call record
func (s *Store) CreateCallRecord(ctx context.Context, rec *executor.CallRecord) error {
	input, err := json.Marshal(rec.Input)
	if err != nil {
		return fmt.Errorf("failed to marshal input: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO call_records
			(id, tool_name, workspace_id, project_id, actor_id, session_id, input, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ToolName, rec.WorkspaceID, nullable(rec.ProjectID), rec.ActorID,
		nullable(rec.SessionID), string(input), string(rec.Status), rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert call record: %w", err)
	}

	return nil
}

// GetCallRecord loads a call record by id
func (s *Store) GetCallRecord(ctx context.Context, id string) (*executor.CallRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tool_name, workspace_id, project_id, actor_id, session_id,
		       input, output, status, error_message, confirmed_by,
		       confirmed_at, executed_at, created_at
		FROM call_records WHERE id = ?`, id)

	var rec executor.CallRecord
	var projectID, sessionID, output, errorMessage, confirmedBy sql.NullString
	var confirmedAt, executedAt sql.NullTime
	var input string
	var status string

	err := row.Scan(&rec.ID, &rec.ToolName, &rec.WorkspaceID, &projectID, &rec.ActorID,
		&sessionID, &input, &output, &status, &errorMessage, &confirmedBy,
		&confirmedAt, &executedAt, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, executor.ErrCallNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load call record: %w", err)
	}

	rec.Status = executor.Status(status)
	rec.ProjectID = projectID.String
	rec.SessionID = sessionID.String
	rec.ErrorMessage = errorMessage.String
	rec.ConfirmedBy = confirmedBy.String
	if confirmedAt.Valid {
		t := confirmedAt.Time
		rec.ConfirmedAt = &t
	}
	if executedAt.Valid {
		t := executedAt.Time
		rec.ExecutedAt = &t
	}

	if err := json.Unmarshal([]byte(input), &rec.Input); err != nil {
		return nil, fmt.Errorf("failed to unmarshal input: %w", err)
	}
	if output.Valid && output.String != "" {
		if err := json.Unmarshal([]byte(output.String), &rec.Output); err != nil {
			return nil, fmt.Errorf("failed to unmarshal output: %w", err)
		}
	}

	return &rec, nil
}

// UpdateCallRecord applies a patch unconditionally
func (s *Store) UpdateCallRecord(ctx context.Context, id string, patch executor.RecordPatch) error {
	query, args, err := patchClauses(patch)
	if err != nil {
		return err
	}
	if query == "" {
		return nil
	}

	args = append(args, id)
	res, err := s.db.ExecContext(ctx, "UPDATE call_records SET "+query+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("failed to update call record: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return executor.ErrCallNotFound
	}
	return nil
}

// TransitionCallRecord moves a record from exactly one status to
// another in a single conditional update. Returns false when the
// record is not currently in the expected status, which is how two
// concurrent confirmations of the same call are serialized.
func (s *Store) TransitionCallRecord(ctx context.Context, id string, from, to executor.Status, patch executor.RecordPatch) (bool, error) {
	clauses, args, err := patchClauses(patch)
	if err != nil {
		return false, err
	}

	query := "UPDATE call_records SET status = ?"
	if clauses != "" {
		query += ", " + clauses
	}
	query += " WHERE id = ? AND status = ?"

	allArgs := append([]interface{}{string(to)}, args...)
	allArgs = append(allArgs, id, string(from))

	res, err := s.db.ExecContext(ctx, query, allArgs...)
	if err != nil {
		return false, fmt.Errorf("failed to transition call record: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	if affected == 0 {
		// Distinguish a lost race from a missing record
		var exists int
		err := s.db.QueryRowContext(ctx, "SELECT 1 FROM call_records WHERE id = ?", id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return false, executor.ErrCallNotFound
		}
		if err != nil {
			return false, err
		}
		return false, nil
	}

	return true, nil
}

// patchClauses renders a RecordPatch into SET clauses
func patchClauses(patch executor.RecordPatch) (string, []interface{}, error) {
	clauses := ""
	args := []interface{}{}

	appendClause := func(clause string, arg interface{}) {
		if clauses != "" {
			clauses += ", "
		}
		clauses += clause
		args = append(args, arg)
	}

	if patch.Output != nil {
		output, err := json.Marshal(patch.Output)
		if err != nil {
			return "", nil, fmt.Errorf("failed to marshal output: %w", err)
		}
		appendClause("output = ?", string(output))
	}
	if patch.ErrorMessage != nil {
		appendClause("error_message = ?", *patch.ErrorMessage)
	}
	if patch.ConfirmedBy != nil {
		appendClause("confirmed_by = ?", *patch.ConfirmedBy)
	}
	if patch.ConfirmedAt != nil {
		appendClause("confirmed_at = ?", *patch.ConfirmedAt)
	}
	if patch.ExecutedAt != nil {
		appendClause("executed_at = ?", *patch.ExecutedAt)
	}

	return clauses, args, nil
}

// AppendAuditEntry appends one audit entry. The audit log is
// append-only; nothing updates or deletes rows.
func (s *Store) AppendAuditEntry(ctx context.Context, entry executor.AuditEntry) error {
	var details []byte
	if entry.Details != nil {
		var err error
		details, err = json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("failed to marshal audit details: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, workspace_id, actor, action, resource, details, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.WorkspaceID, entry.Actor, entry.Action, entry.Resource,
		string(details), entry.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	return nil
}

// LoadPolicyConfig loads the workspace policy, falling back to the
// documented defaults when none is stored
func (s *Store) LoadPolicyConfig(ctx context.Context, workspaceID string) (policy.Config, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT config FROM policy_configs WHERE workspace_id = ?", workspaceID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return policy.DefaultConfig(), nil
	}
	if err != nil {
		return policy.Config{}, fmt.Errorf("failed to load policy config: %w", err)
	}

	cfg := policy.DefaultConfig()
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return policy.Config{}, fmt.Errorf("failed to parse policy config: %w", err)
	}

	return cfg, nil
}

// SavePolicyConfig stores the workspace policy
func (s *Store) SavePolicyConfig(ctx context.Context, workspaceID string, cfg policy.Config) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal policy config: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO policy_configs (workspace_id, config, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(workspace_id) DO UPDATE SET config = excluded.config, updated_at = excluded.updated_at`,
		workspaceID, string(raw), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save policy config: %w", err)
	}

	return nil
}

// QueryUsage sums recorded usage for a workspace since the window start
func (s *Store) QueryUsage(ctx context.Context, workspaceID string, kind policy.QuotaKind, windowStart time.Time) (float64, error) {
	var used float64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM usage
		WHERE workspace_id = ? AND kind = ? AND recorded_at >= ?`,
		workspaceID, string(kind), windowStart).Scan(&used)
	if err != nil {
		return 0, fmt.Errorf("failed to query usage: %w", err)
	}
	return used, nil
}

// RecordUsage appends a usage row without a limit check
func (s *Store) RecordUsage(ctx context.Context, workspaceID string, kind policy.QuotaKind, amount float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage (workspace_id, kind, amount, recorded_at)
		VALUES (?, ?, ?, ?)`,
		workspaceID, string(kind), amount, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}
	return nil
}

// ReserveUsage reserves an amount against a limit in one transaction.
// The sum, the comparison and the insert happen under an immediate
// write lock, so concurrent reservations cannot jointly overshoot.
func (s *Store) ReserveUsage(ctx context.Context, workspaceID string, kind policy.QuotaKind, amount, limit float64, windowStart time.Time) (bool, float64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var used float64
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM usage
		WHERE workspace_id = ? AND kind = ? AND recorded_at >= ?`,
		workspaceID, string(kind), windowStart).Scan(&used)
	if err != nil {
		return false, 0, fmt.Errorf("failed to query usage: %w", err)
	}

	remaining := limit - used
	if used+amount > limit {
		return false, remaining, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO usage (workspace_id, kind, amount, recorded_at)
		VALUES (?, ?, ?, ?)`,
		workspaceID, string(kind), amount, time.Now().UTC())
	if err != nil {
		return false, 0, fmt.Errorf("failed to record usage: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, 0, fmt.Errorf("failed to commit usage: %w", err)
	}

	return true, remaining, nil
}

// nullable maps an empty string to NULL
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

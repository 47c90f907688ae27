package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/planora/planora/pkg/executor"
)

// PendingObserver receives pending-count changes. The janitor expires
// pending calls behind the executor's back, so it has to report those
// expiries to whatever tracks the pending gauge.
type PendingObserver interface {
	ObservePending(delta int)
}

// Janitor runs scheduled maintenance against the store: pruning usage
// rows that have aged out of every quota window and expiring pending
// call records nobody confirmed.
type Janitor struct {
	store      *Store
	cron       *cron.Cron
	pendingTTL time.Duration
	usageTTL   time.Duration
	metrics    PendingObserver
	logger     zerolog.Logger
}

// JanitorConfig holds janitor configuration
type JanitorConfig struct {
	Store      *Store
	Schedule   string          // cron expression, default hourly
	PendingTTL time.Duration   // how long a pending call may wait for confirmation
	UsageTTL   time.Duration   // how long usage rows are kept
	Metrics    PendingObserver // optional
	Logger     zerolog.Logger
}

// NewJanitor creates a janitor
func NewJanitor(cfg JanitorConfig) (*Janitor, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Schedule == "" {
		cfg.Schedule = "@hourly"
	}
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = 24 * time.Hour
	}
	if cfg.UsageTTL <= 0 {
		// Longest quota window is a month; keep a second month of history
		cfg.UsageTTL = 62 * 24 * time.Hour
	}

	j := &Janitor{
		store:      cfg.Store,
		cron:       cron.New(),
		pendingTTL: cfg.PendingTTL,
		usageTTL:   cfg.UsageTTL,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
	}

	if _, err := j.cron.AddFunc(cfg.Schedule, j.run); err != nil {
		return nil, fmt.Errorf("invalid janitor schedule: %w", err)
	}

	return j, nil
}

// Start begins scheduled maintenance
func (j *Janitor) Start() {
	j.cron.Start()
	j.logger.Info().Msg("Ledger janitor started")
}

// Stop stops the schedule and waits for a running pass to finish
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
	j.logger.Info().Msg("Ledger janitor stopped")
}

// run is one maintenance pass
func (j *Janitor) run() {
	ctx := context.Background()

	expired, err := j.ExpireStalePending(ctx)
	if err != nil {
		j.logger.Error().Err(err).Msg("Failed to expire stale pending calls")
	} else if expired > 0 {
		j.logger.Info().Int("count", expired).Msg("Expired stale pending calls")
	}

	pruned, err := j.PruneUsage(ctx)
	if err != nil {
		j.logger.Error().Err(err).Msg("Failed to prune usage rows")
	} else if pruned > 0 {
		j.logger.Info().Int("count", pruned).Msg("Pruned aged-out usage rows")
	}
}

// ExpireStalePending cancels pending call records older than the TTL.
// Each expiry goes through the same conditional transition the
// executor uses, so a confirmation racing with expiry cannot
// double-resolve a record.
func (j *Janitor) ExpireStalePending(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-j.pendingTTL)

	rows, err := j.store.db.QueryContext(ctx, `
		SELECT id FROM call_records
		WHERE status = ? AND created_at < ?`,
		string(executor.StatusPending), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale pending calls: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return 0, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	expired := 0
	for _, id := range ids {
		msg := "confirmation window expired"
		ok, err := j.store.TransitionCallRecord(ctx, id, executor.StatusPending, executor.StatusCancelled, executor.RecordPatch{
			ErrorMessage: &msg,
		})
		if err != nil {
			j.logger.Error().Str("call_id", id).Err(err).Msg("Failed to expire pending call")
			continue
		}
		if ok {
			expired++
		}
	}

	if expired > 0 && j.metrics != nil {
		j.metrics.ObservePending(-expired)
	}

	return expired, nil
}

// PruneUsage deletes usage rows outside every quota window
func (j *Janitor) PruneUsage(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-j.usageTTL)

	res, err := j.store.db.ExecContext(ctx,
		"DELETE FROM usage WHERE recorded_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune usage: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

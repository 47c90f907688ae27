package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// QuotaKind identifies a metered resource
type QuotaKind string

const (
	QuotaLLMTokens    QuotaKind = "llm_tokens"
	QuotaAudioMinutes QuotaKind = "audio_minutes"
	QuotaStorageGB    QuotaKind = "storage_gb"
)

// QuotaResult reports a quota decision. Remaining is computed before
// the requested amount is applied.
type QuotaResult struct {
	Allowed   bool    `json:"allowed"`
	Remaining float64 `json:"remaining"`
	Reason    string  `json:"reason,omitempty"`
}

// UsageReader reports aggregate usage for a workspace since the start
// of the current quota window
type UsageReader interface {
	QueryUsage(ctx context.Context, workspaceID string, kind QuotaKind, windowStart time.Time) (float64, error)
}

// UsageReserver atomically reserves usage against a limit. The
// increment and the limit check happen in one storage operation, so
// two concurrent reservations cannot jointly overshoot the quota.
type UsageReserver interface {
	ReserveUsage(ctx context.Context, workspaceID string, kind QuotaKind, amount, limit float64, windowStart time.Time) (bool, float64, error)
}

// WindowStart returns the start of the current quota window for a
// kind: the day for LLM tokens, the month for audio and storage.
// Windows are computed in UTC.
func WindowStart(kind QuotaKind, now time.Time) time.Time {
	now = now.UTC()
	switch kind {
	case QuotaLLMTokens:
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
}

// quotaLimit returns the configured limit for a kind
func quotaLimit(kind QuotaKind, cfg Config) (float64, error) {
	switch kind {
	case QuotaLLMTokens:
		return cfg.Quotas.LLMTokensPerDay, nil
	case QuotaAudioMinutes:
		return cfg.Quotas.AudioMinutesPerMonth, nil
	case QuotaStorageGB:
		return cfg.Quotas.StorageGB, nil
	default:
		return 0, fmt.Errorf("unknown quota kind: %s", kind)
	}
}

// CheckQuota compares current-window usage plus the requested amount
// against the configured limit. This is a read followed by a decision;
// use ReserveQuota when the caller will actually consume the amount.
func (e *Engine) CheckQuota(ctx context.Context, reader UsageReader, workspaceID string, kind QuotaKind, amount float64, cfg Config) (QuotaResult, error) {
	limit, err := quotaLimit(kind, cfg)
	if err != nil {
		return QuotaResult{}, err
	}
	if limit <= 0 {
		return QuotaResult{Allowed: true}, nil
	}

	used, err := reader.QueryUsage(ctx, workspaceID, kind, WindowStart(kind, time.Now()))
	if err != nil {
		return QuotaResult{}, fmt.Errorf("failed to query usage: %w", err)
	}

	remaining := limit - used
	if used+amount > limit {
		log.Warn().
			Str("workspace_id", workspaceID).
			Str("kind", string(kind)).
			Float64("used", used).
			Float64("amount", amount).
			Float64("limit", limit).
			Msg("Quota exceeded")
		return QuotaResult{
			Allowed:   false,
			Remaining: remaining,
			Reason:    fmt.Sprintf("quota exceeded for %s: %.0f of %.0f used", kind, used, limit),
		}, nil
	}

	return QuotaResult{Allowed: true, Remaining: remaining}, nil
}

// ReserveQuota atomically reserves the requested amount against the
// configured limit via the storage layer
func (e *Engine) ReserveQuota(ctx context.Context, reserver UsageReserver, workspaceID string, kind QuotaKind, amount float64, cfg Config) (QuotaResult, error) {
	limit, err := quotaLimit(kind, cfg)
	if err != nil {
		return QuotaResult{}, err
	}
	if limit <= 0 {
		return QuotaResult{Allowed: true}, nil
	}

	ok, remaining, err := reserver.ReserveUsage(ctx, workspaceID, kind, amount, limit, WindowStart(kind, time.Now()))
	if err != nil {
		return QuotaResult{}, fmt.Errorf("failed to reserve usage: %w", err)
	}

	result := QuotaResult{Allowed: ok, Remaining: remaining}
	if !ok {
		result.Reason = fmt.Sprintf("quota exceeded for %s", kind)
	}
	return result, nil
}

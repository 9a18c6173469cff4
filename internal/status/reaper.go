package status

import (
	"context"
	"time"

	"litigation-backend/internal/shared/metrics"
	"litigation-backend/internal/shared/telemetry"
)

// Reaper deletes status records past their retention. Records exist to
// be polled; after an hour nobody is listening.
type Reaper struct {
	Repo      Repo
	Interval  time.Duration
	Retention time.Duration
}

func NewReaper(repo Repo, interval, retention time.Duration) *Reaper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if retention <= 0 {
		retention = time.Hour
	}
	return &Reaper{Repo: repo, Interval: interval, Retention: retention}
}

// Run loops until the context is cancelled. One sweep runs immediately.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	r.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reaper) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-r.Retention)
	deleted, err := r.Repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		telemetry.Error("status reap failed", map[string]any{"error": err.Error()})
		return
	}
	if deleted > 0 {
		metrics.AddStatusRecordsReaped(uint64(deleted))
		telemetry.Info("status records reaped", map[string]any{
			"deleted": deleted,
			"cutoff":  cutoff.Format(time.RFC3339),
		})
	}
}

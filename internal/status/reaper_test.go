package status

import (
	"context"
	"testing"
	"time"
)

func TestReaperSweepDeletesStaleOnly(t *testing.T) {
	repo := NewMemoryRepo()
	stale := Record{
		ID:         "stale",
		Kind:       KindProcess,
		OwnerID:    "user-1",
		Status:     StatusCompleted,
		TotalSteps: DefaultTotalSteps,
		CreatedAt:  time.Now().UTC().Add(-2 * time.Hour),
		UpdatedAt:  time.Now().UTC().Add(-2 * time.Hour),
	}
	fresh := Record{
		ID:         "fresh",
		Kind:       KindProcess,
		OwnerID:    "user-1",
		Status:     StatusProcessing,
		TotalSteps: DefaultTotalSteps,
		CreatedAt:  time.Now().UTC(),
	}
	if err := repo.Create(context.Background(), stale); err != nil {
		t.Fatalf("create stale: %v", err)
	}
	if err := repo.Create(context.Background(), fresh); err != nil {
		t.Fatalf("create fresh: %v", err)
	}

	reaper := NewReaper(repo, 10*time.Minute, time.Hour)
	reaper.sweep(context.Background())

	if _, err := repo.GetByID(context.Background(), "stale"); err != ErrNotFound {
		t.Fatalf("expected stale record reaped, got %v", err)
	}
	if _, err := repo.GetByID(context.Background(), "fresh"); err != nil {
		t.Fatalf("expected fresh record kept, got %v", err)
	}
}

func TestReaperKeepsRecordWithRecentProgress(t *testing.T) {
	repo := NewMemoryRepo()
	rec := Record{
		ID:         "long-run",
		Kind:       KindProcess,
		OwnerID:    "user-1",
		Status:     StatusProcessing,
		TotalSteps: DefaultTotalSteps,
		CreatedAt:  time.Now().UTC().Add(-2 * time.Hour),
		UpdatedAt:  time.Now().UTC().Add(-2 * time.Hour),
	}
	if err := repo.Create(context.Background(), rec); err != nil {
		t.Fatalf("create: %v", err)
	}

	// A progress update stamps updated_at; retention counts from there,
	// so a run still reporting progress is never swept mid-flight.
	step := 3
	desc := DescAnalyzing
	if err := repo.Update(context.Background(), "long-run", Update{CurrentStep: &step, StepDescription: &desc}); err != nil {
		t.Fatalf("update: %v", err)
	}

	reaper := NewReaper(repo, 10*time.Minute, time.Hour)
	reaper.sweep(context.Background())

	if _, err := repo.GetByID(context.Background(), "long-run"); err != nil {
		t.Fatalf("expected active record kept, got %v", err)
	}
}

func TestReaperRunStopsOnCancel(t *testing.T) {
	reaper := NewReaper(NewMemoryRepo(), time.Millisecond, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reaper.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("reaper did not stop after cancel")
	}
}

func TestNewReaperAppliesDefaults(t *testing.T) {
	reaper := NewReaper(NewMemoryRepo(), 0, 0)
	if reaper.Interval != 10*time.Minute {
		t.Fatalf("expected default interval, got %v", reaper.Interval)
	}
	if reaper.Retention != time.Hour {
		t.Fatalf("expected default retention, got %v", reaper.Retention)
	}
}

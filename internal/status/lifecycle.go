package status

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"litigation-backend/internal/shared/telemetry"
)

// StartOptions carries optional fields for a new record.
type StartOptions struct {
	ExternalID  string
	ProjectName string
	TotalSteps  int
}

// Progress carries optional identifiers attached while advancing.
type Progress struct {
	DocumentID string
	RagID      string
}

// Lifecycle owns every status transition. Monotonicity (no terminal
// moves, no step regression) is enforced here, not by callers.
type Lifecycle struct {
	Repo Repo
}

func NewLifecycle(repo Repo) *Lifecycle {
	return &Lifecycle{Repo: repo}
}

// Start creates a record in processing at step 0.
func (l *Lifecycle) Start(ctx context.Context, kind, ownerID string, opts StartOptions) (Record, error) {
	if l == nil || l.Repo == nil {
		return Record{}, errors.New("lifecycle not configured")
	}
	if strings.TrimSpace(ownerID) == "" {
		return Record{}, errors.New("owner id is required")
	}
	if kind != KindProcess && kind != KindJob {
		return Record{}, errors.New("unknown record kind")
	}
	total := opts.TotalSteps
	if total <= 0 {
		total = DefaultTotalSteps
	}
	rec := Record{
		ID:              uuid.NewString(),
		Kind:            kind,
		OwnerID:         ownerID,
		ExternalID:      opts.ExternalID,
		ProjectName:     opts.ProjectName,
		Status:          StatusProcessing,
		CurrentStep:     0,
		TotalSteps:      total,
		StepDescription: DescStarting,
		Results:         []map[string]any{},
		CreatedAt:       time.Now().UTC(),
	}
	if err := l.Repo.Create(ctx, rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Advance moves a record to the given step. It never fails the caller:
// missing records, terminal records, and step regressions are logged
// and reported as false.
func (l *Lifecycle) Advance(ctx context.Context, id string, step int, description string, progress *Progress) bool {
	rec, err := l.Repo.GetByID(ctx, id)
	if err != nil {
		telemetry.Warn("status advance skipped", map[string]any{
			"status_id": id,
			"step":      step,
			"error":     err.Error(),
		})
		return false
	}
	if rec.Terminal() {
		telemetry.Warn("status advance refused on terminal record", map[string]any{
			"status_id": id,
			"status":    rec.Status,
			"step":      step,
		})
		return false
	}
	if step < rec.CurrentStep {
		telemetry.Warn("status advance refused step regression", map[string]any{
			"status_id":    id,
			"current_step": rec.CurrentStep,
			"step":         step,
		})
		return false
	}

	processing := StatusProcessing
	upd := Update{
		Status:          &processing,
		CurrentStep:     &step,
		StepDescription: &description,
	}
	if progress != nil {
		if progress.DocumentID != "" {
			upd.DocumentID = &progress.DocumentID
		}
		if progress.RagID != "" {
			upd.RagID = &progress.RagID
		}
	}
	if err := l.Repo.Update(ctx, rec.ID, upd); err != nil {
		telemetry.Warn("status advance write failed", map[string]any{
			"status_id": id,
			"step":      step,
			"error":     err.Error(),
		})
		return false
	}
	return true
}

// Complete marks a record completed at the final step. Idempotent.
func (l *Lifecycle) Complete(ctx context.Context, id, documentID, ragID string) error {
	rec, err := l.Repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if rec.Terminal() {
		return nil
	}
	completed := StatusCompleted
	desc := DescCompleted
	upd := Update{
		Status:          &completed,
		CurrentStep:     &rec.TotalSteps,
		StepDescription: &desc,
	}
	if documentID != "" {
		upd.DocumentID = &documentID
	}
	if ragID != "" {
		upd.RagID = &ragID
	}
	return l.Repo.Update(ctx, rec.ID, upd)
}

// Fail marks a record failed. Idempotent: a second call leaves an
// already-terminal record untouched.
func (l *Lifecycle) Fail(ctx context.Context, id, message string, code int) error {
	rec, err := l.Repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if rec.Terminal() {
		return nil
	}
	failed := StatusFailed
	desc := DescFailed
	upd := Update{
		Status:          &failed,
		CurrentStep:     &rec.TotalSteps,
		StepDescription: &desc,
		Error:           &message,
		ErrorCode:       &code,
	}
	return l.Repo.Update(ctx, rec.ID, upd)
}

// CompleteWithResults appends the final payload and completes the record
// in one write.
func (l *Lifecycle) CompleteWithResults(ctx context.Context, id, documentID, ragID string, results []map[string]any) error {
	rec, err := l.Repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if rec.Terminal() {
		return nil
	}
	if documentID != "" || ragID != "" {
		upd := Update{}
		if documentID != "" {
			upd.DocumentID = &documentID
		}
		if ragID != "" {
			upd.RagID = &ragID
		}
		if err := l.Repo.Update(ctx, rec.ID, upd); err != nil {
			telemetry.Warn("status identifiers write failed", map[string]any{
				"status_id": id,
				"error":     err.Error(),
			})
		}
	}
	err = l.Repo.AppendResults(ctx, rec.ID, results, StatusCompleted)
	if errors.Is(err, ErrTerminal) {
		return nil
	}
	return err
}

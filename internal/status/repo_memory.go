package status

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]Record
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[string]Record)}
}

func (r *MemoryRepo) Create(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}
	if rec.Results == nil {
		rec.Results = []map[string]any{}
	}
	r.data[rec.ID] = rec
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if rec, ok := r.data[id]; ok {
		return rec, nil
	}
	var found Record
	var ok bool
	for _, rec := range r.data {
		if rec.ExternalID != "" && rec.ExternalID == id {
			if !ok || rec.CreatedAt.After(found.CreatedAt) {
				found = rec
				ok = true
			}
		}
	}
	if !ok {
		return Record{}, ErrNotFound
	}
	return found, nil
}

func (r *MemoryRepo) GetLatestByOwner(ctx context.Context, ownerID string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var found Record
	var ok bool
	for _, rec := range r.data {
		if rec.OwnerID != ownerID {
			continue
		}
		if !ok || rec.CreatedAt.After(found.CreatedAt) {
			found = rec
			ok = true
		}
	}
	if !ok {
		return Record{}, ErrNotFound
	}
	return found, nil
}

func (r *MemoryRepo) Update(ctx context.Context, id string, upd Update) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.data[id]
	if !ok {
		return ErrNotFound
	}
	if upd.Status != nil {
		rec.Status = *upd.Status
	}
	if upd.CurrentStep != nil {
		rec.CurrentStep = *upd.CurrentStep
	}
	if upd.StepDescription != nil {
		rec.StepDescription = *upd.StepDescription
	}
	if upd.Error != nil {
		rec.Error = upd.Error
	}
	if upd.ErrorCode != nil {
		rec.ErrorCode = upd.ErrorCode
	}
	if upd.DocumentID != nil {
		rec.DocumentID = *upd.DocumentID
	}
	if upd.RagID != nil {
		rec.RagID = *upd.RagID
	}
	rec.UpdatedAt = time.Now().UTC()
	r.data[id] = rec
	return nil
}

func (r *MemoryRepo) AppendResults(ctx context.Context, id string, results []map[string]any, newStatus string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.data[id]
	if !ok {
		return ErrNotFound
	}
	if rec.Terminal() {
		return ErrTerminal
	}
	rec.Results = append(rec.Results, results...)
	rec.Status = newStatus
	switch newStatus {
	case StatusCompleted:
		rec.CurrentStep = rec.TotalSteps
		rec.StepDescription = DescCompleted
	case StatusFailed:
		rec.CurrentStep = rec.TotalSteps
		rec.StepDescription = DescFailed
	}
	rec.UpdatedAt = time.Now().UTC()
	r.data[id] = rec
	return nil
}

func (r *MemoryRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for id, rec := range r.data {
		if rec.UpdatedAt.Before(cutoff) {
			delete(r.data, id)
			deleted++
		}
	}
	return deleted, nil
}

var _ Repo = (*MemoryRepo)(nil)

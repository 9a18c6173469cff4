package status

import (
	"context"
	"time"
)

// Update is a partial update applied to a status record. Nil fields are
// left untouched. updated_at is always stamped.
type Update struct {
	Status          *string
	CurrentStep     *int
	StepDescription *string
	Error           *string
	ErrorCode       *int
	DocumentID      *string
	RagID           *string
}

// Repo defines persistence operations for status records.
type Repo interface {
	Create(ctx context.Context, rec Record) error
	// GetByID looks up by primary id, falling back to the external id
	// when the value is not a uuid.
	GetByID(ctx context.Context, id string) (Record, error)
	GetLatestByOwner(ctx context.Context, ownerID string) (Record, error)
	Update(ctx context.Context, id string, upd Update) error
	// AppendResults appends to the results array and flips the status in
	// a single write. Returns ErrTerminal when the record already
	// reached a final status.
	AppendResults(ctx context.Context, id string, results []map[string]any, newStatus string) error
	// DeleteOlderThan removes records whose updated_at is before the
	// cutoff and reports how many were deleted.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

package documents

import (
	"context"
	"encoding/json"
)

// DocumentsRepo defines persistence operations for litigation documents.
type DocumentsRepo interface {
	Create(ctx context.Context, doc Document) error
	GetByID(ctx context.Context, userId, documentID string) (Document, error)
	GetByRagID(ctx context.Context, ragID string) (Document, error)
	FindByFileName(ctx context.Context, userId, fileName string) (Document, error)
	ListByUser(ctx context.Context, userId string, limit, offset int) ([]Document, error)
	SaveSummaries(ctx context.Context, documentID string, short, long json.RawMessage, processed []FileInfo) error
	DeleteByRagID(ctx context.Context, userId, ragID string) (Document, error)
}

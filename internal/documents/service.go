package documents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"litigation-backend/internal/shared/storage/object"
	"litigation-backend/internal/shared/telemetry"
)

// Indexer is the knowledge-base surface the documents service needs.
// Implemented by rag.Client.
type Indexer interface {
	CreateIndex(ctx context.Context, apiKey, collectionName string) (string, error)
	TrainPDF(ctx context.Context, apiKey, ragID, fileName string, r io.Reader) error
	DeleteIndex(ctx context.Context, apiKey, ragID string) error
}

// UploadFile is one incoming file in the synchronous ingest flow.
type UploadFile struct {
	FileName string
	Reader   io.Reader
}

// Service contains business logic for litigation documents.
type Service struct {
	Store   object.ObjectStore
	Repo    DocumentsRepo
	Indexer Indexer
}

// Ingest stores the raw PDFs, creates a knowledge-base index, trains it
// on each file, and persists the document record. This is the
// synchronous counterpart of the pipeline flow.
func (s *Service) Ingest(ctx context.Context, userId, apiKey string, files []UploadFile) (Document, error) {
	if strings.TrimSpace(userId) == "" {
		return Document{}, ErrInvalidInput
	}
	if len(files) == 0 {
		return Document{}, fmt.Errorf("%w: at least one file is required", ErrInvalidInput)
	}
	for _, f := range files {
		if strings.TrimSpace(f.FileName) == "" {
			return Document{}, fmt.Errorf("%w: file name is required", ErrInvalidInput)
		}
	}

	storageKeys := make([]string, 0, len(files))
	for _, f := range files {
		key, _, _, err := s.Store.Save(ctx, userId, f.FileName, f.Reader)
		if err != nil {
			return Document{}, fmt.Errorf("store %s: %w", f.FileName, err)
		}
		storageKeys = append(storageKeys, key)
	}

	collection := NewCollectionName()
	ragID, err := s.Indexer.CreateIndex(ctx, apiKey, collection)
	if err != nil {
		return Document{}, fmt.Errorf("create index: %w", err)
	}

	for i, f := range files {
		rc, err := s.Store.Open(ctx, storageKeys[i])
		if err != nil {
			return Document{}, fmt.Errorf("open %s: %w", f.FileName, err)
		}
		trainErr := s.Indexer.TrainPDF(ctx, apiKey, ragID, f.FileName, rc)
		rc.Close()
		if trainErr != nil {
			return Document{}, fmt.Errorf("train %s: %w", f.FileName, trainErr)
		}
	}

	doc := Document{
		ID:               uuid.NewString(),
		UserID:           userId,
		RagID:            ragID,
		CollectionName:   collection,
		OriginalFileName: files[0].FileName,
		Trained:          true,
		StorageKeys:      storageKeys,
	}
	if err := s.Repo.Create(ctx, doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// CreateRecord persists a document created by the pipeline.
func (s *Service) CreateRecord(ctx context.Context, doc Document) (Document, error) {
	if strings.TrimSpace(doc.UserID) == "" || strings.TrimSpace(doc.OriginalFileName) == "" {
		return Document{}, ErrInvalidInput
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CollectionName == "" {
		doc.CollectionName = NewCollectionName()
	}
	if err := s.Repo.Create(ctx, doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// FindByFileName returns the newest document matching an original file name.
func (s *Service) FindByFileName(ctx context.Context, userId, fileName string) (Document, error) {
	if userId == "" || fileName == "" {
		return Document{}, ErrInvalidInput
	}
	return s.Repo.FindByFileName(ctx, userId, fileName)
}

// SaveSummaries stores both agent summaries and marks the document trained.
func (s *Service) SaveSummaries(ctx context.Context, documentID string, short, long json.RawMessage, processed []FileInfo) error {
	if documentID == "" {
		return ErrInvalidInput
	}
	return s.Repo.SaveSummaries(ctx, documentID, short, long, processed)
}

// Get fetches one document for a user.
func (s *Service) Get(ctx context.Context, userId, documentID string) (Document, error) {
	if userId == "" || documentID == "" {
		return Document{}, ErrInvalidInput
	}
	return s.Repo.GetByID(ctx, userId, documentID)
}

// List returns a user's documents, newest first.
func (s *Service) List(ctx context.Context, userId string, limit, offset int) ([]Document, error) {
	if userId == "" {
		return nil, errors.New("user id required")
	}
	return s.Repo.ListByUser(ctx, userId, limit, offset)
}

// DeleteByRag removes the document record and releases its stored
// objects and index. Storage and index cleanup are best-effort.
func (s *Service) DeleteByRag(ctx context.Context, userId, apiKey, ragID string) error {
	if userId == "" || ragID == "" {
		return ErrInvalidInput
	}
	doc, err := s.Repo.DeleteByRagID(ctx, userId, ragID)
	if err != nil {
		return err
	}
	for _, key := range doc.StorageKeys {
		if err := s.Store.Delete(ctx, key); err != nil {
			telemetry.Warn("delete stored object failed", map[string]any{
				"storage_key": key,
				"error":       err.Error(),
			})
		}
	}
	if s.Indexer != nil && apiKey != "" {
		if err := s.Indexer.DeleteIndex(ctx, apiKey, ragID); err != nil {
			telemetry.Warn("delete index failed", map[string]any{
				"rag_id": ragID,
				"error":  err.Error(),
			})
		}
	}
	return nil
}

// NewCollectionName returns a fresh vector-collection name.
func NewCollectionName() string {
	return "litigation-" + strings.Split(uuid.NewString(), "-")[0]
}

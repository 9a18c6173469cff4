package documents

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// PGRepo implements DocumentsRepo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const documentColumns = `id, user_id, rag_id, collection_name, original_file_name, short_summary, long_summary, trained, processed_files, storage_keys, created_at, updated_at`

// Create inserts a new litigation document.
func (r *PGRepo) Create(ctx context.Context, doc Document) error {
	const query = `
INSERT INTO litigation_documents (
    id,
    user_id,
    rag_id,
    collection_name,
    original_file_name,
    short_summary,
    long_summary,
    trained,
    processed_files,
    storage_keys,
    created_at,
    updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())`

	processed, err := marshalFiles(doc.ProcessedFiles)
	if err != nil {
		return err
	}
	keys, err := marshalKeys(doc.StorageKeys)
	if err != nil {
		return err
	}

	_, err = r.DB.ExecContext(
		ctx,
		query,
		doc.ID,
		doc.UserID,
		doc.RagID,
		doc.CollectionName,
		doc.OriginalFileName,
		nullableJSON(doc.ShortSummary),
		nullableJSON(doc.LongSummary),
		doc.Trained,
		processed,
		keys,
	)
	return err
}

// GetByID fetches a document by ID for a user.
func (r *PGRepo) GetByID(ctx context.Context, userId, documentID string) (Document, error) {
	query := fmt.Sprintf(`
SELECT %s
FROM litigation_documents
WHERE user_id = $1 AND id = $2
LIMIT 1`, documentColumns)
	return r.scanOne(r.DB.QueryRowContext(ctx, query, userId, documentID))
}

// GetByRagID fetches a document by its knowledge-base id.
func (r *PGRepo) GetByRagID(ctx context.Context, ragID string) (Document, error) {
	query := fmt.Sprintf(`
SELECT %s
FROM litigation_documents
WHERE rag_id = $1
LIMIT 1`, documentColumns)
	return r.scanOne(r.DB.QueryRowContext(ctx, query, ragID))
}

// FindByFileName returns the newest document for a user whose original
// file name matches.
func (r *PGRepo) FindByFileName(ctx context.Context, userId, fileName string) (Document, error) {
	query := fmt.Sprintf(`
SELECT %s
FROM litigation_documents
WHERE user_id = $1 AND original_file_name = $2
ORDER BY created_at DESC
LIMIT 1`, documentColumns)
	return r.scanOne(r.DB.QueryRowContext(ctx, query, userId, fileName))
}

// ListByUser lists documents ordered newest-first.
func (r *PGRepo) ListByUser(ctx context.Context, userId string, limit, offset int) ([]Document, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf(`
SELECT %s
FROM litigation_documents
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`, documentColumns)

	rows, err := r.DB.QueryContext(ctx, query, userId, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		doc, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// SaveSummaries persists both agent summaries and the processed-file
// list, and marks the document trained.
func (r *PGRepo) SaveSummaries(ctx context.Context, documentID string, short, long json.RawMessage, processed []FileInfo) error {
	const query = `
UPDATE litigation_documents
SET short_summary = $2, long_summary = $3, processed_files = $4, trained = TRUE, updated_at = now()
WHERE id = $1`

	files, err := marshalFiles(processed)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, query, documentID, nullableJSON(short), nullableJSON(long), files)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByRagID removes the document row and returns it so callers can
// release the stored objects.
func (r *PGRepo) DeleteByRagID(ctx context.Context, userId, ragID string) (Document, error) {
	query := fmt.Sprintf(`
DELETE FROM litigation_documents
WHERE user_id = $1 AND rag_id = $2
RETURNING %s`, documentColumns)
	return r.scanOne(r.DB.QueryRowContext(ctx, query, userId, ragID))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PGRepo) scanOne(row *sql.Row) (Document, error) {
	doc, err := r.scanRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return doc, nil
}

func (r *PGRepo) scanRow(row rowScanner) (Document, error) {
	var doc Document
	var ragID sql.NullString
	var collection sql.NullString
	var short []byte
	var long []byte
	var processed []byte
	var keys []byte
	var updatedAt sql.NullTime
	err := row.Scan(
		&doc.ID,
		&doc.UserID,
		&ragID,
		&collection,
		&doc.OriginalFileName,
		&short,
		&long,
		&doc.Trained,
		&processed,
		&keys,
		&doc.CreatedAt,
		&updatedAt,
	)
	if err != nil {
		return Document{}, err
	}
	if ragID.Valid {
		doc.RagID = ragID.String
	}
	if collection.Valid {
		doc.CollectionName = collection.String
	}
	if len(short) > 0 {
		doc.ShortSummary = json.RawMessage(short)
	}
	if len(long) > 0 {
		doc.LongSummary = json.RawMessage(long)
	}
	if len(processed) > 0 {
		if err := json.Unmarshal(processed, &doc.ProcessedFiles); err != nil {
			return Document{}, fmt.Errorf("decode processed_files: %w", err)
		}
	}
	if len(keys) > 0 {
		if err := json.Unmarshal(keys, &doc.StorageKeys); err != nil {
			return Document{}, fmt.Errorf("decode storage_keys: %w", err)
		}
	}
	if updatedAt.Valid {
		doc.UpdatedAt = updatedAt.Time
	}
	return doc, nil
}

func marshalFiles(files []FileInfo) ([]byte, error) {
	if files == nil {
		files = []FileInfo{}
	}
	return json.Marshal(files)
}

func marshalKeys(keys []string) ([]byte, error) {
	if keys == nil {
		keys = []string{}
	}
	return json.Marshal(keys)
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

var _ DocumentsRepo = (*PGRepo)(nil)

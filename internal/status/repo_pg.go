package status

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const recordColumns = `id, kind, owner_id, external_id, project_name, status, current_step, total_steps, step_description, results, error, error_code, document_id, rag_id, created_at, updated_at`

// Create inserts a new status record.
func (r *PGRepo) Create(ctx context.Context, rec Record) error {
	const query = `
INSERT INTO status_records (
	id, kind, owner_id, external_id, project_name, status,
	current_step, total_steps, step_description, results,
	error, error_code, document_id, rag_id, created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, now(), now())`

	results, err := marshalResults(rec.Results)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query,
		rec.ID,
		rec.Kind,
		rec.OwnerID,
		nullableString(rec.ExternalID),
		nullableString(rec.ProjectName),
		rec.Status,
		rec.CurrentStep,
		rec.TotalSteps,
		rec.StepDescription,
		results,
		rec.Error,
		rec.ErrorCode,
		nullableString(rec.DocumentID),
		nullableString(rec.RagID),
	)
	return err
}

// GetByID returns a record by primary id; values that are not uuids are
// looked up as external ids instead.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Record, error) {
	var query string
	if uuid.Validate(id) == nil {
		query = fmt.Sprintf(`SELECT %s FROM status_records WHERE id = $1 LIMIT 1`, recordColumns)
	} else {
		query = fmt.Sprintf(`SELECT %s FROM status_records WHERE external_id = $1 ORDER BY created_at DESC LIMIT 1`, recordColumns)
	}
	return r.scanOne(r.DB.QueryRowContext(ctx, query, id))
}

// GetLatestByOwner returns the newest record for an owner.
func (r *PGRepo) GetLatestByOwner(ctx context.Context, ownerID string) (Record, error) {
	query := fmt.Sprintf(`
SELECT %s
FROM status_records
WHERE owner_id = $1
ORDER BY created_at DESC
LIMIT 1`, recordColumns)
	return r.scanOne(r.DB.QueryRowContext(ctx, query, ownerID))
}

// Update applies a partial update; updated_at is always stamped.
func (r *PGRepo) Update(ctx context.Context, id string, upd Update) error {
	sets := []string{"updated_at = now()"}
	args := []any{id}
	n := 1

	add := func(column string, value any) {
		n++
		sets = append(sets, column+" = $"+strconv.Itoa(n))
		args = append(args, value)
	}

	if upd.Status != nil {
		add("status", *upd.Status)
	}
	if upd.CurrentStep != nil {
		add("current_step", *upd.CurrentStep)
	}
	if upd.StepDescription != nil {
		add("step_description", *upd.StepDescription)
	}
	if upd.Error != nil {
		add("error", *upd.Error)
	}
	if upd.ErrorCode != nil {
		add("error_code", *upd.ErrorCode)
	}
	if upd.DocumentID != nil {
		add("document_id", *upd.DocumentID)
	}
	if upd.RagID != nil {
		add("rag_id", *upd.RagID)
	}

	query := "UPDATE status_records SET " + strings.Join(sets, ", ") + " WHERE id = $1"
	res, err := r.DB.ExecContext(ctx, query, args...)
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

// AppendResults appends to the jsonb results array and flips the status
// in one statement. Records already terminal are left untouched. Step
// and description move only on a terminal status; mid-flight appends
// leave the current stage in place.
func (r *PGRepo) AppendResults(ctx context.Context, id string, results []map[string]any, newStatus string) error {
	const terminalQuery = `
UPDATE status_records
SET results = results || $2::jsonb,
    status = $3,
    current_step = total_steps,
    step_description = $4,
    updated_at = now()
WHERE id = $1 AND status = 'processing'`
	const progressQuery = `
UPDATE status_records
SET results = results || $2::jsonb,
    status = $3,
    updated_at = now()
WHERE id = $1 AND status = 'processing'`

	payload, err := marshalResults(results)
	if err != nil {
		return err
	}
	var res sql.Result
	switch newStatus {
	case StatusCompleted:
		res, err = r.DB.ExecContext(ctx, terminalQuery, id, payload, newStatus, DescCompleted)
	case StatusFailed:
		res, err = r.DB.ExecContext(ctx, terminalQuery, id, payload, newStatus, DescFailed)
	default:
		res, err = r.DB.ExecContext(ctx, progressQuery, id, payload, newStatus)
	}
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return ErrTerminal
	}
	return nil
}

// DeleteOlderThan removes records not touched since the cutoff. A record
// still receiving progress updates keeps a fresh updated_at and survives.
func (r *PGRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM status_records WHERE updated_at < $1`
	res, err := r.DB.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *PGRepo) scanOne(row *sql.Row) (Record, error) {
	var rec Record
	var externalID sql.NullString
	var projectName sql.NullString
	var results []byte
	var recErr sql.NullString
	var errCode sql.NullInt64
	var documentID sql.NullString
	var ragID sql.NullString
	var updatedAt sql.NullTime

	err := row.Scan(
		&rec.ID,
		&rec.Kind,
		&rec.OwnerID,
		&externalID,
		&projectName,
		&rec.Status,
		&rec.CurrentStep,
		&rec.TotalSteps,
		&rec.StepDescription,
		&results,
		&recErr,
		&errCode,
		&documentID,
		&ragID,
		&rec.CreatedAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	if externalID.Valid {
		rec.ExternalID = externalID.String
	}
	if projectName.Valid {
		rec.ProjectName = projectName.String
	}
	if len(results) > 0 {
		if err := json.Unmarshal(results, &rec.Results); err != nil {
			return Record{}, fmt.Errorf("decode results: %w", err)
		}
	}
	if recErr.Valid {
		rec.Error = &recErr.String
	}
	if errCode.Valid {
		code := int(errCode.Int64)
		rec.ErrorCode = &code
	}
	if documentID.Valid {
		rec.DocumentID = documentID.String
	}
	if ragID.Valid {
		rec.RagID = ragID.String
	}
	if updatedAt.Valid {
		rec.UpdatedAt = updatedAt.Time
	}
	return rec, nil
}

func marshalResults(results []map[string]any) ([]byte, error) {
	if results == nil {
		results = []map[string]any{}
	}
	return json.Marshal(results)
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

var _ Repo = (*PGRepo)(nil)

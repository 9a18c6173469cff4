package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"litigation-backend/internal/shared/storage/object"
	"litigation-backend/internal/shared/telemetry"
)

// Stager parks submission payloads in the object store so the queue
// worker can pick them up by status id.
type Stager struct {
	Store object.ObjectStore
}

type stagedManifest struct {
	StatusID  string       `json:"statusId"`
	JobID     string       `json:"jobId"`
	UserID    string       `json:"userId"`
	SessionID string       `json:"sessionId"`
	Files     []stagedFile `json:"files"`
}

type stagedFile struct {
	Name       string `json:"name"`
	StorageKey string `json:"storageKey"`
}

func manifestKey(statusID string) string {
	return "pipeline/jobs/" + statusID + "/manifest.json"
}

func stagedFileKey(statusID string, index int) string {
	return fmt.Sprintf("pipeline/jobs/%s/%03d.pdf", statusID, index)
}

// Stage writes the files and a manifest keyed by status id.
func (st *Stager) Stage(ctx context.Context, in SubmitInput, statusID, jobID string) error {
	manifest := stagedManifest{
		StatusID:  statusID,
		JobID:     jobID,
		UserID:    in.UserID,
		SessionID: in.SessionID,
	}
	for i, f := range in.Files {
		key := stagedFileKey(statusID, i)
		if _, err := st.Store.SaveWithKey(ctx, key, "application/pdf", bytes.NewReader(f.Data)); err != nil {
			return fmt.Errorf("stage file %s: %w", f.Name, err)
		}
		manifest.Files = append(manifest.Files, stagedFile{Name: f.Name, StorageKey: key})
	}

	payload, err := json.Marshal(manifest)
	if err != nil {
		return err
	}
	if _, err := st.Store.SaveWithKey(ctx, manifestKey(statusID), "application/json", bytes.NewReader(payload)); err != nil {
		return fmt.Errorf("stage manifest: %w", err)
	}
	return nil
}

// Load reads a staged submission back. Returns the input and the job id
// recorded at staging time.
func (st *Stager) Load(ctx context.Context, statusID string) (SubmitInput, string, error) {
	rc, err := st.Store.Open(ctx, manifestKey(statusID))
	if err != nil {
		return SubmitInput{}, "", fmt.Errorf("load manifest %s: %w", statusID, err)
	}
	defer rc.Close()

	var manifest stagedManifest
	if err := json.NewDecoder(rc).Decode(&manifest); err != nil {
		return SubmitInput{}, "", fmt.Errorf("decode manifest %s: %w", statusID, err)
	}

	in := SubmitInput{
		UserID:    manifest.UserID,
		SessionID: manifest.SessionID,
	}
	for _, f := range manifest.Files {
		body, err := st.Store.Open(ctx, f.StorageKey)
		if err != nil {
			return SubmitInput{}, "", fmt.Errorf("load staged file %s: %w", f.Name, err)
		}
		data, readErr := io.ReadAll(body)
		body.Close()
		if readErr != nil {
			return SubmitInput{}, "", fmt.Errorf("read staged file %s: %w", f.Name, readErr)
		}
		in.Files = append(in.Files, File{Name: f.Name, Data: data})
	}
	return in, manifest.JobID, nil
}

// Discard removes staged payloads after a run. Best-effort.
func (st *Stager) Discard(ctx context.Context, statusID string, fileCount int) {
	for i := 0; i < fileCount; i++ {
		if err := st.Store.Delete(ctx, stagedFileKey(statusID, i)); err != nil {
			telemetry.Warn("discard staged file failed", map[string]any{
				"status_id": statusID,
				"error":     err.Error(),
			})
		}
	}
	if err := st.Store.Delete(ctx, manifestKey(statusID)); err != nil {
		telemetry.Warn("discard manifest failed", map[string]any{
			"status_id": statusID,
			"error":     err.Error(),
		})
	}
}

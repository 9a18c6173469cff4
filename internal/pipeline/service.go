package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"litigation-backend/internal/agent"
	"litigation-backend/internal/documents"
	"litigation-backend/internal/extract"
	"litigation-backend/internal/rag"
	"litigation-backend/internal/shared/metrics"
	"litigation-backend/internal/shared/telemetry"
	"litigation-backend/internal/status"
	"litigation-backend/internal/users"
)

// File is one uploaded source document.
type File struct {
	Name string
	Data []byte
}

// SubmitInput is one pipeline submission.
type SubmitInput struct {
	Files     []File
	UserID    string
	SessionID string
}

// SubmitResult carries the two tracking ids handed back to the client.
type SubmitResult struct {
	StatusID string
	JobID    string
}

// Indexer is the knowledge-base surface the pipeline needs.
// Implemented by rag.Client.
type Indexer interface {
	CreateIndex(ctx context.Context, apiKey, collectionName string) (string, error)
	TrainText(ctx context.Context, apiKey, ragID string, entries []rag.TextEntry) error
	ParseText(ctx context.Context, apiKey, text string) string
}

// Summarizer is the inference surface. Implemented by agent.Client.
type Summarizer interface {
	Ask(ctx context.Context, apiKey string, input agent.AskInput) (agent.Response, error)
}

// Enqueuer hands a submission to the out-of-process worker path.
type Enqueuer interface {
	Enqueue(ctx context.Context, statusID, jobID string) error
}

// Extractor pulls text from a PDF payload. Defaults to extract.FromBytes.
type Extractor func(ctx context.Context, data []byte) (extract.Result, error)

// Service orchestrates the litigation pipeline: extract, index, dual
// agent analysis, summary training, persistence. All progress flows
// through the status lifecycle; the single error boundary in run turns
// any stage failure into exactly one fail per record.
type Service struct {
	Status     *status.Lifecycle
	Docs       *documents.Service
	Users      *users.Service
	Indexer    Indexer
	Summarizer Summarizer
	Runner     *Runner
	Extract    Extractor

	// Queue and Stager, when both set, route runs through the worker
	// instead of the in-process runner.
	Queue  Enqueuer
	Stager *Stager

	ShortAgent string
	LongAgent  string
	Timeout    time.Duration
}

// Submit validates the input, creates the two tracking records, and
// schedules the run. It returns as soon as the run is accepted.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (SubmitResult, error) {
	if len(in.Files) == 0 {
		return SubmitResult{}, fmt.Errorf("%w: at least one PDF file is required", ErrInvalidInput)
	}
	for _, f := range in.Files {
		if strings.TrimSpace(f.Name) == "" {
			return SubmitResult{}, fmt.Errorf("%w: file name is required", ErrInvalidInput)
		}
	}
	if strings.TrimSpace(in.UserID) == "" {
		return SubmitResult{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}

	if s.Users != nil {
		if _, err := s.Users.EnsureExists(ctx, in.UserID); err != nil {
			telemetry.Warn("user ensure failed", map[string]any{
				"user_id": in.UserID,
				"error":   err.Error(),
			})
		}
	}

	proc, err := s.Status.Start(ctx, status.KindProcess, in.UserID, status.StartOptions{
		ExternalID: in.SessionID,
	})
	if err != nil {
		return SubmitResult{}, fmt.Errorf("create process record: %w", err)
	}
	projectName := fmt.Sprintf("litigation_doc_%s_%d", in.UserID, time.Now().UnixMilli())
	job, err := s.Status.Start(ctx, status.KindJob, in.UserID, status.StartOptions{
		ProjectName: projectName,
	})
	if err != nil {
		return SubmitResult{}, fmt.Errorf("create job record: %w", err)
	}

	metrics.IncPipelineStarted()

	if s.Queue != nil && s.Stager != nil {
		if err := s.Stager.Stage(ctx, in, proc.ID, job.ID); err != nil {
			s.failBoth(proc.ID, job.ID, fmt.Errorf("stage payload: %w", err))
			return SubmitResult{}, err
		}
		if err := s.Queue.Enqueue(ctx, proc.ID, job.ID); err != nil {
			s.failBoth(proc.ID, job.ID, fmt.Errorf("enqueue: %w", err))
			return SubmitResult{}, err
		}
		return SubmitResult{StatusID: proc.ID, JobID: job.ID}, nil
	}

	runCtx := context.WithoutCancel(ctx)
	if err := s.Runner.Submit(func() { s.run(runCtx, in, proc.ID, job.ID) }); err != nil {
		s.failBoth(proc.ID, job.ID, err)
		return SubmitResult{}, err
	}
	return SubmitResult{StatusID: proc.ID, JobID: job.ID}, nil
}

// Run executes the pipeline synchronously for an already-created pair
// of records. Used by the queue worker.
func (s *Service) Run(ctx context.Context, in SubmitInput, statusID, jobID string) {
	s.run(ctx, in, statusID, jobID)
}

func (s *Service) run(parent context.Context, in SubmitInput, statusID, jobID string) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	startedAt := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.failBoth(statusID, jobID, fmt.Errorf("panic: %v", r))
		}
	}()

	if err := s.execute(ctx, in, statusID, jobID); err != nil {
		s.failBoth(statusID, jobID, err)
		metrics.ObservePipelineDurationMs(float64(time.Since(startedAt).Milliseconds()))
		return
	}

	metrics.IncPipelineCompleted()
	metrics.ObservePipelineDurationMs(float64(time.Since(startedAt).Milliseconds()))
	telemetry.Info("pipeline completed", map[string]any{
		"status_id":   statusID,
		"job_id":      jobID,
		"user_id":     in.UserID,
		"files":       len(in.Files),
		"duration_ms": time.Since(startedAt).Milliseconds(),
	})
}

type extracted struct {
	name  string
	text  string
	pages int
	empty bool
}

func (s *Service) execute(ctx context.Context, in SubmitInput, statusID, jobID string) error {
	apiKey, err := s.Users.ResolveAPIKey(ctx, in.UserID)
	if err != nil {
		return fmt.Errorf("resolve api key: %w", err)
	}

	// Stage 1: per-file extraction. Empty files are tolerated; a run
	// only dies here when every file is empty.
	s.Status.Advance(ctx, statusID, 1, status.DescExtracting, nil)

	files := make([]extracted, len(in.Files))
	g, gctx := errgroup.WithContext(ctx)
	for i := range in.Files {
		i := i
		f := in.Files[i]
		g.Go(func() error {
			res, err := s.extractor()(gctx, f.Data)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				telemetry.Warn("extraction failed for file", map[string]any{
					"file":      f.Name,
					"status_id": statusID,
					"error":     err.Error(),
				})
				files[i] = extracted{name: f.Name, empty: true}
				return nil
			}
			files[i] = extracted{name: f.Name, text: res.Text, pages: res.PageCount, empty: res.Empty()}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	usable := 0
	for _, f := range files {
		if !f.empty {
			usable++
		}
	}
	if usable == 0 {
		return ErrNoText
	}

	// Stage 2: reuse the document created by an earlier upload, or
	// build a fresh index for first-contact files.
	doc, err := s.ensureDocument(ctx, in, apiKey)
	if err != nil {
		return err
	}
	s.Status.Advance(ctx, statusID, 2, status.DescTrainingFiles, &status.Progress{
		DocumentID: doc.ID,
		RagID:      doc.RagID,
	})

	entries := make([]rag.TextEntry, 0, usable)
	for _, f := range files {
		if f.empty {
			continue
		}
		entries = append(entries, rag.TextEntry{
			Text:   s.Indexer.ParseText(ctx, apiKey, f.text),
			Source: f.name,
		})
	}
	if err := s.Indexer.TrainText(ctx, apiKey, doc.RagID, entries); err != nil {
		return fmt.Errorf("training: %w", err)
	}

	// Stage 3: both agents in parallel; either failure kills the run so
	// no partial summary is ever persisted.
	s.Status.Advance(ctx, statusID, 3, status.DescAnalyzing, nil)

	combined := combineText(files)
	var shortResp, longResp agent.Response
	g2, gctx2 := errgroup.WithContext(ctx)
	g2.Go(func() error {
		resp, err := s.Summarizer.Ask(gctx2, apiKey, agent.AskInput{
			AgentID:   s.ShortAgent,
			SessionID: in.SessionID,
			Message:   combined,
			RagID:     doc.RagID,
		})
		if err != nil {
			return fmt.Errorf("short summary agent: %w", err)
		}
		shortResp = resp
		return nil
	})
	g2.Go(func() error {
		resp, err := s.Summarizer.Ask(gctx2, apiKey, agent.AskInput{
			AgentID:   s.LongAgent,
			SessionID: in.SessionID,
			Message:   combined,
			RagID:     doc.RagID,
		})
		if err != nil {
			return fmt.Errorf("long summary agent: %w", err)
		}
		longResp = resp
		return nil
	})
	if err := g2.Wait(); err != nil {
		return err
	}

	// Stage 4: feed the summaries back into the index.
	s.Status.Advance(ctx, statusID, 4, status.DescTrainingSummaries, nil)
	summaryEntries := []rag.TextEntry{
		{Text: string(shortResp.Raw), Source: "Short_Litigation_Summary"},
		{Text: string(longResp.Raw), Source: "Long_Litigation_Summary"},
	}
	if err := s.Indexer.TrainText(ctx, apiKey, doc.RagID, summaryEntries); err != nil {
		return fmt.Errorf("training summaries: %w", err)
	}

	// Stage 5: persist onto the document record.
	s.Status.Advance(ctx, statusID, 5, status.DescSaving, nil)
	processed := make([]documents.FileInfo, 0, len(files))
	for _, f := range files {
		processed = append(processed, documents.FileInfo{FileName: f.name, PageCount: f.pages})
	}
	if err := s.Docs.SaveSummaries(ctx, doc.ID, shortResp.Raw, longResp.Raw, processed); err != nil {
		return fmt.Errorf("save results: %w", err)
	}

	// Terminal writes: results land on the job record in one append,
	// the process record completes separately.
	payload := []map[string]any{{
		"documentId":     doc.ID,
		"ragId":          doc.RagID,
		"shortResponse":  rawToAny(shortResp.Raw),
		"longResponse":   rawToAny(longResp.Raw),
		"processedFiles": processed,
	}}
	finalCtx := context.WithoutCancel(ctx)
	if err := s.Status.CompleteWithResults(finalCtx, jobID, doc.ID, doc.RagID, payload); err != nil {
		telemetry.Error("job completion write failed", map[string]any{
			"job_id": jobID,
			"error":  err.Error(),
		})
	}
	if err := s.Status.Complete(finalCtx, statusID, doc.ID, doc.RagID); err != nil {
		telemetry.Error("process completion write failed", map[string]any{
			"status_id": statusID,
			"error":     err.Error(),
		})
	}
	return nil
}

func (s *Service) ensureDocument(ctx context.Context, in SubmitInput, apiKey string) (documents.Document, error) {
	doc, err := s.Docs.FindByFileName(ctx, in.UserID, in.Files[0].Name)
	if err == nil {
		if doc.RagID == "" {
			return documents.Document{}, fmt.Errorf("document %s has no index", doc.ID)
		}
		return doc, nil
	}
	if !errors.Is(err, documents.ErrNotFound) {
		return documents.Document{}, fmt.Errorf("document lookup: %w", err)
	}

	collection := documents.NewCollectionName()
	ragID, err := s.Indexer.CreateIndex(ctx, apiKey, collection)
	if err != nil {
		return documents.Document{}, fmt.Errorf("create index: %w", err)
	}
	created, err := s.Docs.CreateRecord(ctx, documents.Document{
		UserID:           in.UserID,
		RagID:            ragID,
		CollectionName:   collection,
		OriginalFileName: in.Files[0].Name,
	})
	if err != nil {
		return documents.Document{}, fmt.Errorf("create document: %w", err)
	}
	return created, nil
}

// failBoth is the single error boundary: one fail per record, both
// idempotent, on a context that stage timeouts cannot poison.
func (s *Service) failBoth(statusID, jobID string, err error) {
	msg, code := classifyFailure(err)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if failErr := s.Status.Fail(ctx, statusID, msg, code); failErr != nil {
		telemetry.Error("process fail write failed", map[string]any{
			"status_id": statusID,
			"error":     failErr.Error(),
		})
	}
	if failErr := s.Status.Fail(ctx, jobID, msg, code); failErr != nil {
		telemetry.Error("job fail write failed", map[string]any{
			"job_id": jobID,
			"error":  failErr.Error(),
		})
	}
	metrics.IncPipelineFailed()
	telemetry.Error("pipeline failed", map[string]any{
		"status_id":  statusID,
		"job_id":     jobID,
		"error":      msg,
		"error_code": code,
	})
}

func (s *Service) extractor() Extractor {
	if s.Extract != nil {
		return s.Extract
	}
	return extract.FromBytes
}

func combineText(files []extracted) string {
	parts := make([]string, 0, len(files))
	for _, f := range files {
		if f.empty {
			continue
		}
		parts = append(parts, fmt.Sprintf("[Document: %s]\nPages: %d\n\n%s", f.name, f.pages, f.text))
	}
	return strings.Join(parts, "\n\n=== NEW DOCUMENT ===\n\n")
}

func rawToAny(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return string(raw)
	}
	return out
}

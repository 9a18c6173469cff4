package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"litigation-backend/internal/agent"
	"litigation-backend/internal/documents"
	"litigation-backend/internal/extract"
	"litigation-backend/internal/rag"
	"litigation-backend/internal/status"
	"litigation-backend/internal/users"
)

type fakeIndexer struct {
	mu         sync.Mutex
	created    int
	trainCalls [][]rag.TextEntry
	createErr  error
	trainErr   error
}

func (f *fakeIndexer) CreateIndex(ctx context.Context, apiKey, collectionName string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created++
	return fmt.Sprintf("rag-%d", f.created), nil
}

func (f *fakeIndexer) TrainText(ctx context.Context, apiKey, ragID string, entries []rag.TextEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.trainErr != nil {
		return f.trainErr
	}
	f.trainCalls = append(f.trainCalls, entries)
	return nil
}

func (f *fakeIndexer) ParseText(ctx context.Context, apiKey, text string) string {
	return text
}

type fakeSummarizer struct {
	mu        sync.Mutex
	failAgent string
	calls     []agent.AskInput
}

func (f *fakeSummarizer) Ask(ctx context.Context, apiKey string, input agent.AskInput) (agent.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, input)
	if f.failAgent != "" && input.AgentID == f.failAgent {
		return agent.Response{}, errors.New("agent unavailable")
	}
	text := "summary from " + input.AgentID
	return agent.Response{
		Response: text,
		Raw:      json.RawMessage(fmt.Sprintf(`{"response":%q}`, text)),
	}, nil
}

func passthroughExtract(ctx context.Context, data []byte) (extract.Result, error) {
	if len(data) == 0 {
		return extract.Result{}, nil
	}
	return extract.Result{Text: string(data), PageCount: 2}, nil
}

type testDeps struct {
	svc        *Service
	statusRepo *status.MemoryRepo
	indexer    *fakeIndexer
	summarizer *fakeSummarizer
}

func newTestService(t *testing.T) testDeps {
	t.Helper()

	statusRepo := status.NewMemoryRepo()
	userSvc := users.NewService(users.NewMemoryRepo())
	userSvc.FallbackAPIKey = "platform-key"
	indexer := &fakeIndexer{}
	summarizer := &fakeSummarizer{}

	svc := &Service{
		Status:     status.NewLifecycle(statusRepo),
		Docs:       &documents.Service{Repo: documents.NewMemoryRepo()},
		Users:      userSvc,
		Indexer:    indexer,
		Summarizer: summarizer,
		Runner:     NewRunner(2),
		Extract:    passthroughExtract,
		ShortAgent: "agent-short",
		LongAgent:  "agent-long",
		Timeout:    5 * time.Second,
	}
	return testDeps{svc: svc, statusRepo: statusRepo, indexer: indexer, summarizer: summarizer}
}

func waitForRuns(t *testing.T, r *Runner) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Shutdown(ctx); err != nil {
		t.Fatalf("runner did not drain: %v", err)
	}
}

func TestPipelineCompletes(t *testing.T) {
	deps := newTestService(t)
	ctx := context.Background()

	res, err := deps.svc.Submit(ctx, SubmitInput{
		UserID:    "user-1",
		SessionID: "session-1",
		Files: []File{
			{Name: "complaint.pdf", Data: []byte("plaintiff alleges breach of contract")},
			{Name: "exhibit-a.pdf", Data: []byte("signed agreement dated 2024")},
		},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.StatusID == "" || res.JobID == "" {
		t.Fatalf("expected both ids, got %+v", res)
	}
	waitForRuns(t, deps.svc.Runner)

	proc, err := deps.statusRepo.GetByID(ctx, res.StatusID)
	if err != nil {
		t.Fatalf("get process record: %v", err)
	}
	if proc.Status != status.StatusCompleted {
		t.Fatalf("expected process completed, got %s (%s)", proc.Status, proc.StepDescription)
	}
	if proc.CurrentStep != proc.TotalSteps {
		t.Fatalf("expected final step %d, got %d", proc.TotalSteps, proc.CurrentStep)
	}
	if proc.DocumentID == "" || proc.RagID == "" {
		t.Fatalf("expected identifiers on process record, got %+v", proc)
	}

	job, err := deps.statusRepo.GetByID(ctx, res.JobID)
	if err != nil {
		t.Fatalf("get job record: %v", err)
	}
	if job.Status != status.StatusCompleted {
		t.Fatalf("expected job completed, got %s", job.Status)
	}
	if !strings.HasPrefix(job.ProjectName, "litigation_doc_user-1_") {
		t.Fatalf("unexpected project name %s", job.ProjectName)
	}
	if len(job.Results) != 1 {
		t.Fatalf("expected exactly one result payload, got %d", len(job.Results))
	}
	result := job.Results[0]
	if result["ragId"] != proc.RagID {
		t.Fatalf("expected ragId %s in result, got %v", proc.RagID, result["ragId"])
	}
	if result["shortResponse"] == nil || result["longResponse"] == nil {
		t.Fatalf("expected both summaries in result, got %v", result)
	}

	doc, err := deps.svc.Docs.FindByFileName(ctx, "user-1", "complaint.pdf")
	if err != nil {
		t.Fatalf("find document: %v", err)
	}
	if !doc.Trained || len(doc.ShortSummary) == 0 || len(doc.LongSummary) == 0 {
		t.Fatalf("expected trained document with summaries, got %+v", doc)
	}
	if len(doc.ProcessedFiles) != 2 {
		t.Fatalf("expected 2 processed files, got %d", len(doc.ProcessedFiles))
	}

	// One training call for the files, one for the summaries.
	if len(deps.indexer.trainCalls) != 2 {
		t.Fatalf("expected 2 training calls, got %d", len(deps.indexer.trainCalls))
	}
	summaries := deps.indexer.trainCalls[1]
	if len(summaries) != 2 || summaries[0].Source != "Short_Litigation_Summary" || summaries[1].Source != "Long_Litigation_Summary" {
		t.Fatalf("unexpected summary training entries %+v", summaries)
	}
}

func TestPipelineLooksUpProcessBySession(t *testing.T) {
	deps := newTestService(t)
	ctx := context.Background()

	res, err := deps.svc.Submit(ctx, SubmitInput{
		UserID:    "user-1",
		SessionID: "session-abc",
		Files:     []File{{Name: "complaint.pdf", Data: []byte("text")}},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitForRuns(t, deps.svc.Runner)

	rec, err := deps.statusRepo.GetByID(ctx, "session-abc")
	if err != nil {
		t.Fatalf("lookup by session id: %v", err)
	}
	if rec.ID != res.StatusID {
		t.Fatalf("expected process record %s, got %s", res.StatusID, rec.ID)
	}
}

func TestPipelineFailsWhenNoTextExtracted(t *testing.T) {
	deps := newTestService(t)
	ctx := context.Background()

	res, err := deps.svc.Submit(ctx, SubmitInput{
		UserID: "user-1",
		Files: []File{
			{Name: "empty-1.pdf", Data: nil},
			{Name: "empty-2.pdf", Data: nil},
		},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitForRuns(t, deps.svc.Runner)

	for _, id := range []string{res.StatusID, res.JobID} {
		rec, err := deps.statusRepo.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("get record %s: %v", id, err)
		}
		if rec.Status != status.StatusFailed {
			t.Fatalf("expected record %s failed, got %s", id, rec.Status)
		}
		if rec.Error == nil || *rec.Error != ErrNoText.Error() {
			t.Fatalf("expected no-text error, got %v", rec.Error)
		}
		if rec.ErrorCode == nil || *rec.ErrorCode != status.CodeValidation {
			t.Fatalf("expected validation error code, got %v", rec.ErrorCode)
		}
	}
	if deps.indexer.created != 0 {
		t.Fatalf("expected no index creation after extraction failure, got %d", deps.indexer.created)
	}
}

func TestPipelineToleratesPartialExtraction(t *testing.T) {
	deps := newTestService(t)
	ctx := context.Background()

	res, err := deps.svc.Submit(ctx, SubmitInput{
		UserID: "user-1",
		Files: []File{
			{Name: "empty.pdf", Data: nil},
			{Name: "complaint.pdf", Data: []byte("usable text")},
		},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitForRuns(t, deps.svc.Runner)

	proc, err := deps.statusRepo.GetByID(ctx, res.StatusID)
	if err != nil {
		t.Fatalf("get process record: %v", err)
	}
	if proc.Status != status.StatusCompleted {
		t.Fatalf("expected completed with one usable file, got %s", proc.Status)
	}

	// Only the usable file is trained; the empty one still shows up in
	// processed files with zero pages.
	if len(deps.indexer.trainCalls) == 0 || len(deps.indexer.trainCalls[0]) != 1 {
		t.Fatalf("expected 1 training entry, got %+v", deps.indexer.trainCalls)
	}
	doc, err := deps.svc.Docs.FindByFileName(ctx, "user-1", "empty.pdf")
	if err != nil {
		t.Fatalf("find document: %v", err)
	}
	if len(doc.ProcessedFiles) != 2 {
		t.Fatalf("expected 2 processed files, got %d", len(doc.ProcessedFiles))
	}
}

func TestPipelineAgentFailureLeavesNoPartialResults(t *testing.T) {
	deps := newTestService(t)
	deps.summarizer.failAgent = "agent-long"
	ctx := context.Background()

	res, err := deps.svc.Submit(ctx, SubmitInput{
		UserID: "user-1",
		Files:  []File{{Name: "complaint.pdf", Data: []byte("text")}},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitForRuns(t, deps.svc.Runner)

	job, err := deps.statusRepo.GetByID(ctx, res.JobID)
	if err != nil {
		t.Fatalf("get job record: %v", err)
	}
	if job.Status != status.StatusFailed {
		t.Fatalf("expected failed job, got %s", job.Status)
	}
	if len(job.Results) != 0 {
		t.Fatalf("expected no results on failed job, got %d", len(job.Results))
	}

	doc, err := deps.svc.Docs.FindByFileName(ctx, "user-1", "complaint.pdf")
	if err != nil {
		t.Fatalf("find document: %v", err)
	}
	if doc.Trained || len(doc.ShortSummary) != 0 {
		t.Fatalf("expected no persisted summaries after agent failure, got %+v", doc)
	}
}

func TestPipelineReusesExistingDocument(t *testing.T) {
	deps := newTestService(t)
	ctx := context.Background()

	existing, err := deps.svc.Docs.CreateRecord(ctx, documents.Document{
		UserID:           "user-1",
		RagID:            "rag-existing",
		CollectionName:   "litigation-existing",
		OriginalFileName: "complaint.pdf",
	})
	if err != nil {
		t.Fatalf("seed document: %v", err)
	}

	res, err := deps.svc.Submit(ctx, SubmitInput{
		UserID: "user-1",
		Files:  []File{{Name: "complaint.pdf", Data: []byte("text")}},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitForRuns(t, deps.svc.Runner)

	proc, err := deps.statusRepo.GetByID(ctx, res.StatusID)
	if err != nil {
		t.Fatalf("get process record: %v", err)
	}
	if proc.RagID != "rag-existing" || proc.DocumentID != existing.ID {
		t.Fatalf("expected reuse of existing document, got %+v", proc)
	}
	if deps.indexer.created != 0 {
		t.Fatalf("expected no new index, got %d", deps.indexer.created)
	}
}

func TestSubmitRejectsInvalidInput(t *testing.T) {
	deps := newTestService(t)
	ctx := context.Background()

	_, err := deps.svc.Submit(ctx, SubmitInput{UserID: "user-1"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty files, got %v", err)
	}

	_, err = deps.svc.Submit(ctx, SubmitInput{
		Files: []File{{Name: "complaint.pdf", Data: []byte("text")}},
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing user, got %v", err)
	}
}

func TestSubmitBusyFailsBothRecords(t *testing.T) {
	deps := newTestService(t)
	deps.svc.Runner = NewRunner(1)
	release := make(chan struct{})
	if err := deps.svc.Runner.Submit(func() { <-release }); err != nil {
		t.Fatalf("occupy slot: %v", err)
	}
	defer close(release)

	ctx := context.Background()
	_, err := deps.svc.Submit(ctx, SubmitInput{
		UserID: "user-1",
		Files:  []File{{Name: "complaint.pdf", Data: []byte("text")}},
	})
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}

	rec, err := deps.statusRepo.GetLatestByOwner(ctx, "user-1")
	if err != nil {
		t.Fatalf("get latest record: %v", err)
	}
	if rec.Status != status.StatusFailed {
		t.Fatalf("expected rejected submission to fail its records, got %s", rec.Status)
	}
}

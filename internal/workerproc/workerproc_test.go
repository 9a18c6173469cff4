package workerproc

import (
	"context"
	"errors"
	"testing"

	"litigation-backend/internal/pipeline"
	"litigation-backend/internal/queue"
)

type fakeRunner struct {
	runs []string
}

func (f *fakeRunner) Run(ctx context.Context, in pipeline.SubmitInput, statusID, jobID string) {
	f.runs = append(f.runs, statusID+"/"+jobID)
}

type fakeLoader struct {
	in        pipeline.SubmitInput
	jobID     string
	loadErr   error
	discarded []string
}

func (f *fakeLoader) Load(ctx context.Context, statusID string) (pipeline.SubmitInput, string, error) {
	if f.loadErr != nil {
		return pipeline.SubmitInput{}, "", f.loadErr
	}
	return f.in, f.jobID, nil
}

func (f *fakeLoader) Discard(ctx context.Context, statusID string, fileCount int) {
	f.discarded = append(f.discarded, statusID)
}

func TestParseMessage(t *testing.T) {
	payload, _ := queue.EncodeMessage(queue.Message{StatusID: "status-1", JobID: "job-1", RequestID: "req-1"})

	msg, meta, err := ParseMessage(string(payload))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if msg.StatusID != "status-1" || msg.JobID != "job-1" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if meta.BodyLen == 0 || meta.BodySHA == "" {
		t.Fatalf("expected meta, got %+v", meta)
	}
}

func TestParseMessageRejectsEmptyBody(t *testing.T) {
	_, _, err := ParseMessage("   ")
	var empty ErrEmptyBody
	if !errors.As(err, &empty) {
		t.Fatalf("expected ErrEmptyBody, got %v", err)
	}
}

func TestParseMessageRejectsBadJSON(t *testing.T) {
	_, _, err := ParseMessage("{bad-json")
	var decode ErrDecode
	if !errors.As(err, &decode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestParseMessageRejectsMissingStatusID(t *testing.T) {
	payload, _ := queue.EncodeMessage(queue.Message{RequestID: "req-1"})
	_, _, err := ParseMessage(string(payload))
	var missing ErrMissingStatusID
	if !errors.As(err, &missing) {
		t.Fatalf("expected ErrMissingStatusID, got %v", err)
	}
	if missing.RequestID != "req-1" {
		t.Fatalf("expected request id carried, got %+v", missing)
	}
}

func TestHandleRunsAndDiscards(t *testing.T) {
	runner := &fakeRunner{}
	loader := &fakeLoader{
		in:    pipeline.SubmitInput{UserID: "user-1", Files: []pipeline.File{{Name: "complaint.pdf", Data: []byte("x")}}},
		jobID: "job-staged",
	}
	h := &Handler{Pipeline: runner, Stager: loader}

	err := h.Handle(context.Background(), queue.Message{StatusID: "status-1", JobID: "job-1"})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(runner.runs) != 1 || runner.runs[0] != "status-1/job-1" {
		t.Fatalf("unexpected runs %v", runner.runs)
	}
	if len(loader.discarded) != 1 {
		t.Fatalf("expected discard, got %v", loader.discarded)
	}
}

func TestHandleUsesStagedJobIDWhenMissing(t *testing.T) {
	runner := &fakeRunner{}
	loader := &fakeLoader{jobID: "job-staged"}
	h := &Handler{Pipeline: runner, Stager: loader}

	if err := h.Handle(context.Background(), queue.Message{StatusID: "status-1"}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if runner.runs[0] != "status-1/job-staged" {
		t.Fatalf("expected staged job id, got %v", runner.runs)
	}
}

func TestHandleReportsLoadFailure(t *testing.T) {
	h := &Handler{
		Pipeline: &fakeRunner{},
		Stager:   &fakeLoader{loadErr: errors.New("manifest missing")},
	}

	err := h.Handle(context.Background(), queue.Message{StatusID: "status-1", RequestID: "req-1"})
	var load ErrLoad
	if !errors.As(err, &load) {
		t.Fatalf("expected ErrLoad, got %v", err)
	}
	if load.StatusID != "status-1" || load.RequestID != "req-1" {
		t.Fatalf("unexpected error payload %+v", load)
	}
}

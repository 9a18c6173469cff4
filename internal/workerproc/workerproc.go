// Package workerproc holds the queue-message handling shared by the
// SQS worker binary and its lambda twin: parse the envelope, load the
// staged submission, run the pipeline.
package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"litigation-backend/internal/pipeline"
	"litigation-backend/internal/queue"
)

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{BodyLen: 0, BodySHA: ""}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

// ErrMissingStatusID indicates a message missing the status record id.
type ErrMissingStatusID struct {
	Meta      MessageMeta
	RequestID string
}

func (e ErrMissingStatusID) Error() string { return "missing status id" }

// ErrLoad indicates the staged submission could not be recovered.
type ErrLoad struct {
	StatusID  string
	RequestID string
	Err       error
}

func (e ErrLoad) Error() string {
	if e.Err == nil {
		return "load staged submission"
	}
	return "load staged submission: " + e.Err.Error()
}

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if strings.TrimSpace(msg.StatusID) == "" {
		return msg, meta, ErrMissingStatusID{Meta: meta, RequestID: msg.RequestID}
	}
	return msg, meta, nil
}

// Runner executes a recovered pipeline submission. Implemented by
// pipeline.Service.
type Runner interface {
	Run(ctx context.Context, in pipeline.SubmitInput, statusID, jobID string)
}

// Loader recovers a staged submission by status id. Implemented by
// pipeline.Stager.
type Loader interface {
	Load(ctx context.Context, statusID string) (pipeline.SubmitInput, string, error)
	Discard(ctx context.Context, statusID string, fileCount int)
}

// Handler processes parsed queue messages.
type Handler struct {
	Pipeline Runner
	Stager   Loader
}

// Handle loads the staged files for a message and runs the pipeline.
// Pipeline failures are recorded on the status records by the pipeline
// itself; Handle only errs when the submission cannot be recovered.
func (h *Handler) Handle(ctx context.Context, msg queue.Message) error {
	if h == nil || h.Pipeline == nil || h.Stager == nil {
		return errors.New("worker handler not configured")
	}

	in, stagedJobID, err := h.Stager.Load(ctx, msg.StatusID)
	if err != nil {
		return ErrLoad{StatusID: msg.StatusID, RequestID: msg.RequestID, Err: err}
	}
	jobID := msg.JobID
	if jobID == "" {
		jobID = stagedJobID
	}

	h.Pipeline.Run(ctx, in, msg.StatusID, jobID)
	h.Stager.Discard(ctx, msg.StatusID, len(in.Files))
	return nil
}

// HandleBody parses a raw payload and hands it to Handle.
func (h *Handler) HandleBody(ctx context.Context, body string) error {
	msg, _, err := ParseMessage(body)
	if err != nil {
		return err
	}
	return h.Handle(ctx, msg)
}

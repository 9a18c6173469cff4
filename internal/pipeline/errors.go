package pipeline

import (
	"context"
	"errors"
	"strings"

	"litigation-backend/internal/status"
)

// ErrNoText is the fatal case of stage 1: every uploaded file came back
// without extractable text.
var ErrNoText = errors.New("could not extract text from any of the PDF files")

// ErrInvalidInput marks submissions rejected before any record exists.
var ErrInvalidInput = errors.New("invalid input")

func classifyFailure(err error) (string, int) {
	if err == nil {
		return "unknown error", status.CodeInternal
	}
	if errors.Is(err, ErrNoText) {
		return ErrNoText.Error(), status.CodeValidation
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "processing timed out", status.CodeInternal
	}
	return sanitizeError(err), status.CodeInternal
}

func sanitizeError(err error) string {
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		return "unknown error"
	}
	const max = 500
	if len(msg) > max {
		return msg[:max]
	}
	return msg
}

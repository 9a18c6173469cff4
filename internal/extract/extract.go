package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"litigation-backend/internal/shared/storage/object"
)

// Result carries the extracted text and the source page count.
type Result struct {
	Text      string
	PageCount int
}

// Empty reports whether no usable text came out of the file.
func (r Result) Empty() bool {
	return strings.TrimSpace(r.Text) == ""
}

// FromBytes extracts plain text from an in-memory PDF.
func FromBytes(ctx context.Context, data []byte) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if !looksLikePDF(data) {
		return Result{}, fmt.Errorf("unsupported file type: expected pdf")
	}

	reader := bytes.NewReader(data)
	pdfReader, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return Result{}, fmt.Errorf("open pdf: %w", err)
	}

	plain, err := pdfReader.GetPlainText()
	if err != nil {
		return Result{}, fmt.Errorf("read pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return Result{}, fmt.Errorf("read pdf text: %w", err)
	}

	return Result{Text: buf.String(), PageCount: pdfReader.NumPage()}, nil
}

// FromStore extracts text from a stored PDF.
func FromStore(ctx context.Context, store object.ObjectStore, storageKey string) (Result, error) {
	body, err := store.Open(ctx, storageKey)
	if err != nil {
		return Result{}, fmt.Errorf("extract key=%s: %w", storageKey, err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return Result{}, fmt.Errorf("extract key=%s: read: %w", storageKey, err)
	}

	res, err := FromBytes(ctx, data)
	if err != nil {
		return Result{}, fmt.Errorf("extract key=%s: %w", storageKey, err)
	}
	return res, nil
}

func looksLikePDF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("%PDF-"))
}

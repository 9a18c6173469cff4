package documents

import (
	"encoding/json"
	"time"
)

// FileInfo records one processed source file.
type FileInfo struct {
	FileName  string `json:"fileName"`
	PageCount int    `json:"pageCount"`
}

// Document is a long-lived litigation document: the uploaded case files,
// the knowledge-base index trained on them, and the agent summaries.
type Document struct {
	ID               string
	UserID           string
	RagID            string
	CollectionName   string
	OriginalFileName string
	ShortSummary     json.RawMessage
	LongSummary      json.RawMessage
	Trained          bool
	ProcessedFiles   []FileInfo
	StorageKeys      []string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

package documents

import (
	"encoding/json"
	"time"
)

// DocumentResponse is the outward-facing representation of a document.
type DocumentResponse struct {
	DocumentID       string          `json:"documentId"`
	RagID            string          `json:"ragId,omitempty"`
	CollectionName   string          `json:"collectionName,omitempty"`
	OriginalFileName string          `json:"originalFileName"`
	ShortSummary     json.RawMessage `json:"shortSummary,omitempty"`
	LongSummary      json.RawMessage `json:"longSummary,omitempty"`
	Trained          bool            `json:"trained"`
	ProcessedFiles   []FileInfo      `json:"processedFiles"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

func toResponse(doc Document) DocumentResponse {
	files := doc.ProcessedFiles
	if files == nil {
		files = []FileInfo{}
	}
	return DocumentResponse{
		DocumentID:       doc.ID,
		RagID:            doc.RagID,
		CollectionName:   doc.CollectionName,
		OriginalFileName: doc.OriginalFileName,
		ShortSummary:     doc.ShortSummary,
		LongSummary:      doc.LongSummary,
		Trained:          doc.Trained,
		ProcessedFiles:   files,
		CreatedAt:        doc.CreatedAt,
		UpdatedAt:        doc.UpdatedAt,
	}
}

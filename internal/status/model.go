package status

import "time"

const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

const (
	// KindProcess is the fine-grained progress record polled by the UI.
	KindProcess = "process"
	// KindJob is the coarse job record carrying final results.
	KindJob = "job"
)

// DefaultTotalSteps is the number of pipeline steps reported to clients.
const DefaultTotalSteps = 8

// Step descriptions shown to polling clients.
const (
	DescStarting          = "Starting process..."
	DescExtracting        = "Processing PDF files in parallel"
	DescTrainingFiles     = "Training RAG with all files"
	DescAnalyzing         = "Getting litigation analysis"
	DescTrainingSummaries = "Training RAG with summaries"
	DescSaving            = "Saving analysis results"
	DescCompleted         = "Process completed successfully"
	DescFailed            = "Process failed"
)

// Record tracks one asynchronous run from the caller's point of view.
// Results are append-only; Status moves processing -> completed|failed
// exactly once.
type Record struct {
	ID              string           `json:"id"`
	Kind            string           `json:"kind"`
	OwnerID         string           `json:"ownerId"`
	ExternalID      string           `json:"externalId,omitempty"`
	ProjectName     string           `json:"projectName,omitempty"`
	Status          string           `json:"status"`
	CurrentStep     int              `json:"currentStep"`
	TotalSteps      int              `json:"totalSteps"`
	StepDescription string           `json:"stepDescription"`
	Results         []map[string]any `json:"results,omitempty"`
	Error           *string          `json:"error,omitempty"`
	ErrorCode       *int             `json:"errorCode,omitempty"`
	DocumentID      string           `json:"documentId,omitempty"`
	RagID           string           `json:"ragId,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// Terminal reports whether the record has reached a final status.
func (r Record) Terminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed
}

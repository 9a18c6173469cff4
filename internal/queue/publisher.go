package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Publisher turns the pipeline enqueue calls into queue messages.
type Publisher struct {
	Client Client
}

// NewPublisher constructs a Publisher.
func NewPublisher(client Client) *Publisher {
	return &Publisher{Client: client}
}

// Enqueue sends one message for a staged submission.
func (p *Publisher) Enqueue(ctx context.Context, statusID, jobID string) error {
	return p.Client.Send(ctx, Message{
		StatusID:   statusID,
		JobID:      jobID,
		RequestID:  uuid.NewString(),
		EnqueuedAt: time.Now().UTC().Format(time.RFC3339),
		Version:    1,
	})
}

package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"litigation-backend/internal/bootstrap"
	"litigation-backend/internal/shared/config"
	"litigation-backend/internal/workerproc"
)

var (
	initOnce sync.Once
	initErr  error
	handlerP *workerproc.Handler
)

func initApp() {
	cfg := config.Load()
	app, err := bootstrap.Build(cfg)
	if err != nil {
		initErr = err
		return
	}
	handlerP = &workerproc.Handler{Pipeline: app.Pipeline, Stager: app.Stager}
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		log.Printf("bootstrap error: %v", initErr)
		failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
		for _, record := range event.Records {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
		return events.SQSEventResponse{BatchItemFailures: failures}, initErr
	}

	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range event.Records {
		if err := handlerP.HandleBody(ctx, record.Body); err != nil {
			if unrecoverable(err) {
				// A malformed envelope never becomes valid; dropping it
				// beats cycling it back through the queue.
				log.Printf("dropping unrecoverable message %s: %v", record.MessageId, err)
				continue
			}
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}

	return events.SQSEventResponse{BatchItemFailures: failures}, nil
}

func unrecoverable(err error) bool {
	var empty workerproc.ErrEmptyBody
	var decode workerproc.ErrDecode
	var missing workerproc.ErrMissingStatusID
	return errors.As(err, &empty) || errors.As(err, &decode) || errors.As(err, &missing)
}

func main() {
	lambda.Start(handler)
}

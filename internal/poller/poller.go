// Package poller is the reusable client-side progress loop: one timer,
// one in-flight fetch, one terminal callback. Every consumer that waits
// on a pipeline run goes through it instead of rolling its own timer.
package poller

import (
	"context"
	"errors"
	"strings"
	"time"

	"litigation-backend/internal/shared/telemetry"
)

// ErrTimeout reports that the attempt budget ran out while the record
// was still processing. It is purely a client-side observation.
var ErrTimeout = errors.New("polling timed out before a terminal state")

// ErrGone marks a fetch error that means the record will never appear.
// Fetchers wrap 404s and validation rejections with it.
var ErrGone = errors.New("record gone")

// Observation is one fetched snapshot of a record.
type Observation struct {
	Status     string
	DocumentID string
	RagID      string
	Error      string
}

// FetchFunc retrieves the current state of the watched record.
type FetchFunc func(ctx context.Context) (Observation, error)

const (
	DefaultInterval    = 2 * time.Second
	DefaultMaxAttempts = 120
)

// Poller drives a FetchFunc until a terminal status, a permanent fetch
// failure, or budget exhaustion. OnComplete and OnError are together
// invoked at most once; neither fires after the context is cancelled.
type Poller struct {
	Fetch       FetchFunc
	Interval    time.Duration
	MaxAttempts int

	OnComplete func(documentID, ragID string)
	OnError    func(message string)

	fired bool
}

// Run polls until done. It returns nil when a terminal callback fired,
// ErrTimeout when the budget ran out, or the context error on teardown.
func (p *Poller) Run(ctx context.Context) error {
	if p.Fetch == nil {
		return errors.New("poller has no fetch function")
	}
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		obs, err := p.Fetch(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			if permanent(err) {
				p.fireError(err.Error())
				return nil
			}
			telemetry.Warn("poll fetch failed", map[string]any{
				"attempt": attempt,
				"error":   err.Error(),
			})
		} else {
			switch obs.Status {
			case "completed":
				p.fireComplete(obs.DocumentID, obs.RagID)
				return nil
			case "failed":
				msg := obs.Error
				if msg == "" {
					msg = "processing failed"
				}
				p.fireError(msg)
				return nil
			}
		}

		if attempt >= maxAttempts {
			return ErrTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Poller) fireComplete(documentID, ragID string) {
	if p.fired || p.OnComplete == nil {
		p.fired = true
		return
	}
	p.fired = true
	p.OnComplete(documentID, ragID)
}

func (p *Poller) fireError(message string) {
	if p.fired || p.OnError == nil {
		p.fired = true
		return
	}
	p.fired = true
	p.OnError(message)
}

func permanent(err error) bool {
	if errors.Is(err, ErrGone) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "invalid")
}

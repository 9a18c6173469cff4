package pipeline

import (
	"context"
	"errors"
	"sync"
)

// ErrBusy is returned when every worker slot is taken. Back-pressure is
// deliberate: callers should retry rather than queue unboundedly.
var ErrBusy = errors.New("pipeline runner is saturated")

// Runner is a bounded pool for background pipeline runs.
type Runner struct {
	sem chan struct{}
	wg  sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewRunner creates a Runner with the given capacity.
func NewRunner(capacity int) *Runner {
	if capacity <= 0 {
		capacity = 4
	}
	return &Runner{sem: make(chan struct{}, capacity)}
}

// Submit schedules fn on a free slot, or returns ErrBusy.
func (r *Runner) Submit(fn func()) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return errors.New("pipeline runner is shut down")
	}
	select {
	case r.sem <- struct{}{}:
	default:
		r.mu.Unlock()
		return ErrBusy
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer func() {
			<-r.sem
			r.wg.Done()
		}()
		fn()
	}()
	return nil
}

// Shutdown stops accepting work and waits for in-flight runs, or until
// the context expires.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

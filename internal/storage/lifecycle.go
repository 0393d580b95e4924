package storage

import (
	"context"
	"errors"
	"sync"
)

// SaveReason says why state is being checkpointed.
type SaveReason int

const (
	// ReasonPeriodic is a routine checkpoint while the process keeps running.
	ReasonPeriodic SaveReason = iota
	// ReasonShutdown is the final checkpoint before the process exits.
	ReasonShutdown
)

func (r SaveReason) String() string {
	switch r {
	case ReasonShutdown:
		return "shutdown"
	default:
		return "periodic"
	}
}

// SaveHandler persists a component's state for a checkpoint.
type SaveHandler func(ctx context.Context, reason SaveReason) error

// Lifecycle fans "will save state" checkpoints out to registered handlers.
type Lifecycle struct {
	mu       sync.Mutex
	handlers map[int]SaveHandler
	order    []int
	nextID   int
	shutdown bool
}

// NewLifecycle returns a lifecycle with no handlers.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{handlers: make(map[int]SaveHandler)}
}

// OnWillSaveState registers fn and returns a function that removes it.
// Handlers run in registration order.
func (l *Lifecycle) OnWillSaveState(fn SaveHandler) func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.nextID
	l.nextID++
	l.handlers[id] = fn
	l.order = append(l.order, id)

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.handlers, id)
	}
}

// Fire runs every handler for reason and returns their joined errors. A
// failing handler does not stop the others.
func (l *Lifecycle) Fire(ctx context.Context, reason SaveReason) error {
	l.mu.Lock()
	handlers := make([]SaveHandler, 0, len(l.handlers))
	for _, id := range l.order {
		if fn, ok := l.handlers[id]; ok {
			handlers = append(handlers, fn)
		}
	}
	l.mu.Unlock()

	var errs []error
	for _, fn := range handlers {
		if err := fn(ctx, reason); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Shutdown fires the final checkpoint once. Later calls are no-ops.
func (l *Lifecycle) Shutdown(ctx context.Context) error {
	l.mu.Lock()
	if l.shutdown {
		l.mu.Unlock()
		return nil
	}
	l.shutdown = true
	l.mu.Unlock()

	return l.Fire(ctx, ReasonShutdown)
}

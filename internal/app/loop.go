package app

import (
	"context"
	"sync"
	"sync/atomic"
)

// Loop is the single goroutine that owns observable state. Background work
// hands its results back with Post; the callbacks run in order on the
// goroutine calling Run.
type Loop struct {
	mu      sync.Mutex
	pending []func()
	wake    chan struct{}
}

func NewLoop() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Post queues fn to run on the loop. It never blocks.
func (l *Loop) Post(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.pending = append(l.pending, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run executes posted callbacks until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	for {
		l.drain()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// Await starts work and runs the loop until a callback calls finish or ctx
// is done. It returns nil when finish was called.
func (l *Loop) Await(ctx context.Context, start func(finish func())) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var finished atomic.Bool
	start(func() {
		finished.Store(true)
		cancel()
	})
	err := l.Run(ctx)
	if finished.Load() {
		return nil
	}
	return err
}

func (l *Loop) drain() {
	for {
		l.mu.Lock()
		if len(l.pending) == 0 {
			l.mu.Unlock()
			return
		}
		fn := l.pending[0]
		l.pending[0] = nil
		l.pending = l.pending[1:]
		l.mu.Unlock()

		fn()
	}
}

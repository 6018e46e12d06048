package notify

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// Deliverer presents a reminder that came due.
type Deliverer interface {
	Deliver(ctx context.Context, e Entry) error
}

// DelivererFunc adapts a function to Deliverer.
type DelivererFunc func(ctx context.Context, e Entry) error

func (f DelivererFunc) Deliver(ctx context.Context, e Entry) error { return f(ctx, e) }

// WriterDeliverer prints one line per reminder.
type WriterDeliverer struct {
	W   io.Writer
	Loc *time.Location

	mu sync.Mutex
}

func (d *WriterDeliverer) Deliver(_ context.Context, e Entry) error {
	loc := d.Loc
	if loc == nil {
		loc = time.Local
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := fmt.Fprintf(d.W, "[%s] %s: %s\n", e.FireAt.In(loc).Format("2006-01-02 15:04:05"), e.Title, e.Body)
	return err
}

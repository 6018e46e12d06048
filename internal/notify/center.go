package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	appLog "civiccircle/internal/log"
	"civiccircle/internal/reminder"
)

// ErrNotAuthorized is returned by Add while notifications are disabled.
var ErrNotAuthorized = errors.New("notify: notifications are disabled")

// Center implements reminder.Platform on top of a Queue. Authorization is
// a configuration switch rather than an interactive prompt.
type Center struct {
	queue   *Queue
	enabled bool
	now     func() time.Time
}

var _ reminder.Platform = (*Center)(nil)

type CenterOption func(*Center)

// WithClock overrides the clock used to resolve interval triggers.
func WithClock(now func() time.Time) CenterOption {
	return func(c *Center) {
		if now != nil {
			c.now = now
		}
	}
}

func NewCenter(q *Queue, enabled bool, opts ...CenterOption) *Center {
	c := &Center{queue: q, enabled: enabled, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Queue returns the backing queue.
func (c *Center) Queue() *Queue { return c.queue }

// RequestAuthorization answers with the configured switch. It has no side
// effects, so repeated calls are harmless.
func (c *Center) RequestAuthorization(_ context.Context, opts reminder.AuthorizationOptions) (bool, error) {
	appLog.Debug("notify: authorization requested", "options", opts.String(), "granted", c.enabled)
	return c.enabled, nil
}

// Add resolves req's trigger against the current time and queues it.
func (c *Center) Add(ctx context.Context, req reminder.Request) error {
	if !c.enabled {
		remindersRejected.Inc()
		return ErrNotAuthorized
	}
	if req.Trigger == nil {
		return fmt.Errorf("notify: request %s has no trigger", req.ID)
	}

	now := c.now()
	e := Entry{
		ID:        req.ID,
		Title:     req.Title,
		Body:      req.Body,
		Kind:      triggerKind(req.Trigger),
		FireAt:    req.Trigger.FireTime(now),
		CreatedAt: now,
	}
	if err := c.queue.Add(ctx, e); err != nil {
		return err
	}
	remindersRegistered.WithLabelValues(e.Kind).Inc()
	appLog.Debug("notify: queued reminder", "id", e.ID, "fire_at", e.FireAt.Format(time.RFC3339))
	return nil
}

func triggerKind(t reminder.Trigger) string {
	switch t.(type) {
	case reminder.CalendarTrigger, *reminder.CalendarTrigger:
		return KindCalendar
	default:
		return KindInterval
	}
}

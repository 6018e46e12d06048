package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "civiccircle/internal/log"
)

const DefaultPoll = 30 * time.Second

// Dispatcher watches a Queue and delivers entries when they come due.
//
// A periodic cron job reloads the queue so reminders added by other
// processes are picked up; each new entry then gets its own one-shot cron
// entry. Entries already due at reload time are delivered right away.
type Dispatcher struct {
	queue   *Queue
	deliver Deliverer
	poll    time.Duration
	now     func() time.Time

	cron *cron.Cron

	mu        sync.Mutex
	scheduled map[string]cron.EntryID
}

type DispatcherOption func(*Dispatcher)

// WithPoll sets the queue reload interval. Values under a second are
// raised to one second by cron.
func WithPoll(d time.Duration) DispatcherOption {
	return func(ds *Dispatcher) {
		if d > 0 {
			ds.poll = d
		}
	}
}

// WithLocation sets the zone cron evaluates schedules in.
func WithLocation(loc *time.Location) DispatcherOption {
	return func(ds *Dispatcher) {
		if loc != nil {
			ds.cron = newCron(loc)
		}
	}
}

func NewDispatcher(q *Queue, d Deliverer, opts ...DispatcherOption) *Dispatcher {
	ds := &Dispatcher{
		queue:     q,
		deliver:   d,
		poll:      DefaultPoll,
		now:       time.Now,
		cron:      newCron(time.Local),
		scheduled: make(map[string]cron.EntryID),
	}
	for _, opt := range opts {
		opt(ds)
	}
	return ds
}

func newCron(loc *time.Location) *cron.Cron {
	logger := cronLogger{}
	return cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger)),
	)
}

// Run syncs once, then keeps dispatching until ctx is cancelled. It waits
// for running deliveries before returning.
func (d *Dispatcher) Run(ctx context.Context) error {
	sched, err := cron.ParseStandard("@every " + d.poll.String())
	if err != nil {
		return fmt.Errorf("notify: poll schedule: %w", err)
	}
	poll := cron.NewChain(cron.SkipIfStillRunning(cronLogger{})).Then(cron.FuncJob(func() {
		if err := d.Sync(ctx); err != nil {
			appLog.Error("notify: queue sync failed", err, "path", d.queue.Path())
		}
	}))
	d.cron.Schedule(sched, poll)

	if err := d.Sync(ctx); err != nil {
		return err
	}

	appLog.Info("notify: dispatcher started", "poll", d.poll.String(), "queue", d.queue.Path())
	d.cron.Start()

	<-ctx.Done()
	<-d.cron.Stop().Done()
	appLog.Info("notify: dispatcher stopped")
	return nil
}

// Sync reloads the queue. Due entries are delivered immediately, future
// ones are scheduled, and scheduled entries that vanished from the queue
// are dropped.
func (d *Dispatcher) Sync(ctx context.Context) error {
	entries, err := d.queue.List(ctx)
	if err != nil {
		return err
	}
	remindersPending.Set(float64(len(entries)))

	now := d.now()
	live := make(map[string]struct{}, len(entries))
	var due []Entry

	d.mu.Lock()
	for _, e := range entries {
		live[e.ID] = struct{}{}
		if _, ok := d.scheduled[e.ID]; ok {
			continue
		}
		if e.Due(now) {
			due = append(due, e)
			continue
		}
		entry := e
		d.scheduled[e.ID] = d.cron.Schedule(&once{at: e.FireAt}, cron.FuncJob(func() {
			d.fire(ctx, entry)
		}))
		appLog.Debug("notify: scheduled reminder", "id", e.ID, "fire_at", e.FireAt.Format(time.RFC3339))
	}
	for id, cronID := range d.scheduled {
		if _, ok := live[id]; !ok {
			d.cron.Remove(cronID)
			delete(d.scheduled, id)
			appLog.Debug("notify: unscheduled cancelled reminder", "id", id)
		}
	}
	d.mu.Unlock()

	for _, e := range due {
		d.fire(ctx, e)
	}
	return nil
}

// Scheduled returns the number of entries waiting on a cron timer.
func (d *Dispatcher) Scheduled() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.scheduled)
}

// fire claims the entry by removing it from the queue, so a reminder
// cancelled in the meantime or delivered elsewhere is skipped.
func (d *Dispatcher) fire(ctx context.Context, e Entry) {
	d.mu.Lock()
	if cronID, ok := d.scheduled[e.ID]; ok {
		d.cron.Remove(cronID)
		delete(d.scheduled, e.ID)
	}
	d.mu.Unlock()

	removed, err := d.queue.Remove(ctx, e.ID)
	if err != nil {
		appLog.Error("notify: failed to claim reminder", err, "id", e.ID)
		return
	}
	if !removed {
		return
	}

	if err := d.deliver.Deliver(ctx, e); err != nil {
		remindersDelivered.WithLabelValues("error").Inc()
		appLog.Error("notify: delivery failed", err, "id", e.ID)
		return
	}
	remindersDelivered.WithLabelValues("ok").Inc()
	appLog.Info("notify: delivered reminder", "id", e.ID, "title", e.Title)
}

// once is a cron.Schedule that yields a single activation. A past instant
// still activates, immediately.
type once struct {
	at   time.Time
	used bool
}

func (o *once) Next(time.Time) time.Time {
	if o.used {
		return time.Time{}
	}
	o.used = true
	return o.at
}

// cronLogger routes cron's own logging through the application logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}

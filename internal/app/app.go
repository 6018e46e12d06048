// Package app wires the API client, session handling and reminders into the
// flows the command line drives.
package app

import (
	"context"
	"sync"
	"time"

	appLog "civiccircle/internal/log"
	"civiccircle/internal/model"
	"civiccircle/internal/reminder"
	"civiccircle/internal/session"
)

const (
	// JoinReminderTitle is the title of every reminder created by JoinEvent.
	JoinReminderTitle = "Event Reminder"

	joinReminderLead   = 15 * time.Second
	joinReminderPrefix = "Don't forget about your event: "
)

// EventJoiner is the part of the API JoinEvent needs.
type EventJoiner interface {
	JoinEvent(ctx context.Context, id string) (string, error)
}

// Deps are the collaborators of an App.
type Deps struct {
	Events    EventJoiner
	Scheduler *reminder.Scheduler
	Bootstrap session.Bootstrap
	// Location is where event dates are interpreted. Nil means time.Local.
	Location *time.Location
	Now      func() time.Time
}

// App runs network work in the background and delivers every result on
// its Loop.
type App struct {
	loop      *Loop
	events    EventJoiner
	scheduler *reminder.Scheduler
	bootstrap session.Bootstrap
	loc       *time.Location
	now       func() time.Time
	wg        sync.WaitGroup
}

func New(d Deps) *App {
	a := &App{
		loop:      NewLoop(),
		events:    d.Events,
		scheduler: d.Scheduler,
		bootstrap: d.Bootstrap,
		loc:       d.Location,
		now:       d.Now,
	}
	if a.loc == nil {
		a.loc = time.Local
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// Loop returns the loop callbacks are delivered on.
func (a *App) Loop() *Loop { return a.loop }

// Wait blocks until every background task has finished.
func (a *App) Wait() { a.wg.Wait() }

// Bootstrap picks the launch route. Errors are logged; the route is always
// usable.
func (a *App) Bootstrap(ctx context.Context) session.Route {
	route, err := a.bootstrap.Run(ctx)
	if err != nil {
		appLog.Error("app: bootstrap failed", err, "route", route.String())
	}
	return route
}

// Go runs fn in the background and posts done with its error on the loop.
func (a *App) Go(ctx context.Context, fn func(context.Context) error, done func(error)) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		err := fn(ctx)
		if done != nil {
			a.loop.Post(func() { done(err) })
		}
	}()
}

// Call is Go for functions that return a value.
func Call[T any](ctx context.Context, a *App, fn func(context.Context) (T, error), done func(T, error)) {
	var v T
	a.Go(ctx, func(ctx context.Context) error {
		var err error
		v, err = fn(ctx)
		return err
	}, func(err error) {
		if done != nil {
			done(v, err)
		}
	})
}

// JoinResult is the outcome of JoinEvent.
type JoinResult struct {
	EventID string
	// Message is the server's confirmation.
	Message string
	Err     error
	// Reminders is zero unless the join succeeded.
	Reminders reminder.Result
}

// JoinEvent joins ev in the background. After a successful join the event
// reminders are scheduled from 15 seconds from now until the event ends.
// done runs on the loop; reminder problems never turn a join into a failure.
func (a *App) JoinEvent(ctx context.Context, ev model.Event, done func(JoinResult)) {
	res := JoinResult{EventID: ev.ID}
	a.Go(ctx, func(ctx context.Context) error {
		msg, err := a.events.JoinEvent(ctx, ev.ID)
		if err != nil {
			return err
		}
		res.Message = msg
		res.Reminders = a.scheduleJoinReminders(ctx, ev)
		return nil
	}, func(err error) {
		res.Err = err
		if done != nil {
			done(res)
		}
	})
}

func (a *App) scheduleJoinReminders(ctx context.Context, ev model.Event) reminder.Result {
	if a.scheduler == nil {
		return reminder.Result{}
	}
	now := a.now().In(a.loc)
	start := now.Add(joinReminderLead)
	end, err := model.ParseTime(ev.EventDateTo)
	if err != nil {
		appLog.Error("app: unreadable event end; using now", err, "event", ev.ID, "eventDateTo", ev.EventDateTo)
		end = now
	}
	return a.scheduler.Schedule(ctx, JoinReminderTitle, joinReminderPrefix+ev.Title, start, end.In(a.loc))
}

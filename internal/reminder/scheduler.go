// Package reminder registers local notifications for an event window: one
// "starts soon" reminder shortly after the triggering action, then one per
// calendar day from the window start through its end.
package reminder

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/teambition/rrule-go"

	appLog "civiccircle/internal/log"
)

const (
	DefaultInitialDelay = 15 * time.Second
	DefaultMaxDaily     = 5000

	initialBodyPrefix = "Event starts soon: "
	dailyBodyPrefix   = "Daily reminder for the event: "
)

// AuthorizationOptions is the set of presentation capabilities requested
// from the platform.
type AuthorizationOptions uint8

const (
	OptionAlert AuthorizationOptions = 1 << iota
	OptionSound
	OptionBadge
)

func (o AuthorizationOptions) String() string {
	var parts []string
	if o&OptionAlert != 0 {
		parts = append(parts, "alert")
	}
	if o&OptionSound != 0 {
		parts = append(parts, "sound")
	}
	if o&OptionBadge != 0 {
		parts = append(parts, "badge")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Request is a single notification registration.
type Request struct {
	ID      string
	Title   string
	Body    string
	Trigger Trigger
}

// Platform is the notification service reminders are registered with.
// Once added, a request is owned by the platform; listing and cancelling
// are its business.
type Platform interface {
	// RequestAuthorization asks for permission to present notifications.
	// Calling it repeatedly must be safe.
	RequestAuthorization(ctx context.Context, opts AuthorizationOptions) (bool, error)
	Add(ctx context.Context, req Request) error
}

// Result summarizes one Schedule call.
type Result struct {
	Registered int
	Dropped    int
	// Truncated is set when the daily reminders hit the MaxDaily cap.
	Truncated bool
}

// Scheduler registers event reminders with a Platform.
type Scheduler struct {
	platform     Platform
	initialDelay time.Duration
	maxDaily     int
	newID        func() string
}

type Option func(*Scheduler)

// WithInitialDelay overrides the delay of the "starts soon" reminder.
func WithInitialDelay(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.initialDelay = d
		}
	}
}

// WithMaxDaily caps the number of daily reminders for one window.
func WithMaxDaily(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.maxDaily = n
		}
	}
}

// WithIDGenerator replaces the uuid-based identifier source.
func WithIDGenerator(f func() string) Option {
	return func(s *Scheduler) {
		if f != nil {
			s.newID = f
		}
	}
}

func New(p Platform, opts ...Option) *Scheduler {
	s := &Scheduler{
		platform:     p,
		initialDelay: DefaultInitialDelay,
		maxDaily:     DefaultMaxDaily,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule registers the reminders for an event window. It never fails the
// caller: authorization problems and rejected registrations are logged and
// counted in the Result.
func (s *Scheduler) Schedule(ctx context.Context, title, description string, start, end time.Time) Result {
	var res Result

	const opts = OptionAlert | OptionSound | OptionBadge
	granted, err := s.platform.RequestAuthorization(ctx, opts)
	switch {
	case err != nil:
		appLog.Error("reminder: authorization request failed", err, "options", opts.String())
	case !granted:
		appLog.Info("reminder: notification authorization denied")
	default:
		appLog.Debug("reminder: notification authorization granted")
	}

	s.add(ctx, &res, Request{
		Title:   title,
		Body:    initialBodyPrefix + description,
		Trigger: IntervalTrigger{After: s.initialDelay},
	})

	days, truncated := DailyTimes(start, end, s.maxDaily)
	if truncated {
		res.Truncated = true
		appLog.Error("reminder: daily reminders truncated", errors.New("max daily reminders reached"),
			"cap", s.maxDaily,
			"start", start.Format(time.RFC3339),
			"end", end.Format(time.RFC3339),
		)
	}
	for _, at := range days {
		s.add(ctx, &res, Request{
			Title:   title,
			Body:    dailyBodyPrefix + description,
			Trigger: CalendarTrigger{At: at},
		})
	}

	appLog.Info("reminder: scheduled event reminders",
		"title", title,
		"registered", res.Registered,
		"dropped", res.Dropped,
		"daily", len(days),
	)
	return res
}

func (s *Scheduler) add(ctx context.Context, res *Result, req Request) {
	req.ID = s.newID()
	if err := s.platform.Add(ctx, req); err != nil {
		res.Dropped++
		appLog.Error("reminder: registration dropped", err, "id", req.ID, "trigger", req.Trigger.String())
		return
	}
	res.Registered++
	appLog.Debug("reminder: registered", "id", req.ID, "trigger", req.Trigger.String())
}

// DailyTimes returns start, start+1 day, ... while not after end, stepping by
// calendar day in start's location so the local time of day survives DST
// changes. The second result reports whether limit cut the series short.
// end before start yields no times.
func DailyTimes(start, end time.Time, limit int) ([]time.Time, bool) {
	if start.IsZero() || end.Before(start) {
		return nil, false
	}
	if limit <= 0 {
		limit = DefaultMaxDaily
	}
	loc := start.Location()

	// The rule enumerates calendar days at noon, which no zone skips; start's
	// time of day is applied to each day afterwards.
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.DAILY,
		Dtstart: noon(start, loc),
		Until:   noon(end, loc),
		Count:   limit,
	})
	if err != nil {
		appLog.Error("reminder: failed to build daily rule", err)
		return nil, false
	}

	days := r.All()
	times := make([]time.Time, 0, len(days))
	for _, day := range days {
		at := atTimeOfDay(day, start)
		if at.After(end) {
			break
		}
		times = append(times, at)
	}

	truncated := false
	if len(times) == limit {
		last := days[len(days)-1]
		next := time.Date(last.Year(), last.Month(), last.Day()+1, 12, 0, 0, 0, loc)
		truncated = !atTimeOfDay(next, start).After(end)
	}
	return times, truncated
}

func noon(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, loc)
}

// atTimeOfDay returns the instant on day's date whose wall clock reads ref's
// time of day in ref's location. A time of day inside a spring-forward gap
// moves forward by the length of the gap, so 02:30 becomes 03:30 on the day
// clocks jump from 02:00 to 03:00.
func atTimeOfDay(day, ref time.Time) time.Time {
	loc := ref.Location()
	day = day.In(loc)
	y, mo, d := day.Date()
	h, mi, sec := ref.Clock()

	t := time.Date(y, mo, d, h, mi, sec, ref.Nanosecond(), loc)
	if th, tm, ts := t.Clock(); th == h && tm == mi && ts == sec {
		return t
	}

	// time.Date resolved the missing wall time with one of the two offsets
	// around the gap. Reading it with the earlier offset lands after the gap.
	wall := time.Date(y, mo, d, h, mi, sec, ref.Nanosecond(), time.UTC)
	_, off := t.Zone()
	a := wall.Add(-time.Duration(off) * time.Second)
	_, off = a.In(loc).Zone()
	b := wall.Add(-time.Duration(off) * time.Second)
	if b.After(a) {
		a = b
	}
	return a.In(loc)
}

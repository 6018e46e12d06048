package reminder

import (
	"fmt"
	"time"
)

// Trigger describes when a registered notification fires. Triggers are
// non-repeating.
type Trigger interface {
	// FireTime resolves the trigger against the registration instant.
	FireTime(registeredAt time.Time) time.Time
	fmt.Stringer
}

// IntervalTrigger fires once, After the registration instant.
type IntervalTrigger struct {
	After time.Duration
}

func (t IntervalTrigger) FireTime(registeredAt time.Time) time.Time {
	return registeredAt.Add(t.After)
}

func (t IntervalTrigger) String() string {
	return fmt.Sprintf("after %s", t.After)
}

// CalendarTrigger fires once when the wall clock in At's location reads At's
// hour, minute and second on At's calendar date.
type CalendarTrigger struct {
	At time.Time
}

// FireTime rebuilds the instant from wall-clock components so the trigger
// keeps its local time of day across DST changes.
func (t CalendarTrigger) FireTime(time.Time) time.Time {
	loc := t.At.Location()
	return time.Date(t.At.Year(), t.At.Month(), t.At.Day(), t.At.Hour(), t.At.Minute(), t.At.Second(), 0, loc)
}

func (t CalendarTrigger) String() string {
	return fmt.Sprintf("at %s", t.At.Format("2006-01-02 15:04:05 MST"))
}

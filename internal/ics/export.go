// Package ics converts pending reminders to and from iCalendar so they can
// be moved into a regular calendar application.
package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"

	"civiccircle/internal/notify"
)

const (
	// DefaultProdID identifies calendars written by this client.
	DefaultProdID = "-//Civic Circle//civic reminders//EN"

	propertyKind ical.ComponentProperty = "X-CIVIC-KIND"

	// reminderLength is the nominal duration of the exported VEVENT.
	reminderLength = 15 * time.Minute
)

// Export renders one VEVENT per entry, each with a DISPLAY alarm at its
// start. Entries keep their ids as UIDs so a re-import replaces rather than
// duplicates.
func Export(entries []notify.Entry, prodID string) string {
	if prodID == "" {
		prodID = DefaultProdID
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(prodID)

	for _, e := range entries {
		ev := cal.AddEvent(e.ID)
		stamp := e.CreatedAt
		if stamp.IsZero() {
			stamp = e.FireAt
		}
		ev.SetDtStampTime(stamp)
		ev.SetCreatedTime(stamp)
		ev.SetStartAt(e.FireAt)
		ev.SetEndAt(e.FireAt.Add(reminderLength))
		ev.SetSummary(e.Title)
		ev.SetDescription(e.Body)
		if e.Kind != "" {
			ev.AddProperty(propertyKind, e.Kind)
		}

		alarm := ev.AddAlarm()
		alarm.SetAction(ical.ActionDisplay)
		alarm.SetTrigger("PT0M")
		alarm.AddProperty(ical.ComponentPropertyDescription, e.Body)
	}

	return cal.Serialize()
}

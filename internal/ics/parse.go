package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "civiccircle/internal/log"
	"civiccircle/internal/notify"
)

// ParsedReminder is a VEVENT read back from a reminder calendar.
type ParsedReminder struct {
	UID         string
	Summary     string
	Description string
	Kind        string
	Start       time.Time
	// HasAlarm is set when the event carries at least one VALARM.
	HasAlarm bool
}

// Entry converts the reminder into a queue entry created at now.
func (p ParsedReminder) Entry(now time.Time) notify.Entry {
	kind := p.Kind
	if kind == "" {
		kind = notify.KindCalendar
	}
	return notify.Entry{
		ID:        p.UID,
		Title:     p.Summary,
		Body:      p.Description,
		Kind:      kind,
		FireAt:    p.Start,
		CreatedAt: now,
	}
}

// Parse reads every VEVENT of body. Events without a UID or DTSTART are
// logged and skipped; a body that is not a calendar at all is an error.
func Parse(body []byte) ([]ParsedReminder, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	out := make([]ParsedReminder, 0)
	for _, ve := range cal.Events() {
		r, perr := parseVEvent(ve)
		if perr != nil {
			appLog.Error("ics vevent parse failed", perr)
			continue
		}
		out = append(out, r)
	}

	appLog.Debug("ics parse completed", "event_count", len(out))
	return out, nil
}

func parseVEvent(ve *ical.VEvent) (ParsedReminder, error) {
	var out ParsedReminder

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || strings.TrimSpace(uidProp.Value) == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if ve.GetProperty(ical.ComponentPropertyDtStart) == nil {
		return out, errors.New("missing DTSTART")
	}
	start, err := ve.GetStartAt()
	if err != nil {
		return out, err
	}
	out.Start = start

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = unescapeText(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = unescapeText(p.Value)
	}
	if p := ve.GetProperty(propertyKind); p != nil {
		out.Kind = p.Value
	}

	for _, c := range ve.Components {
		if _, ok := c.(*ical.VAlarm); ok {
			out.HasAlarm = true
			break
		}
	}
	return out, nil
}

var textUnescaper = strings.NewReplacer(`\\`, `\`, `\,`, ",", `\;`, ";", `\n`, "\n", `\N`, "\n")

// unescapeText reverses RFC 5545 TEXT escaping.
func unescapeText(v string) string {
	return textUnescaper.Replace(v)
}

package model

import (
	"fmt"
	"strings"
	"time"
)

// Event is a joinable community event as served by the API.
// Dates are kept as the server's ISO-8601 strings; use Window to get instants.
type Event struct {
	ID                     string            `json:"_id"`
	Title                  string            `json:"title"`
	Description            string            `json:"description"`
	Images                 []string          `json:"images"`
	ContactNumber          string            `json:"contactNumber"`
	Venue                  string            `json:"venue"`
	EventDateFrom          string            `json:"eventDateFrom"`
	EventDateTo            string            `json:"eventDateTo"`
	EventFee               string            `json:"eventFee"`
	Status                 string            `json:"status"`
	Creator                Creator           `json:"creator"`
	Likes                  []string          `json:"likes"`
	Participants           []string          `json:"participants"`
	Comments               []string          `json:"comments"`
	CreatedAt              string            `json:"createdAt"`
	UpdatedAt              string            `json:"updatedAt"`
	TotalParticipantsRange ParticipantsRange `json:"totalParticipantsRange"`
}

// Creator identifies the author of an event.
type Creator struct {
	ID       string `json:"_id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

type ParticipantsRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Window parses the event's [EventDateFrom, EventDateTo] interval.
func (e Event) Window() (start, end time.Time, err error) {
	start, err = ParseTime(e.EventDateFrom)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("event %s: eventDateFrom: %w", e.ID, err)
	}
	end, err = ParseTime(e.EventDateTo)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("event %s: eventDateTo: %w", e.ID, err)
	}
	return start, end, nil
}

// HasParticipant reports whether userID joined the event.
func (e Event) HasParticipant(userID string) bool {
	for _, p := range e.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// EventDetails is the editable part of an event (create / update forms).
type EventDetails struct {
	Title                     string
	Description               string
	ContactNumber             string
	Venue                     string
	EventDateFrom             time.Time
	EventDateTo               time.Time
	TotalParticipantsRangeMin int
	TotalParticipantsRangeMax int
	EventFee                  string
}

// Fields flattens details into the form fields the API expects.
func (d EventDetails) Fields() map[string]string {
	return map[string]string{
		"title":                      d.Title,
		"description":                d.Description,
		"contactNumber":              d.ContactNumber,
		"venue":                      d.Venue,
		"eventDateFrom":              FormatTime(d.EventDateFrom),
		"eventDateTo":                FormatTime(d.EventDateTo),
		"totalParticipantsRange.min": fmt.Sprint(d.TotalParticipantsRangeMin),
		"totalParticipantsRange.max": fmt.Sprint(d.TotalParticipantsRangeMax),
		"eventFee":                   d.EventFee,
	}
}

// Forum is a discussion post with its comments.
type Forum struct {
	ID        string         `json:"_id"`
	Title     string         `json:"title"`
	Content   string         `json:"content"`
	Images    []string       `json:"images"`
	Creator   ForumCreator   `json:"creator"`
	Likes     []string       `json:"likes"`
	Comments  []ForumComment `json:"comments"`
	CreatedAt string         `json:"createdAt"`
	UpdatedAt string         `json:"updatedAt"`
}

type ForumCreator struct {
	ID    string `json:"_id"`
	Email string `json:"email"`
}

type ForumComment struct {
	Body    string       `json:"body"`
	Date    string       `json:"date"`
	Creator ForumCreator `json:"creator"`
}

// Notification is a server-side record about an event the user joined.
type Notification struct {
	ID        string `json:"_id"`
	UserID    string `json:"userId"`
	EventName string `json:"eventName"`
	EventDate string `json:"eventDate"`
	CreatedAt string `json:"createdAt"`
}

// User is the profile of the logged-in account.
type User struct {
	ID        string `json:"_id"`
	FullName  string `json:"fullName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// UserEvent is the summary of an event owned by the current user.
type UserEvent struct {
	ID               string   `json:"id"`
	FullName         string   `json:"fullname"`
	CreatedAt        string   `json:"createdAt"`
	RelativeTime     string   `json:"relativeTime"`
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	Images           []string `json:"images"`
	LikesCount       int      `json:"likesCount"`
	ParticipantCount int      `json:"participantCount"`
}

// Registration is the payload of a new account.
type Registration struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
}

// ParseTime parses an ISO-8601 timestamp as sent by the API, with or without
// fractional seconds.
func ParseTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, fmt.Errorf("empty time value")
	}
	return time.Parse(time.RFC3339, v)
}

// FormatTime renders t the way the API stores dates.
func FormatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// DisplayTime renders an API timestamp for humans in loc, returning the
// input unchanged when it cannot be parsed.
func DisplayTime(v string, loc *time.Location) string {
	t, err := ParseTime(v)
	if err != nil {
		return v
	}
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format("Jan 2, 2006 at 3:04 PM")
}

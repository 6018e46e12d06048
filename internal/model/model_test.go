package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventWindow(t *testing.T) {
	raw := `{"_id":"65a1b2c3d4e5f60718293a4b","title":"Cleanup","eventDateFrom":"2025-01-01T09:00:00.000Z","eventDateTo":"2025-01-03T09:00:00Z","participants":["u1"]}`
	var ev Event
	require.NoError(t, json.Unmarshal([]byte(raw), &ev))

	start, end, err := ev.Window()
	require.NoError(t, err)
	assert.True(t, start.Equal(time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)))
	assert.True(t, end.Equal(time.Date(2025, 1, 3, 9, 0, 0, 0, time.UTC)))
	assert.True(t, ev.HasParticipant("u1"))
	assert.False(t, ev.HasParticipant("u2"))
}

func TestEventWindowBadDate(t *testing.T) {
	ev := Event{ID: "x", EventDateFrom: "tomorrow", EventDateTo: "2025-01-03T09:00:00Z"}
	_, _, err := ev.Window()
	assert.ErrorContains(t, err, "eventDateFrom")
}

func TestDetailsFields(t *testing.T) {
	d := EventDetails{
		Title:                     "Cleanup",
		EventDateFrom:             time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC),
		TotalParticipantsRangeMin: 2,
		TotalParticipantsRangeMax: 20,
	}
	f := d.Fields()
	assert.Equal(t, "2025-01-01T09:00:00.000Z", f["eventDateFrom"])
	assert.Equal(t, "20", f["totalParticipantsRange.max"])
}

func TestDisplayTime(t *testing.T) {
	assert.Equal(t, "Jan 1, 2025 at 9:00 AM", DisplayTime("2025-01-01T09:00:00Z", time.UTC))
	assert.Equal(t, "not a date", DisplayTime("not a date", time.UTC))
}

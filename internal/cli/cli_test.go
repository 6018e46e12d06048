package cli

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"civiccircle/internal/api"
	"civiccircle/internal/ics"
	"civiccircle/internal/mockapi"
	"civiccircle/internal/notify"
	"civiccircle/internal/session"
)

type cliHarness struct {
	t       *testing.T
	dataDir string
	cfgPath string
	apiURL  string
}

func newHarness(t *testing.T) *cliHarness {
	t.Helper()
	srv, err := mockapi.New(mockapi.Options{SigningKey: "cli-test", BcryptCost: bcrypt.MinCost})
	require.NoError(t, err)
	_, err = srv.Seed()
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	cfg := fmt.Sprintf(`api_base_url: %s/api/
data_dir: %s
log_level: error
session:
  notice_delay: 10ms
notifications:
  enabled: true
`, ts.URL, dir)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))

	return &cliHarness{t: t, dataDir: dir, cfgPath: cfgPath, apiURL: ts.URL + "/api/"}
}

func (h *cliHarness) run(args ...string) (string, error) {
	h.t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", h.cfgPath}, args...))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func (h *cliHarness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	require.NoError(h.t, err, out)
	return out
}

func (h *cliHarness) client() *api.Client {
	h.t.Helper()
	c, err := api.New(h.apiURL, session.NewFileStore(filepath.Join(h.dataDir, "credentials.json")), api.Options{})
	require.NoError(h.t, err)
	return c
}

func TestJoinQueuesRemindersEndToEnd(t *testing.T) {
	h := newHarness(t)

	assert.Contains(t, h.mustRun("status"), "Not logged in")
	assert.Contains(t, h.mustRun("login", "--email", mockapi.DemoEmail, "--password", mockapi.DemoPassword), "Logged in")
	assert.Contains(t, h.mustRun("status"), "Demo Resident")

	list := h.mustRun("events", "list")
	assert.Contains(t, list, "Park cleanup")

	events, err := h.client().FetchEvents(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, events)
	id := events[0].ID

	assert.Contains(t, h.mustRun("events", "show", id), "Trinity Bellwoods Park")
	assert.Contains(t, h.mustRun("events", "join", id), "reminder(s) queued")

	queue := notify.NewQueue(filepath.Join(h.dataDir, "reminders.json"))
	entries, err := queue.List(context.Background())
	require.NoError(t, err)
	// One "starts soon" reminder plus at least one daily reminder.
	require.GreaterOrEqual(t, len(entries), 2)
	for _, en := range entries {
		assert.Equal(t, "Event Reminder", en.Title)
	}

	_, err = h.run("events", "join", id)
	require.Error(t, err)
	assert.Equal(t, "You have already joined this event", api.UserMessage(err))

	assert.Contains(t, h.mustRun("reminders", "list"), "Event starts soon")

	icsPath := filepath.Join(h.dataDir, "reminders.ics")
	h.mustRun("reminders", "export", "-o", icsPath)
	body, err := os.ReadFile(icsPath)
	require.NoError(t, err)
	parsed, err := ics.Parse(body)
	require.NoError(t, err)
	assert.Len(t, parsed, len(entries))

	assert.Contains(t, h.mustRun("reminders", "clear", "--yes"), fmt.Sprintf("Removed %d", len(entries)))
	assert.Contains(t, h.mustRun("reminders", "import", "--include-past", icsPath), fmt.Sprintf("Imported %d", len(entries)))
	again, err := queue.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, again, len(entries))

	_, err = h.run("reminders", "cancel", "no-such-id")
	assert.Error(t, err)
	assert.Contains(t, h.mustRun("reminders", "cancel", again[0].ID), "Cancelled")

	assert.Contains(t, h.mustRun("notifications"), "Park cleanup")
	assert.Contains(t, h.mustRun("events", "cancel", id), "Participation cancelled")

	h.mustRun("logout")
	_, err = h.run("events", "list")
	require.Error(t, err)
	assert.Equal(t, api.KindUnauthorized, api.KindOf(err))
}

func TestCreateUpdateDeleteEvent(t *testing.T) {
	h := newHarness(t)
	h.mustRun("login", "--email", mockapi.DemoEmail, "--password", mockapi.DemoPassword)

	out := h.mustRun("events", "create",
		"--title", "Library book swap",
		"--venue", "Branch library",
		"--contact", "4165550100",
		"--from", "2030-05-01 10:00",
		"--to", "2030-05-01 12:00",
		"--max", "20",
	)
	assert.Contains(t, out, "Created event")

	_, err := h.run("events", "create", "--title", "No dates")
	assert.Error(t, err)

	mine, err := h.client().FetchUserEvents(context.Background())
	require.NoError(t, err)
	var id string
	for _, ev := range mine {
		if ev.Title == "Library book swap" {
			id = ev.ID
		}
	}
	require.NotEmpty(t, id)

	assert.Contains(t, h.mustRun("events", "update", id, "--venue", "Main library"), "Updated Library book swap")
	ev, err := h.client().FetchEvent(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Main library", ev.Venue)
	assert.Equal(t, 20, ev.TotalParticipantsRange.Max)

	assert.Contains(t, h.mustRun("events", "mine"), "Library book swap")
	assert.Contains(t, h.mustRun("events", "delete", "--yes", id), "Deleted")
}

func TestForumCommands(t *testing.T) {
	h := newHarness(t)
	h.mustRun("login", "--email", mockapi.DemoEmail, "--password", mockapi.DemoPassword)

	assert.Contains(t, h.mustRun("forums", "list"), "Crosswalk on Dundas")
	h.mustRun("forums", "post", "--title", "Snow clearing", "--content", "Who shovels the laneway?")

	forums, err := h.client().FetchForums(context.Background())
	require.NoError(t, err)
	require.Len(t, forums, 2)
	id := forums[0].ID

	assert.Contains(t, h.mustRun("forums", "like", id), "Likes: 1")
	assert.Contains(t, h.mustRun("forums", "comment", id, "I", "can", "help"), "1 total")
	assert.Contains(t, h.mustRun("forums", "show", id), "I can help")
}

func TestRegisterRequiresFlagsWithoutTerminal(t *testing.T) {
	if isInteractive() {
		t.Skip("stdin is a terminal")
	}
	h := newHarness(t)
	_, err := h.run("register", "--name", "New Person")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--email is required")

	out := h.mustRun("register", "--name", "New Person", "--email", "new@example.com", "--phone", "4165550199", "--password", "secret1")
	assert.Contains(t, out, "User registered successfully")

	_, err = h.run("register", "--name", "X", "--email", "bad", "--phone", "4165550199", "--password", "secret1")
	assert.Error(t, err)
}

func TestParseInputTime(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2030-05-01T10:00:00Z", time.Date(2030, 5, 1, 10, 0, 0, 0, time.UTC)},
		{"2030-05-01 10:00", time.Date(2030, 5, 1, 10, 0, 0, 0, loc)},
		{"2030-05-01T10:00", time.Date(2030, 5, 1, 10, 0, 0, 0, loc)},
		{"2030-05-01", time.Date(2030, 5, 1, 0, 0, 0, 0, loc)},
	}
	for _, tt := range tests {
		got, err := parseInputTime(tt.in, loc)
		require.NoError(t, err, tt.in)
		assert.True(t, tt.want.Equal(got), tt.in)
	}
	_, err := parseInputTime("next tuesday", loc)
	assert.Error(t, err)
}

func TestImportRemindersFromURL(t *testing.T) {
	h := newHarness(t)
	body := ics.Export([]notify.Entry{{
		ID:     "5b0c8f8e-2f7a-4c1e-9d3b-7a6e5f4d3c2b",
		Title:  "Event Reminder",
		Body:   "Daily reminder for the event: Library book swap",
		Kind:   notify.KindCalendar,
		FireAt: time.Now().Add(48 * time.Hour),
	}}, "")
	cal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"cal-1"`)
		_, _ = w.Write([]byte(body))
	}))
	calURL := cal.URL + "/reminders.ics"

	assert.Contains(t, h.mustRun("reminders", "import", calURL), "Imported 1")

	cal.Close()
	out := h.mustRun("reminders", "import", calURL)
	assert.Contains(t, out, "cached copy")
	assert.Contains(t, out, "Imported 1")

	entries, err := notify.NewQueue(filepath.Join(h.dataDir, "reminders.json")).List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "5b0c8f8e-2f7a-4c1e-9d3b-7a6e5f4d3c2b", entries[0].ID)
}

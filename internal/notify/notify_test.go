package notify

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civiccircle/internal/reminder"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	return NewQueue(filepath.Join(t.TempDir(), "data", "reminders.json"))
}

type recordingDeliverer struct {
	mu  sync.Mutex
	got []Entry
}

func (r *recordingDeliverer) Deliver(_ context.Context, e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, e)
	return nil
}

func (r *recordingDeliverer) ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.got))
	for _, e := range r.got {
		out = append(out, e.ID)
	}
	return out
}

func TestQueuePersistence(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	entries, err := q.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	base := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, q.Add(ctx, Entry{ID: "b", Title: "t", FireAt: base.Add(time.Hour)}))
	require.NoError(t, q.Add(ctx, Entry{ID: "a", Title: "t", FireAt: base}))
	require.NoError(t, q.Add(ctx, Entry{ID: "c", Title: "t", FireAt: base.Add(2 * time.Hour)}))
	require.Error(t, q.Add(ctx, Entry{Title: "no id"}))

	reopened := NewQueue(q.Path())
	entries, err = reopened.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{entries[0].ID, entries[1].ID, entries[2].ID})

	info, err := os.Stat(q.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	due, err := reopened.Due(ctx, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, due, 2)

	removed, err := reopened.Remove(ctx, "b")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = reopened.Remove(ctx, "b")
	require.NoError(t, err)
	assert.False(t, removed)

	n, err := q.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	entries, err = q.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestQueueAddReplacesSameID(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)
	require.NoError(t, q.Add(ctx, Entry{ID: "x", Body: "old"}))
	require.NoError(t, q.Add(ctx, Entry{ID: "x", Body: "new"}))

	entries, err := q.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "new", entries[0].Body)
}

func TestQueueCorruptFile(t *testing.T) {
	q := newTestQueue(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(q.Path()), 0o700))
	require.NoError(t, os.WriteFile(q.Path(), []byte("{not json"), 0o600))

	_, err := q.List(context.Background())
	assert.ErrorContains(t, err, "decode reminder queue")
}

func TestCenterResolvesTriggers(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	q := newTestQueue(t)
	c := NewCenter(q, true, WithClock(func() time.Time { return now }))

	before := testutil.ToFloat64(remindersRegistered.WithLabelValues(KindCalendar))

	granted, err := c.RequestAuthorization(ctx, reminder.OptionAlert)
	require.NoError(t, err)
	assert.True(t, granted)

	require.NoError(t, c.Add(ctx, reminder.Request{ID: "soon", Title: "T", Body: "B",
		Trigger: reminder.IntervalTrigger{After: 15 * time.Second}}))
	at := time.Date(2025, 1, 2, 9, 30, 0, 0, time.UTC)
	require.NoError(t, c.Add(ctx, reminder.Request{ID: "daily", Title: "T", Body: "B",
		Trigger: reminder.CalendarTrigger{At: at}}))

	entries, err := q.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "soon", entries[0].ID)
	assert.Equal(t, KindInterval, entries[0].Kind)
	assert.True(t, entries[0].FireAt.Equal(now.Add(15*time.Second)))
	assert.Equal(t, KindCalendar, entries[1].Kind)
	assert.True(t, entries[1].FireAt.Equal(at))
	assert.True(t, entries[1].CreatedAt.Equal(now))

	assert.Equal(t, before+1, testutil.ToFloat64(remindersRegistered.WithLabelValues(KindCalendar)))
}

func TestCenterDisabledRejects(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)
	c := NewCenter(q, false)

	granted, err := c.RequestAuthorization(ctx, reminder.OptionAlert|reminder.OptionBadge)
	require.NoError(t, err)
	assert.False(t, granted)

	err = c.Add(ctx, reminder.Request{ID: "x", Trigger: reminder.IntervalTrigger{After: time.Second}})
	assert.ErrorIs(t, err, ErrNotAuthorized)

	entries, err := q.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCenterWithScheduler(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)
	s := reminder.New(NewCenter(q, true))

	start := time.Now().Add(time.Hour)
	res := s.Schedule(ctx, "Cleanup", "Park cleanup", start, start.AddDate(0, 0, 2))
	assert.Equal(t, 4, res.Registered)

	entries, err := q.List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}

func TestDispatcherSyncDeliversDueEntries(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)
	now := time.Now()
	require.NoError(t, q.Add(ctx, Entry{ID: "past", Title: "t", FireAt: now.Add(-time.Minute)}))
	require.NoError(t, q.Add(ctx, Entry{ID: "future", Title: "t", FireAt: now.Add(time.Hour)}))

	rec := &recordingDeliverer{}
	d := NewDispatcher(q, rec)
	require.NoError(t, d.Sync(ctx))

	assert.Equal(t, []string{"past"}, rec.ids())
	assert.Equal(t, 1, d.Scheduled())
	assert.Equal(t, float64(2), testutil.ToFloat64(remindersPending), "pending counts the queue before delivery")

	entries, err := q.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "future", entries[0].ID)

	// A second sync does not reschedule or redeliver.
	require.NoError(t, d.Sync(ctx))
	assert.Equal(t, 1, d.Scheduled())
	assert.Len(t, rec.ids(), 1)

	// Cancelling through the queue unschedules on the next sync.
	_, err = q.Remove(ctx, "future")
	require.NoError(t, err)
	require.NoError(t, d.Sync(ctx))
	assert.Equal(t, 0, d.Scheduled())
}

func TestDispatcherRunFiresOnTime(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := newTestQueue(t)
	require.NoError(t, q.Add(ctx, Entry{ID: "soon", Title: "t", FireAt: time.Now().Add(500 * time.Millisecond)}))
	require.NoError(t, q.Add(ctx, Entry{ID: "cancelled", Title: "t", FireAt: time.Now().Add(700 * time.Millisecond)}))

	rec := &recordingDeliverer{}
	d := NewDispatcher(q, rec, WithPoll(time.Hour), WithLocation(time.UTC))

	require.NoError(t, d.Sync(ctx))
	assert.Equal(t, 2, d.Scheduled())
	_, err := q.Remove(ctx, "cancelled")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool { return len(rec.ids()) == 1 }, 3*time.Second, 20*time.Millisecond)
	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, []string{"soon"}, rec.ids())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("dispatcher did not stop")
	}

	entries, err := q.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDispatcherDeliveryFailureStillClaims(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)
	require.NoError(t, q.Add(ctx, Entry{ID: "x", FireAt: time.Now().Add(-time.Second)}))

	before := testutil.ToFloat64(remindersDelivered.WithLabelValues("error"))
	d := NewDispatcher(q, DelivererFunc(func(context.Context, Entry) error { return errors.New("no display") }))
	require.NoError(t, d.Sync(ctx))

	entries, err := q.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, before+1, testutil.ToFloat64(remindersDelivered.WithLabelValues("error")))
}

func TestWriterDeliverer(t *testing.T) {
	var buf bytes.Buffer
	d := &WriterDeliverer{W: &buf, Loc: time.UTC}
	err := d.Deliver(context.Background(), Entry{
		Title:  "Event Reminder",
		Body:   "Event starts soon: Park cleanup",
		FireAt: time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, "[2025-01-01 09:00:00] Event Reminder: Event starts soon: Park cleanup\n", buf.String())
}

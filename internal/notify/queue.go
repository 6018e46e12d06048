// Package notify is the local notification platform reminders are
// registered with. Pending reminders live in a JSON queue file; a cron
// based dispatcher delivers them when they come due.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"
	"time"

	"civiccircle/internal/fsutil"
)

// Entry kinds, recorded so exports can tell the triggers apart.
const (
	KindInterval = "interval"
	KindCalendar = "calendar"
)

// Entry is one pending reminder.
type Entry struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Kind      string    `json:"kind"`
	FireAt    time.Time `json:"fire_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Due reports whether the entry should have fired by now.
func (e Entry) Due(now time.Time) bool {
	return !e.FireAt.After(now)
}

type queueFile struct {
	Reminders []Entry `json:"reminders"`
}

// Queue persists pending entries in a single JSON file. Each mutation
// rewrites the file atomically so concurrent readers in other processes
// never observe a partial write.
type Queue struct {
	path string
	mu   sync.Mutex
}

func NewQueue(path string) *Queue {
	return &Queue{path: path}
}

// Path returns the backing file location.
func (q *Queue) Path() string { return q.path }

// Add appends e. An entry with the same ID is replaced.
func (q *Queue) Add(_ context.Context, e Entry) error {
	if e.ID == "" {
		return errors.New("notify: entry id is empty")
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	entries, err := q.load()
	if err != nil {
		return err
	}
	replaced := false
	for i := range entries {
		if entries[i].ID == e.ID {
			entries[i] = e
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, e)
	}
	return q.save(entries)
}

// List returns all pending entries ordered by fire time.
func (q *Queue) List(_ context.Context) ([]Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries, err := q.load()
	if err != nil {
		return nil, err
	}
	sortEntries(entries)
	return entries, nil
}

// Due returns the entries whose fire time is not after now.
func (q *Queue) Due(ctx context.Context, now time.Time) ([]Entry, error) {
	entries, err := q.List(ctx)
	if err != nil {
		return nil, err
	}
	due := entries[:0]
	for _, e := range entries {
		if e.Due(now) {
			due = append(due, e)
		}
	}
	return due, nil
}

// Remove deletes the entry with the given id and reports whether it existed.
func (q *Queue) Remove(_ context.Context, id string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries, err := q.load()
	if err != nil {
		return false, err
	}
	kept := entries[:0]
	found := false
	for _, e := range entries {
		if e.ID == id {
			found = true
			continue
		}
		kept = append(kept, e)
	}
	if !found {
		return false, nil
	}
	return true, q.save(kept)
}

// Clear removes every entry and returns how many there were.
func (q *Queue) Clear(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries, err := q.load()
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}
	return len(entries), q.save(nil)
}

func (q *Queue) load() ([]Entry, error) {
	data, err := os.ReadFile(q.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read reminder queue: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var f queueFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode reminder queue %s: %w", q.path, err)
	}
	return f.Reminders, nil
}

func (q *Queue) save(entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.MarshalIndent(queueFile{Reminders: entries}, "", "  ")
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(q.path, data); err != nil {
		return fmt.Errorf("write reminder queue: %w", err)
	}
	return nil
}

func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].FireAt.Equal(entries[j].FireAt) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].FireAt.Before(entries[j].FireAt)
	})
}

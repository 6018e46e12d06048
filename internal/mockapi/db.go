package mockapi

import (
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"civiccircle/internal/model"
)

type account struct {
	user model.User
	hash string
}

// db holds all server state in memory. Values handed out are copies.
type db struct {
	mu sync.RWMutex

	users   map[string]*account
	byEmail map[string]string

	events     map[string]*model.Event
	eventOrder []string

	forums     map[string]*model.Forum
	forumOrder []string

	notifications []model.Notification
	otps          map[string]string
}

func newDB() *db {
	return &db{
		users:   make(map[string]*account),
		byEmail: make(map[string]string),
		events:  make(map[string]*model.Event),
		forums:  make(map[string]*model.Forum),
		otps:    make(map[string]string),
	}
}

func newID() string {
	return primitive.NewObjectID().Hex()
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (d *db) user(id string) (model.User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.users[id]
	if !ok {
		return model.User{}, false
	}
	return a.user, true
}

func (d *db) accountByEmail(email string) (account, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.byEmail[emailKey(email)]
	if !ok {
		return account{}, false
	}
	return *d.users[id], true
}

// addUser stores a new account. It reports false if the email is taken.
func (d *db) addUser(u model.User, hash string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := emailKey(u.Email)
	if _, exists := d.byEmail[key]; exists {
		return false
	}
	d.users[u.ID] = &account{user: u, hash: hash}
	d.byEmail[key] = u.ID
	return true
}

func (d *db) setPassword(userID, hash string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if a, ok := d.users[userID]; ok {
		a.hash = hash
	}
}

func (d *db) setOTP(email, otp string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.otps[emailKey(email)] = otp
}

func (d *db) otp(email string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	otp, ok := d.otps[emailKey(email)]
	return otp, ok
}

// consumeOTP checks and removes a pending one-time password.
func (d *db) consumeOTP(email, otp string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := emailKey(email)
	want, ok := d.otps[key]
	if !ok || want != strings.TrimSpace(otp) {
		return false
	}
	delete(d.otps, key)
	return true
}

func (d *db) listEvents() []model.Event {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]model.Event, 0, len(d.eventOrder))
	for _, id := range d.eventOrder {
		out = append(out, copyEvent(*d.events[id]))
	}
	return out
}

func (d *db) event(id string) (model.Event, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ev, ok := d.events[id]
	if !ok {
		return model.Event{}, false
	}
	return copyEvent(*ev), true
}

func (d *db) putEvent(ev model.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.events[ev.ID]; !exists {
		d.eventOrder = append(d.eventOrder, ev.ID)
	}
	stored := copyEvent(ev)
	d.events[ev.ID] = &stored
}

func (d *db) deleteEvent(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.events, id)
	d.eventOrder = removeString(d.eventOrder, id)
}

// updateEvent applies fn to the stored event under the write lock.
func (d *db) updateEvent(id string, fn func(ev *model.Event) error) (model.Event, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ev, ok := d.events[id]
	if !ok {
		return model.Event{}, false, nil
	}
	if err := fn(ev); err != nil {
		return model.Event{}, true, err
	}
	return copyEvent(*ev), true, nil
}

func (d *db) listForums() []model.Forum {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]model.Forum, 0, len(d.forumOrder))
	for i := len(d.forumOrder) - 1; i >= 0; i-- {
		out = append(out, copyForum(*d.forums[d.forumOrder[i]]))
	}
	return out
}

func (d *db) forum(id string) (model.Forum, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	f, ok := d.forums[id]
	if !ok {
		return model.Forum{}, false
	}
	return copyForum(*f), true
}

func (d *db) putForum(f model.Forum) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.forums[f.ID]; !exists {
		d.forumOrder = append(d.forumOrder, f.ID)
	}
	stored := copyForum(f)
	d.forums[f.ID] = &stored
}

func (d *db) updateForum(id string, fn func(f *model.Forum)) (model.Forum, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, ok := d.forums[id]
	if !ok {
		return model.Forum{}, false
	}
	fn(f)
	return copyForum(*f), true
}

func (d *db) addNotification(n model.Notification) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notifications = append(d.notifications, n)
}

func (d *db) notificationsFor(userID string) []model.Notification {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]model.Notification, 0)
	for i := len(d.notifications) - 1; i >= 0; i-- {
		if d.notifications[i].UserID == userID {
			out = append(out, d.notifications[i])
		}
	}
	return out
}

func copyEvent(ev model.Event) model.Event {
	ev.Images = append([]string(nil), ev.Images...)
	ev.Likes = append([]string{}, ev.Likes...)
	ev.Participants = append([]string{}, ev.Participants...)
	ev.Comments = append([]string{}, ev.Comments...)
	return ev
}

func copyForum(f model.Forum) model.Forum {
	f.Images = append([]string(nil), f.Images...)
	f.Likes = append([]string{}, f.Likes...)
	f.Comments = append([]model.ForumComment{}, f.Comments...)
	return f
}

// toggle adds v to list, or removes it if present.
func toggle(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return removeString(list, v)
		}
	}
	return append(list, v)
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func removeString(list []string, v string) []string {
	out := list[:0]
	for _, x := range list {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

package mockapi

import (
	"errors"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	appLog "civiccircle/internal/log"
	"civiccircle/internal/model"
)

const maxUploadBytes = 10 << 20

var (
	errAlreadyJoined = errors.New("You have already joined this event")
	errNotJoined     = errors.New("You have not joined this event")
	errEventFull     = errors.New("This event is full")
)

func (s *Server) handleListEvents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.db.listEvents())
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	ev, found := s.db.event(id)
	if !found {
		writeError(w, http.StatusNotFound, "Event not found")
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	u, ok := s.db.user(currentUser(r))
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unknown user")
		return
	}
	var ev model.Event
	if err := s.applyEventForm(r, &ev); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := model.FormatTime(s.opts.Now())
	ev.ID = newID()
	ev.Status = "upcoming"
	ev.Creator = model.Creator{ID: u.ID, FullName: u.FullName, Email: u.Email}
	ev.Likes = []string{}
	ev.Participants = []string{}
	ev.Comments = []string{}
	ev.CreatedAt = now
	ev.UpdatedAt = now
	s.db.putEvent(ev)

	appLog.Info("mockapi: event created", "id", ev.ID, "title", ev.Title)
	writeJSON(w, http.StatusCreated, ev)
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	ev, found := s.db.event(id)
	if !found {
		writeError(w, http.StatusNotFound, "Event not found")
		return
	}
	if ev.Creator.ID != currentUser(r) {
		writeError(w, http.StatusForbidden, "Only the creator can edit this event")
		return
	}
	if err := s.applyEventForm(r, &ev); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ev.UpdatedAt = model.FormatTime(s.opts.Now())
	s.db.putEvent(ev)
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	ev, found := s.db.event(id)
	if !found {
		writeError(w, http.StatusNotFound, "Event not found")
		return
	}
	if ev.Creator.ID != currentUser(r) {
		writeError(w, http.StatusForbidden, "Only the creator can delete this event")
		return
	}
	s.db.deleteEvent(id)
	writeMessage(w, http.StatusOK, "Event deleted")
}

func (s *Server) handleLikeEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	userID := currentUser(r)
	ev, found, _ := s.db.updateEvent(id, func(ev *model.Event) error {
		ev.Likes = toggle(ev.Likes, userID)
		return nil
	})
	if !found {
		writeError(w, http.StatusNotFound, "Event not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"likes": len(ev.Likes)})
}

func (s *Server) handleJoinEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	userID := currentUser(r)
	ev, found, err := s.db.updateEvent(id, func(ev *model.Event) error {
		if ev.HasParticipant(userID) {
			return errAlreadyJoined
		}
		if limit := ev.TotalParticipantsRange.Max; limit > 0 && len(ev.Participants) >= limit {
			return errEventFull
		}
		ev.Participants = append(ev.Participants, userID)
		return nil
	})
	switch {
	case !found:
		writeError(w, http.StatusNotFound, "Event not found")
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.db.addNotification(model.Notification{
		ID:        newID(),
		UserID:    userID,
		EventName: ev.Title,
		EventDate: ev.EventDateFrom,
		CreatedAt: model.FormatTime(s.opts.Now()),
	})
	writeMessage(w, http.StatusOK, "Successfully joined the event")
}

func (s *Server) handleCancelEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	userID := currentUser(r)
	_, found, err := s.db.updateEvent(id, func(ev *model.Event) error {
		if !ev.HasParticipant(userID) {
			return errNotJoined
		}
		ev.Participants = removeString(ev.Participants, userID)
		return nil
	})
	switch {
	case !found:
		writeError(w, http.StatusNotFound, "Event not found")
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeMessage(w, http.StatusOK, "Participation cancelled")
	}
}

func (s *Server) handleUserEvents(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r)
	now := s.opts.Now()
	out := make([]model.UserEvent, 0)
	for _, ev := range s.db.listEvents() {
		if ev.Creator.ID != userID {
			continue
		}
		rel := ""
		if created, err := model.ParseTime(ev.CreatedAt); err == nil {
			rel = humanize.RelTime(created, now, "ago", "from now")
		}
		out = append(out, model.UserEvent{
			ID:               ev.ID,
			FullName:         ev.Creator.FullName,
			CreatedAt:        ev.CreatedAt,
			RelativeTime:     rel,
			Title:            ev.Title,
			Description:      ev.Description,
			Images:           ev.Images,
			LikesCount:       len(ev.Likes),
			ParticipantCount: len(ev.Participants),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// applyEventForm copies the submitted form fields onto ev. Fields absent
// from the form keep their current values.
func (s *Server) applyEventForm(r *http.Request, ev *model.Event) error {
	if err := parseForm(r); err != nil {
		return err
	}
	set := func(dst *string, key string) {
		if vs, ok := r.PostForm[key]; ok && len(vs) > 0 {
			*dst = strings.TrimSpace(vs[0])
		}
	}
	set(&ev.Title, "title")
	set(&ev.Description, "description")
	set(&ev.ContactNumber, "contactNumber")
	set(&ev.Venue, "venue")
	set(&ev.EventFee, "eventFee")
	set(&ev.EventDateFrom, "eventDateFrom")
	set(&ev.EventDateTo, "eventDateTo")

	for key, dst := range map[string]*int{
		"totalParticipantsRange.min": &ev.TotalParticipantsRange.Min,
		"totalParticipantsRange.max": &ev.TotalParticipantsRange.Max,
	} {
		if v := r.PostFormValue(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return fmt.Errorf("invalid %s", key)
			}
			*dst = n
		}
	}

	if ev.Title == "" {
		return errors.New("Title is required")
	}
	start, end, err := ev.Window()
	if err != nil {
		return errors.New("Event dates must be ISO-8601 timestamps")
	}
	if end.Before(start) {
		return errors.New("Event end must not be before its start")
	}
	if pr := ev.TotalParticipantsRange; pr.Max > 0 && pr.Min > pr.Max {
		return errors.New("Minimum participants exceeds maximum")
	}

	if img, ok := uploadedImage(r, s.opts.Now()); ok {
		ev.Images = append([]string{img}, ev.Images...)
	}
	return nil
}

func parseForm(r *http.Request) error {
	err := r.ParseMultipartForm(maxUploadBytes)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	if err != nil {
		return errors.New("Invalid form data")
	}
	return nil
}

// uploadedImage records the name of an uploaded "image" part. Image bytes
// are not kept.
func uploadedImage(r *http.Request, now time.Time) (string, bool) {
	if r.MultipartForm == nil {
		return "", false
	}
	files := r.MultipartForm.File["image"]
	if len(files) == 0 {
		return "", false
	}
	name := path.Base(files[0].Filename)
	return fmt.Sprintf("/uploads/%d-%s", now.Unix(), name), true
}

// pathID reads and validates the {id} route parameter.
func pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid id")
		return "", false
	}
	return id, true
}

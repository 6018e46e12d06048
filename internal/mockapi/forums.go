package mockapi

import (
	"net/http"
	"strings"

	"civiccircle/internal/model"
)

func (s *Server) handleListForums(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.db.listForums())
}

func (s *Server) handleGetForum(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	f, found := s.db.forum(id)
	if !found {
		writeError(w, http.StatusNotFound, "Forum post not found")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleCreateForum(w http.ResponseWriter, r *http.Request) {
	u, ok := s.db.user(currentUser(r))
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unknown user")
		return
	}
	if err := parseForm(r); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	title := strings.TrimSpace(r.PostFormValue("title"))
	content := strings.TrimSpace(r.PostFormValue("content"))
	if title == "" || content == "" {
		writeError(w, http.StatusBadRequest, "Title and content are required")
		return
	}

	now := s.opts.Now()
	f := model.Forum{
		ID:        newID(),
		Title:     title,
		Content:   content,
		Images:    []string{},
		Creator:   model.ForumCreator{ID: u.ID, Email: u.Email},
		Likes:     []string{},
		Comments:  []model.ForumComment{},
		CreatedAt: model.FormatTime(now),
		UpdatedAt: model.FormatTime(now),
	}
	if img, ok := uploadedImage(r, now); ok {
		f.Images = append(f.Images, img)
	}
	s.db.putForum(f)
	writeJSON(w, http.StatusCreated, f)
}

func (s *Server) handleLikeForum(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	userID := currentUser(r)
	f, found := s.db.updateForum(id, func(f *model.Forum) {
		f.Likes = toggle(f.Likes, userID)
	})
	if !found {
		writeError(w, http.StatusNotFound, "Forum post not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"likes": len(f.Likes)})
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Body string `json:"body"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	body := strings.TrimSpace(req.Body)
	if body == "" {
		writeError(w, http.StatusBadRequest, "Comment body is required")
		return
	}
	u, _ := s.db.user(currentUser(r))
	comment := model.ForumComment{
		Body:    body,
		Date:    model.FormatTime(s.opts.Now()),
		Creator: model.ForumCreator{ID: u.ID, Email: u.Email},
	}
	f, found := s.db.updateForum(id, func(f *model.Forum) {
		f.Comments = append(f.Comments, comment)
		f.UpdatedAt = comment.Date
	})
	if !found {
		writeError(w, http.StatusNotFound, "Forum post not found")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

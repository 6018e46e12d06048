package mockapi

import (
	"time"

	"civiccircle/internal/model"
)

// Demo account created by Seed.
const (
	DemoEmail    = "demo@civiccircle.test"
	DemoPassword = "civic-demo"
)

// Seed adds a demo account, a few events relative to now and a forum post.
func (s *Server) Seed() (model.User, error) {
	u, err := s.Register(model.Registration{
		FullName: "Demo Resident",
		Email:    DemoEmail,
		Password: DemoPassword,
		Phone:    "4165550100",
		Address:  "100 Queen St W, Toronto",
	})
	if err != nil {
		return model.User{}, err
	}

	now := s.opts.Now()
	day := func(n, hour int) time.Time {
		y, m, d := now.AddDate(0, 0, n).Date()
		return time.Date(y, m, d, hour, 0, 0, 0, now.Location())
	}
	creator := model.Creator{ID: u.ID, FullName: u.FullName, Email: u.Email}
	stamp := model.FormatTime(now)

	events := []model.Event{
		{
			Title:                  "Park cleanup",
			Description:            "Bring gloves; bags are provided.",
			Venue:                  "Trinity Bellwoods Park",
			ContactNumber:          "4165550100",
			EventDateFrom:          model.FormatTime(day(1, 9)),
			EventDateTo:            model.FormatTime(day(3, 9)),
			EventFee:               "0",
			TotalParticipantsRange: model.ParticipantsRange{Min: 5, Max: 40},
		},
		{
			Title:                  "Community garden planning",
			Description:            "Pick the beds for this season.",
			Venue:                  "Library meeting room B",
			ContactNumber:          "4165550100",
			EventDateFrom:          model.FormatTime(day(7, 18)),
			EventDateTo:            model.FormatTime(day(7, 20)),
			EventFee:               "5",
			TotalParticipantsRange: model.ParticipantsRange{Min: 3, Max: 15},
		},
	}
	for _, ev := range events {
		ev.ID = newID()
		ev.Status = "upcoming"
		ev.Creator = creator
		ev.Images = []string{}
		ev.Likes = []string{}
		ev.Participants = []string{}
		ev.Comments = []string{}
		ev.CreatedAt = stamp
		ev.UpdatedAt = stamp
		s.db.putEvent(ev)
	}

	s.db.putForum(model.Forum{
		ID:        newID(),
		Title:     "Crosswalk on Dundas",
		Content:   "Should we petition for a signalled crossing near the school?",
		Images:    []string{},
		Creator:   model.ForumCreator{ID: u.ID, Email: u.Email},
		Likes:     []string{},
		Comments:  []model.ForumComment{},
		CreatedAt: stamp,
		UpdatedAt: stamp,
	})
	return u, nil
}

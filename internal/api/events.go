package api

import (
	"context"
	"net/http"
	"net/url"

	"civiccircle/internal/model"
)

// FetchEvents lists all events.
func (c *Client) FetchEvents(ctx context.Context) ([]model.Event, error) {
	var out []model.Event
	if err := c.call(ctx, "FetchEvents", c.authed, http.MethodGet, "events", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchEvent returns a single event.
func (c *Client) FetchEvent(ctx context.Context, id string) (model.Event, error) {
	const op = "FetchEvent"
	var ev model.Event
	if err := invalidID(op, id); err != nil {
		return ev, err
	}
	err := c.call(ctx, op, c.authed, http.MethodGet, eventPath(id, ""), nil, &ev)
	return ev, err
}

// CreateEvent publishes a new event with an optional image.
func (c *Client) CreateEvent(ctx context.Context, d model.EventDetails, image *Upload) (model.Event, error) {
	const op = "CreateEvent"
	var ev model.Event
	resp, err := c.doMultipart(ctx, http.MethodPost, "events", d.Fields(), image)
	if err != nil {
		return ev, transportError(op, err)
	}
	err = expect(op, resp, &ev)
	return ev, err
}

// UpdateEvent replaces the editable fields of an event the user owns.
func (c *Client) UpdateEvent(ctx context.Context, id string, d model.EventDetails, image *Upload) (model.Event, error) {
	const op = "UpdateEvent"
	var ev model.Event
	if err := invalidID(op, id); err != nil {
		return ev, err
	}
	resp, err := c.doMultipart(ctx, http.MethodPut, eventPath(id, ""), d.Fields(), image)
	if err != nil {
		return ev, transportError(op, err)
	}
	err = expect(op, resp, &ev)
	return ev, err
}

// DeleteEvent removes an event the user owns.
func (c *Client) DeleteEvent(ctx context.Context, id string) error {
	const op = "DeleteEvent"
	if err := invalidID(op, id); err != nil {
		return err
	}
	return c.call(ctx, op, c.authed, http.MethodDelete, eventPath(id, ""), nil, nil)
}

// LikeEvent toggles the user's like and returns the new like count.
func (c *Client) LikeEvent(ctx context.Context, id string) (int, error) {
	const op = "LikeEvent"
	if err := invalidID(op, id); err != nil {
		return 0, err
	}
	var out likesResponse
	if err := c.call(ctx, op, c.authed, http.MethodPost, eventPath(id, "like"), nil, &out); err != nil {
		return 0, err
	}
	return out.Likes, nil
}

// JoinEvent registers the user as a participant. Joining twice fails with
// KindConflict.
func (c *Client) JoinEvent(ctx context.Context, id string) (string, error) {
	const op = "JoinEvent"
	if err := invalidID(op, id); err != nil {
		return "", err
	}
	var out messageResponse
	if err := c.call(ctx, op, c.authed, http.MethodPost, eventPath(id, "join"), nil, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// CancelParticipation withdraws the user from an event. Cancelling an
// event that was never joined fails with KindConflict.
func (c *Client) CancelParticipation(ctx context.Context, id string) (string, error) {
	const op = "CancelParticipation"
	if err := invalidID(op, id); err != nil {
		return "", err
	}
	var out messageResponse
	if err := c.call(ctx, op, c.authed, http.MethodPost, eventPath(id, "cancel"), nil, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// FetchUserEvents lists the events created by the user.
func (c *Client) FetchUserEvents(ctx context.Context) ([]model.UserEvent, error) {
	var out []model.UserEvent
	if err := c.call(ctx, "FetchUserEvents", c.authed, http.MethodGet, "users/me/events", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func eventPath(id, action string) string {
	p := "events/" + url.PathEscape(id)
	if action != "" {
		p += "/" + action
	}
	return p
}

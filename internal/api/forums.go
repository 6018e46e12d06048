package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"civiccircle/internal/model"
)

// FetchForums lists forum posts, newest first as ordered by the server.
func (c *Client) FetchForums(ctx context.Context) ([]model.Forum, error) {
	var out []model.Forum
	if err := c.call(ctx, "FetchForums", c.authed, http.MethodGet, "forums", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchForum returns a post with its comments.
func (c *Client) FetchForum(ctx context.Context, id string) (model.Forum, error) {
	const op = "FetchForum"
	var f model.Forum
	if err := invalidID(op, id); err != nil {
		return f, err
	}
	err := c.call(ctx, op, c.authed, http.MethodGet, forumPath(id, ""), nil, &f)
	return f, err
}

// CreateForumPost publishes a post with an optional image.
func (c *Client) CreateForumPost(ctx context.Context, title, content string, image *Upload) (model.Forum, error) {
	const op = "CreateForumPost"
	var f model.Forum
	if strings.TrimSpace(title) == "" || strings.TrimSpace(content) == "" {
		return f, &Error{Op: op, Kind: KindInvalidInput, Err: errors.New("title and content are required")}
	}
	fields := map[string]string{"title": title, "content": content}
	resp, err := c.doMultipart(ctx, http.MethodPost, "forums", fields, image)
	if err != nil {
		return f, transportError(op, err)
	}
	err = expect(op, resp, &f)
	return f, err
}

// LikeForumPost toggles the user's like and returns the new like count.
func (c *Client) LikeForumPost(ctx context.Context, id string) (int, error) {
	const op = "LikeForumPost"
	if err := invalidID(op, id); err != nil {
		return 0, err
	}
	var out likesResponse
	if err := c.call(ctx, op, c.authed, http.MethodPost, forumPath(id, "like"), nil, &out); err != nil {
		return 0, err
	}
	return out.Likes, nil
}

// AddComment appends a comment and returns the updated post.
func (c *Client) AddComment(ctx context.Context, id, body string) (model.Forum, error) {
	const op = "AddComment"
	var f model.Forum
	if err := invalidID(op, id); err != nil {
		return f, err
	}
	if strings.TrimSpace(body) == "" {
		return f, &Error{Op: op, Kind: KindInvalidInput, Err: errors.New("comment is empty")}
	}
	payload := map[string]string{"body": body}
	err := c.call(ctx, op, c.authed, http.MethodPost, forumPath(id, "comments"), payload, &f)
	return f, err
}

func forumPath(id, action string) string {
	p := "forums/" + url.PathEscape(id)
	if action != "" {
		p += "/" + action
	}
	return p
}

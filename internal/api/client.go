// Package api is the client for the Civic Circle REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/oauth2"

	appLog "civiccircle/internal/log"
	"civiccircle/internal/session"
)

const defaultTimeout = 15 * time.Second

var (
	// ErrNotLoggedIn is returned for authenticated calls without a stored token.
	ErrNotLoggedIn = errors.New("not logged in")
	// ErrSessionExpired is returned for authenticated calls whose stored
	// token has expired. The request is not sent.
	ErrSessionExpired = errors.New("session expired")
)

// Client talks to the REST API. Anonymous calls (login, registration,
// password reset) go through a plain HTTP client; everything else goes
// through one that attaches the stored token as a bearer credential.
type Client struct {
	baseURL *url.URL
	store   session.Store
	checker session.Checker
	anon    *http.Client
	authed  *http.Client
}

// Options allows overriding the client's dependencies.
type Options struct {
	// HTTPClient provides the base transport and timeout.
	HTTPClient *http.Client
	// Checker decides token expiry. Zero value uses the system clock.
	Checker session.Checker
}

// New returns a client rooted at baseURL, e.g. "http://localhost:3000/api/".
// Tokens are read from and written to store under session.AuthTokenKey.
func New(baseURL string, store session.Store, opts Options) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("api: base URL is empty")
	}
	if store == nil {
		return nil, errors.New("api: credential store is nil")
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("api: parse base URL: %w", err)
	}

	anon := opts.HTTPClient
	if anon == nil {
		anon = &http.Client{Timeout: defaultTimeout}
	}
	c := &Client{
		baseURL: parsed,
		store:   store,
		checker: opts.Checker,
		anon:    anon,
	}
	c.authed = &http.Client{
		Timeout:       anon.Timeout,
		CheckRedirect: anon.CheckRedirect,
		Jar:           anon.Jar,
		Transport: &oauth2.Transport{
			Source: storeTokenSource{c: c},
			Base:   anon.Transport,
		},
	}
	return c, nil
}

// Store returns the credential store the client reads tokens from.
func (c *Client) Store() session.Store { return c.store }

// storeTokenSource reads the current token from the credential store on
// every request, so a login or logout takes effect immediately.
type storeTokenSource struct {
	c *Client
}

func (s storeTokenSource) Token() (*oauth2.Token, error) {
	tok, ok, err := s.c.store.Get(context.Background(), session.AuthTokenKey)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	if !ok || tok == "" {
		return nil, ErrNotLoggedIn
	}
	if s.c.checker.IsExpired(tok) {
		return nil, ErrSessionExpired
	}
	t := &oauth2.Token{AccessToken: tok, TokenType: "Bearer"}
	if exp, err := session.ExpiresAt(tok); err == nil {
		t.Expiry = exp
	}
	return t, nil
}

// Upload is an image attached to a create or update call.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ValidateID rejects ids that are not 24-hex-digit object ids.
func ValidateID(id string) error {
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return fmt.Errorf("invalid id %q: %w", id, err)
	}
	return nil
}

func (c *Client) resolve(path string) (string, error) {
	rel, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return "", err
	}
	return c.baseURL.ResolveReference(rel).String(), nil
}

func (c *Client) do(ctx context.Context, hc *http.Client, method, path, contentType string, body io.Reader) (*http.Response, error) {
	full, err := c.resolve(path)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, full, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		appLog.Debug("api request failed", "method", method, "path", path, "err", err)
		return nil, err
	}
	appLog.Debug("api request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start).String(),
	)
	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, hc *http.Client, method, path string, payload any) (*http.Response, error) {
	if payload == nil {
		return c.do(ctx, hc, method, path, "", nil)
	}
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		return nil, err
	}
	return c.do(ctx, hc, method, path, "application/json", buf)
}

func (c *Client) doMultipart(ctx context.Context, method, path string, fields map[string]string, image *Upload) (*http.Response, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	if image != nil && len(image.Data) > 0 {
		name := image.Filename
		if name == "" {
			name = "image.jpg"
		}
		ct := image.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, name))
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(image.Data); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return c.do(ctx, c.authed, method, path, w.FormDataContentType(), buf)
}

// transportError classifies a failed round trip.
func transportError(op string, err error) error {
	if errors.Is(err, ErrNotLoggedIn) || errors.Is(err, ErrSessionExpired) {
		return &Error{Op: op, Kind: KindUnauthorized, Err: err}
	}
	return wrapError(op, KindNetwork, err)
}

// serverMessage extracts {"error": ...} or {"message": ...} from a body.
func serverMessage(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200]
	}
	if strings.HasPrefix(text, "<") {
		return ""
	}
	return text
}

// statusError builds the error for a non-2xx response.
func statusError(op string, resp *http.Response) *Error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	msg := serverMessage(body)

	kind := KindUnexpectedStatus
	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		kind = KindUnauthorized
	case resp.StatusCode == http.StatusConflict, isConflictMessage(msg):
		kind = KindConflict
	}
	return &Error{
		Op:      op,
		Kind:    kind,
		Status:  resp.StatusCode,
		Message: msg,
		Err:     fmt.Errorf("unexpected status %d", resp.StatusCode),
	}
}

var conflictMessages = []string{
	"You have already joined this event",
	"You have not joined this event",
}

func isConflictMessage(msg string) bool {
	for _, m := range conflictMessages {
		if strings.EqualFold(strings.TrimSpace(msg), m) {
			return true
		}
	}
	return false
}

// expect checks the status and, when out is non-nil, decodes the body.
func expect(op string, resp *http.Response, out any) error {
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(op, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Op: op, Kind: KindInvalidResponse, Status: resp.StatusCode, Err: err}
	}
	return nil
}

// call performs a JSON request and decodes the answer into out.
func (c *Client) call(ctx context.Context, op string, hc *http.Client, method, path string, payload, out any) error {
	resp, err := c.doJSON(ctx, hc, method, path, payload)
	if err != nil {
		return transportError(op, err)
	}
	return expect(op, resp, out)
}

func invalidID(op, id string) error {
	if err := ValidateID(id); err != nil {
		return &Error{Op: op, Kind: KindInvalidInput, Err: err}
	}
	return nil
}

// messageResponse is the body of calls that only acknowledge.
type messageResponse struct {
	Message string `json:"message"`
}

// likesResponse is the body of the like endpoints.
type likesResponse struct {
	Likes int `json:"likes"`
}

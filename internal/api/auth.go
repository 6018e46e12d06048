package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	appLog "civiccircle/internal/log"
	"civiccircle/internal/model"
	"civiccircle/internal/session"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login exchanges credentials for a token and stores it. A 400 or 401
// answer is reported as KindInvalidCredentials.
func (c *Client) Login(ctx context.Context, email, password string) error {
	const op = "Login"
	resp, err := c.doJSON(ctx, c.anon, http.MethodPost, "auth/login", loginRequest{Email: email, Password: password})
	if err != nil {
		return transportError(op, err)
	}
	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
		apiErr := statusError(op, resp)
		resp.Body.Close()
		apiErr.Kind = KindInvalidCredentials
		return apiErr
	}

	var body loginResponse
	if err := expect(op, resp, &body); err != nil {
		return err
	}
	if strings.TrimSpace(body.Token) == "" {
		return &Error{Op: op, Kind: KindInvalidResponse, Status: resp.StatusCode, Err: errors.New("empty token")}
	}
	if err := c.store.Set(ctx, session.AuthTokenKey, body.Token); err != nil {
		return wrapError(op, KindUnknown, err)
	}
	appLog.Info("logged in", "email", email)
	return nil
}

// Logout forgets the stored token. The server keeps no session state.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.store.Remove(ctx, session.AuthTokenKey); err != nil {
		return wrapError("Logout", KindUnknown, err)
	}
	appLog.Info("logged out")
	return nil
}

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, reg model.Registration) (string, error) {
	var out messageResponse
	if err := c.call(ctx, "Register", c.anon, http.MethodPost, "auth/register", reg, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// RequestPasswordReset asks the server to mail a one-time password.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	var out messageResponse
	payload := map[string]string{"email": email}
	if err := c.call(ctx, "RequestPasswordReset", c.anon, http.MethodPost, "auth/request-reset", payload, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// VerifyOTP checks a one-time password and, when newPassword is not empty,
// sets it as the account password.
func (c *Client) VerifyOTP(ctx context.Context, email, otp, newPassword string) (string, error) {
	var out messageResponse
	payload := map[string]string{"email": email, "otp": otp}
	if newPassword != "" {
		payload["newPassword"] = newPassword
	}
	if err := c.call(ctx, "VerifyOTP", c.anon, http.MethodPost, "auth/validate-otp", payload, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// FetchProfile returns the logged-in user.
func (c *Client) FetchProfile(ctx context.Context) (model.User, error) {
	var u model.User
	err := c.call(ctx, "FetchProfile", c.authed, http.MethodGet, "users/me", nil, &u)
	return u, err
}

// FetchNotifications returns the server-side notifications of the user.
func (c *Client) FetchNotifications(ctx context.Context) ([]model.Notification, error) {
	var out []model.Notification
	if err := c.call(ctx, "FetchNotifications", c.authed, http.MethodGet, "notifications", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

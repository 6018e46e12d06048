package session

import (
	"context"
	"fmt"
	"time"

	appLog "civiccircle/internal/log"
)

// Route is the top-level entry point chosen at launch.
type Route int

const (
	// RouteLogin is the unauthenticated entry point.
	RouteLogin Route = iota
	// RouteMain is the authenticated entry point.
	RouteMain
)

func (r Route) String() string {
	switch r {
	case RouteMain:
		return "main"
	default:
		return "login"
	}
}

// SessionExpiredMessage is shown when a stored token turns out to be expired.
const SessionExpiredMessage = "Your session has expired. Please log in again."

const defaultNoticeDelay = 2 * time.Second

// Notifier surfaces a transient notice. The returned channel is closed when
// the user dismisses it; a nil channel means it cannot be dismissed.
type Notifier interface {
	Notice(ctx context.Context, msg string) <-chan struct{}
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, msg string) <-chan struct{}

func (f NotifierFunc) Notice(ctx context.Context, msg string) <-chan struct{} { return f(ctx, msg) }

// Bootstrap picks the launch route from the stored token.
type Bootstrap struct {
	Store    Store
	Checker  Checker
	Notifier Notifier

	// NoticeDelay is how long to wait for the notice to be dismissed.
	NoticeDelay time.Duration
	// SplashDelay is waited before the token is looked up.
	SplashDelay time.Duration
}

// Run returns RouteMain only for a present, unexpired token. An expired
// token is removed and the session-expired notice is shown before routing to
// login. Store failures route to login together with the error.
func (b Bootstrap) Run(ctx context.Context) (Route, error) {
	if err := sleep(ctx, b.SplashDelay); err != nil {
		return RouteLogin, err
	}

	token, ok, err := b.Store.Get(ctx, AuthTokenKey)
	if err != nil {
		return RouteLogin, fmt.Errorf("read stored token: %w", err)
	}
	if !ok || token == "" {
		appLog.Debug("no stored session token")
		return RouteLogin, nil
	}

	if !b.Checker.IsExpired(token) {
		appLog.Debug("stored session token is valid")
		return RouteMain, nil
	}

	appLog.Info("stored session token expired; clearing")
	var clearErr error
	if err := b.Store.Remove(ctx, AuthTokenKey); err != nil {
		clearErr = fmt.Errorf("clear expired token: %w", err)
		appLog.Error("failed to clear expired token", err)
	}

	b.notice(ctx)
	return RouteLogin, clearErr
}

// notice blocks until the notice is dismissed, the delay elapses or ctx ends.
func (b Bootstrap) notice(ctx context.Context) {
	delay := b.NoticeDelay
	if delay <= 0 {
		delay = defaultNoticeDelay
	}

	var dismissed <-chan struct{}
	if b.Notifier != nil {
		dismissed = b.Notifier.Notice(ctx, SessionExpiredMessage)
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-dismissed:
	case <-timer.C:
	case <-ctx.Done():
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

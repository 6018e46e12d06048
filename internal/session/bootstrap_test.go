package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	messages []string
	dismiss  bool
}

func (n *recordingNotifier) Notice(_ context.Context, msg string) <-chan struct{} {
	n.messages = append(n.messages, msg)
	ch := make(chan struct{})
	if n.dismiss {
		close(ch)
	}
	return ch
}

type failingStore struct{ MemoryStore }

func (f *failingStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("disk on fire")
}

func TestBootstrapRoutes(t *testing.T) {
	valid := makeToken(fmt.Sprintf(`{"exp":%d}`, fixedNow.Add(time.Hour).Unix()), true)
	expired := makeToken(fmt.Sprintf(`{"exp":%d}`, fixedNow.Add(-time.Hour).Unix()), true)

	tests := []struct {
		name        string
		token       *string
		wantRoute   Route
		wantNotice  bool
		wantCleared bool
	}{
		{name: "no token", token: nil, wantRoute: RouteLogin},
		{name: "valid token", token: &valid, wantRoute: RouteMain},
		{name: "expired token", token: &expired, wantRoute: RouteLogin, wantNotice: true, wantCleared: true},
		{name: "garbage token", token: ptr("garbage"), wantRoute: RouteLogin, wantNotice: true, wantCleared: true},
		{name: "empty token", token: ptr(""), wantRoute: RouteLogin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := NewMemoryStore()
			if tt.token != nil {
				require.NoError(t, store.Set(ctx, AuthTokenKey, *tt.token))
			}
			notifier := &recordingNotifier{dismiss: true}

			b := Bootstrap{Store: store, Checker: fixedChecker(), Notifier: notifier, NoticeDelay: time.Minute}
			route, err := b.Run(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.wantRoute, route)

			if tt.wantNotice {
				assert.Equal(t, []string{SessionExpiredMessage}, notifier.messages)
			} else {
				assert.Empty(t, notifier.messages)
			}

			_, present, _ := store.Get(ctx, AuthTokenKey)
			if tt.wantCleared {
				assert.False(t, present)
			}
			if tt.wantRoute == RouteMain {
				assert.True(t, present)
			}
		})
	}
}

func TestBootstrapNoticeTimesOut(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Set(ctx, AuthTokenKey, "AAA.eyJleHAiOjB9.CCC"))

	notifier := &recordingNotifier{dismiss: false}
	b := Bootstrap{Store: store, Checker: fixedChecker(), Notifier: notifier, NoticeDelay: 20 * time.Millisecond}

	start := time.Now()
	route, err := b.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, RouteLogin, route)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestBootstrapStoreErrorFailsClosed(t *testing.T) {
	b := Bootstrap{Store: &failingStore{}, Checker: fixedChecker()}
	route, err := b.Run(context.Background())
	assert.Equal(t, RouteLogin, route)
	assert.ErrorContains(t, err, "disk on fire")
}

func TestBootstrapSplashDelayHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := Bootstrap{Store: NewMemoryStore(), Checker: fixedChecker(), SplashDelay: time.Hour}
	route, err := b.Run(ctx)
	assert.Equal(t, RouteLogin, route)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "creds", "credentials.json")
	s := NewFileStore(path)

	_, ok, err := s.Get(ctx, AuthTokenKey)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, AuthTokenKey, "a.b.c"))

	reopened := NewFileStore(path)
	v, ok, err := reopened.Get(ctx, AuthTokenKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a.b.c", v)

	require.NoError(t, reopened.Remove(ctx, AuthTokenKey))
	require.NoError(t, reopened.Remove(ctx, AuthTokenKey))
	_, ok, err = s.Get(ctx, AuthTokenKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRouteString(t *testing.T) {
	assert.Equal(t, "main", RouteMain.String())
	assert.Equal(t, "login", RouteLogin.String())
}

func ptr(s string) *string { return &s }

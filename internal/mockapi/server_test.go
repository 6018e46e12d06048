package mockapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"civiccircle/internal/model"
	"civiccircle/internal/session"
)

func newTestServer(t *testing.T, now time.Time) *Server {
	t.Helper()
	s, err := New(Options{
		SigningKey: "test-key",
		BcryptCost: bcrypt.MinCost,
		TokenTTL:   time.Hour,
		Now:        func() time.Time { return now },
	})
	require.NoError(t, err)
	return s
}

func request(t *testing.T, s *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var out struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out.Error
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, time.Now())
	rec := request(t, s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestIssuedTokenCarriesExpiry(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	s := newTestServer(t, now)

	tok, err := s.IssueToken("65a1b2c3d4e5f60718293a4b")
	require.NoError(t, err)

	exp, err := session.ExpiresAt(tok)
	require.NoError(t, err)
	assert.True(t, exp.Equal(now.Add(time.Hour)))

	sub, err := s.parseToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "65a1b2c3d4e5f60718293a4b", sub)
}

func TestParseTokenRejects(t *testing.T) {
	now := time.Now()
	s := newTestServer(t, now)

	other, err := New(Options{SigningKey: "other-key", BcryptCost: bcrypt.MinCost, Now: func() time.Time { return now }})
	require.NoError(t, err)
	forged, err := other.IssueToken("65a1b2c3d4e5f60718293a4b")
	require.NoError(t, err)
	_, err = s.parseToken(forged)
	assert.Error(t, err)

	past := newTestServer(t, now.Add(-2*time.Hour))
	stale, err := past.IssueToken("65a1b2c3d4e5f60718293a4b")
	require.NoError(t, err)
	_, err = s.parseToken(stale)
	assert.Error(t, err)

	_, err = s.parseToken("not.a.token")
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	s := newTestServer(t, time.Now())
	hash, err := s.hashPassword("secret1")
	require.NoError(t, err)
	assert.True(t, checkPassword("secret1", hash))
	assert.False(t, checkPassword("secret2", hash))

	_, err = s.hashPassword(strings.Repeat("x", maxPasswordLen+1))
	assert.Error(t, err)
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	s := newTestServer(t, time.Now())

	rec := request(t, s, http.MethodGet, "/api/events", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Missing token", errorBody(t, rec))

	rec = request(t, s, http.MethodGet, "/api/events", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid or expired token", errorBody(t, rec))

	// Signed correctly but for an account that does not exist.
	tok, err := s.IssueToken("65a1b2c3d4e5f60718293a4b")
	require.NoError(t, err)
	rec = request(t, s, http.MethodGet, "/api/events", tok, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unknown user", errorBody(t, rec))
}

func TestLoginHandler(t *testing.T) {
	s := newTestServer(t, time.Now())
	_, err := s.Register(model.Registration{FullName: "A", Email: "a@example.com", Password: "secret1", Phone: "4165550123"})
	require.NoError(t, err)

	rec := request(t, s, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "a@example.com", "password": "bad"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid email or password", errorBody(t, rec))

	rec = request(t, s, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "a@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Emails are matched case-insensitively.
	rec = request(t, s, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "A@Example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.False(t, session.IsExpired(out.Token))
}

func TestRegisterValidation(t *testing.T) {
	s := newTestServer(t, time.Now())
	base := model.Registration{FullName: "A", Email: "a@example.com", Password: "secret1", Phone: "4165550123"}

	tests := []struct {
		name   string
		mutate func(*model.Registration)
		status int
		msg    string
	}{
		{"missing name", func(r *model.Registration) { r.FullName = " " }, http.StatusBadRequest, "Full name is required"},
		{"bad email", func(r *model.Registration) { r.Email = "nope" }, http.StatusBadRequest, "Invalid email address"},
		{"bad phone", func(r *model.Registration) { r.Phone = "12" }, http.StatusBadRequest, "Invalid phone number"},
		{"short password", func(r *model.Registration) { r.Password = "123" }, http.StatusBadRequest, "password must be at least 6 characters long"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := base
			tt.mutate(&reg)
			rec := request(t, s, http.MethodPost, "/api/auth/register", "", reg)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.msg, errorBody(t, rec))
		})
	}

	rec := request(t, s, http.MethodPost, "/api/auth/register", "", base)
	assert.Equal(t, http.StatusCreated, rec.Code)
	rec = request(t, s, http.MethodPost, "/api/auth/register", "", base)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "User already exists", errorBody(t, rec))
}

func TestOTPIsSingleUse(t *testing.T) {
	s := newTestServer(t, time.Now())
	_, err := s.Register(model.Registration{FullName: "A", Email: "a@example.com", Password: "secret1", Phone: "4165550123"})
	require.NoError(t, err)

	rec := request(t, s, http.MethodPost, "/api/auth/request-reset", "", map[string]string{"email": "missing@example.com"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = request(t, s, http.MethodPost, "/api/auth/request-reset", "", map[string]string{"email": "a@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	otp, ok := s.OTP("a@example.com")
	require.True(t, ok)

	rec = request(t, s, http.MethodPost, "/api/auth/validate-otp", "", map[string]string{"email": "a@example.com", "otp": otp})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = request(t, s, http.MethodPost, "/api/auth/validate-otp", "", map[string]string{"email": "a@example.com", "otp": otp})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid OTP", errorBody(t, rec))
}

func TestJoinFullEvent(t *testing.T) {
	s := newTestServer(t, time.Now())
	owner, err := s.Register(model.Registration{FullName: "Owner", Email: "o@example.com", Password: "secret1", Phone: "4165550123"})
	require.NoError(t, err)
	guest, err := s.Register(model.Registration{FullName: "Guest", Email: "g@example.com", Password: "secret1", Phone: "4165550124"})
	require.NoError(t, err)

	ev := model.Event{
		ID:                     newID(),
		Title:                  "Tiny",
		EventDateFrom:          "2025-01-01T09:00:00.000Z",
		EventDateTo:            "2025-01-01T10:00:00.000Z",
		Creator:                model.Creator{ID: owner.ID},
		TotalParticipantsRange: model.ParticipantsRange{Min: 1, Max: 1},
		Participants:           []string{owner.ID},
	}
	s.db.putEvent(ev)

	tok, err := s.IssueToken(guest.ID)
	require.NoError(t, err)
	rec := request(t, s, http.MethodPost, "/api/events/"+ev.ID+"/join", tok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "This event is full", errorBody(t, rec))

	rec = request(t, s, http.MethodPost, "/api/events/not-an-id/join", tok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid id", errorBody(t, rec))
}

func TestSeed(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	s := newTestServer(t, now)

	u, err := s.Seed()
	require.NoError(t, err)
	assert.Equal(t, DemoEmail, u.Email)

	events := s.db.listEvents()
	require.Len(t, events, 2)
	start, end, err := events[0].Window()
	require.NoError(t, err)
	assert.True(t, start.Equal(time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)))
	assert.True(t, end.Equal(time.Date(2025, 3, 13, 9, 0, 0, 0, time.UTC)))
	assert.Len(t, s.db.listForums(), 1)

	rec := request(t, s, http.MethodPost, "/api/auth/login", "", map[string]string{"email": DemoEmail, "password": DemoPassword})
	assert.Equal(t, http.StatusOK, rec.Code)

	_, err = s.Seed()
	assert.Error(t, err)
}

func TestAuthRateLimit(t *testing.T) {
	now := time.Now()
	s, err := New(Options{
		SigningKey: "test-key",
		BcryptCost: bcrypt.MinCost,
		AuthRate:   1,
		AuthBurst:  2,
		Now:        func() time.Time { return now },
	})
	require.NoError(t, err)

	body := map[string]string{"email": "a@example.com", "password": "x"}
	for i := 0; i < 2; i++ {
		rec := request(t, s, http.MethodPost, "/api/auth/login", "", body)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := request(t, s, http.MethodPost, "/api/auth/login", "", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Other clients have their own bucket.
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"a@example.com","password":"x"}`))
	req.Header.Set("X-Real-IP", "198.51.100.7")
	other := httptest.NewRecorder()
	s.Handler().ServeHTTP(other, req)
	assert.Equal(t, http.StatusUnauthorized, other.Code)

	// Routes outside /api/auth are not limited.
	rec = request(t, s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

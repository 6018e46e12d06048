// Package mockapi serves an in-memory imitation of the Civic Circle REST
// API for local development and tests.
package mockapi

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	appLog "civiccircle/internal/log"
)

const defaultTokenTTL = 24 * time.Hour

// Options configures a Server.
type Options struct {
	// SigningKey signs issued tokens. Empty means a random per-process key.
	SigningKey string
	// TokenTTL is the lifetime of issued tokens.
	TokenTTL time.Duration
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
	// AuthRate and AuthBurst bound requests per second to /api/auth per
	// client address. Zero means 5 per second with a burst of 10.
	AuthRate  float64
	AuthBurst int
	// Now overrides the clock.
	Now func() time.Time
}

// Server implements the REST endpoints the client uses.
type Server struct {
	opts    Options
	key     []byte
	db      *db
	limiter *ipLimiter
	router  chi.Router
}

func New(opts Options) (*Server, error) {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = defaultTokenTTL
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.AuthRate <= 0 {
		opts.AuthRate = defaultAuthRate
	}
	if opts.AuthBurst <= 0 {
		opts.AuthBurst = defaultAuthBurst
	}

	key := []byte(opts.SigningKey)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, err
		}
	}

	s := &Server{
		opts:    opts,
		key:     key,
		db:      newDB(),
		limiter: newIPLimiter(rate.Limit(opts.AuthRate), opts.AuthBurst, opts.Now),
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Use(s.limiter.middleware)
			r.Post("/login", s.handleLogin)
			r.Post("/register", s.handleRegister)
			r.Post("/request-reset", s.handleRequestReset)
			r.Post("/validate-otp", s.handleValidateOTP)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requireToken)

			r.Get("/users/me", s.handleProfile)
			r.Get("/users/me/events", s.handleUserEvents)
			r.Get("/notifications", s.handleNotifications)

			r.Get("/events", s.handleListEvents)
			r.Post("/events", s.handleCreateEvent)
			r.Get("/events/{id}", s.handleGetEvent)
			r.Put("/events/{id}", s.handleUpdateEvent)
			r.Delete("/events/{id}", s.handleDeleteEvent)
			r.Post("/events/{id}/like", s.handleLikeEvent)
			r.Post("/events/{id}/join", s.handleJoinEvent)
			r.Post("/events/{id}/cancel", s.handleCancelEvent)

			r.Get("/forums", s.handleListForums)
			r.Post("/forums", s.handleCreateForum)
			r.Get("/forums/{id}", s.handleGetForum)
			r.Post("/forums/{id}/like", s.handleLikeForum)
			r.Post("/forums/{id}/comments", s.handleAddComment)
		})
	})
	return r
}

// requestLogger logs one line per request through the application logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		appLog.Debug("mockapi request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).String(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

type ctxKey string

const userIDKey ctxKey = "mockapi_user_id"

// requireToken rejects requests without a valid bearer token and stores the
// caller's user id in the request context.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			writeError(w, http.StatusUnauthorized, "Missing token")
			return
		}
		userID, err := s.parseToken(raw)
		if err != nil {
			appLog.Debug("mockapi: token rejected", "err", err)
			writeError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		if _, ok := s.db.user(userID); !ok {
			writeError(w, http.StatusUnauthorized, "Unknown user")
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}

func currentUser(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}

// ListenAndServe serves s on addr until ctx is cancelled.
func ListenAndServe(ctx context.Context, addr string, s *Server) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting mock API server", "listen", "http://"+addr+"/api/")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		appLog.Info("stopping mock API server")
		return srv.Shutdown(shutdownCtx)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	type msgResp struct {
		Message string `json:"message"`
	}
	writeJSON(w, status, msgResp{Message: msg})
}

// decodeJSON reads a JSON request body into v, answering 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/middleware"
)

// Service is the subset of *authcore.Engine served over HTTP.
type Service interface {
	Register(ctx context.Context, username, email, password string) (*authcore.User, error)
	Login(ctx context.Context, identifier, password string, meta authcore.SessionMetadata) (*authcore.LoginResult, error)
	AuthenticateRequest(ctx context.Context, token string) (*authcore.Claims, error)
	Logout(ctx context.Context, sessionID string) error
	LogoutAll(ctx context.Context, userID string) (int, error)
	ActiveSessions(ctx context.Context, userID string) ([]authcore.SessionInfo, error)
	ChangePassword(ctx context.Context, userID, current, next, currentSessionID string) (int, error)
	LookupUser(ctx context.Context, userID string) (*authcore.User, error)
	Ping(ctx context.Context) error
}

// Options configures NewRouter. Every field is optional.
type Options struct {
	Logger *slog.Logger
	// Throttle limits requests per client IP on the unauthenticated endpoints.
	Throttle *middleware.Throttle
	// TrustProxy takes the client IP from X-Real-IP / X-Forwarded-For.
	TrustProxy bool
	// Metrics is mounted at GET /metrics when set.
	Metrics http.Handler
	// Now is the clock used for Retry-After. Defaults to time.Now.
	Now func() time.Time
}

// Handler holds the HTTP endpoints.
type Handler struct {
	service    Service
	logger     *slog.Logger
	trustProxy bool
	now        func() time.Time
}

// NewHandler binds the endpoints to service.
func NewHandler(service Service, opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Handler{
		service:    service,
		logger:     logger.With("module", "http"),
		trustProxy: opts.TrustProxy,
		now:        now,
	}
}

// NewRouter registers the routes and middleware stack.
func NewRouter(service Service, opts Options) http.Handler {
	h := NewHandler(service, opts)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(h.recoverer)
	r.Use(middleware.ClientMetadata(opts.TrustProxy))
	r.Use(h.requestLogger)

	r.Get("/healthz", h.healthz)
	r.Get("/readyz", h.readyz)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/auth/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if opts.Throttle != nil {
				r.Use(opts.Throttle.Middleware)
			}
			r.Post("/register", h.register)
			r.Post("/login", h.login)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Guard(service))
			r.Get("/me", h.me)
			r.Post("/logout", h.logout)
			r.Post("/logout-all", h.logoutAll)
			r.Get("/sessions", h.listSessions)
			r.Post("/password", h.changePassword)
		})
	})

	return r
}

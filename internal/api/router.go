package api

import (
	"net/http"

	"github.com/userhub/accounts/internal/auth"
	apperrors "github.com/userhub/accounts/internal/errors"
	"github.com/userhub/accounts/internal/health"
	"github.com/userhub/accounts/internal/logger"
	"github.com/userhub/accounts/internal/metrics"
	"github.com/userhub/accounts/internal/middleware"
	"github.com/userhub/accounts/internal/users"
)

// Deps are the handlers and shared components the router mounts.
type Deps struct {
	AuthHandlers   *auth.Handlers
	UserHandlers   *users.Handlers
	HealthHandlers *health.Handler
	Signer         *auth.Signer
	Metrics        *metrics.Metrics
	Logger         *logger.Logger
	AllowedOrigins []string
}

type Router struct {
	mux     *http.ServeMux
	handler http.Handler
	deps    Deps
}

func NewRouter(deps Deps) *Router {
	if deps.Metrics == nil {
		deps.Metrics = metrics.Default()
	}
	if deps.Logger == nil {
		deps.Logger = logger.Default().WithComponent("http")
	}

	r := &Router{
		mux:  http.NewServeMux(),
		deps: deps,
	}
	r.setupRoutes()

	r.handler = middleware.Chain(r.mux,
		middleware.RequestID,
		middleware.Logging(deps.Logger),
		middleware.Recoverer(deps.Logger),
		middleware.CORS(deps.AllowedOrigins),
		metrics.MetricsMiddleware(deps.Metrics),
	)
	return r
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

func (r *Router) setupRoutes() {
	if h := r.deps.HealthHandlers; h != nil {
		r.mux.HandleFunc("GET /health", h.HealthHandler)
		r.mux.HandleFunc("GET /health/live", h.LivenessHandler)
		r.mux.HandleFunc("GET /health/ready", h.ReadinessHandler)
	}
	r.mux.HandleFunc("GET /metrics", r.deps.Metrics.Handler())

	a := r.deps.AuthHandlers
	r.mux.HandleFunc("POST /api/auth/register", apperrors.HandleFunc(a.Register))
	r.mux.HandleFunc("POST /api/auth/login", apperrors.HandleFunc(a.Login))
	r.mux.Handle("POST /api/auth/refresh", r.withExpiredAuth(a.Refresh))
	r.mux.Handle("POST /api/auth/logout", r.withAuth(a.Logout))
	r.mux.Handle("GET /api/auth/profile", r.withAuth(a.GetProfile))
	r.mux.Handle("PATCH /api/auth/profile", r.withAuth(a.UpdateProfile))
	r.mux.Handle("PATCH /api/auth/password", r.withAuth(a.ChangePassword))

	u := r.deps.UserHandlers
	r.mux.Handle("GET /api/users", r.withAuth(u.List))
	r.mux.Handle("POST /api/users", r.withAuth(u.Create))
	r.mux.Handle("GET /api/users/{id}", r.withAuth(u.Get))
	r.mux.Handle("PATCH /api/users/{id}", r.withAuth(u.Update))
	r.mux.Handle("PATCH /api/users/{id}/password", r.withAuth(u.SetPassword))
	r.mux.Handle("DELETE /api/users/{id}", r.withAuth(u.Delete))
}

func (r *Router) withAuth(next apperrors.Handler) http.Handler {
	return auth.Middleware(r.deps.Signer)(apperrors.HandleFunc(next))
}

// withExpiredAuth accepts access tokens past their expiry, for the refresh
// route only.
func (r *Router) withExpiredAuth(next apperrors.Handler) http.Handler {
	return auth.MiddlewareAllowExpired(r.deps.Signer)(apperrors.HandleFunc(next))
}

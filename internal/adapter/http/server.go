package adapthttp

import (
	"context"
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"markme/internal/app"
	"markme/internal/clock"
)

// Limiter throttles attempts per key.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

// Services bundles the application services the HTTP adapter drives.
type Services struct {
	Attendance *app.AttendanceService
	Summary    *app.SummaryService
	Admin      *app.AdminService
	Sweeper    *app.AbsenceSweeper
	Auth       *app.AuthService
	Resolver   *clock.Resolver
}

// Server is the driving HTTP adapter that routes requests to application
// services.
type Server struct {
	attendance *app.AttendanceService
	summary    *app.SummaryService
	admin      *app.AdminService
	sweeper    *app.AbsenceSweeper
	authSvc    *app.AuthService
	resolver   *clock.Resolver
	oidcConfig OIDCConfig
	limiter    Limiter

	forwardAuthHeader string
	trustedProxies    []netip.Prefix

	checks     map[string]func(context.Context) error
	log        *slog.Logger
}

// New creates a Server wired to the given application services.
func New(svc Services, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	resolver := svc.Resolver
	if resolver == nil {
		resolver = clock.NewResolver(nil)
	}
	return &Server{
		attendance: svc.Attendance,
		summary:    svc.Summary,
		admin:      svc.Admin,
		sweeper:    svc.Sweeper,
		authSvc:    svc.Auth,
		resolver:   resolver,
		checks:     make(map[string]func(context.Context) error),
		log:        log,
	}
}

// WithOIDC enables single sign-on.
func (s *Server) WithOIDC(cfg OIDCConfig) *Server {
	s.oidcConfig = cfg
	return s
}

// WithForwardAuth trusts header as the authenticated user's email. When
// trusted is non-empty the header is only honoured from those networks.
func (s *Server) WithForwardAuth(header string, trusted []netip.Prefix) *Server {
	s.forwardAuthHeader = header
	s.trustedProxies = trusted
	return s
}

// WithLoginLimiter throttles login attempts per email and client address.
func (s *Server) WithLoginLimiter(l Limiter) *Server {
	s.limiter = l
	return s
}

// WithHealthCheck adds a dependency check reported by /api/health.
func (s *Server) WithHealthCheck(name string, check func(context.Context) error) *Server {
	s.checks[name] = check
	return s
}

// Handler returns the root http.Handler for the application.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /health", s.handleHealth)

	api.HandleFunc("POST /login", s.handleLogin)
	api.HandleFunc("POST /logout", s.handleLogout)
	api.HandleFunc("GET /auth/config", s.handleConfig)
	api.HandleFunc("GET /auth/sso/login", s.handleSSOLogin)
	api.HandleFunc("GET /auth/sso/callback", s.handleSSOCallback)
	api.Handle("GET /auth/me", s.authMiddleware(http.HandlerFunc(s.handleMe)))

	user := func(h http.HandlerFunc) http.Handler { return s.authMiddleware(h) }
	api.Handle("POST /attendance/signin", user(s.handleSignIn))
	api.Handle("POST /attendance/signout", user(s.handleSignOut))
	api.Handle("GET /attendance/today", user(s.handleToday))
	api.Handle("GET /attendance/week", user(s.handleWeek))
	api.Handle("GET /attendance/me", user(s.handleHistory))
	api.Handle("GET /attendance/summary", user(s.handleSummary))

	admin := func(h http.HandlerFunc) http.Handler { return s.authMiddleware(adminOnly(h)) }
	api.Handle("GET /admin/users", admin(s.handleListUsers))
	api.Handle("POST /admin/users", admin(s.handleCreateUser))
	api.Handle("PUT /admin/users/{id}", admin(s.handleUpdateUser))
	api.Handle("DELETE /admin/users/{id}", admin(s.handleDeleteUser))
	api.Handle("GET /admin/users/{id}/attendance", admin(s.handleUserAttendance))
	api.Handle("GET /admin/attendance", admin(s.handleListAttendance))
	api.Handle("POST /admin/attendance/mark", admin(s.handleMarkAttendance))
	api.Handle("PUT /admin/attendance/{id}", admin(s.handleEditSession))
	api.Handle("DELETE /admin/attendance/{id}", admin(s.handleDeleteSession))
	api.Handle("POST /admin/sweep", admin(s.handleSweep))

	root := http.NewServeMux()
	root.Handle("/api/", http.StripPrefix("/api", api))

	return s.loggingMiddleware(withNoCache(root))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			s.log.Warn("health check failed", "dependency", name, "error", err)
			deps[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "up"
	}
	writeJSON(w, status, map[string]any{"ok": status == http.StatusOK, "dependencies": deps})
}

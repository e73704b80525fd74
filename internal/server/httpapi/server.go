// Package httpapi exposes the authentication service over a JSON REST API.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ieazie/doc-extract/internal/authclient"
	"github.com/ieazie/doc-extract/internal/errs"
	"github.com/ieazie/doc-extract/internal/model"
	"github.com/ieazie/doc-extract/internal/service"
)

const maxBody = 1 << 16

// Server wires the auth service into HTTP handlers.
type Server struct {
	auth    service.AuthService
	log     *zap.Logger
	metrics *Metrics
}

// Options configure the router.
type Options struct {
	Logger *zap.Logger
	// Registry receives the API collectors and backs /metrics. Nil disables both.
	Registry *prometheus.Registry
	// Readiness is probed by /readyz.
	Readiness func(*http.Request) error
}

// New constructs the router with injected services.
func New(auth service.AuthService, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	var reg prometheus.Registerer
	if opts.Registry != nil {
		reg = opts.Registry
	}
	s := &Server{auth: auth, log: opts.Logger, metrics: NewMetrics(reg)}

	r := chi.NewRouter()
	r.Use(Logging(s.log, s.metrics), Recover(s.log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if opts.Readiness != nil {
			if err := opts.Readiness(r); err != nil {
				s.log.Warn("not ready", zap.Error(err))
				writeError(w, http.StatusServiceUnavailable, "not ready")
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	if opts.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{}))
	}

	r.Post(authclient.PathLogin, s.Login)
	r.Group(func(r chi.Router) {
		r.Use(Authenticate(auth))
		r.Get(authclient.PathMe, s.Me)
		r.Get(authclient.PathTenant, s.Tenant)
		r.Post(authclient.PathSwitchTenant, s.SwitchTenant)
	})
	return r
}

// Login authenticates a user and returns the access token and the user.
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var creds model.Credentials
	if err := readJSON(r, &creds); err != nil {
		s.metrics.LoginsTotal.WithLabelValues("invalid").Inc()
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}
	res, err := s.auth.Login(r.Context(), creds, r.RemoteAddr)
	if err != nil {
		s.metrics.LoginsTotal.WithLabelValues(loginResult(err)).Inc()
		s.fail(w, "login", err)
		return
	}
	s.metrics.LoginsTotal.WithLabelValues("success").Inc()
	writeJSON(w, http.StatusOK, res)
}

// Me returns the authenticated user.
func (s *Server) Me(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromCtx(r.Context())
	u, err := s.auth.CurrentUser(r.Context(), userID)
	if err != nil {
		s.fail(w, "me", err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// Tenant returns the tenant the user is working in.
func (s *Server) Tenant(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromCtx(r.Context())
	t, err := s.auth.CurrentTenant(r.Context(), userID)
	if err != nil {
		s.fail(w, "tenant", err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// SwitchTenant moves the user into another tenant.
func (s *Server) SwitchTenant(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromCtx(r.Context())
	var req authclient.SwitchTenantRequest
	if err := readJSON(r, &req); err != nil || req.TenantID == "" {
		s.metrics.TenantSwitchesTotal.WithLabelValues("invalid").Inc()
		writeError(w, http.StatusBadRequest, "tenant_id required")
		return
	}
	if err := s.auth.SwitchTenant(r.Context(), userID, req.TenantID); err != nil {
		s.metrics.TenantSwitchesTotal.WithLabelValues("rejected").Inc()
		s.fail(w, "switch tenant", err)
		return
	}
	s.metrics.TenantSwitchesTotal.WithLabelValues("success").Inc()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	code, msg := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.log.Error(op, zap.Error(err))
	}
	writeError(w, code, msg)
}

// statusFor maps service sentinels onto HTTP statuses.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errs.ErrInvalidInput):
		return http.StatusBadRequest, "invalid input"
	case errors.Is(err, errs.ErrUnauthorized):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, errs.ErrRateLimited):
		return http.StatusTooManyRequests, "too many attempts"
	case errors.Is(err, errs.ErrTenantSwitch) && errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound, "tenant not found"
	case errors.Is(err, errs.ErrTenantSwitch):
		return http.StatusForbidden, "tenant not accessible"
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound, "not found"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func loginResult(err error) string {
	switch {
	case errors.Is(err, errs.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, errs.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, errs.ErrInvalidInput):
		return "invalid"
	default:
		return "error"
	}
}

func readJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, authclient.ErrorResponse{Error: msg})
}

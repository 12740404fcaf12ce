// Package web serves the gallery JSON API.
package web

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hpungsan/showcase/internal/auth"
	"github.com/hpungsan/showcase/internal/config"
	"github.com/hpungsan/showcase/internal/errors"
	"github.com/hpungsan/showcase/internal/ops"
	"github.com/hpungsan/showcase/internal/telemetry"
)

// Options wires the server's collaborators. Lockout and Limiter are built
// from Config when nil; Telemetry and Logger are optional.
type Options struct {
	Service   *ops.Service
	Config    *config.Config
	Logger    *zap.Logger
	Telemetry *telemetry.Telemetry
	Lockout   *auth.Lockout
	Limiter   *rate.Limiter
}

// Server holds the HTTP handlers and their dependencies.
type Server struct {
	svc          *ops.Service
	logger       *zap.Logger
	telemetry    *telemetry.Telemetry
	auth         *auth.Middleware
	limiter      *rate.Limiter
	maxBodyBytes int64
}

// New builds a Server from opts.
func New(opts Options) *Server {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	lockout := opts.Lockout
	if lockout == nil {
		lockout = auth.NewLockout(cfg.LockoutAttempts, cfg.LockoutWindow())
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}

	s := &Server{
		svc:          opts.Service,
		logger:       logger.Named("web"),
		telemetry:    opts.Telemetry,
		limiter:      limiter,
		maxBodyBytes: cfg.MaxBodyBytes,
	}
	s.auth = auth.New(auth.Credentials{User: cfg.AdminUser, Password: cfg.AdminPassword}, lockout, logger, s.renderError)
	return s
}

// Handler returns the routed handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.accessLog)

	// Public reads.
	r.HandleFunc("/api/sketches", s.handleListSketches).Methods(http.MethodGet)
	r.HandleFunc("/api/folders", s.handleListFolders).Methods(http.MethodGet)
	r.HandleFunc("/api/gallery", s.handleGallery).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if s.telemetry != nil {
		r.Handle("/metrics", s.telemetry.Handler()).Methods(http.MethodGet)
	}

	// Admin routes: rate limit, then credentials.
	admin := func(h http.HandlerFunc) http.Handler {
		return s.rateLimit(s.limiter)(s.auth.Wrap(h))
	}
	r.Handle("/api/sketches", admin(s.handleCreateSketch)).Methods(http.MethodPost)
	r.Handle("/api/sketches/{slug}", admin(s.handleUpdateSketch)).Methods(http.MethodPatch)
	r.Handle("/api/sketches/{slug}", admin(s.handleDeleteSketch)).Methods(http.MethodDelete)
	r.Handle("/api/folders", admin(s.handleCreateFolder)).Methods(http.MethodPost)
	r.Handle("/api/folders/{id}", admin(s.handleUpdateFolder)).Methods(http.MethodPut)
	r.Handle("/api/folders/{id}", admin(s.handleDeleteFolder)).Methods(http.MethodDelete)
	r.Handle("/api/history", admin(s.handleHistory)).Methods(http.MethodGet)

	r.NotFoundHandler = s.accessLog(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		s.renderError(w, req, errors.NewNotFound("route", req.URL.Path))
	}))
	r.MethodNotAllowedHandler = s.accessLog(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		s.renderError(w, req, errors.NewMethodNotAllowed(req.Method, req.URL.Path))
	}))

	return requestID(securityHeaders(r))
}

// NewServer creates the HTTP server for the gallery API.
func NewServer(addr string, s *Server) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, srv *http.Server, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("showcase API listening", zap.String("addr", srv.Addr))
	if strings.HasPrefix(srv.Addr, ":") || strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "[::]") {
		logger.Warn("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server forced to shutdown", zap.Error(err))
			return err
		}
		logger.Info("server exited gracefully")
		return nil
	}
}

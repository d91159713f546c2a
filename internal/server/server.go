// Package server exposes the report resolver over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"golang.org/x/sync/errgroup"

	"github.com/campusinsight/sheetsql"
)

// Session cookie layout shared with the login front end.
const (
	SessionName = "sheetsql"
	RoleKey     = "role"
)

// Reporter resolves named reports. *sheetsql.Resolver satisfies it.
type Reporter interface {
	Resolve(ctx context.Context, view string, opts ...sheetsql.ReportOption) (*sheetsql.Result, error)
	ListViews() []string
}

// Config holds the server settings.
type Config struct {
	Reporter      Reporter
	Addr          string
	SessionSecret string
	// Roles maps a session role to its allowed reports; "*" allows all.
	// Empty disables the gate.
	Roles  map[string][]string
	Logger *slog.Logger
}

// Server serves report results as JSON.
type Server struct {
	reporter     Reporter
	addr         string
	sessionStore *sessions.CookieStore
	roles        map[string]map[string]bool
	logger       *slog.Logger
}

// NewServer creates a Server.
func NewServer(cfg Config) *Server {
	sessionStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	sessionStore.Options.Path = "/"
	sessionStore.Options.HttpOnly = true
	sessionStore.Options.SameSite = http.SameSiteLaxMode

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	roles := make(map[string]map[string]bool, len(cfg.Roles))
	for role, reports := range cfg.Roles {
		allowed := make(map[string]bool, len(reports))
		for _, name := range reports {
			allowed[name] = true
		}
		roles[role] = allowed
	}

	return &Server{
		reporter:     cfg.Reporter,
		addr:         cfg.Addr,
		sessionStore: sessionStore,
		roles:        roles,
		logger:       logger,
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.Recoverer,
	)

	r.Route("/api/reports", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Get("/{name}", s.handleReport)
	})
	return r
}

// Serve listens on the configured address until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		s.logger.Info("serving reports", slog.String("addr", s.addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down report server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"finitefield.org/issuetracker-web/internal/authform"
	custommw "finitefield.org/issuetracker-web/internal/httpserver/middleware"
	"finitefield.org/issuetracker-web/internal/home"
	"finitefield.org/issuetracker-web/internal/i18n"
	"finitefield.org/issuetracker-web/internal/platform/observability"
	"finitefield.org/issuetracker-web/public"
)

const (
	loginPath         = "/login"
	registerPath      = "/register"
	passwordHintsPath = "/register/password-hints"
	logoutPath        = "/logout"
)

// Config holds runtime options for the HTTP server.
type Config struct {
	Address      string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	Logger       *zap.Logger
	Metrics      *observability.Metrics
	Sessions     custommw.SessionStore
	Auth         *authform.Controller
	LoginFlavor  authform.Flavor
	Translations *i18n.Bundle
	Home         *home.Content
}

// New constructs the HTTP server with middleware stack and embedded assets.
func New(cfg Config) (*http.Server, error) {
	if cfg.Sessions == nil {
		return nil, errors.New("httpserver: session store is required")
	}
	if cfg.Auth == nil {
		return nil, errors.New("httpserver: auth controller is required")
	}
	if cfg.Translations == nil {
		return nil, errors.New("httpserver: translations are required")
	}
	if cfg.Home == nil {
		return nil, errors.New("httpserver: home content is required")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewMetrics()
	}

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(observability.InjectLoggerMiddleware(cfg.Logger))
	router.Use(observability.RequestLoggerMiddleware())
	router.Use(chimw.Recoverer)
	router.Use(chimw.Timeout(60 * time.Second))

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", cfg.Metrics.Handler())

	staticContent, err := public.StaticFS()
	if err != nil {
		return nil, fmt.Errorf("embed static: %w", err)
	}
	router.Handle("/public/static/*", http.StripPrefix("/public/static/", http.FileServer(http.FS(staticContent))))

	pages := pageBuilder{bundle: cfg.Translations}
	mountAppRoutes(router, routeOptions{
		Sessions:    cfg.Sessions,
		Environment: cfg.Environment,
		Bundle:      cfg.Translations,
		Auth:        newAuthHandlers(cfg.Auth, cfg.LoginFlavor, pages),
		Home:        newHomeHandlers(cfg.Home, pages),
	})

	return &http.Server{
		Addr:         cfg.Address,
		Handler:      router,
		ReadTimeout:  durationOr(cfg.ReadTimeout, 10*time.Second),
		WriteTimeout: durationOr(cfg.WriteTimeout, 30*time.Second),
		IdleTimeout:  durationOr(cfg.IdleTimeout, 60*time.Second),
	}, nil
}

type routeOptions struct {
	Sessions    custommw.SessionStore
	Environment string
	Bundle      *i18n.Bundle
	Auth        *authHandlers
	Home        *homeHandlers
}

func mountAppRoutes(router chi.Router, opts routeOptions) {
	router.Group(func(r chi.Router) {
		r.Use(custommw.HTMX())
		r.Use(custommw.Environment(opts.Environment))
		r.Use(custommw.NoStore())
		r.Use(custommw.Session(opts.Sessions))
		r.Use(custommw.CSRF(custommw.CSRFConfig{}))
		r.Use(custommw.Locale(opts.Bundle))

		r.Get("/", opts.Home.Root)

		r.Get(loginPath, opts.Auth.LoginForm)
		r.Post(loginPath, opts.Auth.LoginSubmit)
		r.Get(registerPath, opts.Auth.RegisterForm)
		r.Post(registerPath, opts.Auth.RegisterSubmit)
		RegisterFragment(r, passwordHintsPath, opts.Auth.PasswordHints)
		r.Post(logoutPath, opts.Auth.Logout)

		r.With(custommw.RequireUser(loginPath)).Get(authform.DashboardPath, opts.Home.Dashboard)
	})
}

// RegisterFragment registers a POST handler intended for htmx fragment rendering.
func RegisterFragment(r chi.Router, pattern string, handler http.HandlerFunc) {
	r.With(custommw.RequireHTMX()).Post(pattern, handler)
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}

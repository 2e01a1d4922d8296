package testutil

import (
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"go.uber.org/zap"

	"finitefield.org/issuetracker-web/internal/authclient"
	"finitefield.org/issuetracker-web/internal/authform"
	"finitefield.org/issuetracker-web/internal/home"
	"finitefield.org/issuetracker-web/internal/httpserver"
	"finitefield.org/issuetracker-web/internal/i18n"
	"finitefield.org/issuetracker-web/internal/inflight"
	"finitefield.org/issuetracker-web/internal/platform/observability"
	"finitefield.org/issuetracker-web/internal/session"
)

// Options collects everything NewServer wires together.
type Options struct {
	Server     httpserver.Config
	AuthAPIURL string
	Guard      inflight.Guard
}

// ServerOption customises the server configuration for tests.
type ServerOption func(*Options)

// WithAuthAPI points the auth client at a fake authentication API.
func WithAuthAPI(baseURL string) ServerOption {
	return func(o *Options) {
		o.AuthAPIURL = baseURL
	}
}

// WithLoginFlavor selects the login endpoint convention.
func WithLoginFlavor(flavor authform.Flavor) ServerOption {
	return func(o *Options) {
		o.Server.LoginFlavor = flavor
	}
}

// WithGuard overrides the in-flight submission guard.
func WithGuard(guard inflight.Guard) ServerOption {
	return func(o *Options) {
		o.Guard = guard
	}
}

// WithLogger routes server logs to logger.
func WithLogger(logger *zap.Logger) ServerOption {
	return func(o *Options) {
		o.Server.Logger = logger
	}
}

// WithMetrics shares a metrics registry with the caller.
func WithMetrics(metrics *observability.Metrics) ServerOption {
	return func(o *Options) {
		o.Server.Metrics = metrics
	}
}

// NewServer constructs an httptest server running the full HTTP stack with sensible defaults.
func NewServer(t testing.TB, opts ...ServerOption) *httptest.Server {
	t.Helper()

	bundle, err := i18n.Default("en")
	if err != nil {
		t.Fatalf("i18n: %v", err)
	}
	content, err := home.Default("en")
	if err != nil {
		t.Fatalf("home content: %v", err)
	}
	sessions, err := session.NewManager(session.Config{
		CookieName: "issues_session",
		HashKey:    []byte("0123456789abcdef0123456789abcdef"),
		BlockKey:   []byte("fedcba9876543210fedcba9876543210"),
	})
	if err != nil {
		t.Fatalf("session manager: %v", err)
	}

	o := Options{
		Server: httpserver.Config{
			Address:      ":0",
			Environment:  "test",
			Logger:       zap.NewNop(),
			Metrics:      observability.NewMetrics(),
			Sessions:     sessions,
			LoginFlavor:  authform.FlavorUnified,
			Translations: bundle,
			Home:         content,
		},
		AuthAPIURL: "http://127.0.0.1:1",
		Guard:      inflight.NewMemoryGuard(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	client, err := authclient.New(o.AuthAPIURL, authclient.WithObserver(o.Server.Metrics))
	if err != nil {
		t.Fatalf("auth client: %v", err)
	}
	controller, err := authform.NewController(authform.ControllerDeps{
		Submitter: client,
		Guard:     o.Guard,
		Metrics:   o.Server.Metrics,
	})
	if err != nil {
		t.Fatalf("auth controller: %v", err)
	}
	o.Server.Auth = controller

	srv, err := httpserver.New(o.Server)
	if err != nil {
		t.Fatalf("httpserver: %v", err)
	}
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return ts
}

// NewClient returns a client that keeps cookies and does not follow redirects.
func NewClient(t testing.TB) *http.Client {
	t.Helper()

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Get issues a GET request and reads the whole body.
func Get(t testing.TB, client *http.Client, target string) Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, target, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	return Do(t, client, req)
}

// PostForm posts url-encoded values, optionally as an htmx request.
func PostForm(t testing.TB, client *http.Client, target string, values url.Values, htmx bool) Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	return Do(t, client, req)
}

// CSRFToken loads page and returns the token rendered in its csrf-token meta tag.
func CSRFToken(t testing.TB, client *http.Client, page string) string {
	t.Helper()

	resp := Get(t, client, page)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status %d", page, resp.StatusCode)
	}
	token, ok := ParseHTML(t, resp.Body).Find(`meta[name="csrf-token"]`).Attr("content")
	if !ok || token == "" {
		t.Fatalf("GET %s: no csrf token rendered", page)
	}
	return token
}

// Do sends req and reads the whole body.
func Do(t testing.TB, client *http.Client, req *http.Request) Response {
	t.Helper()

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}
}

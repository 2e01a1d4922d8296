package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// LegacyLoginEndpoint is the login path used by the standalone login form.
	LegacyLoginEndpoint = "/login"

	tracerName   = "finitefield.org/issuetracker-web/internal/authclient"
	maxErrorBody = 1 << 16
)

var (
	// ErrRejected is matched by a 400 response: wrong credentials on login,
	// an already registered email on register.
	ErrRejected = errors.New("authclient: request rejected")
	// ErrUnexpectedStatus is matched by any other non-2xx response.
	ErrUnexpectedStatus = errors.New("authclient: unexpected status")
	// ErrDecode indicates a 2xx response whose body is not the expected JSON.
	ErrDecode = errors.New("authclient: decode response")
	// ErrUnavailable indicates the request never produced a response.
	ErrUnavailable = errors.New("authclient: backend unavailable")
)

// StatusError carries a non-2xx response from the authentication API.
type StatusError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("authclient: backend error (%d): %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("authclient: backend error (%d): %s", e.StatusCode, e.Body)
}

// Is maps 400 to ErrRejected and everything else to ErrUnexpectedStatus.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrRejected:
		return e.StatusCode == http.StatusBadRequest
	case ErrUnexpectedStatus:
		return e.StatusCode != http.StatusBadRequest
	}
	return false
}

// Credentials is the JSON body posted to the authentication API.
type Credentials struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// Profile is the subset of the success body the front end consumes.
type Profile struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

// HTTPClient matches the subset of http.Client used by Client.
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// Observer receives the outcome of each backend call.
type Observer interface {
	ObserveBackend(endpoint string, status int, elapsed time.Duration)
}

// Client posts credentials to the authentication REST API.
type Client struct {
	base     *url.URL
	client   HTTPClient
	timeout  time.Duration
	observer Observer
	tracer   trace.Tracer
	now      func() time.Time
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient overrides the transport used for backend calls.
func WithHTTPClient(c HTTPClient) Option {
	return func(cl *Client) {
		if c != nil {
			cl.client = c
		}
	}
}

// WithTimeout bounds each backend call. Zero disables the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		cl.timeout = d
	}
}

// WithObserver records call latency, typically into Prometheus.
func WithObserver(o Observer) Option {
	return func(cl *Client) {
		cl.observer = o
	}
}

// New constructs a Client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("authclient: base URL is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("authclient: parse base URL: %w", err)
	}
	if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}
	c := &Client{
		base:   parsed,
		client: http.DefaultClient,
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// EndpointFor returns the unified endpoint for mode ("login" or "register").
func EndpointFor(mode string) string {
	return "/auth/" + strings.Trim(mode, "/")
}

// Submit posts creds to endpoint and decodes the success body.
func (c *Client) Submit(ctx context.Context, endpoint string, creds Credentials) (*Profile, error) {
	ctx, span := c.tracer.Start(ctx, "authclient.Submit", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("auth.endpoint", endpoint))

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := c.newJSONRequest(ctx, http.MethodPost, endpoint, creds)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	start := c.now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.observe(endpoint, 0, start)
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	c.observe(endpoint, resp.StatusCode, start)
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := errorFromResponse(resp)
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
		return nil, statusErr
	}

	profile, err := decodeProfile(resp.Body)
	if err != nil {
		span.SetStatus(codes.Error, "decode failure")
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return profile, nil
}

// decodeProfile accepts exactly one JSON object. A null body or trailing data
// after the object is a decode failure.
func decodeProfile(body io.Reader) (*Profile, error) {
	dec := json.NewDecoder(body)
	var profile *Profile
	if err := dec.Decode(&profile); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if profile == nil {
		return nil, fmt.Errorf("%w: null body", ErrDecode)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after profile", ErrDecode)
	}
	return profile, nil
}

func (c *Client) observe(endpoint string, status int, start time.Time) {
	if c.observer == nil {
		return
	}
	c.observer.ObserveBackend(endpoint, status, c.now().Sub(start))
}

func (c *Client) newJSONRequest(ctx context.Context, method, endpoint string, payload any) (*http.Request, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return nil, fmt.Errorf("authclient: encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.resolve(endpoint), &buf)
	if err != nil {
		return nil, fmt.Errorf("authclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		req.Header.Set("X-Request-ID", reqID)
	}
	return req, nil
}

func (c *Client) resolve(endpoint string) string {
	ref := &url.URL{Path: strings.TrimPrefix(endpoint, "/")}
	return c.base.ResolveReference(ref).String()
}

func errorFromResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}

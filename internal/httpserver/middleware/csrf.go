package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"

	"go.uber.org/zap"

	"finitefield.org/issuetracker-web/internal/platform/observability"
)

type csrfKey struct{}

// CSRFConfig names where forms and htmx send the token back.
type CSRFConfig struct {
	HeaderName string
	FieldName  string
}

func (c CSRFConfig) withDefaults() CSRFConfig {
	if c.HeaderName == "" {
		c.HeaderName = "X-CSRF-Token"
	}
	if c.FieldName == "" {
		c.FieldName = "csrf_token"
	}
	return c
}

// submitted prefers the header set by htmx over the form field.
func (c CSRFConfig) submitted(r *http.Request) string {
	if token := r.Header.Get(c.HeaderName); token != "" {
		return token
	}
	return r.PostFormValue(c.FieldName)
}

// CSRF checks the session's synchroniser token on state-changing requests and
// exposes it to templates. Must run after Session.
func CSRF(cfg CSRFConfig) func(http.Handler) http.Handler {
	cfg = cfg.withDefaults()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sess, ok := SessionFromContext(ctx)
			if !ok {
				http.Error(w, "csrf: no session", http.StatusInternalServerError)
				return
			}
			expected, err := sess.EnsureCSRFToken()
			if err != nil {
				observability.FromContext(ctx).Error("csrf token", zap.Error(err))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}

			if !safeMethod(r.Method) {
				got := cfg.submitted(r)
				if subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
					observability.FromContext(ctx).Warn("csrf token rejected", zap.Bool("present", got != ""))
					http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, csrfKey{}, expected)))
		})
	}
}

// CSRFTokenFromContext returns the token to embed in forms and the csrf-token meta tag.
func CSRFTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(csrfKey{}).(string)
	return token
}

func safeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

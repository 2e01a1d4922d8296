package middleware

import (
	"context"
	"net/http"
	"strings"
)

const defaultEnvironment = "development"

type envKey struct{}

// Environment exposes the deployment label to templates. The layout shows it
// as a banner outside production.
func Environment(value string) func(http.Handler) http.Handler {
	env := strings.ToLower(strings.TrimSpace(value))
	if env == "" {
		env = defaultEnvironment
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), envKey{}, env)))
		})
	}
}

// EnvironmentFromContext defaults to "development".
func EnvironmentFromContext(ctx context.Context) string {
	if env, _ := ctx.Value(envKey{}).(string); env != "" {
		return env
	}
	return defaultEnvironment
}

// NoStore marks every response as uncacheable. Auth pages carry CSRF tokens
// and the signed-in user's name.
func NoStore() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Cache-Control", "no-store, max-age=0")
			h.Set("Pragma", "no-cache")
			next.ServeHTTP(w, r)
		})
	}
}

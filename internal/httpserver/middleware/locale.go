package middleware

import (
	"context"
	"net/http"
	"strings"
)

type localeContextKey struct{}

// LocaleCookie remembers an explicit language choice across sessions.
const LocaleCookie = "hl"

// LocaleResolver is the subset of the translation bundle the middleware needs.
type LocaleResolver interface {
	Fallback() string
	IsSupported(lang string) bool
	Resolve(acceptLanguage string) string
}

// Locale picks the response language from ?hl, the session, the hl cookie and
// finally Accept-Language, in that order. An explicit ?hl choice is persisted to
// the session and cookie. Requires the Session middleware.
func Locale(bundle LocaleResolver) func(http.Handler) http.Handler {
	if bundle == nil {
		panic("locale bundle is required")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, _ := SessionFromContext(r.Context())
			lang := ""

			if q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("hl"))); q != "" && bundle.IsSupported(q) {
				lang = q
				if sess != nil {
					sess.SetLocale(q)
				}
				http.SetCookie(w, &http.Cookie{Name: LocaleCookie, Value: q, Path: "/", SameSite: http.SameSiteLaxMode})
			}
			if lang == "" && sess != nil && bundle.IsSupported(sess.Locale()) {
				lang = sess.Locale()
			}
			if lang == "" {
				if c, err := r.Cookie(LocaleCookie); err == nil && bundle.IsSupported(strings.ToLower(c.Value)) {
					lang = strings.ToLower(c.Value)
				}
			}
			if lang == "" {
				lang = bundle.Resolve(r.Header.Get("Accept-Language"))
			}

			w.Header().Set("Content-Language", lang)
			w.Header().Add("Vary", "Accept-Language")
			ctx := context.WithValue(r.Context(), localeContextKey{}, lang)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LocaleFromContext returns the language resolved for the current request.
func LocaleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	lang, _ := ctx.Value(localeContextKey{}).(string)
	return lang
}

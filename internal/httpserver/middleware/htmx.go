package middleware

import (
	"context"
	"net/http"
)

type htmxKey struct{}

// HTMXInfo is the subset of htmx request headers the auth pages react to.
type HTMXInfo struct {
	IsHTMX      bool
	Target      string
	TriggerName string
}

// HTMX reads the HX-* request headers into the context.
func HTMX() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info := HTMXInfo{
				IsHTMX:      hxFlag(r, "HX-Request"),
				Target:      r.Header.Get("HX-Target"),
				TriggerName: r.Header.Get("HX-Trigger-Name"),
			}
			if info.IsHTMX && hxFlag(r, "HX-History-Restore-Request") {
				// History restores expect a full page.
				info = HTMXInfo{}
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), htmxKey{}, info)))
		})
	}
}

// HTMXInfoFromContext returns the zero value outside the HTMX middleware.
func HTMXInfoFromContext(ctx context.Context) HTMXInfo {
	info, _ := ctx.Value(htmxKey{}).(HTMXInfo)
	return info
}

// IsHTMXRequest reports whether htmx issued the request.
func IsHTMXRequest(ctx context.Context) bool {
	return HTMXInfoFromContext(ctx).IsHTMX
}

// RequireHTMX hides fragment endpoints from direct navigation.
func RequireHTMX() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("Vary", "HX-Request")
			if !IsHTMXRequest(r.Context()) {
				http.NotFound(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Redirect navigates the browser to target: HX-Redirect with 204 for htmx,
// 303 See Other otherwise.
func Redirect(w http.ResponseWriter, r *http.Request, target string) {
	if !IsHTMXRequest(r.Context()) {
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	w.Header().Set("HX-Redirect", target)
	w.WriteHeader(http.StatusNoContent)
}

func hxFlag(r *http.Request, header string) bool {
	return r.Header.Get(header) == "true"
}

package middleware

import (
	"net/http"
	"net/url"

	appsession "finitefield.org/issuetracker-web/internal/session"
)

const (
	// ReasonExpired marks a redirect caused by an expired session.
	ReasonExpired = "expired"
	// ReasonSignedOut marks a redirect for a visitor without a session user.
	ReasonSignedOut = "signed_out"
)

// CurrentUser returns the signed-in user held by the request session, if any.
func CurrentUser(r *http.Request) (*appsession.User, bool) {
	sess, ok := SessionFromContext(r.Context())
	if !ok || sess.Destroyed() {
		return nil, false
	}
	user := sess.User()
	return user, user != nil
}

// RequireUser redirects visitors without a signed-in session to loginPath.
func RequireUser(loginPath string) func(http.Handler) http.Handler {
	if loginPath == "" {
		loginPath = "/login"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := CurrentUser(r); ok {
				next.ServeHTTP(w, r)
				return
			}
			reason := ReasonSignedOut
			if SessionExpired(r.Context()) {
				reason = ReasonExpired
			}
			Redirect(w, r, loginURL(loginPath, reason))
		})
	}
}

func loginURL(loginPath, reason string) string {
	if reason != ReasonExpired {
		return loginPath
	}
	u, err := url.Parse(loginPath)
	if err != nil {
		return loginPath
	}
	q := u.Query()
	q.Set("reason", reason)
	u.RawQuery = q.Encode()
	return u.String()
}

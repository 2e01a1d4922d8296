package session

import (
	"encoding/base64"
	"errors"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/oklog/ulid/v2"
)

var errTokenEntropy = errors.New("session: could not read random bytes for token")

// User is the local user record handed over after a successful login or registration.
type User struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

// DisplayName joins first and last name, falling back to the email.
func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Email
	}
}

// Data is the payload encoded into the session cookie.
type Data struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"createdAt"`
	LastActive time.Time `json:"lastActive"`
	ExpiresAt  time.Time `json:"expiresAt,omitempty"`
	RememberMe bool      `json:"rememberMe"`
	CSRFToken  string    `json:"csrfToken,omitempty"`
	User       *User     `json:"user,omitempty"`
	Flash      string    `json:"flash,omitempty"`
	Locale     string    `json:"locale,omitempty"`
}

// Session is the per-request view of the cookie payload. The session
// middleware writes it back on every response.
type Session struct {
	data      Data
	policy    policy
	destroyed bool
}

func (s *Session) ID() string            { return s.data.ID }
func (s *Session) CreatedAt() time.Time  { return s.data.CreatedAt }
func (s *Session) LastActive() time.Time { return s.data.LastActive }
func (s *Session) ExpiresAt() time.Time  { return s.data.ExpiresAt }
func (s *Session) RememberMe() bool      { return s.data.RememberMe }
func (s *Session) CSRFToken() string     { return s.data.CSRFToken }
func (s *Session) Locale() string        { return s.data.Locale }
func (s *Session) Destroyed() bool       { return s.destroyed }

// User returns the signed-in user record, or nil for anonymous visitors.
func (s *Session) User() *User {
	return s.data.User
}

// SetUser stores a copy of user; nil signs the visitor out.
func (s *Session) SetUser(user *User) {
	if user == nil {
		s.data.User = nil
		return
	}
	copied := *user
	s.data.User = &copied
}

// SetRememberMe switches between the browser-session and remembered lifetimes.
func (s *Session) SetRememberMe(remember bool) {
	s.data.RememberMe = remember
	s.data.ExpiresAt = s.policy.expiry(s.data.CreatedAt, remember)
}

// SetLocale remembers an explicit language choice.
func (s *Session) SetLocale(locale string) {
	s.data.Locale = locale
}

// SetFlash queues a catalog key shown once on the next rendered page.
func (s *Session) SetFlash(key string) {
	s.data.Flash = key
}

// PopFlash returns and clears the queued flash key.
func (s *Session) PopFlash() string {
	key := s.data.Flash
	s.data.Flash = ""
	return key
}

// EnsureCSRFToken returns the session's CSRF token, minting one on first use.
func (s *Session) EnsureCSRFToken() (string, error) {
	if s.data.CSRFToken == "" {
		token, err := newToken()
		if err != nil {
			return "", err
		}
		s.data.CSRFToken = token
	}
	return s.data.CSRFToken, nil
}

// Renew issues a new identifier and restarts the lifetime window. The CSRF
// token is dropped with the old identity. Call it whenever the user changes.
func (s *Session) Renew(now time.Time) {
	now = now.UTC()
	s.data.ID = newID()
	s.data.CreatedAt = now
	s.data.LastActive = now
	s.data.ExpiresAt = s.policy.expiry(now, s.data.RememberMe)
	s.data.CSRFToken = ""
}

// Destroy clears the cookie when the response is written.
func (s *Session) Destroy() {
	s.destroyed = true
}

func (s *Session) touch(now time.Time) {
	if now = now.UTC(); now.After(s.data.LastActive) {
		s.data.LastActive = now
	}
}

func newID() string {
	return ulid.Make().String()
}

func newToken() (string, error) {
	raw := securecookie.GenerateRandomKey(32)
	if raw == nil {
		return "", errTokenEntropy
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

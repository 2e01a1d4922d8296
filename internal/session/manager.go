// Package session keeps the signed-in user record in a signed, optionally
// encrypted cookie.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
)

const (
	defaultCookieName       = "issues_session"
	defaultLifetime         = 12 * time.Hour
	defaultRememberLifetime = 30 * 24 * time.Hour
	defaultIdleTimeout      = 2 * time.Hour
)

var (
	// ErrExpired indicates the stored session passed its idle or absolute expiry.
	ErrExpired = errors.New("session expired")
	// ErrInvalidConfig reports missing or malformed keys.
	ErrInvalidConfig = errors.New("session: invalid config")

	errNilSession = errors.New("session: nil session")
)

// Config controls cookie encoding and lifecycle limits. The cookie is always
// HttpOnly, SameSite=Lax and scoped to "/".
type Config struct {
	CookieName   string
	CookieSecure bool
	// HashKey signs the cookie; BlockKey, when set, encrypts it (AES-128/192/256).
	HashKey  []byte
	BlockKey []byte

	IdleTimeout      time.Duration
	Lifetime         time.Duration
	RememberLifetime time.Duration
	Now              func() time.Time
}

// policy holds the lifetime rules shared by the manager and its sessions.
type policy struct {
	lifetime time.Duration
	remember time.Duration
	idle     time.Duration
}

func (p policy) expiry(from time.Time, remember bool) time.Time {
	if remember {
		return from.UTC().Add(p.remember)
	}
	return from.UTC().Add(p.lifetime)
}

// expired applies the absolute expiry to every session and the idle timeout
// only to sessions without remember-me.
func (p policy) expired(d Data, now time.Time) bool {
	if !d.ExpiresAt.IsZero() && now.After(d.ExpiresAt) {
		return true
	}
	if d.RememberMe {
		return false
	}
	last := d.LastActive
	if last.IsZero() {
		last = d.CreatedAt
	}
	return !last.IsZero() && now.Sub(last) > p.idle
}

// Manager loads and stores sessions as securecookie-encoded cookies.
type Manager struct {
	cfg    Config
	codec  *securecookie.SecureCookie
	policy policy
	now    func() time.Time
}

// NewManager validates cfg and fills in defaults.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.HashKey) == 0 {
		return nil, fmt.Errorf("%w: missing hash key", ErrInvalidConfig)
	}
	if n := len(cfg.BlockKey); n != 0 && n != 16 && n != 24 && n != 32 {
		return nil, fmt.Errorf("%w: block key must be 16, 24 or 32 bytes", ErrInvalidConfig)
	}

	if cfg.CookieName == "" {
		cfg.CookieName = defaultCookieName
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	p := policy{
		lifetime: positiveOr(cfg.Lifetime, defaultLifetime),
		remember: positiveOr(cfg.RememberLifetime, defaultRememberLifetime),
		idle:     positiveOr(cfg.IdleTimeout, defaultIdleTimeout),
	}

	codec := securecookie.New(cfg.HashKey, cfg.BlockKey)
	codec.SetSerializer(securecookie.JSONEncoder{})
	codec.MaxAge(int(p.remember / time.Second))

	return &Manager{cfg: cfg, codec: codec, policy: p, now: cfg.Now}, nil
}

// New returns an anonymous session.
func (m *Manager) New() *Session {
	now := m.now().UTC()
	return &Session{
		data: Data{
			ID:         newID(),
			CreatedAt:  now,
			LastActive: now,
			ExpiresAt:  m.policy.expiry(now, false),
		},
		policy: m.policy,
	}
}

// Load decodes the request's session cookie. A missing or undecodable cookie
// yields a fresh session; a stale one yields ErrExpired.
func (m *Manager) Load(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(m.cfg.CookieName)
	if err != nil {
		return m.New(), nil
	}

	var data Data
	if err := m.codec.Decode(m.cfg.CookieName, cookie.Value, &data); err != nil || data.ID == "" {
		return m.New(), nil
	}
	if m.policy.expired(data, m.now().UTC()) {
		return nil, ErrExpired
	}
	return &Session{data: data, policy: m.policy}, nil
}

// Save writes sess to the response. Without remember-me the cookie lasts for
// the browser session only.
func (m *Manager) Save(w http.ResponseWriter, sess *Session) error {
	switch {
	case sess == nil:
		return errNilSession
	case sess.destroyed:
		m.Destroy(w)
		return nil
	}

	now := m.now()
	sess.touch(now)
	encoded, err := m.codec.Encode(m.cfg.CookieName, sess.data)
	if err != nil {
		return fmt.Errorf("session: encode %s: %w", m.cfg.CookieName, err)
	}

	cookie := m.cookie(encoded)
	if sess.data.RememberMe {
		cookie.Expires = sess.data.ExpiresAt.UTC()
		cookie.MaxAge = int(sess.data.ExpiresAt.Sub(now).Round(time.Second) / time.Second)
		if cookie.MaxAge <= 0 {
			cookie.MaxAge = -1
		}
	}
	http.SetCookie(w, cookie)
	return nil
}

// Destroy clears the session cookie.
func (m *Manager) Destroy(w http.ResponseWriter) {
	cookie := m.cookie("")
	cookie.MaxAge = -1
	cookie.Expires = time.Unix(0, 0)
	http.SetCookie(w, cookie)
}

func (m *Manager) cookie(value string) *http.Cookie {
	return &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    value,
		Path:     "/",
		Secure:   m.cfg.CookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func positiveOr(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}

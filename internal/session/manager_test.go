package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testCookie = "issues_test"

var testEpoch = time.Date(2025, 6, 2, 8, 30, 0, 0, time.UTC)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }
func (c *testClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestManager(t *testing.T) (*Manager, *testClock) {
	t.Helper()
	clock := &testClock{now: testEpoch}
	mgr, err := NewManager(Config{
		CookieName:       testCookie,
		HashKey:          []byte("hash-key-hash-key-hash-key-hash!"),
		BlockKey:         []byte("block-key-block-key-block-key-32"),
		IdleTimeout:      10 * time.Minute,
		Lifetime:         2 * time.Hour,
		RememberLifetime: 48 * time.Hour,
		Now:              clock.Now,
	})
	require.NoError(t, err)
	return mgr, clock
}

// writeCookie saves sess and returns the Set-Cookie it produced.
func writeCookie(t *testing.T, mgr *Manager, sess *Session) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	require.NoError(t, mgr.Save(rec, sess))
	for _, c := range rec.Result().Cookies() {
		if c.Name == testCookie {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", testCookie)
	return nil
}

func loadWith(mgr *Manager, cookie *http.Cookie) (*Session, error) {
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return mgr.Load(req)
}

func TestManagerRoundTrip(t *testing.T) {
	mgr, clock := newTestManager(t)

	sess, err := loadWith(mgr, nil)
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID())
	require.True(t, sess.CreatedAt().Equal(testEpoch))

	user := User{FirstName: "Ана", LastName: "Петрова", Email: "ana@example.bg"}
	sess.SetUser(&user)
	sess.SetRememberMe(true)
	sess.SetLocale("bg")
	sess.SetFlash("auth.flash.login_success")
	token, err := sess.EnsureCSRFToken()
	require.NoError(t, err)

	clock.advance(5 * time.Minute)
	cookie := writeCookie(t, mgr, sess)
	require.Positive(t, cookie.MaxAge)
	require.True(t, cookie.HttpOnly)
	require.Equal(t, http.SameSiteLaxMode, cookie.SameSite)

	loaded, err := loadWith(mgr, cookie)
	require.NoError(t, err)
	require.Equal(t, sess.ID(), loaded.ID())
	require.Equal(t, user, *loaded.User())
	require.True(t, loaded.RememberMe())
	require.Equal(t, "bg", loaded.Locale())
	require.Equal(t, token, loaded.CSRFToken())
	require.True(t, loaded.LastActive().Equal(clock.now))
	require.Equal(t, "auth.flash.login_success", loaded.PopFlash())
	require.Empty(t, loaded.PopFlash())
}

func TestManagerBrowserSessionCookie(t *testing.T) {
	mgr, _ := newTestManager(t)
	sess := mgr.New()
	sess.SetUser(&User{Email: "ana@example.bg"})

	cookie := writeCookie(t, mgr, sess)
	require.Zero(t, cookie.MaxAge)
	require.True(t, cookie.Expires.IsZero())
}

func TestManagerExpiry(t *testing.T) {
	cases := []struct {
		name     string
		remember bool
		after    time.Duration
		expired  bool
	}{
		{name: "active", after: 9 * time.Minute},
		{name: "idle", after: 20 * time.Minute, expired: true},
		{name: "remembered survives idle", remember: true, after: 20 * time.Minute},
		{name: "remembered past lifetime", remember: true, after: 49 * time.Hour, expired: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mgr, clock := newTestManager(t)
			sess := mgr.New()
			sess.SetRememberMe(tc.remember)
			cookie := writeCookie(t, mgr, sess)

			clock.advance(tc.after)
			loaded, err := loadWith(mgr, cookie)
			if tc.expired {
				require.ErrorIs(t, err, ErrExpired)
				return
			}
			require.NoError(t, err)
			require.Equal(t, sess.ID(), loaded.ID())
		})
	}
}

func TestManagerTamperedCookie(t *testing.T) {
	mgr, _ := newTestManager(t)
	sess, err := loadWith(mgr, &http.Cookie{Name: testCookie, Value: "not-a-valid-cookie"})
	require.NoError(t, err)
	require.Nil(t, sess.User())
}

func TestManagerSaveDestroyedSession(t *testing.T) {
	mgr, _ := newTestManager(t)
	sess := mgr.New()
	sess.SetUser(&User{Email: "ana@example.bg"})
	sess.Destroy()

	cookie := writeCookie(t, mgr, sess)
	require.Equal(t, -1, cookie.MaxAge)
	require.Empty(t, cookie.Value)
}

func TestNewManagerValidatesKeys(t *testing.T) {
	_, err := NewManager(Config{})
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewManager(Config{HashKey: []byte("k"), BlockKey: []byte("short")})
	require.ErrorIs(t, err, ErrInvalidConfig)

	mgr, err := NewManager(Config{HashKey: []byte("k")})
	require.NoError(t, err)
	require.Equal(t, defaultCookieName, mgr.cfg.CookieName)
}

package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"finitefield.org/issuetracker-web/internal/i18n"
	appsession "finitefield.org/issuetracker-web/internal/session"
)

func newTestStore(t *testing.T) *appsession.Manager {
	t.Helper()
	mgr, err := appsession.NewManager(appsession.Config{
		CookieName:  "test_session",
		HashKey:     []byte("12345678901234567890123456789012"),
		BlockKey:    []byte("abcdefghijklmnopqrstuv0123456789"),
		IdleTimeout: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}
	return mgr
}

func sessionCookie(t *testing.T, rr *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == "test_session" {
			return c
		}
	}
	t.Fatalf("expected session cookie in response")
	return nil
}

func TestSessionSavedBeforeRedirect(t *testing.T) {
	store := newTestStore(t)
	handler := Session(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := SessionFromContext(r.Context())
		if !ok {
			t.Fatalf("expected session in context")
		}
		sess.SetUser(&appsession.User{Email: "a@b.com"})
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/login", nil))
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(sessionCookie(t, rr))
	sess, err := store.Load(req)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if sess.User() == nil || sess.User().Email != "a@b.com" {
		t.Fatalf("expected user to survive the redirect, got %+v", sess.User())
	}
}

func TestSessionSavedWhenHandlerWritesNothing(t *testing.T) {
	store := newTestStore(t)
	handler := Session(store)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	sessionCookie(t, rr)
}

func TestCSRF(t *testing.T) {
	store := newTestStore(t)
	handler := Session(store)(CSRF(CSRFConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, CSRFTokenFromContext(r.Context()))
	})))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/login", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	token := rr.Body.String()
	if token == "" {
		t.Fatalf("expected token to be issued")
	}
	cookie := sessionCookie(t, rr)

	post := func(form url.Values, header string) int {
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		if header != "" {
			req.Header.Set("X-CSRF-Token", header)
		}
		req.AddCookie(cookie)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	t.Run("missing token rejected", func(t *testing.T) {
		if code := post(url.Values{}, ""); code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", code)
		}
	})

	t.Run("wrong token rejected", func(t *testing.T) {
		if code := post(url.Values{"csrf_token": {"nope"}}, ""); code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", code)
		}
	})

	t.Run("form field accepted", func(t *testing.T) {
		if code := post(url.Values{"csrf_token": {token}}, ""); code != http.StatusOK {
			t.Fatalf("expected 200, got %d", code)
		}
	})

	t.Run("header accepted", func(t *testing.T) {
		if code := post(url.Values{}, token); code != http.StatusOK {
			t.Fatalf("expected 200, got %d", code)
		}
	})
}

func TestRedirect(t *testing.T) {
	handler := HTMX()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Redirect(w, r, "/dashboard")
	}))

	t.Run("plain request gets see other", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/login", nil))
		if rr.Code != http.StatusSeeOther {
			t.Fatalf("expected 303, got %d", rr.Code)
		}
		if loc := rr.Header().Get("Location"); loc != "/dashboard" {
			t.Fatalf("expected /dashboard, got %s", loc)
		}
	})

	t.Run("htmx request gets HX-Redirect", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.Header.Set("HX-Request", "true")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rr.Code)
		}
		if rr.Header().Get("HX-Redirect") != "/dashboard" {
			t.Fatalf("expected HX-Redirect header to /dashboard")
		}
	})
}

func TestRequireHTMX(t *testing.T) {
	handler := HTMX()(RequireHTMX()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/register/password-hints", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/register/password-hints", nil)
	req.Header.Set("HX-Request", "true")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestRequireUser(t *testing.T) {
	store := newTestStore(t)
	protected := HTMX()(Session(store)(RequireUser("/login")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := CurrentUser(r)
		if !ok {
			t.Fatalf("expected user")
		}
		_, _ = io.WriteString(w, user.DisplayName())
	}))))
	signIn := Session(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, _ := SessionFromContext(r.Context())
		sess.SetUser(&appsession.User{FirstName: "Ана", LastName: "Петрова", Email: "a@b.com"})
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("anonymous redirected to login", func(t *testing.T) {
		rr := httptest.NewRecorder()
		protected.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
		if rr.Code != http.StatusSeeOther {
			t.Fatalf("expected 303, got %d", rr.Code)
		}
		if loc := rr.Header().Get("Location"); loc != "/login" {
			t.Fatalf("expected /login, got %s", loc)
		}
	})

	t.Run("signed in user passes", func(t *testing.T) {
		rr := httptest.NewRecorder()
		signIn.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/login", nil))

		req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		req.AddCookie(sessionCookie(t, rr))
		rr = httptest.NewRecorder()
		protected.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		if body := rr.Body.String(); body != "Ана Петрова" {
			t.Fatalf("unexpected body %q", body)
		}
	})
}

func TestLocale(t *testing.T) {
	bundle, err := i18n.Default("en")
	if err != nil {
		t.Fatalf("i18n.Default error: %v", err)
	}
	store := newTestStore(t)
	handler := Session(store)(Locale(bundle)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, LocaleFromContext(r.Context()))
	})))

	serve := func(req *http.Request) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	t.Run("accept-language", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/login", nil)
		req.Header.Set("Accept-Language", "bg-BG,bg;q=0.9,en;q=0.5")
		rr := serve(req)
		if rr.Body.String() != "bg" {
			t.Fatalf("expected bg, got %q", rr.Body.String())
		}
		if rr.Header().Get("Content-Language") != "bg" {
			t.Fatalf("expected Content-Language bg")
		}
	})

	t.Run("query override persists", func(t *testing.T) {
		rr := serve(httptest.NewRequest(http.MethodGet, "/login?hl=bg", nil))
		if rr.Body.String() != "bg" {
			t.Fatalf("expected bg, got %q", rr.Body.String())
		}

		req := httptest.NewRequest(http.MethodGet, "/login", nil)
		req.Header.Set("Accept-Language", "en")
		req.AddCookie(sessionCookie(t, rr))
		if got := serve(req).Body.String(); got != "bg" {
			t.Fatalf("expected session locale bg, got %q", got)
		}
	})

	t.Run("unsupported query ignored", func(t *testing.T) {
		rr := serve(httptest.NewRequest(http.MethodGet, "/login?hl=xx", nil))
		if rr.Body.String() != "en" {
			t.Fatalf("expected fallback en, got %q", rr.Body.String())
		}
	})

	t.Run("cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/login", nil)
		req.AddCookie(&http.Cookie{Name: LocaleCookie, Value: "bg"})
		if got := serve(req).Body.String(); got != "bg" {
			t.Fatalf("expected bg, got %q", got)
		}
	})
}

func TestNoStoreAndEnvironment(t *testing.T) {
	handler := NoStore()(Environment("Staging")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, EnvironmentFromContext(r.Context()))
	})))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/login", nil))
	if rr.Header().Get("Cache-Control") != "no-store, max-age=0" {
		t.Fatalf("unexpected Cache-Control %q", rr.Header().Get("Cache-Control"))
	}
	if rr.Body.String() != "staging" {
		t.Fatalf("expected staging, got %q", rr.Body.String())
	}
}

package httpserver

import (
	"net/http"

	"github.com/a-h/templ"

	custommw "finitefield.org/issuetracker-web/internal/httpserver/middleware"
	"finitefield.org/issuetracker-web/internal/i18n"
	"finitefield.org/issuetracker-web/internal/templates"
)

type pageBuilder struct {
	bundle *i18n.Bundle
}

// base collects the layout data for the current request. It consumes the
// pending flash message, so call it once per rendered page.
func (p pageBuilder) base(r *http.Request) templates.Base {
	ctx := r.Context()
	lang := custommw.LocaleFromContext(ctx)
	if lang == "" {
		lang = p.bundle.Fallback()
	}

	b := templates.NewBase(p.bundle, lang)
	b.CSRFToken = custommw.CSRFTokenFromContext(ctx)
	b.Environment = custommw.EnvironmentFromContext(ctx)
	b.Locales = p.bundle.Supported()
	if user, ok := custommw.CurrentUser(r); ok {
		b.SignedIn = true
		b.UserName = user.DisplayName()
	}
	if sess, ok := custommw.SessionFromContext(ctx); ok {
		if key := sess.PopFlash(); key != "" {
			b.Flash = b.T(key)
		}
	}
	return b
}

func pageTitle(b templates.Base, key string) string {
	return b.T(key) + " | " + b.T("app.name")
}

func render(w http.ResponseWriter, r *http.Request, c templ.Component, status int) {
	templ.Handler(c, templ.WithStatus(status)).ServeHTTP(w, r)
}

package httpserver

import (
	"net/http"

	"finitefield.org/issuetracker-web/internal/authform"
	"finitefield.org/issuetracker-web/internal/home"
	custommw "finitefield.org/issuetracker-web/internal/httpserver/middleware"
	hometpl "finitefield.org/issuetracker-web/internal/templates/home"
)

type homeHandlers struct {
	content *home.Content
	pages   pageBuilder
}

func newHomeHandlers(content *home.Content, pages pageBuilder) *homeHandlers {
	if content == nil {
		panic("home: content is required")
	}
	return &homeHandlers{content: content, pages: pages}
}

// Root sends signed-in visitors to the dashboard and everyone else to login.
func (h *homeHandlers) Root(w http.ResponseWriter, r *http.Request) {
	if _, ok := custommw.CurrentUser(r); ok {
		custommw.Redirect(w, r, authform.DashboardPath)
		return
	}
	custommw.Redirect(w, r, loginPath)
}

// Dashboard renders the logged-in landing page.
func (h *homeHandlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	base := h.pages.base(r)
	page := h.content.Page(base.Lang)
	base.Title = page.Title

	render(w, r, hometpl.Page(hometpl.PageData{Base: base, Content: page}), http.StatusOK)
}

package home

import (
	"github.com/a-h/templ"

	homecontent "finitefield.org/issuetracker-web/internal/home"
	"finitefield.org/issuetracker-web/internal/templates"
)

// PageData encapsulates rendering state for the logged-in landing page.
type PageData struct {
	templates.Base

	Content homecontent.Page
}

// Page renders the landing page.
func Page(data PageData) templ.Component {
	return templates.Page("home", data)
}

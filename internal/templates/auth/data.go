package auth

import (
	"github.com/a-h/templ"

	"finitefield.org/issuetracker-web/internal/authform"
	"finitefield.org/issuetracker-web/internal/templates"
)

// PageData encapsulates rendering state for the login and register screens.
type PageData struct {
	templates.Base

	Form              *authform.Form
	Notice            string
	Action            string
	HintsPath         string
	SwitchPath        string
	MinPasswordLength int
}

// HeadingKey is the catalog key of the form heading.
func (d PageData) HeadingKey() string {
	return "auth." + string(d.Form.Mode) + ".heading"
}

// SubmitKey is the catalog key of the submit button label.
func (d PageData) SubmitKey() string {
	return "auth." + string(d.Form.Mode) + ".submit"
}

// SwitchKey is the catalog key of the link to the other form.
func (d PageData) SwitchKey() string {
	return "auth." + string(d.Form.Mode) + ".switch"
}

// Page renders the full login or register page.
func Page(data PageData) templ.Component {
	return templates.Page("auth", data)
}

// PasswordHints renders only the password hint block for htmx swaps.
func PasswordHints(data PageData) templ.Component {
	return templates.Fragment("auth", "password-hints", data)
}

// Package templates renders the HTML pages and fragments of the web front end.
package templates

import (
	"embed"
	"fmt"
	"html/template"

	"github.com/a-h/templ"
)

//go:embed html/*.html
var files embed.FS

var pages = map[string]*template.Template{
	"auth": mustParse("auth"),
	"home": mustParse("home"),
}

func mustParse(page string) *template.Template {
	return template.Must(template.New(page).ParseFS(files, "html/layout.html", "html/"+page+".html"))
}

// Page renders page inside the shared layout.
func Page(page string, data any) templ.Component {
	return templ.FromGoHTML(lookup(page, "layout"), data)
}

// Fragment renders a single named block of page without the layout.
func Fragment(page, block string, data any) templ.Component {
	return templ.FromGoHTML(lookup(page, block), data)
}

func lookup(page, name string) *template.Template {
	set, ok := pages[page]
	if !ok {
		panic(fmt.Sprintf("templates: unknown page %q", page))
	}
	t := set.Lookup(name)
	if t == nil {
		panic(fmt.Sprintf("templates: page %q has no block %q", page, name))
	}
	return t
}

// Translator resolves catalog keys for a language.
type Translator interface {
	T(lang, key string) string
	Tf(lang, key string, args ...any) string
}

// Base carries the data every page layout needs.
type Base struct {
	Lang        string
	Title       string
	CSRFToken   string
	Environment string
	SignedIn    bool
	UserName    string
	Flash       string
	Locales     []string

	tr Translator
}

// NewBase binds a translator for lang.
func NewBase(tr Translator, lang string) Base {
	return Base{Lang: lang, tr: tr}
}

// ShowEnvironmentBanner reports whether the layout labels a non-production deployment.
func (b Base) ShowEnvironmentBanner() bool {
	return b.Environment != "" && b.Environment != "production"
}

// T translates key in the page language.
func (b Base) T(key string) string {
	if b.tr == nil {
		return key
	}
	return b.tr.T(b.Lang, key)
}

// Tf translates and formats key in the page language.
func (b Base) Tf(key string, args ...any) string {
	if b.tr == nil {
		return fmt.Sprintf(key, args...)
	}
	return b.tr.Tf(b.Lang, key, args...)
}

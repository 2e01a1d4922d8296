// Package home provides the localized content of the logged-in landing page.
package home

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"gopkg.in/yaml.v3"
)

//go:embed content/*.yaml
var embeddedContent embed.FS

// ErrInvalidContent indicates a content document failed validation.
var ErrInvalidContent = errors.New("home: invalid content")

// Link is a navigation button on the landing page.
type Link struct {
	Label string `yaml:"label"`
	Href  string `yaml:"href"`
}

// Image is the illustration shown below the links.
type Image struct {
	Src string `yaml:"src"`
	Alt string `yaml:"alt"`
}

// Page is the rendered landing content for one language.
type Page struct {
	Lang        string
	Title       string
	Heading     string
	Description template.HTML
	Links       []Link
	Image       Image
}

type document struct {
	Title       string `yaml:"title"`
	Heading     string `yaml:"heading"`
	Description string `yaml:"description"`
	Image       Image  `yaml:"image"`
	Links       []Link `yaml:"links"`
}

// Content holds every loaded Page keyed by language.
type Content struct {
	pages    map[string]Page
	fallback string
}

// Default loads the content compiled into the binary.
func Default(fallback string) (*Content, error) {
	return Load(embeddedContent, "content", fallback)
}

// Load parses every <lang>.yaml under dir and renders its Markdown description.
func Load(fsys fs.FS, dir, fallback string) (*Content, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("home: read %s: %w", dir, err)
	}

	md := goldmark.New()
	policy := bluemonday.UGCPolicy()
	policy.RequireNoFollowOnLinks(true)

	c := &Content{pages: map[string]Page{}, fallback: strings.ToLower(fallback)}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || path.Ext(name) != ".yaml" {
			continue
		}
		raw, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("home: read %s: %w", name, err)
		}
		var doc document
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("home: parse %s: %w", name, err)
		}
		if err := doc.validate(); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidContent, name, err)
		}

		var buf bytes.Buffer
		if err := md.Convert([]byte(doc.Description), &buf); err != nil {
			return nil, fmt.Errorf("home: render %s: %w", name, err)
		}

		lang := strings.ToLower(strings.TrimSuffix(name, ".yaml"))
		c.pages[lang] = Page{
			Lang:        lang,
			Title:       strings.TrimSpace(doc.Title),
			Heading:     strings.TrimSpace(doc.Heading),
			Description: template.HTML(policy.SanitizeBytes(buf.Bytes())),
			Links:       doc.Links,
			Image:       doc.Image,
		}
	}
	if _, ok := c.pages[c.fallback]; !ok {
		return nil, fmt.Errorf("home: fallback content %s not loaded", c.fallback)
	}
	return c, nil
}

// Page returns the content for lang, or the fallback language.
func (c *Content) Page(lang string) Page {
	if p, ok := c.pages[strings.ToLower(lang)]; ok {
		return p
	}
	return c.pages[c.fallback]
}

func (d document) validate() error {
	if strings.TrimSpace(d.Title) == "" || strings.TrimSpace(d.Heading) == "" {
		return errors.New("title and heading are required")
	}
	for _, l := range d.Links {
		if l.Label == "" || !isLocalPath(l.Href) {
			return fmt.Errorf("link %q must have a label and a local href", l.Href)
		}
	}
	if d.Image.Src != "" && !isLocalPath(d.Image.Src) {
		return fmt.Errorf("image %q must be a local path", d.Image.Src)
	}
	return nil
}

// isLocalPath accepts absolute paths on this host only.
func isLocalPath(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//")
}

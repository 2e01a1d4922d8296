package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var embeddedLocales embed.FS

// Bundle holds flattened message catalogs keyed by language.
type Bundle struct {
	dict      map[string]map[string]string
	fallback  string
	supported []string
	matcher   language.Matcher
}

// Default loads the catalogs compiled into the binary.
func Default(fallback string) (*Bundle, error) {
	return Load(embeddedLocales, "locales", fallback)
}

// Load reads every <lang>.yaml under dir. The fallback catalog must exist.
func Load(fsys fs.FS, dir, fallback string) (*Bundle, error) {
	fallback = strings.ToLower(strings.TrimSpace(fallback))
	if fallback == "" {
		fallback = "en"
	}

	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("i18n: read %s: %w", dir, err)
	}

	b := &Bundle{
		dict:     map[string]map[string]string{},
		fallback: fallback,
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || path.Ext(name) != ".yaml" {
			continue
		}
		lang := strings.ToLower(strings.TrimSuffix(name, ".yaml"))
		raw, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("i18n: read %s: %w", name, err)
		}
		var tree map[string]any
		if err := yaml.Unmarshal(raw, &tree); err != nil {
			return nil, fmt.Errorf("i18n: unmarshal %s: %w", name, err)
		}
		messages := map[string]string{}
		flatten("", tree, messages)
		b.dict[lang] = messages
	}
	if _, ok := b.dict[fallback]; !ok {
		return nil, fmt.Errorf("i18n: fallback locale %s not loaded", fallback)
	}

	// The matcher treats the first tag as its default.
	b.supported = append(b.supported, fallback)
	others := make([]string, 0, len(b.dict))
	for lang := range b.dict {
		if lang != fallback {
			others = append(others, lang)
		}
	}
	sort.Strings(others)
	b.supported = append(b.supported, others...)

	tags := make([]language.Tag, 0, len(b.supported))
	for _, lang := range b.supported {
		tag, err := language.Parse(lang)
		if err != nil {
			return nil, fmt.Errorf("i18n: locale %s: %w", lang, err)
		}
		tags = append(tags, tag)
	}
	b.matcher = language.NewMatcher(tags)
	return b, nil
}

// Supported lists the loaded languages, fallback first.
func (b *Bundle) Supported() []string {
	return append([]string(nil), b.supported...)
}

// Fallback returns the configured fallback language.
func (b *Bundle) Fallback() string { return b.fallback }

// IsSupported reports whether a catalog exists for lang.
func (b *Bundle) IsSupported(lang string) bool {
	_, ok := b.dict[strings.ToLower(lang)]
	return ok
}

// T returns translation for key in lang, falling back to default and finally key.
func (b *Bundle) T(lang, key string) string {
	if m, ok := b.dict[lang]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	if v, ok := b.dict[b.fallback][key]; ok {
		return v
	}
	return key
}

// Tf formats the translation for key with args.
func (b *Bundle) Tf(lang, key string, args ...any) string {
	return fmt.Sprintf(b.T(lang, key), args...)
}

// Resolve chooses the best supported language from an Accept-Language header.
func (b *Bundle) Resolve(acceptLang string) string {
	tags, _, err := language.ParseAcceptLanguage(acceptLang)
	if err != nil || len(tags) == 0 {
		return b.fallback
	}
	_, idx, confidence := b.matcher.Match(tags...)
	if confidence == language.No || idx < 0 || idx >= len(b.supported) {
		return b.fallback
	}
	return b.supported[idx]
}

func flatten(prefix string, node map[string]any, out map[string]string) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			flatten(key, val, out)
		case nil:
			out[key] = ""
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}

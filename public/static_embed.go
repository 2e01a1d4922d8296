// Package public embeds the static assets served under /public/static/.
package public

import (
	"embed"
	"io/fs"
)

//go:embed static/*
var assets embed.FS

// StaticFS returns the asset tree rooted at static/.
func StaticFS() (fs.FS, error) {
	return fs.Sub(assets, "static")
}

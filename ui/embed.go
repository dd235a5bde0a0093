package ui

import (
	"embed"
	"io/fs"
)

//go:embed all:dist/spa
var assets embed.FS

// FS is the dashboard single-page app. Unknown paths fall back to index.html.
var FS fs.FS = mustSub(assets, "dist/spa")

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}

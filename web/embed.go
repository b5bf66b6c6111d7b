// Package web embeds the pack request form served at / by the API server.
//
// Usage in the API server:
//
//	import "github.com/seenimoa/secpack/web"
//	fs := web.DistFS()  // returns io/fs.FS rooted at static/
package web

import (
	"embed"
	"io/fs"
)

//go:embed static
var dist embed.FS

// DistFS returns a filesystem rooted at the embedded static/ directory.
// This is ready to use with http.FileServerFS or http.FS.
func DistFS() fs.FS {
	sub, err := fs.Sub(dist, "static")
	if err != nil {
		// The directory is embedded at compile time.
		panic("web.DistFS: " + err.Error())
	}
	return sub
}

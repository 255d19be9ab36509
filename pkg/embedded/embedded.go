// Package embedded provides the web shell assets embedded in the binary.
// The asset cache installs these into cache.db at startup and also uses
// them as the live fallback when a cache lookup misses.
package embedded

import (
	"embed"
	"io/fs"
)

//go:embed web
var files embed.FS

// Shell returns the web shell assets rooted at the asset names the cache
// expects (index.html, style.css, ...).
func Shell() fs.FS {
	sub, err := fs.Sub(files, "web")
	if err != nil {
		// The subtree is part of the binary; a failure here is a build defect.
		panic(err)
	}
	return sub
}

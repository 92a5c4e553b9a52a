// Package assets embeds the static page files copied into every built site.
package assets

import "embed"

//go:embed index.html style.css script.js
var FS embed.FS

// Files lists the embedded assets, each copied to the output root.
var Files = []string{"index.html", "style.css", "script.js"}

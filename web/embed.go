package web

import "embed"

// FS contains the embedded monitor page.
//
//go:embed *.html
var FS embed.FS

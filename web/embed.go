package web

import "embed"

// TemplatesFS holds the page templates. Each page is parsed together with
// layout.html.
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds the stylesheet and the chart script.
//go:embed static/*
var StaticFS embed.FS

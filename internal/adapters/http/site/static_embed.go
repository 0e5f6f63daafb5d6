package site

import (
	"embed"
	"html/template"
)

//go:embed static/overview.html.tmpl
var staticFS embed.FS

var overviewTemplate = template.Must(template.New("overview.html.tmpl").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).ParseFS(staticFS, "static/overview.html.tmpl"))

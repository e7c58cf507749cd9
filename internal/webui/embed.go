package webui

import (
	"embed"
	"html/template"
)

//go:embed templates/*
var embedFS embed.FS

// templates panics at init if the embedded page does not parse
var templates = template.Must(template.ParseFS(embedFS, "templates/*.html"))

package server

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"parcelview/internal/colorscale"
	"parcelview/internal/config"
	"parcelview/internal/style"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type loginPage struct {
	Error    string
	Username string
}

type errorPage struct {
	Status  int
	Code    string
	Message string
}

type mapPage struct {
	Title   string
	Count   int
	Caption string
	Legend  []colorscale.Stop
	Tiles   []config.Tile
	View    viewResponse
	Columns []style.Field
}

// renderPage executes the named template into a buffer first so a template
// error never leaves a half-written page behind.
func (s *Server) renderPage(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		s.deps.Logger.Error("render template", "template", name, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

package handlers

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/rs/zerolog/log"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// pageTemplates is the parsed set of all page templates.
var pageTemplates = mustParseTemplates()

func mustParseTemplates() *template.Template {
	t, err := template.New("").ParseFS(templatesFS, "templates/*.tmpl")
	if err != nil {
		panic("parse templates: " + err.Error())
	}
	return t
}

// indexData is what the index page needs to render.
type indexData struct {
	Endpoint   string
	WSEndpoint string
}

// Index serves GET /, a small form that posts text to the fact-check endpoint.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := pageTemplates.ExecuteTemplate(&buf, "index", indexData{Endpoint: "/fact/check/", WSEndpoint: "/fact/check/ws"}); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to render index")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

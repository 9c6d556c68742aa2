package server

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/xperimental/git-seek/internal/preset"
)

const repositoryNameQuery = `{ repository { name @output } }`

var (
	templateFuncMap = map[string]interface{}{
		"ago": func(date time.Time) string {
			return humanize.Time(date)
		},
	}

	//go:embed _templates
	templateFs embed.FS
)

func loadTemplates() (*template.Template, error) {
	subFs, err := fs.Sub(templateFs, "_templates")
	if err != nil {
		return nil, fmt.Errorf("can not load subdirectory: %w", err)
	}

	tpl, err := template.New("templates").Funcs(templateFuncMap).ParseFS(subFs, "*.html")
	if err != nil {
		return nil, fmt.Errorf("can not load templates: %w", err)
	}

	return tpl, nil
}

type indexData struct {
	Repository string
	Started    time.Time
	Presets    []preset.Preset
}

func (s *Server) indexHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rows, err := s.execute(r.Context(), "index", repositoryNameQuery, nil)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to read repository: %s", err), http.StatusInternalServerError)
			return
		}

		var name string
		if len(rows) > 0 {
			name, _ = rows[0]["name"].AsString()
		}
		data := indexData{
			Repository: name,
			Started:    s.started,
			Presets:    s.presets.All(),
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
			s.requestLog(r).Errorf("Error executing template: %s", err)
		}
	})
}

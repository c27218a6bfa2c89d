package profile

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
)

//go:embed templates/*.html
var templateFS embed.FS

// pages are the templates rendered inside the shared layout.
var pages = []string{"profile.html", "login.html"}

// renderer renders page templates inside templates/layout.html.
type renderer struct {
	pages map[string]*template.Template
}

func newRenderer() (*renderer, error) {
	layoutContent, err := templateFS.ReadFile("templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("failed to read layout template: %w", err)
	}

	layoutTpl, err := template.New("layout").Parse(string(layoutContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse layout template: %w", err)
	}

	r := &renderer{pages: make(map[string]*template.Template, len(pages))}
	for _, name := range pages {
		tmpl, err := layoutTpl.Clone()
		if err != nil {
			return nil, fmt.Errorf("failed to clone layout template: %w", err)
		}

		content, err := templateFS.ReadFile("templates/" + name)
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", name, err)
		}

		if _, err := tmpl.Parse(string(content)); err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		r.pages[name] = tmpl
	}

	return r, nil
}

// pageData holds common data for all templates.
type pageData struct {
	Title string
	Data  any
}

// render writes the named page. Nothing is written when execution fails.
func (r *renderer) render(w http.ResponseWriter, name string, data pageData) error {
	tmpl, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown template %s", name)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("failed to execute template %s: %w", name, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, err := buf.WriteTo(w)
	return err
}

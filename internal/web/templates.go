package web

import (
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"
)

// Templates manages HTML template rendering.
type Templates struct {
	templates map[string]*template.Template
}

// NewTemplates loads every page template under templates/ in the given
// filesystem.
func NewTemplates(templatesFS fs.FS) (*Templates, error) {
	pages, err := fs.Glob(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("finding templates: %w", err)
	}

	t := &Templates{templates: make(map[string]*template.Template, len(pages))}
	for _, page := range pages {
		name := strings.TrimSuffix(path.Base(page), ".html")
		tmpl, err := template.New(path.Base(page)).ParseFS(templatesFS, page)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		t.templates[name] = tmpl
	}
	return t, nil
}

// Render renders a page template with the given data.
func (t *Templates) Render(w io.Writer, page string, data any) error {
	tmpl, ok := t.templates[page]
	if !ok {
		return fmt.Errorf("template %q not found", page)
	}
	return tmpl.Execute(w, data)
}

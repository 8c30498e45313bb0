// Package templates holds the HTML views, embedded into the binary.
package templates

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"strconv"
)

//go:embed *.html
var TemplateFS embed.FS

// Funcs returns custom template functions
func Funcs() template.FuncMap {
	return template.FuncMap{
		"add": func(a, b int) int {
			return a + b
		},
		// num renders a nullable metric, blank when unknown
		"num": func(v *float64, decimals int) string {
			if v == nil {
				return ""
			}
			return strconv.FormatFloat(*v, 'f', decimals, 64)
		},
		"signed": func(v *float64) string {
			if v == nil {
				return "neutral"
			}
			switch {
			case *v > 0:
				return "up"
			case *v < 0:
				return "down"
			}
			return "neutral"
		},
	}
}

// Load parses layout.html, which defines the shared header and footer, then
// every page under its own file name.
func Load() (*template.Template, error) {
	layout, err := fs.ReadFile(TemplateFS, "layout.html")
	if err != nil {
		return nil, fmt.Errorf("failed to read layout.html: %w", err)
	}

	master, err := template.New("layout.html").Funcs(Funcs()).Parse(string(layout))
	if err != nil {
		return nil, fmt.Errorf("failed to parse layout template: %w", err)
	}

	paths, err := fs.Glob(TemplateFS, "*.html")
	if err != nil {
		return nil, err
	}

	for _, path := range paths {
		if path == "layout.html" {
			continue
		}

		content, err := fs.ReadFile(TemplateFS, path)
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", path, err)
		}
		if _, err := master.New(path).Parse(string(content)); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	return master, nil
}

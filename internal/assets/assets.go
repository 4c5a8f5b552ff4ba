// Package assets provides the markup injected into watched pages.
// Templates are embedded so the binary has no file dependencies.
package assets

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
)

//go:embed templates/*.html
var templates embed.FS

// toggleTemplate is parsed once; html/template escapes every value.
var toggleTemplate = template.Must(template.ParseFS(templates, "templates/toggle.html"))

// ToggleData is rendered by RenderToggle.
type ToggleData struct {
	ID      string
	Label   string
	Title   string
	Enabled bool
}

// RenderToggle renders the in-page redirect switch. The checkbox always
// carries the data-ytorigin-toggle attribute the page bridge listens on.
func RenderToggle(data ToggleData) (string, error) {
	var buf bytes.Buffer
	if err := toggleTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

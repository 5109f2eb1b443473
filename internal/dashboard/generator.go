// Package dashboard renders the static HTML surfaces: the live dashboard
// page and periodic traffic reports. Templates are embedded so the binary
// ships self-contained.
package dashboard

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	"houstonintel/internal/analytics"
	"houstonintel/types"
)

//go:embed templates/*.html
var templateFiles embed.FS

// DashboardData is everything the dashboard page shows.
type DashboardData struct {
	Snapshot    types.MetricsSnapshot
	Endpoints   []analytics.EndpointUsage
	Sessions    analytics.SessionStats
	Alerts      []analytics.Alert
	Insights    []*types.Insight
	GeneratedAt time.Time
}

// Generator renders the dashboard page.
type Generator struct {
	tpl *template.Template
}

// NewGenerator parses the embedded templates.
func NewGenerator() (*Generator, error) {
	tpl, err := template.ParseFS(templateFiles, "templates/dashboard.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse dashboard template: %w", err)
	}
	return &Generator{tpl: tpl}, nil
}

// Render produces the dashboard HTML for the given data.
func (g *Generator) Render(data DashboardData) (string, error) {
	if data.GeneratedAt.IsZero() {
		data.GeneratedAt = time.Now()
	}

	var buf bytes.Buffer
	if err := g.tpl.ExecuteTemplate(&buf, "dashboard.html", data); err != nil {
		return "", fmt.Errorf("failed to render dashboard: %w", err)
	}
	return buf.String(), nil
}

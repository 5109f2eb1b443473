package dashboard

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"sort"
	"time"

	"houstonintel/internal/analytics"
)

// ReportPeriod selects the report's time range.
type ReportPeriod string

const (
	ReportDaily  ReportPeriod = "daily"
	ReportWeekly ReportPeriod = "weekly"
)

// DayCount is one day's call volume.
type DayCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// ReportData is the assembled report view model.
type ReportData struct {
	Title            string
	Period           ReportPeriod
	Start            time.Time
	End              time.Time
	GeneratedAt      time.Time
	DailyCounts      []DayCount
	TopEndpoints     []analytics.EndpointUsage
	SlowestEndpoints []analytics.EndpointUsage
	ErrorLeaders     []analytics.EndpointUsage
	Sessions         analytics.SessionStats
}

// ReportGenerator builds periodic traffic reports from the analytics store.
type ReportGenerator struct {
	db  *analytics.Database
	tpl *template.Template
}

// NewReportGenerator parses the report template.
func NewReportGenerator(db *analytics.Database) (*ReportGenerator, error) {
	tpl, err := template.ParseFS(templateFiles, "templates/report.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse report template: %w", err)
	}
	return &ReportGenerator{db: db, tpl: tpl}, nil
}

// Generate queries the range for the period and renders the report HTML.
func (r *ReportGenerator) Generate(period ReportPeriod) (string, error) {
	data, err := r.buildData(period, time.Now())
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := r.tpl.ExecuteTemplate(&buf, "report.html", data); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return buf.String(), nil
}

// WriteFile renders the report and writes it to path.
func (r *ReportGenerator) WriteFile(period ReportPeriod, path string) error {
	html, err := r.Generate(period)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func (r *ReportGenerator) buildData(period ReportPeriod, now time.Time) (*ReportData, error) {
	days := 1
	title := "Daily Traffic Report"
	if period == ReportWeekly {
		days = 7
		title = "Weekly Traffic Report"
	}
	start := now.AddDate(0, 0, -days)

	usage, err := r.db.UsageByEndpoint(start, 0)
	if err != nil {
		return nil, err
	}

	byDay, err := r.db.CallCountByDay(start)
	if err != nil {
		return nil, err
	}

	sessions, err := r.db.SessionStatsSince(start)
	if err != nil {
		return nil, err
	}

	data := &ReportData{
		Title:        title,
		Period:       period,
		Start:        start,
		End:          now,
		GeneratedAt:  now,
		TopEndpoints: topN(usage, 10, func(a, b analytics.EndpointUsage) bool { return a.Count > b.Count }),
		SlowestEndpoints: topN(usage, 10, func(a, b analytics.EndpointUsage) bool {
			return a.P95Ms > b.P95Ms
		}),
		ErrorLeaders: topN(filterErrors(usage), 10, func(a, b analytics.EndpointUsage) bool {
			return a.ErrorCount > b.ErrorCount
		}),
		Sessions: sessions,
	}

	dates := make([]string, 0, len(byDay))
	for d := range byDay {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	for _, d := range dates {
		data.DailyCounts = append(data.DailyCounts, DayCount{Date: d, Count: byDay[d]})
	}

	return data, nil
}

func topN(usage []analytics.EndpointUsage, n int, less func(a, b analytics.EndpointUsage) bool) []analytics.EndpointUsage {
	sorted := make([]analytics.EndpointUsage, len(usage))
	copy(sorted, usage)
	sort.Slice(sorted, func(i, j int) bool { return less(sorted[i], sorted[j]) })
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func filterErrors(usage []analytics.EndpointUsage) []analytics.EndpointUsage {
	var out []analytics.EndpointUsage
	for _, u := range usage {
		if u.ErrorCount > 0 {
			out = append(out, u)
		}
	}
	return out
}

package server

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"houstonintel/internal/dashboard"
	"houstonintel/internal/errors"
	"houstonintel/messages"
	"houstonintel/types"
)

// handleDashboardPage renders the dashboard HTML from live data.
func (p *Platform) handleDashboardPage(w http.ResponseWriter, r *http.Request) {
	snapshot := p.Engine.Snapshot()

	usage, err := p.DB.UsageByEndpoint(time.Now().Add(-24*time.Hour), 20)
	if err != nil {
		errors.SendError(w, errors.NewStorageError("endpoint usage", err))
		return
	}

	sessions, err := p.DB.SessionStatsSince(time.Now().Add(-15 * time.Minute))
	if err != nil {
		errors.SendError(w, errors.NewStorageError("session stats", err))
		return
	}

	html, err := p.Dashboard.Render(dashboard.DashboardData{
		Snapshot:  *snapshot,
		Endpoints: usage,
		Sessions:  sessions,
		Alerts:    p.Alerting.GetActiveAlerts(),
		Insights:  p.Registry.LatestInsights(),
	})
	if err != nil {
		errors.SendError(w, errors.NewInternalError("failed to render dashboard", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(html))
}

// handleMetrics returns the current snapshot.
func (p *Platform) handleMetrics(w http.ResponseWriter, r *http.Request) {
	errors.SendSuccess(w, p.Engine.Snapshot())
}

// handleEndpoints returns usage-by-endpoint over a range.
// Query params: hours (default 24), limit (default 50).
func (p *Platform) handleEndpoints(w http.ResponseWriter, r *http.Request) {
	hours := queryInt(r, "hours", 24)
	limit := queryInt(r, "limit", 50)

	usage, err := p.DB.UsageByEndpoint(time.Now().Add(-time.Duration(hours)*time.Hour), limit)
	if err != nil {
		errors.SendError(w, errors.NewStorageError("endpoint usage", err))
		return
	}
	errors.SendSuccess(w, usage)
}

// handleRecentCalls returns the engine's in-memory recent call buffer.
func (p *Platform) handleRecentCalls(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	errors.SendSuccess(w, p.Engine.RecentCalls(limit))
}

// handleSessions returns session stats plus the most recent sessions.
func (p *Platform) handleSessions(w http.ResponseWriter, r *http.Request) {
	stats, err := p.DB.SessionStatsSince(time.Now().Add(-15 * time.Minute))
	if err != nil {
		errors.SendError(w, errors.NewStorageError("session stats", err))
		return
	}

	sessions, err := p.DB.Sessions(queryInt(r, "limit", 50))
	if err != nil {
		errors.SendError(w, errors.NewStorageError("sessions", err))
		return
	}

	errors.SendSuccess(w, map[string]interface{}{
		"stats":    stats,
		"sessions": sessions,
	})
}

// handleSystem returns the latest host metrics sample.
func (p *Platform) handleSystem(w http.ResponseWriter, r *http.Request) {
	snapshot := p.Engine.Snapshot()
	if snapshot.System == nil {
		errors.SendError(w, errors.NewNotFoundError("system sample"))
		return
	}
	errors.SendSuccess(w, snapshot.System)
}

// handleAlerts returns active (unresolved) alerts.
func (p *Platform) handleAlerts(w http.ResponseWriter, r *http.Request) {
	errors.SendSuccess(w, p.Alerting.GetActiveAlerts())
}

// handleResolveAlert marks an alert resolved.
func (p *Platform) handleResolveAlert(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !p.Alerting.ResolveAlert(id) {
		errors.SendError(w, errors.NewNotFoundError("alert"))
		return
	}
	errors.SendSuccess(w, map[string]string{"resolved": id})
}

// handleInsights returns the latest insight from every analyzer.
func (p *Platform) handleInsights(w http.ResponseWriter, r *http.Request) {
	errors.SendSuccess(w, p.Registry.LatestInsights())
}

// handleInsightByDomain returns one analyzer's latest insight.
func (p *Platform) handleInsightByDomain(w http.ResponseWriter, r *http.Request) {
	domain := types.Domain(mux.Vars(r)["domain"])

	analyzer, err := p.Registry.Get(domain)
	if err != nil {
		errors.SendError(w, errors.NewNotFoundError("analysis domain"))
		return
	}

	insight := analyzer.LatestInsight()
	if insight == nil {
		errors.SendError(w, errors.NewNotFoundError("insight"))
		return
	}
	errors.SendSuccess(w, insight)
}

// handleAnalyze runs one analyzer on the posted JSON input and broadcasts
// the resulting insight to dashboard clients.
func (p *Platform) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	domain := types.Domain(mux.Vars(r)["domain"])

	analyzer, err := p.Registry.Get(domain)
	if err != nil {
		errors.SendError(w, errors.NewNotFoundError("analysis domain"))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		errors.SendError(w, errors.NewValidationError("failed to read request body", nil))
		return
	}

	insight, err := analyzer.AnalyzeJSON(body)
	if err != nil {
		errors.SendError(w, errors.NewValidationError(err.Error(), nil))
		return
	}

	p.Hub.BroadcastFrame(messages.Frame{
		Type:      messages.FrameInsight,
		Payload:   messages.InsightMsg{Insight: insight, Timestamp: time.Now()},
		Timestamp: time.Now(),
	})

	errors.SendSuccess(w, insight)
}

// handleDailyReport renders the traffic report.
// Query param: period=daily|weekly (default daily).
func (p *Platform) handleDailyReport(w http.ResponseWriter, r *http.Request) {
	period := dashboard.ReportDaily
	if r.URL.Query().Get("period") == string(dashboard.ReportWeekly) {
		period = dashboard.ReportWeekly
	}

	html, err := p.Reports.Generate(period)
	if err != nil {
		errors.SendError(w, errors.NewInternalError("failed to generate report", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(html))
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

package types

import "time"

// ============================================================================
// API CALL TRACKING
// ============================================================================

type APICall struct {
	ID             string    `json:"id"`
	Endpoint       string    `json:"endpoint"`
	Method         string    `json:"method"`
	StatusCode     int       `json:"status_code"`
	ResponseTimeMs float64   `json:"response_time_ms"`
	UserID         string    `json:"user_id,omitempty"`
	SessionID      string    `json:"session_id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	Error          string    `json:"error,omitempty"`
}

// EndpointStats holds rolling per-endpoint counters maintained by the
// analytics engine's aggregator goroutine.
type EndpointStats struct {
	Endpoint     string    `json:"endpoint"`
	Count        int64     `json:"count"`
	ErrorCount   int64     `json:"error_count"`
	TotalMs      float64   `json:"total_ms"`
	MinMs        float64   `json:"min_ms"`
	MaxMs        float64   `json:"max_ms"`
	LastSeen     time.Time `json:"last_seen"`
}

// AvgMs returns the mean response time for the endpoint.
func (s EndpointStats) AvgMs() float64 {
	if s.Count == 0 {
		return 0
	}
	return s.TotalMs / float64(s.Count)
}

// ErrorRate returns the fraction of calls that failed.
func (s EndpointStats) ErrorRate() float64 {
	if s.Count == 0 {
		return 0
	}
	return float64(s.ErrorCount) / float64(s.Count)
}

// MetricsSnapshot is the rolling aggregate view recomputed by the engine on
// each aggregation tick and served to the dashboard and WebSocket clients.
type MetricsSnapshot struct {
	TotalCalls     int64                    `json:"total_calls"`
	TotalErrors    int64                    `json:"total_errors"`
	DroppedCalls   int64                    `json:"dropped_calls"`
	CallsPerMinute float64                  `json:"calls_per_minute"`
	P50Ms          float64                  `json:"p50_ms"`
	P95Ms          float64                  `json:"p95_ms"`
	P99Ms          float64                  `json:"p99_ms"`
	Endpoints      map[string]EndpointStats `json:"endpoints"`
	System         *SystemSample            `json:"system,omitempty"`
	GeneratedAt    time.Time                `json:"generated_at"`
}

// SystemSample is one host-metrics reading from the collector.
type SystemSample struct {
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryPercent float64   `json:"memory_percent"`
	MemoryUsedMB  float64   `json:"memory_used_mb"`
	DiskPercent   float64   `json:"disk_percent"`
	NetBytesSent  uint64    `json:"net_bytes_sent"`
	NetBytesRecv  uint64    `json:"net_bytes_recv"`
	Timestamp     time.Time `json:"timestamp"`
}

type MetricSample struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Value     float64   `json:"value"`
	Unit      string    `json:"unit"`
	Timestamp time.Time `json:"timestamp"`
}

type SessionInfo struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	StartedAt  time.Time `json:"started_at"`
	LastSeen   time.Time `json:"last_seen"`
	CallCount  int64     `json:"call_count"`
	UserAgent  string    `json:"user_agent,omitempty"`
	RemoteAddr string    `json:"remote_addr,omitempty"`
}

// ============================================================================
// MARKET INSIGHTS
// ============================================================================

type Domain string

const (
	DomainEnvironmental Domain = "environmental"
	DomainFinancial     Domain = "financial"
	DomainRegulatory    Domain = "regulatory"
	DomainTechnology    Domain = "technology"
)

// Insight is the unit of analyzer output: a titled bundle of findings,
// recommendations and risks scoped to a Houston geography.
type Insight struct {
	ID              string    `json:"id"`
	Domain          Domain    `json:"domain"`
	Title           string    `json:"title"`
	Summary         string    `json:"summary"`
	Findings        []Finding `json:"findings"`
	Recommendations []string  `json:"recommendations"`
	Risks           []Risk    `json:"risks"`
	Confidence      float64   `json:"confidence"`
	Geography       Geography `json:"geography"`
	Tags            []string  `json:"tags,omitempty"`
	Priority        float64   `json:"priority,omitempty"`
	GeneratedAt     time.Time `json:"generated_at"`
}

type Finding struct {
	Category  string   `json:"category"`
	Statement string   `json:"statement"`
	Evidence  string   `json:"evidence,omitempty"`
	Severity  Severity `json:"severity"`
}

type Risk struct {
	Statement  string  `json:"statement"`
	Likelihood string  `json:"likelihood"` // "low", "medium", "high"
	Impact     string  `json:"impact"`     // "low", "medium", "high"
	Score      float64 `json:"score"`
}

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Weight maps a severity onto the 0-1 scale used by priority scoring.
func (s Severity) Weight() float64 {
	switch s {
	case SeverityCritical:
		return 1.0
	case SeverityHigh:
		return 0.8
	case SeverityMedium:
		return 0.5
	case SeverityLow:
		return 0.25
	default:
		return 0.1
	}
}

type Geography struct {
	City     string `json:"city"`
	County   string `json:"county,omitempty"`
	District string `json:"district,omitempty"`
	ZipCode  string `json:"zip_code,omitempty"`
}

// Scope returns the most specific geographic label available.
func (g Geography) Scope() string {
	switch {
	case g.ZipCode != "":
		return g.ZipCode
	case g.District != "":
		return g.District
	case g.County != "":
		return g.County
	case g.City != "":
		return g.City
	default:
		return "citywide"
	}
}

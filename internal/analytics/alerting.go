package analytics

import (
	"fmt"
	"log"
	"sync"
	"time"

	"houstonintel/types"
)

// AlertLevel represents the severity level of an alert
type AlertLevel int

const (
	InfoAlert AlertLevel = iota
	WarningAlert
	ErrorAlert
	CriticalAlert
)

// String returns the string representation of AlertLevel
func (l AlertLevel) String() string {
	switch l {
	case InfoAlert:
		return "INFO"
	case WarningAlert:
		return "WARNING"
	case ErrorAlert:
		return "ERROR"
	case CriticalAlert:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Alert represents a triggered analytics alert
type Alert struct {
	ID          string                 `json:"id"`
	Level       AlertLevel             `json:"level"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Source      string                 `json:"source"`
	Timestamp   time.Time              `json:"timestamp"`
	Data        map[string]interface{} `json:"data,omitempty"`
	Resolved    bool                   `json:"resolved"`
	ResolvedAt  time.Time              `json:"resolved_at,omitempty"`
}

// AlertRule represents a rule for generating alerts
type AlertRule struct {
	ID            string
	Name          string
	Description   string
	Condition     AlertCondition
	Level         AlertLevel
	Cooldown      time.Duration
	LastTriggered time.Time
}

// AlertCondition evaluates whether a tracked call should trigger an alert.
type AlertCondition func(call types.APICall, state *AlertingState) bool

// AlertHandler is a function that handles an alert
type AlertHandler func(alert Alert)

// AlertingSystem manages alert rules and generates alerts from tracked calls
type AlertingSystem struct {
	mutex     sync.RWMutex
	rules     map[string]AlertRule
	alerts    []Alert
	handlers  []AlertHandler
	state     *AlertingState
	maxAlerts int
}

// AlertingState maintains rolling per-endpoint state for alert conditions
type AlertingState struct {
	mutex        sync.RWMutex
	callCounts   map[string]int64
	errorCounts  map[string]int64
	lastSeen     map[string]time.Time
	latencies    map[string][]float64
	recentErrors []time.Time
	windowSize   int
}

// NewAlertingSystem creates a new alerting system
func NewAlertingSystem(maxAlerts int) *AlertingSystem {
	if maxAlerts <= 0 {
		maxAlerts = 1000
	}

	return &AlertingSystem{
		rules:     make(map[string]AlertRule),
		alerts:    make([]Alert, 0, maxAlerts),
		handlers:  make([]AlertHandler, 0),
		maxAlerts: maxAlerts,
		state:     newAlertingState(),
	}
}

// newAlertingState creates a new alerting state
func newAlertingState() *AlertingState {
	return &AlertingState{
		callCounts:  make(map[string]int64),
		errorCounts: make(map[string]int64),
		lastSeen:    make(map[string]time.Time),
		latencies:   make(map[string][]float64),
		windowSize:  60,
	}
}

// RegisterRule registers an alert rule
func (a *AlertingSystem) RegisterRule(rule AlertRule) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	a.rules[rule.ID] = rule
}

// RegisterHandler registers an alert handler
func (a *AlertingSystem) RegisterHandler(handler AlertHandler) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	a.handlers = append(a.handlers, handler)
}

// EvaluateCall updates alerting state with a tracked call and fires any rules
// whose conditions hold.
func (a *AlertingSystem) EvaluateCall(call types.APICall) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	a.updateState(call)

	for _, rule := range a.rules {
		if !rule.LastTriggered.IsZero() && time.Since(rule.LastTriggered) < rule.Cooldown {
			continue
		}

		if rule.Condition(call, a.state) {
			alert := Alert{
				ID:          fmt.Sprintf("alert-%d", time.Now().UnixNano()),
				Level:       rule.Level,
				Title:       rule.Name,
				Description: rule.Description,
				Source:      call.Endpoint,
				Timestamp:   time.Now(),
				Data: map[string]interface{}{
					"endpoint":         call.Endpoint,
					"status_code":      call.StatusCode,
					"response_time_ms": call.ResponseTimeMs,
				},
				Resolved: false,
			}

			a.alerts = append(a.alerts, alert)
			if len(a.alerts) > a.maxAlerts {
				a.alerts = a.alerts[len(a.alerts)-a.maxAlerts:]
			}

			ruleCopy := rule
			ruleCopy.LastTriggered = time.Now()
			a.rules[rule.ID] = ruleCopy

			for _, handler := range a.handlers {
				go handler(alert)
			}
		}
	}
}

// updateState updates the alerting state with a new call
func (a *AlertingSystem) updateState(call types.APICall) {
	a.state.mutex.Lock()
	defer a.state.mutex.Unlock()

	a.state.callCounts[call.Endpoint]++
	a.state.lastSeen[call.Endpoint] = call.Timestamp

	if call.StatusCode >= 400 || call.Error != "" {
		a.state.errorCounts[call.Endpoint]++
		a.state.recentErrors = append(a.state.recentErrors, call.Timestamp)
	}

	// Trim the error window to the last minute.
	cutoff := time.Now().Add(-time.Minute)
	trimmed := a.state.recentErrors[:0]
	for _, t := range a.state.recentErrors {
		if t.After(cutoff) {
			trimmed = append(trimmed, t)
		}
	}
	a.state.recentErrors = trimmed

	window := a.state.latencies[call.Endpoint]
	window = append(window, call.ResponseTimeMs)
	if len(window) > a.state.windowSize {
		window = window[1:]
	}
	a.state.latencies[call.Endpoint] = window
}

// GetAlerts returns all alerts
func (a *AlertingSystem) GetAlerts() []Alert {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	alerts := make([]Alert, len(a.alerts))
	copy(alerts, a.alerts)

	return alerts
}

// GetActiveAlerts returns all active (unresolved) alerts
func (a *AlertingSystem) GetActiveAlerts() []Alert {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	var activeAlerts []Alert

	for _, alert := range a.alerts {
		if !alert.Resolved {
			activeAlerts = append(activeAlerts, alert)
		}
	}

	return activeAlerts
}

// ResolveAlert resolves an alert
func (a *AlertingSystem) ResolveAlert(alertID string) bool {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	for i, alert := range a.alerts {
		if alert.ID == alertID {
			alert.Resolved = true
			alert.ResolvedAt = time.Now()
			a.alerts[i] = alert
			return true
		}
	}

	return false
}

// Common alert conditions

// LatencyCondition triggers when a call's response time exceeds a threshold.
func LatencyCondition(thresholdMs float64) AlertCondition {
	return func(call types.APICall, state *AlertingState) bool {
		return call.ResponseTimeMs > thresholdMs
	}
}

// ErrorRateCondition triggers when errors in the last minute exceed a count.
func ErrorRateCondition(errorsPerMinute int) AlertCondition {
	return func(call types.APICall, state *AlertingState) bool {
		if call.StatusCode < 400 && call.Error == "" {
			return false
		}

		state.mutex.RLock()
		defer state.mutex.RUnlock()

		return len(state.recentErrors) > errorsPerMinute
	}
}

// LatencySpikeCondition triggers when a call is slower than the endpoint's
// rolling average by the given percentage.
func LatencySpikeCondition(percentChange float64) AlertCondition {
	return func(call types.APICall, state *AlertingState) bool {
		state.mutex.RLock()
		defer state.mutex.RUnlock()

		window := state.latencies[call.Endpoint]
		if len(window) < 10 {
			return false
		}

		var sum float64
		for _, ms := range window {
			sum += ms
		}
		avg := sum / float64(len(window))
		if avg == 0 {
			return false
		}

		change := (call.ResponseTimeMs - avg) / avg * 100
		return change > percentChange
	}
}

// EndpointErrorCondition triggers when one endpoint's cumulative error count
// crosses a threshold.
func EndpointErrorCondition(endpoint string, maxErrors int64) AlertCondition {
	return func(call types.APICall, state *AlertingState) bool {
		if call.Endpoint != endpoint {
			return false
		}

		state.mutex.RLock()
		defer state.mutex.RUnlock()

		return state.errorCounts[endpoint] > maxErrors
	}
}

// DefaultRules returns the rule set installed by the serve command.
func DefaultRules() []AlertRule {
	return []AlertRule{
		{
			ID:          "high-latency",
			Name:        "High response time",
			Description: "A request took longer than 2 seconds",
			Condition:   LatencyCondition(2000),
			Level:       WarningAlert,
			Cooldown:    time.Minute,
		},
		{
			ID:          "error-burst",
			Name:        "Error burst",
			Description: "More than 10 failed requests in the last minute",
			Condition:   ErrorRateCondition(10),
			Level:       ErrorAlert,
			Cooldown:    time.Minute,
		},
		{
			ID:          "latency-spike",
			Name:        "Latency spike",
			Description: "A request was 200% slower than the endpoint's rolling average",
			Condition:   LatencySpikeCondition(200),
			Level:       WarningAlert,
			Cooldown:    30 * time.Second,
		},
	}
}

// CreateLogAlertHandler creates an alert handler that writes alerts to the log
func CreateLogAlertHandler() AlertHandler {
	return func(alert Alert) {
		log.Printf("🚨 ALERT [%s]: %s - %s", alert.Level.String(), alert.Title, alert.Description)
	}
}

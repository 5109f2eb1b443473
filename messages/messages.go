package messages

import (
	"time"

	"houstonintel/types"
)

// Frame is the envelope for every message pushed over the dashboard WebSocket.
type Frame struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// Frame types understood by the dashboard client.
const (
	FrameSnapshot = "snapshot"
	FrameAlert    = "alert"
	FrameStatus   = "status"
	FrameInsight  = "insight"
)

// AlertMsg represents a triggered analytics alert.
type AlertMsg struct {
	Level     AlertLevel
	Title     string
	Message   string
	Source    string
	Timestamp time.Time
}

// AlertLevel represents the severity of an alert
type AlertLevel int

const (
	InfoAlert AlertLevel = iota
	WarningAlert
	ErrorAlert
	CriticalAlert
)

// String returns the string representation of AlertLevel
func (a AlertLevel) String() string {
	switch a {
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

// StatusUpdateMsg represents general component status updates
type StatusUpdateMsg struct {
	Component string
	Status    string
	Message   string
	Timestamp time.Time
}

// InsightMsg is pushed when an analyzer run completes.
type InsightMsg struct {
	Insight   *types.Insight
	Timestamp time.Time
}

// SnapshotFrame wraps a snapshot in a wire Frame.
func SnapshotFrame(s *types.MetricsSnapshot) Frame {
	return Frame{Type: FrameSnapshot, Payload: s, Timestamp: time.Now()}
}

// AlertFrame wraps an alert in a wire Frame.
func AlertFrame(a AlertMsg) Frame {
	return Frame{Type: FrameAlert, Payload: a, Timestamp: time.Now()}
}

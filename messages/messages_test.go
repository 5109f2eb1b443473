package messages

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"houstonintel/types"
)

func TestAlertLevel_String(t *testing.T) {
	testCases := []struct {
		level    AlertLevel
		expected string
	}{
		{InfoAlert, "INFO"},
		{WarningAlert, "WARNING"},
		{ErrorAlert, "ERROR"},
		{CriticalAlert, "CRITICAL"},
		{AlertLevel(999), "UNKNOWN"}, // Test unknown level
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.level.String())
		})
	}
}

func TestSnapshotFrame(t *testing.T) {
	snapshot := &types.MetricsSnapshot{TotalCalls: 42}
	frame := SnapshotFrame(snapshot)

	assert.Equal(t, FrameSnapshot, frame.Type)
	assert.False(t, frame.Timestamp.IsZero())

	payload, ok := frame.Payload.(*types.MetricsSnapshot)
	require.True(t, ok)
	assert.Equal(t, int64(42), payload.TotalCalls)
}

func TestAlertFrame(t *testing.T) {
	msg := AlertMsg{
		Level:     CriticalAlert,
		Title:     "Error spike",
		Message:   "error rate above threshold on /api/v1/metrics",
		Source:    "alerting",
		Timestamp: time.Now(),
	}
	frame := AlertFrame(msg)

	assert.Equal(t, FrameAlert, frame.Type)
	payload, ok := frame.Payload.(AlertMsg)
	require.True(t, ok)
	assert.Equal(t, "Error spike", payload.Title)
	assert.Equal(t, CriticalAlert, payload.Level)
}

func TestFrame_JSONRoundTrip(t *testing.T) {
	frame := SnapshotFrame(&types.MetricsSnapshot{TotalCalls: 7, TotalErrors: 1})

	raw, err := json.Marshal(frame)
	require.NoError(t, err)

	var decoded struct {
		Type    string `json:"type"`
		Payload struct {
			TotalCalls int64 `json:"total_calls"`
		} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, FrameSnapshot, decoded.Type)
	assert.Equal(t, int64(7), decoded.Payload.TotalCalls)
}

package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"houstonintel/types"
)

func aggCall(ms float64, status int, at time.Time) types.APICall {
	return types.APICall{
		ID:             "c",
		Endpoint:       "/api/v1/metrics",
		Method:         "GET",
		StatusCode:     status,
		ResponseTimeMs: ms,
		Timestamp:      at,
	}
}

func TestTumblingWindowAggregation(t *testing.T) {
	wa := NewWindowedAggregator(TumblingWindow, time.Minute)
	base := time.Now().Truncate(time.Minute)

	require.NoError(t, wa.ProcessCall(aggCall(10, 200, base.Add(5*time.Second))))
	require.NoError(t, wa.ProcessCall(aggCall(30, 500, base.Add(20*time.Second))))
	// Next minute: lands in a different tumbling window.
	require.NoError(t, wa.ProcessCall(aggCall(100, 200, base.Add(70*time.Second))))

	windows := wa.GetWindowsInRange(base, base.Add(time.Minute).Add(-time.Nanosecond))
	require.Len(t, windows, 1)

	w := windows[0]
	assert.Equal(t, int64(2), w.Count)
	assert.Equal(t, int64(1), w.ErrorCount)
	assert.Equal(t, 20.0, w.AvgMs())
	assert.Equal(t, 10.0, w.MinMs)
	assert.Equal(t, 30.0, w.MaxMs)
}

func TestSlidingWindowCoversTimestampTwice(t *testing.T) {
	wa := NewWindowedAggregator(SlidingWindow, time.Minute)
	at := time.Now().Truncate(time.Minute).Add(45 * time.Second)

	require.NoError(t, wa.ProcessCall(aggCall(50, 200, at)))

	// With the default half-window slide, one call lands in two windows.
	windows := wa.GetWindows()
	assert.Len(t, windows, 2)
	for _, w := range windows {
		assert.Equal(t, int64(1), w.Count)
	}
}

func TestWindowPercentiles(t *testing.T) {
	wa := NewWindowedAggregator(TumblingWindow, time.Minute)
	base := time.Now().Truncate(time.Minute)

	for i := 1; i <= 10; i++ {
		require.NoError(t, wa.ProcessCall(aggCall(float64(i*10), 200, base.Add(time.Second))))
	}

	windows := wa.GetWindows()
	require.Len(t, windows, 1)
	assert.Equal(t, 50.0, windows[0].PercentileMs(50))
	assert.Equal(t, 100.0, windows[0].PercentileMs(95))
}

func TestCurrentPercentilesAcrossWindows(t *testing.T) {
	wa := NewWindowedAggregator(TumblingWindow, time.Minute)
	base := time.Now().Truncate(time.Minute)

	require.NoError(t, wa.ProcessCall(aggCall(10, 200, base.Add(time.Second))))
	require.NoError(t, wa.ProcessCall(aggCall(90, 200, base.Add(70*time.Second))))

	p50, p95, p99 := wa.CurrentPercentiles(base, base.Add(2*time.Minute))
	assert.Equal(t, 10.0, p50)
	assert.Equal(t, 90.0, p95)
	assert.Equal(t, 90.0, p99)
}

func TestGetCallRate(t *testing.T) {
	wa := NewWindowedAggregator(TumblingWindow, time.Minute)
	base := time.Now().Truncate(time.Minute)

	for i := 0; i < 6; i++ {
		require.NoError(t, wa.ProcessCall(aggCall(1, 200, base.Add(time.Duration(i)*time.Second))))
	}

	rate := wa.GetCallRate(base, base.Add(time.Minute))
	assert.InDelta(t, 0.1, rate, 0.001, "6 calls over 60 seconds")
}

func TestGetCallRateSlidingCountsEventsOnce(t *testing.T) {
	wa := NewWindowedAggregator(SlidingWindow, time.Minute)
	base := time.Now().Truncate(time.Minute)

	// Each call lands in two overlapping windows, but the rate must
	// still reflect six events, not twelve.
	for i := 0; i < 6; i++ {
		require.NoError(t, wa.ProcessCall(aggCall(1, 200, base.Add(time.Duration(i)*time.Second))))
	}

	rate := wa.GetCallRate(base, base.Add(time.Minute))
	assert.InDelta(t, 0.1, rate, 0.001, "6 calls over 60 seconds")
}

func TestNegativeLatencyRejected(t *testing.T) {
	wa := NewWindowedAggregator(TumblingWindow, time.Minute)

	err := wa.ProcessCall(aggCall(-1, 200, time.Now()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "negative response time")
}

func TestWindowCleanup(t *testing.T) {
	wa := NewWindowedAggregator(TumblingWindow, time.Minute)
	wa.SetRetention(time.Hour)

	// A call two hours in the past creates a window that the next
	// ProcessCall should garbage-collect.
	require.NoError(t, wa.ProcessCall(aggCall(1, 200, time.Now().Add(-2*time.Hour))))
	require.NoError(t, wa.ProcessCall(aggCall(1, 200, time.Now())))

	for _, w := range wa.GetWindows() {
		assert.True(t, w.Window.EndTime.After(time.Now().Add(-wa.retention)))
	}
}

func TestCustomAggregator(t *testing.T) {
	wa := NewWindowedAggregator(TumblingWindow, time.Minute)

	var seen int
	wa.RegisterAggregator("tap", func(window *WindowData, call types.APICall) error {
		seen++
		return nil
	})

	require.NoError(t, wa.ProcessCall(aggCall(5, 200, time.Now())))
	assert.Equal(t, 1, seen)
}

package analytics

import (
	"fmt"
	"sync"
	"time"

	"houstonintel/types"
)

// WindowType represents different types of time windows
type WindowType int

const (
	TumblingWindow WindowType = iota // Non-overlapping fixed-size windows
	SlidingWindow                    // Overlapping fixed-size windows
)

// Window represents a time window for aggregation
type Window struct {
	StartTime time.Time
	EndTime   time.Time
	Type      WindowType
	Size      time.Duration
	Slide     time.Duration // For sliding windows
}

// WindowedAggregator maintains windowed latency aggregates over tracked calls.
// It is owned by the engine's aggregator goroutine; the mutex covers the
// read-side queries from the dashboard.
type WindowedAggregator struct {
	mutex       sync.RWMutex
	windows     map[string]*WindowData
	windowType  WindowType
	windowSize  time.Duration
	slideSize   time.Duration
	retention   time.Duration
	aggregators map[string]AggregatorFunc
}

// WindowData contains aggregates for a specific window
type WindowData struct {
	Window     Window
	Count      int64
	ErrorCount int64
	SumMs      float64
	MinMs      float64
	MaxMs      float64
	Latencies  []float64
	LastUpdate time.Time
}

// AvgMs returns the mean latency for the window.
func (w *WindowData) AvgMs() float64 {
	if w.Count == 0 {
		return 0
	}
	return w.SumMs / float64(w.Count)
}

// PercentileMs returns the p-th latency percentile for the window.
func (w *WindowData) PercentileMs(p float64) float64 {
	return Percentile(w.Latencies, p)
}

// AggregatorFunc folds one call into a window's aggregates.
type AggregatorFunc func(window *WindowData, call types.APICall) error

// NewWindowedAggregator creates a new windowed aggregator
func NewWindowedAggregator(windowType WindowType, windowSize time.Duration) *WindowedAggregator {
	wa := &WindowedAggregator{
		windows:     make(map[string]*WindowData),
		windowType:  windowType,
		windowSize:  windowSize,
		slideSize:   windowSize / 2, // Default slide is half the window size
		retention:   time.Hour,
		aggregators: make(map[string]AggregatorFunc),
	}

	// Register default aggregators
	wa.RegisterAggregator("latency", latencyAggregator)
	wa.RegisterAggregator("errors", errorAggregator)

	return wa
}

// SetSlideSize sets the slide size for sliding windows
func (wa *WindowedAggregator) SetSlideSize(slideSize time.Duration) {
	wa.mutex.Lock()
	defer wa.mutex.Unlock()

	wa.slideSize = slideSize
}

// SetRetention sets how long expired windows are kept for range queries.
func (wa *WindowedAggregator) SetRetention(retention time.Duration) {
	wa.mutex.Lock()
	defer wa.mutex.Unlock()

	wa.retention = retention
}

// RegisterAggregator registers an aggregator function
func (wa *WindowedAggregator) RegisterAggregator(name string, fn AggregatorFunc) {
	wa.mutex.Lock()
	defer wa.mutex.Unlock()

	wa.aggregators[name] = fn
}

// ProcessCall folds a call into every window covering its timestamp.
func (wa *WindowedAggregator) ProcessCall(call types.APICall) error {
	wa.mutex.Lock()
	defer wa.mutex.Unlock()

	windows := wa.findWindows(call.Timestamp)

	for _, window := range windows {
		for name, fn := range wa.aggregators {
			if err := fn(window, call); err != nil {
				return fmt.Errorf("aggregator %s failed: %w", name, err)
			}
		}
		window.LastUpdate = time.Now()
	}

	wa.cleanupWindows()

	return nil
}

// findWindows finds or creates windows for a timestamp
func (wa *WindowedAggregator) findWindows(timestamp time.Time) []*WindowData {
	var windows []*WindowData

	switch wa.windowType {
	case TumblingWindow:
		windowStart := timestamp.Truncate(wa.windowSize)
		windows = append(windows, wa.windowFor(windowStart, Window{
			StartTime: windowStart,
			EndTime:   windowStart.Add(wa.windowSize),
			Type:      TumblingWindow,
			Size:      wa.windowSize,
		}))

	case SlidingWindow:
		// Every slide-aligned window whose span covers the timestamp.
		currentTime := timestamp
		for i := 0; i < int(wa.windowSize/wa.slideSize); i++ {
			windowStart := currentTime.Truncate(wa.slideSize)
			windows = append(windows, wa.windowFor(windowStart, Window{
				StartTime: windowStart,
				EndTime:   windowStart.Add(wa.windowSize),
				Type:      SlidingWindow,
				Size:      wa.windowSize,
				Slide:     wa.slideSize,
			}))
			currentTime = currentTime.Add(-wa.slideSize)
		}
	}

	return windows
}

func (wa *WindowedAggregator) windowFor(start time.Time, spec Window) *WindowData {
	key := fmt.Sprintf("%s-%s", spec.StartTime.Format(time.RFC3339), spec.EndTime.Format(time.RFC3339))

	window, ok := wa.windows[key]
	if !ok {
		window = &WindowData{
			Window:     spec,
			MinMs:      -1,
			LastUpdate: time.Now(),
		}
		wa.windows[key] = window
	}
	return window
}

// cleanupWindows removes windows past the retention horizon
func (wa *WindowedAggregator) cleanupWindows() {
	cutoff := time.Now().Add(-wa.retention)

	for key, window := range wa.windows {
		if window.Window.EndTime.Before(cutoff) {
			delete(wa.windows, key)
		}
	}
}

// GetWindows returns all current windows
func (wa *WindowedAggregator) GetWindows() []*WindowData {
	wa.mutex.RLock()
	defer wa.mutex.RUnlock()

	windows := make([]*WindowData, 0, len(wa.windows))
	for _, window := range wa.windows {
		windows = append(windows, window)
	}

	return windows
}

// GetWindowsInRange returns windows that overlap with a time range
func (wa *WindowedAggregator) GetWindowsInRange(start, end time.Time) []*WindowData {
	wa.mutex.RLock()
	defer wa.mutex.RUnlock()

	var windows []*WindowData

	for _, window := range wa.windows {
		if !window.Window.StartTime.After(end) && !window.Window.EndTime.Before(start) {
			windows = append(windows, window)
		}
	}

	return windows
}

// GetCallRate returns the calls per second across windows in a time range.
// Sliding windows overlap, so each call is counted once per covering window;
// the sum is scaled back down by the overlap factor to count events once.
func (wa *WindowedAggregator) GetCallRate(start, end time.Time) float64 {
	wa.mutex.RLock()
	defer wa.mutex.RUnlock()

	var totalCalls int64

	for _, window := range wa.windows {
		if !window.Window.StartTime.After(end) && !window.Window.EndTime.Before(start) {
			totalCalls += window.Count
		}
	}

	calls := float64(totalCalls)
	if wa.windowType == SlidingWindow && wa.slideSize > 0 {
		if overlap := float64(wa.windowSize) / float64(wa.slideSize); overlap > 1 {
			calls /= overlap
		}
	}

	duration := end.Sub(start).Seconds()
	if duration <= 0 {
		return 0
	}

	return calls / duration
}

// CurrentPercentiles computes latency percentiles over every window
// overlapping the given range.
func (wa *WindowedAggregator) CurrentPercentiles(start, end time.Time) (p50, p95, p99 float64) {
	wa.mutex.RLock()
	defer wa.mutex.RUnlock()

	var all []float64
	for _, window := range wa.windows {
		if !window.Window.StartTime.After(end) && !window.Window.EndTime.Before(start) {
			all = append(all, window.Latencies...)
		}
	}

	return Percentile(all, 50), Percentile(all, 95), Percentile(all, 99)
}

// Default aggregator functions

// latencyAggregator folds response time into the window's latency aggregates
func latencyAggregator(window *WindowData, call types.APICall) error {
	ms := call.ResponseTimeMs
	if ms < 0 {
		return fmt.Errorf("negative response time %f for call %s", ms, call.ID)
	}

	window.Count++
	window.SumMs += ms
	if window.MinMs < 0 || ms < window.MinMs {
		window.MinMs = ms
	}
	if ms > window.MaxMs {
		window.MaxMs = ms
	}
	window.Latencies = append(window.Latencies, ms)
	return nil
}

// errorAggregator counts failed calls
func errorAggregator(window *WindowData, call types.APICall) error {
	if call.StatusCode >= 400 || call.Error != "" {
		window.ErrorCount++
	}
	return nil
}

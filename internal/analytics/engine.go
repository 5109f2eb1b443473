package analytics

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"houstonintel/types"
)

// Engine is the in-process API call tracker. Producers call TrackCall from any
// goroutine; a single aggregator goroutine owns all mutable state, drains the
// intake channel, feeds the windowed aggregator, batches rows into the
// database and recomputes the rolling snapshot on a ticker.
type Engine struct {
	config     EngineConfig
	db         *Database
	aggregator *WindowedAggregator
	alerting   *AlertingSystem
	exporter   *EventExporter

	intake  chan types.APICall
	dropped atomic.Int64

	// Aggregator-goroutine-owned state. Only read elsewhere through Snapshot.
	recent      *ringBuffer
	endpoints   map[string]*types.EndpointStats
	totalCalls  int64
	totalErrors int64
	pending     []types.APICall

	snapshot      *types.MetricsSnapshot
	snapshotMutex sync.RWMutex

	systemSample atomic.Pointer[types.SystemSample]

	snapshotChan chan *types.MetricsSnapshot

	isRunning bool
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	mutex     sync.Mutex
}

// EngineConfig contains configuration for the analytics engine
type EngineConfig struct {
	QueueSize         int
	RecentBufferSize  int
	AggregateInterval time.Duration
	WindowSize        time.Duration
	PersistBatchSize  int
}

// NewEngine creates a new analytics engine. db may be nil for a purely
// in-memory tracker; alerting and exporter are optional.
func NewEngine(config EngineConfig, db *Database) *Engine {
	if config.QueueSize == 0 {
		config.QueueSize = 4096
	}
	if config.RecentBufferSize == 0 {
		config.RecentBufferSize = 1000
	}
	if config.AggregateInterval == 0 {
		config.AggregateInterval = 60 * time.Second
	}
	if config.WindowSize == 0 {
		config.WindowSize = 5 * time.Minute
	}
	if config.PersistBatchSize == 0 {
		config.PersistBatchSize = 200
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Engine{
		config:       config,
		db:           db,
		aggregator:   NewWindowedAggregator(SlidingWindow, config.WindowSize),
		intake:       make(chan types.APICall, config.QueueSize),
		recent:       newRingBuffer(config.RecentBufferSize),
		endpoints:    make(map[string]*types.EndpointStats),
		snapshot:     &types.MetricsSnapshot{Endpoints: map[string]types.EndpointStats{}},
		snapshotChan: make(chan *types.MetricsSnapshot, 10),
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
}

// SetAlerting attaches an alerting system evaluated against every call.
func (e *Engine) SetAlerting(alerting *AlertingSystem) {
	e.alerting = alerting
}

// SetExporter attaches a Kafka event exporter.
func (e *Engine) SetExporter(exporter *EventExporter) {
	e.exporter = exporter
}

// GetSnapshotChannel returns the channel snapshots are published on each tick.
func (e *Engine) GetSnapshotChannel() <-chan *types.MetricsSnapshot {
	return e.snapshotChan
}

// Aggregator exposes the windowed aggregator for range queries.
func (e *Engine) Aggregator() *WindowedAggregator {
	return e.aggregator
}

// Start starts the aggregator goroutine.
func (e *Engine) Start() error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if e.isRunning {
		return fmt.Errorf("analytics engine is already running")
	}

	// A restarted engine needs a fresh lifetime: the previous run
	// cancelled ctx and closed done on its way out.
	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.done = make(chan struct{})

	go e.run()

	e.isRunning = true
	log.Printf("📈 Analytics engine started (queue=%d, buffer=%d, interval=%s)",
		e.config.QueueSize, e.config.RecentBufferSize, e.config.AggregateInterval)
	return nil
}

// Stop stops the engine and flushes pending rows.
func (e *Engine) Stop() error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if !e.isRunning {
		return nil
	}

	e.cancel()
	<-e.done

	e.isRunning = false
	log.Println("📉 Analytics engine stopped")
	return nil
}

// TrackCall records an API call. It never blocks: when the intake queue is
// full the call is dropped and counted, so a slow disk cannot stall request
// handling.
func (e *Engine) TrackCall(call types.APICall) {
	if call.ID == "" {
		call.ID = uuid.New().String()
	}
	if call.Timestamp.IsZero() {
		call.Timestamp = time.Now()
	}

	select {
	case e.intake <- call:
	default:
		e.dropped.Add(1)
	}
}

// RecordSystemSample publishes the latest host metrics reading.
func (e *Engine) RecordSystemSample(sample *types.SystemSample) {
	e.systemSample.Store(sample)
}

// Snapshot returns the most recently computed rolling aggregate view.
func (e *Engine) Snapshot() *types.MetricsSnapshot {
	e.snapshotMutex.RLock()
	defer e.snapshotMutex.RUnlock()

	// Shallow copy plus a copied endpoint map so callers can't mutate
	// aggregator state.
	snap := *e.snapshot
	snap.Endpoints = make(map[string]types.EndpointStats, len(e.snapshot.Endpoints))
	for k, v := range e.snapshot.Endpoints {
		snap.Endpoints[k] = v
	}
	return &snap
}

// RecentCalls returns up to limit of the most recently tracked calls, newest
// first. Served from the in-memory ring, not the database.
func (e *Engine) RecentCalls(limit int) []types.APICall {
	e.snapshotMutex.RLock()
	defer e.snapshotMutex.RUnlock()

	return e.recent.Items(limit)
}

// run is the aggregator goroutine.
func (e *Engine) run() {
	defer close(e.done)

	ticker := time.NewTicker(e.config.AggregateInterval)
	defer ticker.Stop()

	for {
		select {
		case call := <-e.intake:
			e.ingest(call)

		case <-ticker.C:
			e.flushPending()
			e.recompute()

		case <-e.ctx.Done():
			// Drain whatever is already queued, then flush and publish a
			// final snapshot.
			for {
				select {
				case call := <-e.intake:
					e.ingest(call)
				default:
					e.flushPending()
					e.recompute()
					return
				}
			}
		}
	}
}

// ingest folds one call into engine state. Runs only on the aggregator
// goroutine.
func (e *Engine) ingest(call types.APICall) {
	e.totalCalls++
	failed := call.StatusCode >= 400 || call.Error != ""
	if failed {
		e.totalErrors++
	}

	stats, ok := e.endpoints[call.Endpoint]
	if !ok {
		stats = &types.EndpointStats{Endpoint: call.Endpoint, MinMs: -1}
		e.endpoints[call.Endpoint] = stats
	}
	stats.Count++
	if failed {
		stats.ErrorCount++
	}
	stats.TotalMs += call.ResponseTimeMs
	if stats.MinMs < 0 || call.ResponseTimeMs < stats.MinMs {
		stats.MinMs = call.ResponseTimeMs
	}
	if call.ResponseTimeMs > stats.MaxMs {
		stats.MaxMs = call.ResponseTimeMs
	}
	stats.LastSeen = call.Timestamp

	e.snapshotMutex.Lock()
	e.recent.Add(call)
	e.snapshotMutex.Unlock()

	if err := e.aggregator.ProcessCall(call); err != nil {
		log.Printf("⚠️  Windowed aggregation failed: %v", err)
	}

	if e.alerting != nil {
		e.alerting.EvaluateCall(call)
	}
	if e.exporter != nil {
		e.exporter.PublishCall(e.ctx, call)
	}

	e.pending = append(e.pending, call)
	if len(e.pending) >= e.config.PersistBatchSize {
		e.flushPending()
	}
}

// flushPending writes buffered calls to the database in one transaction.
func (e *Engine) flushPending() {
	if e.db == nil || len(e.pending) == 0 {
		e.pending = e.pending[:0]
		return
	}

	if err := e.db.InsertCalls(e.pending); err != nil {
		log.Printf("⚠️  Failed to persist %d api calls: %v", len(e.pending), err)
	}
	e.pending = e.pending[:0]
}

// recompute rebuilds the rolling snapshot and publishes it.
func (e *Engine) recompute() {
	now := time.Now()
	windowStart := now.Add(-e.config.WindowSize)

	p50, p95, p99 := e.aggregator.CurrentPercentiles(windowStart, now)

	snap := &types.MetricsSnapshot{
		TotalCalls:     e.totalCalls,
		TotalErrors:    e.totalErrors,
		DroppedCalls:   e.dropped.Load(),
		CallsPerMinute: e.aggregator.GetCallRate(windowStart, now) * 60,
		P50Ms:          p50,
		P95Ms:          p95,
		P99Ms:          p99,
		Endpoints:      make(map[string]types.EndpointStats, len(e.endpoints)),
		System:         e.systemSample.Load(),
		GeneratedAt:    now,
	}
	for name, stats := range e.endpoints {
		snap.Endpoints[name] = *stats
	}

	e.snapshotMutex.Lock()
	e.snapshot = snap
	e.snapshotMutex.Unlock()

	select {
	case e.snapshotChan <- snap:
	default:
		// Nobody is reading; keep the channel from backing up.
	}
}

// ringBuffer is a fixed-size buffer of the most recent calls.
type ringBuffer struct {
	items []types.APICall
	next  int
	full  bool
}

func newRingBuffer(size int) *ringBuffer {
	if size < 1 {
		size = 1
	}
	return &ringBuffer{items: make([]types.APICall, size)}
}

func (r *ringBuffer) Add(call types.APICall) {
	r.items[r.next] = call
	r.next = (r.next + 1) % len(r.items)
	if r.next == 0 {
		r.full = true
	}
}

func (r *ringBuffer) Len() int {
	if r.full {
		return len(r.items)
	}
	return r.next
}

// Items returns up to limit entries, newest first.
func (r *ringBuffer) Items(limit int) []types.APICall {
	n := r.Len()
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]types.APICall, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (r.next - i + len(r.items)) % len(r.items)
		out = append(out, r.items[idx])
	}
	return out
}

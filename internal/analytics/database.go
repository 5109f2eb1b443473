package analytics

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"houstonintel/types"
)

// Database wraps the SQLite store for api_calls, performance_metrics and
// user_sessions.
type Database struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// NewDatabase creates or opens the analytics database.
func NewDatabase(dbPath string) (*Database, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Database{
		db:     db,
		dbPath: dbPath,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Path returns the database file path.
func (d *Database) Path() string {
	return d.dbPath
}

// initSchema creates the database schema.
func (d *Database) initSchema() error {
	schema := `
	-- API call log
	CREATE TABLE IF NOT EXISTS api_calls (
		id TEXT PRIMARY KEY,
		endpoint TEXT NOT NULL,
		method TEXT NOT NULL,
		status_code INTEGER NOT NULL,
		response_time_ms REAL NOT NULL,
		user_id TEXT,
		session_id TEXT,
		timestamp DATETIME NOT NULL,
		error TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_api_calls_endpoint ON api_calls(endpoint);
	CREATE INDEX IF NOT EXISTS idx_api_calls_timestamp ON api_calls(timestamp);

	-- Host performance samples
	CREATE TABLE IF NOT EXISTS performance_metrics (
		id TEXT PRIMARY KEY,
		metric_name TEXT NOT NULL,
		value REAL NOT NULL,
		unit TEXT,
		timestamp DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_performance_metrics_name ON performance_metrics(metric_name);
	CREATE INDEX IF NOT EXISTS idx_performance_metrics_timestamp ON performance_metrics(timestamp);

	-- Dashboard user sessions
	CREATE TABLE IF NOT EXISTS user_sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		started_at DATETIME NOT NULL,
		last_seen DATETIME NOT NULL,
		call_count INTEGER NOT NULL DEFAULT 0,
		user_agent TEXT,
		remote_addr TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_user_sessions_last_seen ON user_sessions(last_seen);
	`

	_, err := d.db.Exec(schema)
	return err
}

// InsertCall stores a single API call record.
func (d *Database) InsertCall(call types.APICall) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.db.Exec(
		`INSERT INTO api_calls (id, endpoint, method, status_code, response_time_ms, user_id, session_id, timestamp, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		call.ID, call.Endpoint, call.Method, call.StatusCode, call.ResponseTimeMs,
		call.UserID, call.SessionID, call.Timestamp, call.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to insert api call: %w", err)
	}
	return nil
}

// InsertCalls stores a batch of API calls inside one transaction. Rows whose
// ID already exists are skipped so one duplicate cannot discard the batch.
func (d *Database) InsertCalls(calls []types.APICall) error {
	if len(calls) == 0 {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT OR IGNORE INTO api_calls (id, endpoint, method, status_code, response_time_ms, user_id, session_id, timestamp, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, call := range calls {
		if _, err := stmt.Exec(
			call.ID, call.Endpoint, call.Method, call.StatusCode, call.ResponseTimeMs,
			call.UserID, call.SessionID, call.Timestamp, call.Error,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert api call %s: %w", call.ID, err)
		}
	}

	return tx.Commit()
}

// InsertMetric stores a performance metric sample.
func (d *Database) InsertMetric(sample types.MetricSample) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.db.Exec(
		`INSERT INTO performance_metrics (id, metric_name, value, unit, timestamp)
		 VALUES (?, ?, ?, ?, ?)`,
		sample.ID, sample.Name, sample.Value, sample.Unit, sample.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert metric: %w", err)
	}
	return nil
}

// UpsertSession creates or refreshes a dashboard session row.
func (d *Database) UpsertSession(session types.SessionInfo) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.db.Exec(
		`INSERT INTO user_sessions (id, user_id, started_at, last_seen, call_count, user_agent, remote_addr)
		 VALUES (?, ?, ?, ?, 1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   last_seen = excluded.last_seen,
		   call_count = user_sessions.call_count + 1`,
		session.ID, session.UserID, session.StartedAt, session.LastSeen,
		session.UserAgent, session.RemoteAddr,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}
	return nil
}

// EndpointUsage is one row of the usage-by-endpoint aggregation.
type EndpointUsage struct {
	Endpoint   string  `json:"endpoint"`
	Count      int64   `json:"count"`
	ErrorCount int64   `json:"error_count"`
	AvgMs      float64 `json:"avg_ms"`
	P95Ms      float64 `json:"p95_ms"`
	MaxMs      float64 `json:"max_ms"`
}

// UsageByEndpoint aggregates calls since the given time, ordered by call count.
// Percentiles are computed in Go over the latencies within the range.
func (d *Database) UsageByEndpoint(since time.Time, limit int) ([]EndpointUsage, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.Query(
		`SELECT endpoint, response_time_ms, status_code
		 FROM api_calls WHERE timestamp >= ?`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query api calls: %w", err)
	}
	defer rows.Close()

	type acc struct {
		latencies []float64
		errors    int64
		max       float64
	}
	byEndpoint := make(map[string]*acc)

	for rows.Next() {
		var endpoint string
		var ms float64
		var status int
		if err := rows.Scan(&endpoint, &ms, &status); err != nil {
			return nil, fmt.Errorf("failed to scan api call row: %w", err)
		}
		a, ok := byEndpoint[endpoint]
		if !ok {
			a = &acc{}
			byEndpoint[endpoint] = a
		}
		a.latencies = append(a.latencies, ms)
		if status >= 400 {
			a.errors++
		}
		if ms > a.max {
			a.max = ms
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	usage := make([]EndpointUsage, 0, len(byEndpoint))
	for endpoint, a := range byEndpoint {
		var total float64
		for _, ms := range a.latencies {
			total += ms
		}
		usage = append(usage, EndpointUsage{
			Endpoint:   endpoint,
			Count:      int64(len(a.latencies)),
			ErrorCount: a.errors,
			AvgMs:      total / float64(len(a.latencies)),
			P95Ms:      Percentile(a.latencies, 95),
			MaxMs:      a.max,
		})
	}

	sort.Slice(usage, func(i, j int) bool { return usage[i].Count > usage[j].Count })
	if limit > 0 && len(usage) > limit {
		usage = usage[:limit]
	}
	return usage, nil
}

// ErrorRate returns the fraction of calls since the given time with a 4xx/5xx
// status.
func (d *Database) ErrorRate(since time.Time) (float64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var total, errored int64
	err := d.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN status_code >= 400 THEN 1 ELSE 0 END), 0)
		 FROM api_calls WHERE timestamp >= ?`, since).Scan(&total, &errored)
	if err != nil {
		return 0, fmt.Errorf("failed to query error rate: %w", err)
	}
	if total == 0 {
		return 0, nil
	}
	return float64(errored) / float64(total), nil
}

// RecentCalls returns the most recent calls, newest first.
func (d *Database) RecentCalls(limit int) ([]types.APICall, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	rows, err := d.db.Query(
		`SELECT id, endpoint, method, status_code, response_time_ms,
		        COALESCE(user_id, ''), COALESCE(session_id, ''), timestamp, COALESCE(error, '')
		 FROM api_calls ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent calls: %w", err)
	}
	defer rows.Close()

	var calls []types.APICall
	for rows.Next() {
		var c types.APICall
		if err := rows.Scan(&c.ID, &c.Endpoint, &c.Method, &c.StatusCode, &c.ResponseTimeMs,
			&c.UserID, &c.SessionID, &c.Timestamp, &c.Error); err != nil {
			return nil, fmt.Errorf("failed to scan api call row: %w", err)
		}
		calls = append(calls, c)
	}
	return calls, rows.Err()
}

// SessionStats summarizes dashboard session activity.
type SessionStats struct {
	TotalSessions  int64   `json:"total_sessions"`
	ActiveSessions int64   `json:"active_sessions"`
	AvgCallCount   float64 `json:"avg_call_count"`
}

// SessionStatsSince computes session counts; a session is active if seen after
// the given time.
func (d *Database) SessionStatsSince(activeSince time.Time) (SessionStats, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var stats SessionStats
	err := d.db.QueryRow(
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN last_seen >= ? THEN 1 ELSE 0 END), 0),
		        COALESCE(AVG(call_count), 0)
		 FROM user_sessions`, activeSince).
		Scan(&stats.TotalSessions, &stats.ActiveSessions, &stats.AvgCallCount)
	if err != nil {
		return stats, fmt.Errorf("failed to query session stats: %w", err)
	}
	return stats, nil
}

// Sessions returns recent sessions, most recently seen first.
func (d *Database) Sessions(limit int) ([]types.SessionInfo, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	rows, err := d.db.Query(
		`SELECT id, COALESCE(user_id, ''), started_at, last_seen, call_count,
		        COALESCE(user_agent, ''), COALESCE(remote_addr, '')
		 FROM user_sessions ORDER BY last_seen DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []types.SessionInfo
	for rows.Next() {
		var s types.SessionInfo
		if err := rows.Scan(&s.ID, &s.UserID, &s.StartedAt, &s.LastSeen, &s.CallCount,
			&s.UserAgent, &s.RemoteAddr); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// MetricSeries returns samples for one metric since the given time, oldest
// first.
func (d *Database) MetricSeries(name string, since time.Time) ([]types.MetricSample, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.Query(
		`SELECT id, metric_name, value, COALESCE(unit, ''), timestamp
		 FROM performance_metrics WHERE metric_name = ? AND timestamp >= ?
		 ORDER BY timestamp ASC`, name, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics: %w", err)
	}
	defer rows.Close()

	var samples []types.MetricSample
	for rows.Next() {
		var m types.MetricSample
		if err := rows.Scan(&m.ID, &m.Name, &m.Value, &m.Unit, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan metric row: %w", err)
		}
		samples = append(samples, m)
	}
	return samples, rows.Err()
}

// CallCountByDay buckets call volume per day over a range, for reports.
func (d *Database) CallCountByDay(since time.Time) (map[string]int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.Query(
		`SELECT DATE(timestamp), COUNT(*)
		 FROM api_calls WHERE timestamp >= ?
		 GROUP BY DATE(timestamp) ORDER BY DATE(timestamp)`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily call counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var day string
		var count int64
		if err := rows.Scan(&day, &count); err != nil {
			return nil, fmt.Errorf("failed to scan daily count row: %w", err)
		}
		counts[day] = count
	}
	return counts, rows.Err()
}

// PruneBefore deletes calls, metrics and idle sessions older than the cutoff.
// Returns the number of api_calls rows removed.
func (d *Database) PruneBefore(cutoff time.Time) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	res, err := d.db.Exec(`DELETE FROM api_calls WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune api calls: %w", err)
	}
	removed, _ := res.RowsAffected()

	if _, err := d.db.Exec(`DELETE FROM performance_metrics WHERE timestamp < ?`, cutoff); err != nil {
		return removed, fmt.Errorf("failed to prune metrics: %w", err)
	}
	if _, err := d.db.Exec(`DELETE FROM user_sessions WHERE last_seen < ?`, cutoff); err != nil {
		return removed, fmt.Errorf("failed to prune sessions: %w", err)
	}

	return removed, nil
}

// Percentile computes the p-th percentile (0-100) of the given samples using
// nearest-rank on a sorted copy. Returns 0 for an empty slice.
func Percentile(samples []float64, p float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	rank := int(float64(len(sorted))*p/100.0+0.5) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}

package analytics

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"houstonintel/types"
)

func testDatabase(t *testing.T) *Database {
	t.Helper()

	db, err := NewDatabase(filepath.Join(t.TempDir(), "analytics.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func storedCall(endpoint string, status int, ms float64, at time.Time) types.APICall {
	return types.APICall{
		ID:             uuid.New().String(),
		Endpoint:       endpoint,
		Method:         "GET",
		StatusCode:     status,
		ResponseTimeMs: ms,
		Timestamp:      at,
	}
}

func TestDatabaseInsertAndRecentCalls(t *testing.T) {
	db := testDatabase(t)
	now := time.Now()

	require.NoError(t, db.InsertCall(storedCall("/api/v1/metrics", 200, 15, now.Add(-2*time.Minute))))
	require.NoError(t, db.InsertCall(storedCall("/api/v1/insights", 500, 120, now.Add(-time.Minute))))

	calls, err := db.RecentCalls(10)
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Equal(t, "/api/v1/insights", calls[0].Endpoint, "newest first")
	assert.Equal(t, "/api/v1/metrics", calls[1].Endpoint)
}

func TestDatabaseInsertCallsBatch(t *testing.T) {
	db := testDatabase(t)
	now := time.Now()

	batch := []types.APICall{
		storedCall("/a", 200, 10, now),
		storedCall("/b", 200, 20, now),
		storedCall("/c", 200, 30, now),
	}
	require.NoError(t, db.InsertCalls(batch))
	require.NoError(t, db.InsertCalls(nil), "empty batch is a no-op")

	calls, err := db.RecentCalls(10)
	require.NoError(t, err)
	assert.Len(t, calls, 3)
}

func TestDatabaseUsageByEndpoint(t *testing.T) {
	db := testDatabase(t)
	now := time.Now()

	for i := 0; i < 5; i++ {
		require.NoError(t, db.InsertCall(storedCall("/hot", 200, float64(10+i*10), now)))
	}
	require.NoError(t, db.InsertCall(storedCall("/hot", 500, 200, now)))
	require.NoError(t, db.InsertCall(storedCall("/cold", 200, 5, now)))
	// Outside the range.
	require.NoError(t, db.InsertCall(storedCall("/hot", 200, 1, now.Add(-2*time.Hour))))

	usage, err := db.UsageByEndpoint(now.Add(-time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, usage, 2)

	assert.Equal(t, "/hot", usage[0].Endpoint, "ordered by call count")
	assert.Equal(t, int64(6), usage[0].Count)
	assert.Equal(t, int64(1), usage[0].ErrorCount)
	assert.Equal(t, 200.0, usage[0].MaxMs)
	assert.InDelta(t, (10+20+30+40+50+200)/6.0, usage[0].AvgMs, 0.001)

	limited, err := db.UsageByEndpoint(now.Add(-time.Hour), 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestDatabaseErrorRate(t *testing.T) {
	db := testDatabase(t)
	now := time.Now()

	rate, err := db.ErrorRate(now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0.0, rate, "no calls means zero rate")

	require.NoError(t, db.InsertCall(storedCall("/x", 200, 10, now)))
	require.NoError(t, db.InsertCall(storedCall("/x", 200, 10, now)))
	require.NoError(t, db.InsertCall(storedCall("/x", 503, 10, now)))
	require.NoError(t, db.InsertCall(storedCall("/x", 404, 10, now)))

	rate, err = db.ErrorRate(now.Add(-time.Hour))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, rate, 0.001)
}

func TestDatabaseSessions(t *testing.T) {
	db := testDatabase(t)
	now := time.Now()

	session := types.SessionInfo{
		ID:         "sess-1",
		UserID:     "analyst",
		StartedAt:  now.Add(-time.Hour),
		LastSeen:   now.Add(-time.Hour),
		UserAgent:  "test-agent",
		RemoteAddr: "127.0.0.1",
	}
	require.NoError(t, db.UpsertSession(session))

	// Second upsert bumps call_count and last_seen.
	session.LastSeen = now
	require.NoError(t, db.UpsertSession(session))

	require.NoError(t, db.UpsertSession(types.SessionInfo{
		ID: "sess-2", StartedAt: now.Add(-48 * time.Hour), LastSeen: now.Add(-48 * time.Hour),
	}))

	sessions, err := db.Sessions(10)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "sess-1", sessions[0].ID)
	assert.Equal(t, int64(2), sessions[0].CallCount)

	stats, err := db.SessionStatsSince(now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalSessions)
	assert.Equal(t, int64(1), stats.ActiveSessions)
}

func TestDatabaseMetricSeries(t *testing.T) {
	db := testDatabase(t)
	now := time.Now()

	for i := 0; i < 3; i++ {
		require.NoError(t, db.InsertMetric(types.MetricSample{
			ID:        uuid.New().String(),
			Name:      "cpu_percent",
			Value:     float64(10 * (i + 1)),
			Unit:      "%",
			Timestamp: now.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, db.InsertMetric(types.MetricSample{
		ID: uuid.New().String(), Name: "memory_percent", Value: 50, Timestamp: now,
	}))

	series, err := db.MetricSeries("cpu_percent", now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, series, 3)
	assert.Equal(t, 10.0, series[0].Value, "oldest first")
	assert.Equal(t, 30.0, series[2].Value)
}

func TestDatabaseCallCountByDay(t *testing.T) {
	db := testDatabase(t)
	today := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	yesterday := today.Add(-24 * time.Hour)

	require.NoError(t, db.InsertCall(storedCall("/a", 200, 1, today)))
	require.NoError(t, db.InsertCall(storedCall("/a", 200, 1, today)))
	require.NoError(t, db.InsertCall(storedCall("/a", 200, 1, yesterday)))

	counts, err := db.CallCountByDay(yesterday.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts["2026-08-30"])
	assert.Equal(t, int64(1), counts["2026-08-29"])
}

func TestDatabasePruneBefore(t *testing.T) {
	db := testDatabase(t)
	now := time.Now()

	require.NoError(t, db.InsertCall(storedCall("/old", 200, 1, now.Add(-72*time.Hour))))
	require.NoError(t, db.InsertCall(storedCall("/new", 200, 1, now)))
	require.NoError(t, db.UpsertSession(types.SessionInfo{
		ID: "stale", StartedAt: now.Add(-72 * time.Hour), LastSeen: now.Add(-72 * time.Hour),
	}))

	removed, err := db.PruneBefore(now.Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	calls, err := db.RecentCalls(10)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "/new", calls[0].Endpoint)

	sessions, err := db.Sessions(10)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestDatabaseInsertCallsDuplicateIDKeepsBatch(t *testing.T) {
	db := testDatabase(t)
	now := time.Now()

	first := storedCall("/a", 200, 10, now.Add(-3*time.Minute))
	replay := first
	replay.Endpoint = "/replayed"
	innocent := storedCall("/b", 200, 20, now)

	require.NoError(t, db.InsertCalls([]types.APICall{first, replay, innocent}))

	calls, err := db.RecentCalls(10)
	require.NoError(t, err)
	require.Len(t, calls, 2, "duplicate is skipped, the rest of the batch lands")
	assert.Equal(t, "/b", calls[0].Endpoint)
	assert.Equal(t, "/a", calls[1].Endpoint, "first write for an ID wins")
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper types that implement required interfaces
type testValidator struct{}

func (tv *testValidator) Validate(settings *Config) error {
	return nil
}

type testListener struct {
	changes int
}

func (tl *testListener) OnSettingsChanged(oldSettings, newSettings *Config) {
	tl.changes++
}

func validSettings() *Config {
	return &Config{
		DataDir:      "/tmp/hip",
		DatabasePath: "/tmp/hip/analytics.db",
		ServerPort:   8080,
		Analytics: AnalyticsConfig{
			Enable:            true,
			QueueSize:         1024,
			RecentBufferSize:  500,
			AggregateInterval: time.Minute,
			WindowSize:        5 * time.Minute,
			CollectorInterval: 30 * time.Second,
			RetentionDays:     14,
		},
		Export: ExportConfig{
			KafkaBrokers: []string{"localhost:9092"},
			KafkaTopic:   "houstonintel-events",
		},
	}
}

func TestDefaultSettingsValidator_Validate(t *testing.T) {
	validator := &DefaultSettingsValidator{}

	testCases := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
		errorMsg    string
	}{
		{
			name:        "Valid settings",
			mutate:      func(c *Config) {},
			expectError: false,
		},
		{
			name:        "Missing data dir",
			mutate:      func(c *Config) { c.DataDir = "" },
			expectError: true,
			errorMsg:    "data_dir is required",
		},
		{
			name:        "Missing database path",
			mutate:      func(c *Config) { c.DatabasePath = "" },
			expectError: true,
			errorMsg:    "database_path is required",
		},
		{
			name:        "Invalid server port",
			mutate:      func(c *Config) { c.ServerPort = 70000 },
			expectError: true,
			errorMsg:    "server_port must be between 1 and 65535",
		},
		{
			name:        "Queue size too small",
			mutate:      func(c *Config) { c.Analytics.QueueSize = 0 },
			expectError: true,
			errorMsg:    "analytics queue_size must be positive",
		},
		{
			name:        "Aggregate interval too short",
			mutate:      func(c *Config) { c.Analytics.AggregateInterval = 100 * time.Millisecond },
			expectError: true,
			errorMsg:    "aggregate_interval must be at least 1 second",
		},
		{
			name: "Window shorter than aggregate interval",
			mutate: func(c *Config) {
				c.Analytics.AggregateInterval = time.Minute
				c.Analytics.WindowSize = 30 * time.Second
			},
			expectError: true,
			errorMsg:    "window_size cannot be shorter than aggregate_interval",
		},
		{
			name: "Kafka enabled without brokers",
			mutate: func(c *Config) {
				c.Export.EnableKafka = true
				c.Export.KafkaBrokers = nil
			},
			expectError: true,
			errorMsg:    "kafka export enabled but no brokers configured",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			settings := validSettings()
			tc.mutate(settings)

			err := validator.Validate(settings)
			if tc.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.errorMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	os.Unsetenv("HIP_SERVER_PORT")
	os.Unsetenv("HIP_ANALYTICS_QUEUE_SIZE")

	cfg := Load()

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, 4096, cfg.Analytics.QueueSize)
	assert.Equal(t, 1000, cfg.Analytics.RecentBufferSize)
	assert.Equal(t, time.Minute, cfg.Analytics.AggregateInterval)
	assert.Equal(t, 5*time.Minute, cfg.Analytics.WindowSize)
	assert.False(t, cfg.Export.EnableKafka)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Export.KafkaBrokers)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HIP_SERVER_PORT", "9191")
	t.Setenv("HIP_ANALYTICS_QUEUE_SIZE", "128")
	t.Setenv("HIP_KAFKA_ENABLE", "true")
	t.Setenv("HIP_KAFKA_BROKERS", "kafka1:9092,kafka2:9092")

	cfg := Load()

	assert.Equal(t, 9191, cfg.ServerPort)
	assert.Equal(t, 128, cfg.Analytics.QueueSize)
	assert.True(t, cfg.Export.EnableKafka)
	assert.Equal(t, []string{"kafka1:9092", "kafka2:9092"}, cfg.Export.KafkaBrokers)
}

func TestLoad_InvalidEnvFallsBack(t *testing.T) {
	t.Setenv("HIP_SERVER_PORT", "not-a-number")
	t.Setenv("HIP_KAFKA_ENABLE", "not-a-bool")

	cfg := Load()

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.False(t, cfg.Export.EnableKafka)
}

func TestSettingsManager_UpdateSettings(t *testing.T) {
	sm := NewSettingsManager()
	listener := &testListener{}
	sm.AddChangeListener(listener)

	newSettings := validSettings()
	err := sm.UpdateSettings(newSettings)
	require.NoError(t, err)

	got := sm.GetSettings()
	assert.Equal(t, "/tmp/hip", got.DataDir)
	assert.Equal(t, 1, listener.changes)
}

func TestSettingsManager_UpdateSettings_Invalid(t *testing.T) {
	sm := NewSettingsManager()

	bad := validSettings()
	bad.ServerPort = -1

	err := sm.UpdateSettings(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestSettingsManager_GetSettings_ReturnsCopy(t *testing.T) {
	sm := NewSettingsManager()

	first := sm.GetSettings()
	first.ServerPort = 12345

	second := sm.GetSettings()
	assert.NotEqual(t, 12345, second.ServerPort)
}

func TestSettingsManager_SaveAndLoadFile(t *testing.T) {
	sm := NewSettingsManager()
	require.NoError(t, sm.UpdateSettings(validSettings()))

	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, sm.SaveToFile(path))

	sm2 := NewSettingsManager()
	require.NoError(t, sm2.LoadFromFile(path))

	got := sm2.GetSettings()
	assert.Equal(t, "/tmp/hip", got.DataDir)
	assert.Equal(t, 14, got.Analytics.RetentionDays)
}

func TestSettingsManager_LoadFromFile_Missing(t *testing.T) {
	sm := NewSettingsManager()
	err := sm.LoadFromFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read settings file")
}

func TestSettingsManager_AddValidator(t *testing.T) {
	sm := NewSettingsManager()
	sm.AddValidator(&testValidator{})

	err := sm.UpdateSettings(validSettings())
	assert.NoError(t, err)
}

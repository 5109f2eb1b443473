package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config represents the main application configuration
type Config struct {
	DataDir       string          `json:"data_dir"`
	DatabasePath  string          `json:"database_path"`
	ServerPort    int             `json:"server_port"`
	Analytics     AnalyticsConfig `json:"analytics"`
	Export        ExportConfig    `json:"export"`
	Charts        ChartsConfig    `json:"charts"`
	Knowledge     KnowledgeConfig `json:"knowledge"`
	Auth          AuthConfig      `json:"auth"`
	OpenBrowser   bool            `json:"open_browser"`
	SimulateCalls bool            `json:"simulate_calls"`
}

// AnalyticsConfig controls the call-tracking engine and collector
type AnalyticsConfig struct {
	Enable            bool          `json:"enable"`
	QueueSize         int           `json:"queue_size"`
	RecentBufferSize  int           `json:"recent_buffer_size"`
	AggregateInterval time.Duration `json:"aggregate_interval"`
	WindowSize        time.Duration `json:"window_size"`
	CollectorInterval time.Duration `json:"collector_interval"`
	RetentionDays     int           `json:"retention_days"`
}

// ExportConfig controls the optional Kafka event export
type ExportConfig struct {
	EnableKafka  bool     `json:"enable_kafka"`
	KafkaBrokers []string `json:"kafka_brokers"`
	KafkaTopic   string   `json:"kafka_topic"`
	ClientID     string   `json:"client_id"`
}

// ChartsConfig controls PNG chart generation
type ChartsConfig struct {
	OutputDir string `json:"output_dir"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// KnowledgeConfig controls the T2 -> T3 structuring job
type KnowledgeConfig struct {
	InputDir  string `json:"input_dir"`
	OutputDir string `json:"output_dir"`
}

// AuthConfig controls dashboard authentication
type AuthConfig struct {
	JWTSecret     string `json:"jwt_secret"`
	SessionSecret string `json:"session_secret"`
	TokenTTLHours int    `json:"token_ttl_hours"`
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		DataDir:       getEnv("HIP_DATA_DIR", "./data"),
		DatabasePath:  getEnv("HIP_DATABASE_PATH", "./data/analytics.db"),
		ServerPort:    getEnvInt("HIP_SERVER_PORT", 8080),
		OpenBrowser:   getEnvBool("HIP_OPEN_BROWSER", false),
		SimulateCalls: getEnvBool("HIP_SIMULATE_CALLS", false),
		Analytics: AnalyticsConfig{
			Enable:            getEnvBool("HIP_ANALYTICS_ENABLE", true),
			QueueSize:         getEnvInt("HIP_ANALYTICS_QUEUE_SIZE", 4096),
			RecentBufferSize:  getEnvInt("HIP_ANALYTICS_RECENT_BUFFER", 1000),
			AggregateInterval: time.Duration(getEnvInt("HIP_AGGREGATE_INTERVAL_SECONDS", 60)) * time.Second,
			WindowSize:        time.Duration(getEnvInt("HIP_WINDOW_MINUTES", 5)) * time.Minute,
			CollectorInterval: time.Duration(getEnvInt("HIP_COLLECTOR_INTERVAL_SECONDS", 30)) * time.Second,
			RetentionDays:     getEnvInt("HIP_RETENTION_DAYS", 30),
		},
		Export: ExportConfig{
			EnableKafka:  getEnvBool("HIP_KAFKA_ENABLE", false),
			KafkaBrokers: strings.Split(getEnv("HIP_KAFKA_BROKERS", "localhost:9092"), ","),
			KafkaTopic:   getEnv("HIP_KAFKA_TOPIC", "houstonintel-events"),
			ClientID:     getEnv("HIP_KAFKA_CLIENT_ID", "houstonintel"),
		},
		Charts: ChartsConfig{
			OutputDir: getEnv("HIP_CHARTS_OUTPUT_DIR", "./charts"),
			Width:     getEnvInt("HIP_CHARTS_WIDTH", 1024),
			Height:    getEnvInt("HIP_CHARTS_HEIGHT", 576),
		},
		Knowledge: KnowledgeConfig{
			InputDir:  getEnv("HIP_KNOWLEDGE_INPUT_DIR", "./insights/t2"),
			OutputDir: getEnv("HIP_KNOWLEDGE_OUTPUT_DIR", "./insights/t3"),
		},
		Auth: AuthConfig{
			JWTSecret:     getEnv("HIP_JWT_SECRET", ""),
			SessionSecret: getEnv("HIP_SESSION_SECRET", ""),
			TokenTTLHours: getEnvInt("HIP_TOKEN_TTL_HOURS", 24),
		},
	}
}

// getEnv retrieves environment variable with fallback
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool retrieves boolean environment variable with fallback
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvInt retrieves integer environment variable with fallback
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// SettingsValidator defines the interface for validating settings
type SettingsValidator interface {
	Validate(settings *Config) error
}

// SettingsChangeListener defines the interface for listening to settings changes
type SettingsChangeListener interface {
	OnSettingsChanged(oldSettings, newSettings *Config)
}

// SettingsManager manages application settings with validation and persistence
type SettingsManager struct {
	settings   *Config
	validators []SettingsValidator
	listeners  []SettingsChangeListener
	mutex      sync.RWMutex
}

// DefaultSettingsValidator provides default validation for settings
type DefaultSettingsValidator struct{}

// Validate validates the configuration settings
func (v *DefaultSettingsValidator) Validate(settings *Config) error {
	if settings.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	if settings.DatabasePath == "" {
		return fmt.Errorf("database_path is required")
	}

	if settings.ServerPort < 1 || settings.ServerPort > 65535 {
		return fmt.Errorf("server_port must be between 1 and 65535")
	}

	if settings.Analytics.QueueSize < 1 {
		return fmt.Errorf("analytics queue_size must be positive")
	}

	if settings.Analytics.RecentBufferSize < 1 {
		return fmt.Errorf("analytics recent_buffer_size must be positive")
	}

	if settings.Analytics.AggregateInterval < time.Second {
		return fmt.Errorf("aggregate_interval must be at least 1 second")
	}

	if settings.Analytics.WindowSize < settings.Analytics.AggregateInterval {
		return fmt.Errorf("window_size cannot be shorter than aggregate_interval")
	}

	if settings.Analytics.RetentionDays < 1 {
		return fmt.Errorf("retention_days must be at least 1")
	}

	if settings.Export.EnableKafka && len(settings.Export.KafkaBrokers) == 0 {
		return fmt.Errorf("kafka export enabled but no brokers configured")
	}

	return nil
}

// NewSettingsManager creates a new settings manager
func NewSettingsManager() *SettingsManager {
	return &SettingsManager{
		settings:   getDefaultSettings(),
		validators: []SettingsValidator{&DefaultSettingsValidator{}},
		listeners:  make([]SettingsChangeListener, 0),
	}
}

// GetDefaultSettings returns default configuration settings
func (sm *SettingsManager) GetDefaultSettings() *Config {
	return getDefaultSettings()
}

// getDefaultSettings returns default configuration settings
func getDefaultSettings() *Config {
	return &Config{
		DataDir:      "./data",
		DatabasePath: "./data/analytics.db",
		ServerPort:   8080,
		Analytics: AnalyticsConfig{
			Enable:            true,
			QueueSize:         4096,
			RecentBufferSize:  1000,
			AggregateInterval: time.Minute,
			WindowSize:        5 * time.Minute,
			CollectorInterval: 30 * time.Second,
			RetentionDays:     30,
		},
		Export: ExportConfig{
			KafkaBrokers: []string{"localhost:9092"},
			KafkaTopic:   "houstonintel-events",
			ClientID:     "houstonintel",
		},
		Charts: ChartsConfig{
			OutputDir: "./charts",
			Width:     1024,
			Height:    576,
		},
		Knowledge: KnowledgeConfig{
			InputDir:  "./insights/t2",
			OutputDir: "./insights/t3",
		},
		Auth: AuthConfig{
			TokenTTLHours: 24,
		},
	}
}

// GetSettings returns a copy of the current settings
func (sm *SettingsManager) GetSettings() *Config {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()

	// Return a deep copy to prevent external modifications
	settingsCopy, _ := json.Marshal(sm.settings)
	var copy Config
	json.Unmarshal(settingsCopy, &copy)

	return &copy
}

// UpdateSettings updates the settings after validation
func (sm *SettingsManager) UpdateSettings(newSettings *Config) error {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	for _, validator := range sm.validators {
		if err := validator.Validate(newSettings); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
	}

	oldSettings := sm.settings
	sm.settings = newSettings

	for _, listener := range sm.listeners {
		listener.OnSettingsChanged(oldSettings, newSettings)
	}

	return nil
}

// AddValidator adds a settings validator
func (sm *SettingsManager) AddValidator(validator SettingsValidator) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()
	sm.validators = append(sm.validators, validator)
}

// AddChangeListener adds a settings change listener
func (sm *SettingsManager) AddChangeListener(listener SettingsChangeListener) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()
	sm.listeners = append(sm.listeners, listener)
}

// SaveToFile saves the current settings to a file
func (sm *SettingsManager) SaveToFile(filename string) error {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()

	data, err := json.MarshalIndent(sm.settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	err = os.WriteFile(filename, data, 0644)
	if err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}

	return nil
}

// LoadFromFile loads settings from a file
func (sm *SettingsManager) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read settings file: %w", err)
	}

	var newSettings Config
	err = json.Unmarshal(data, &newSettings)
	if err != nil {
		return fmt.Errorf("failed to parse settings file: %w", err)
	}

	for _, validator := range sm.validators {
		if err := validator.Validate(&newSettings); err != nil {
			return fmt.Errorf("loaded settings validation failed: %w", err)
		}
	}

	sm.mutex.Lock()
	oldSettings := sm.settings
	sm.settings = &newSettings
	sm.mutex.Unlock()

	for _, listener := range sm.listeners {
		listener.OnSettingsChanged(oldSettings, &newSettings)
	}

	return nil
}

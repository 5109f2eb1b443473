package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"houstonintel/types"
)

// EventType labels the events published to the export topic
type EventType string

const (
	APICallEvent  EventType = "api_call"
	AlertEvent    EventType = "alert"
	SnapshotEvent EventType = "snapshot"
	SystemEvent   EventType = "system"
)

// ExportEvent is the envelope written to Kafka
type ExportEvent struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	UserID    string                 `json:"user_id,omitempty"`
	SessionID string                 `json:"session_id,omitempty"`
}

// EventExporter publishes analytics events to Kafka
type EventExporter struct {
	writer      *kafka.Writer
	isConnected bool
	config      ExporterConfig
}

// ExporterConfig contains configuration for the event exporter
type ExporterConfig struct {
	KafkaBrokers []string
	Topic        string
	ClientID     string
	BatchSize    int
	BatchTimeout time.Duration
	Async        bool
}

// NewEventExporter creates a new event exporter
func NewEventExporter(config ExporterConfig) *EventExporter {
	if len(config.KafkaBrokers) == 0 {
		config.KafkaBrokers = []string{"localhost:9092"}
	}

	if config.Topic == "" {
		config.Topic = "houstonintel-events"
	}

	if config.ClientID == "" {
		config.ClientID = "houstonintel"
	}

	if config.BatchSize == 0 {
		config.BatchSize = 100
	}

	if config.BatchTimeout == 0 {
		config.BatchTimeout = 1 * time.Second
	}

	return &EventExporter{
		config: config,
	}
}

// Connect establishes a connection to Kafka
func (p *EventExporter) Connect(ctx context.Context) error {
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(p.config.KafkaBrokers...),
		Topic:        p.config.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    p.config.BatchSize,
		BatchTimeout: p.config.BatchTimeout,
		Async:        p.config.Async,
		RequiredAcks: kafka.RequireOne,
	}

	// Test connection by sending a ping message
	pingEvent := ExportEvent{
		Type:      SystemEvent,
		Timestamp: time.Now(),
		Source:    "event_exporter",
		Data: map[string]interface{}{
			"message": "ping",
		},
	}

	if err := p.ProduceEvent(ctx, pingEvent); err != nil {
		return fmt.Errorf("failed to connect to Kafka: %w", err)
	}

	p.isConnected = true
	return nil
}

// ProduceEvent sends an event to Kafka
func (p *EventExporter) ProduceEvent(ctx context.Context, event ExportEvent) error {
	if p.writer == nil {
		return fmt.Errorf("event exporter not connected")
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	message := kafka.Message{
		Key:   []byte(string(event.Type)),
		Value: value,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "source", Value: []byte(event.Source)},
			{Key: "type", Value: []byte(event.Type)},
			{Key: "client_id", Value: []byte(p.config.ClientID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}

	return nil
}

// PublishCall publishes a tracked API call. Errors are logged, not returned:
// export is best-effort and must not disturb the aggregator loop.
func (p *EventExporter) PublishCall(ctx context.Context, call types.APICall) {
	if !p.isConnected {
		return
	}

	event := ExportEvent{
		Type:      APICallEvent,
		Timestamp: call.Timestamp,
		Source:    call.Endpoint,
		UserID:    call.UserID,
		SessionID: call.SessionID,
		Data: map[string]interface{}{
			"id":               call.ID,
			"method":           call.Method,
			"status_code":      call.StatusCode,
			"response_time_ms": call.ResponseTimeMs,
			"error":            call.Error,
		},
	}

	if err := p.ProduceEvent(ctx, event); err != nil {
		log.Printf("⚠️  Kafka export failed: %v", err)
	}
}

// PublishAlert publishes a triggered alert.
func (p *EventExporter) PublishAlert(ctx context.Context, alert Alert) error {
	return p.ProduceEvent(ctx, ExportEvent{
		Type:      AlertEvent,
		Timestamp: alert.Timestamp,
		Source:    alert.Source,
		Data: map[string]interface{}{
			"id":          alert.ID,
			"level":       alert.Level.String(),
			"title":       alert.Title,
			"description": alert.Description,
		},
	})
}

// Close closes the Kafka connection
func (p *EventExporter) Close() error {
	if p.writer != nil {
		err := p.writer.Close()
		p.writer = nil
		p.isConnected = false
		return err
	}

	return nil
}

// IsConnected returns whether the exporter is connected to Kafka
func (p *EventExporter) IsConnected() bool {
	return p.isConnected
}

package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	EventIntegrationConnected = "integration.connected"
)

// Config holds Kafka configuration
type Config struct {
	Brokers []string
	Topic   string
}

// ParseConfig parses a comma-separated broker string
func ParseConfig(brokers string, topic string) Config {
	var brokerList []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokerList = append(brokerList, b)
		}
	}
	return Config{Brokers: brokerList, Topic: topic}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes integration lifecycle events
type Producer struct {
	writer messageWriter
	logger ectologger.Logger
	topic  string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg Config, logger ectologger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:  kafka.TCP(cfg.Brokers...),
		Topic: cfg.Topic,
		// messages are keyed by page so events for one page stay ordered
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		// Allow Kafka to auto-create the topic in dev environments when it doesn't exist yet.
		AllowAutoTopicCreation: true,
	}
	return newProducer(writer, cfg.Topic, logger)
}

func newProducer(writer messageWriter, topic string, logger ectologger.Logger) *Producer {
	return &Producer{writer: writer, topic: topic, logger: logger}
}

func (p *Producer) GetName() string {
	return "kafka"
}

func (p *Producer) DependsOn() []string {
	return nil
}

// Start is a no-op; the writer connects lazily on first publish.
func (p *Producer) Start(ctx context.Context) error {
	return nil
}

func (p *Producer) Stop(ctx context.Context) error {
	return p.writer.Close()
}

// IntegrationEvent tells downstream lead receivers which pages are connected.
// It never carries the page access token.
type IntegrationEvent struct {
	Type              string    `json:"type"`
	IntegrationID     string    `json:"integration_id"`
	UserID            string    `json:"user_id"`
	PageID            string    `json:"page_id"`
	PageName          string    `json:"page_name"`
	WebhookSubscribed bool      `json:"webhook_subscribed"`
	TokenExpiresAt    time.Time `json:"token_expires_at"`
	Timestamp         time.Time `json:"timestamp"`

	TraceID string `json:"trace_id,omitempty"`
	SpanID  string `json:"span_id,omitempty"`
}

// PublishIntegrationEvent writes evt keyed by page id
func (p *Producer) PublishIntegrationEvent(ctx context.Context, evt *IntegrationEvent) error {
	if evt == nil {
		return fmt.Errorf("integration event is nil")
	}

	ctx, span := tracing.StartSpan(ctx, "Kafka.PublishIntegrationEvent")
	defer span.End()
	span.SetAttributes(
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination", p.topic),
		attribute.String("messaging.operation", "publish"),
		attribute.String("event.type", evt.Type),
		attribute.String("page_id", evt.PageID),
	)

	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	evt.TraceID = tracing.GetTraceID(ctx)
	evt.SpanID = tracing.GetSpanID(ctx)

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal integration event: %w", err)
	}

	headers := []kafka.Header{
		{Key: "type", Value: []byte(evt.Type)},
		{Key: "user_id", Value: []byte(evt.UserID)},
		{Key: "page_id", Value: []byte(evt.PageID)},
	}
	if traceparent := tracing.GetTraceParent(ctx); traceparent != "" {
		headers = append(headers, kafka.Header{Key: "traceparent", Value: []byte(traceparent)})
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(evt.PageID),
		Value:   data,
		Headers: headers,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish failed")
		metrics.EventsPublishedTotal.WithLabelValues(evt.Type, "error").Inc()
		p.logger.WithContext(ctx).WithError(err).Errorf("Failed to publish %s to Kafka topic %s", evt.Type, p.topic)
		return err
	}

	metrics.EventsPublishedTotal.WithLabelValues(evt.Type, "success").Inc()
	p.logger.WithContext(ctx).WithFields(map[string]any{
		"type":    evt.Type,
		"page_id": evt.PageID,
	}).Debugf("Published event to %s", p.topic)
	return nil
}

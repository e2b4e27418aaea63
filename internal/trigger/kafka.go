package trigger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"example.com/stravbit/internal/domain"
	"example.com/stravbit/internal/observability"
)

// Header keys carried on every sync request record.
const (
	HeaderEventType = "event_type"
	HeaderTriggerID = "trigger_id"
)

type messageWriter interface {
	WriteMessages(context.Context, string, ...kafka.Message) error
}

// KafkaProducer lazily manages writers per topic.
type KafkaProducer struct {
	brokers []string
	mu      sync.Mutex
	writers map[string]*kafka.Writer
}

// NewKafkaProducer creates a KafkaProducer.
func NewKafkaProducer(brokers []string) *KafkaProducer {
	return &KafkaProducer{
		brokers: brokers,
		writers: make(map[string]*kafka.Writer),
	}
}

// WriteMessages writes messages to the given topic, creating a writer if necessary.
func (p *KafkaProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	return p.writerForTopic(topic).WriteMessages(ctx, msgs...)
}

func (p *KafkaProducer) writerForTopic(topic string) *kafka.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()

	if writer, ok := p.writers[topic]; ok {
		return writer
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(p.brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	p.writers[topic] = writer
	return writer
}

// Close releases all writers.
func (p *KafkaProducer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for topic, writer := range p.writers {
		if err := writer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.writers, topic)
	}
	return firstErr
}

// KafkaDispatcher publishes sync requests for the trigger consumer. Records are keyed
// by activity id so repeated deliveries for one activity land on one partition.
type KafkaDispatcher struct {
	producer  messageWriter
	topic     string
	eventType string
}

// NewKafkaDispatcher constructs a KafkaDispatcher.
func NewKafkaDispatcher(producer messageWriter, topic, eventType string) *KafkaDispatcher {
	return &KafkaDispatcher{producer: producer, topic: topic, eventType: eventType}
}

// Dispatch writes one record whose value is the JSON trigger payload.
func (d *KafkaDispatcher) Dispatch(ctx context.Context, payload domain.TriggerPayload) (err error) {
	defer func() { observability.RecordDispatch("kafka", err) }()

	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal trigger: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(payload.ObjectID.String()),
		Value: value,
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(d.eventType)},
			{Key: HeaderTriggerID, Value: []byte(uuid.NewString())},
		},
	}
	if err := d.producer.WriteMessages(ctx, d.topic, msg); err != nil {
		return domain.UpstreamError(domain.KindDispatch, "publish sync request failed", 0, nil, err)
	}
	return nil
}

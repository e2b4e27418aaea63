//go:build integration

package consumer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkaContainer "github.com/testcontainers/testcontainers-go/modules/kafka"

	"example.com/stravbit/internal/domain"
	"example.com/stravbit/internal/trigger"
)

func TestKafkaDispatchReachesSyncHandler(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
	defer cancel()

	kafkaC, err := kafkaContainer.RunContainer(ctx, testcontainers.WithEnv(map[string]string{
		"KAFKA_AUTO_CREATE_TOPICS_ENABLE": "true",
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = kafkaC.Terminate(context.Background()) })

	brokers, err := kafkaC.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	broker := brokers[0]

	topic := "strava_activity_syncs"

	conn, err := kafka.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     []string{broker},
		GroupID:     "stravbit-integration",
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	defer reader.Close()

	syncer := &recordingSyncer{}
	proc := NewProcessor(reader, NewSyncHandler(syncer))

	consumerCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		_ = proc.Run(consumerCtx)
	}()

	producer := trigger.NewKafkaProducer([]string{broker})
	defer producer.Close()
	dispatcher := trigger.NewKafkaDispatcher(producer, topic, "strava_activity")

	require.NoError(t, dispatcher.Dispatch(ctx, domain.TriggerPayload{ObjectID: "12345", OwnerID: "134815"}))

	require.Eventually(t, func() bool {
		return syncer.seen() == "12345"
	}, 30*time.Second, 500*time.Millisecond)
}

type recordingSyncer struct {
	mu   sync.Mutex
	last domain.TriggerPayload
}

func (s *recordingSyncer) SyncTrigger(_ context.Context, payload domain.TriggerPayload) domain.SyncOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = payload
	return domain.SyncOutcome{Status: domain.SyncStatusSucceeded}
}

func (s *recordingSyncer) seen() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last.ObjectID.String()
}

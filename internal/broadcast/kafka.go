package broadcast

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"messaging-core/internal/models"
	"messaging-core/internal/observability"
)

// KafkaFabric fans events out over a single topic. Every subscription
// reads with its own consumer group so each process sees every event
// (fan-out, not work-sharing) and filters on room id.
type KafkaFabric struct {
	brokers []string
	topic   string
	writer  *kafka.Writer
	logger  *zap.Logger
}

// NewKafkaFabric constructs a KafkaFabric.
func NewKafkaFabric(brokers []string, topic string, logger *zap.Logger) *KafkaFabric {
	writer := &kafka.Writer{
		Addr:  kafka.TCP(brokers...),
		Topic: topic,
		// Keyed by room id; hashing keeps one room on one partition so
		// per-room order survives the broker.
		Balancer: &kafka.Hash{},
	}
	return &KafkaFabric{brokers: brokers, topic: topic, writer: writer, logger: logger}
}

func (f *KafkaFabric) Publish(ctx context.Context, roomID string, event models.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	err = f.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(roomID),
		Value: payload,
	})
	if err != nil {
		observability.IncBroadcastError("kafka")
		return err
	}
	observability.IncBroadcastPublished("kafka", string(event.Kind))
	return nil
}

type kafkaSubscription struct {
	reader *kafka.Reader
	events chan models.Event
	cancel context.CancelFunc
	once   sync.Once
}

func (s *kafkaSubscription) Events() <-chan models.Event { return s.events }

func (s *kafkaSubscription) Close() error {
	var err error
	s.once.Do(func() {
		s.cancel()
		err = s.reader.Close()
	})
	return err
}

func (f *KafkaFabric) Subscribe(ctx context.Context, roomID string) (Subscription, error) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     f.brokers,
		Topic:       f.topic,
		GroupID:     "fabric-" + uuid.NewString(),
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})

	readCtx, cancel := context.WithCancel(context.Background())
	sub := &kafkaSubscription{
		reader: reader,
		events: make(chan models.Event, subscriptionBuffer),
		cancel: cancel,
	}

	go func() {
		defer close(sub.events)
		for {
			msg, err := reader.ReadMessage(readCtx)
			if err != nil {
				if readCtx.Err() == nil {
					f.logger.Warn("kafka fabric: read failed", zap.Error(err))
				}
				return
			}
			if string(msg.Key) != roomID {
				continue
			}
			var event models.Event
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				f.logger.Warn("kafka fabric: bad event payload", zap.Error(err))
				continue
			}
			sub.events <- event
		}
	}()
	return sub, nil
}

// Close releases the shared writer.
func (f *KafkaFabric) Close() error {
	return f.writer.Close()
}

var _ Fabric = (*KafkaFabric)(nil)

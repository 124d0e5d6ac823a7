package broadcast

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"messaging-core/internal/models"
	"messaging-core/internal/observability"
)

func channelName(roomID string) string {
	return "room." + roomID
}

// RedisFabric fans events out across processes over Redis pub/sub, one
// channel per room.
type RedisFabric struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisFabric constructs a RedisFabric.
func NewRedisFabric(client *redis.Client, logger *zap.Logger) *RedisFabric {
	return &RedisFabric{client: client, logger: logger}
}

func (f *RedisFabric) Publish(ctx context.Context, roomID string, event models.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := f.client.Publish(ctx, channelName(roomID), payload).Err(); err != nil {
		observability.IncBroadcastError("redis")
		return err
	}
	observability.IncBroadcastPublished("redis", string(event.Kind))
	return nil
}

type redisSubscription struct {
	pubsub *redis.PubSub
	events chan models.Event
}

func (s *redisSubscription) Events() <-chan models.Event { return s.events }

func (s *redisSubscription) Close() error {
	return s.pubsub.Close()
}

func (f *RedisFabric) Subscribe(ctx context.Context, roomID string) (Subscription, error) {
	pubsub := f.client.Subscribe(ctx, channelName(roomID))
	// Force the subscription onto the wire before returning so callers
	// never miss events published right after Subscribe.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	sub := &redisSubscription{pubsub: pubsub, events: make(chan models.Event, subscriptionBuffer)}
	go func() {
		defer close(sub.events)
		for msg := range pubsub.Channel() {
			var event models.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				f.logger.Warn("redis fabric: bad event payload", zap.Error(err))
				continue
			}
			sub.events <- event
		}
	}()
	return sub, nil
}

var _ Fabric = (*RedisFabric)(nil)

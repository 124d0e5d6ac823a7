package broadcast

import (
	"context"

	"messaging-core/internal/models"
)

// Subscription is a live event stream for one room. Events() is closed
// when the subscription ends.
type Subscription interface {
	Events() <-chan models.Event
	Close() error
}

// Fabric is the cross-process publish/subscribe mechanism used for
// real-time fan-out, keyed by room id. Any at-least-once topic system
// suffices; subscribers tolerate redelivery of advisory events.
type Fabric interface {
	Publish(ctx context.Context, roomID string, event models.Event) error
	Subscribe(ctx context.Context, roomID string) (Subscription, error)
}

const subscriptionBuffer = 256

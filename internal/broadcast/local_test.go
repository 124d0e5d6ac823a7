package broadcast

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"messaging-core/internal/models"
)

func TestLocalFabricFanOut(t *testing.T) {
	fabric := NewLocalFabric(zap.NewNop())

	first, err := fabric.Subscribe(context.Background(), "room-1")
	require.NoError(t, err)
	second, err := fabric.Subscribe(context.Background(), "room-1")
	require.NoError(t, err)
	other, err := fabric.Subscribe(context.Background(), "room-2")
	require.NoError(t, err)

	event := models.NewTypingEvent("room-1", 1, "alice", true)
	require.NoError(t, fabric.Publish(context.Background(), "room-1", event))

	for _, sub := range []Subscription{first, second} {
		select {
		case got := <-sub.Events():
			assert.Equal(t, models.EventTyping, got.Kind)
			assert.Equal(t, "room-1", got.RoomID)
		case <-time.After(time.Second):
			t.Fatal("subscriber never received the event")
		}
	}

	select {
	case <-other.Events():
		t.Fatal("event leaked into another room")
	default:
	}

	first.Close()
	second.Close()
	other.Close()
}

func TestLocalFabricCloseStopsDelivery(t *testing.T) {
	fabric := NewLocalFabric(zap.NewNop())

	sub, err := fabric.Subscribe(context.Background(), "room-1")
	require.NoError(t, err)
	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	_, open := <-sub.Events()
	assert.False(t, open, "events channel must be closed after Close")

	// Publishing into a room with no subscribers is a no-op.
	event := models.NewTypingEvent("room-1", 1, "alice", false)
	require.NoError(t, fabric.Publish(context.Background(), "room-1", event))
}

func TestLocalFabricPublishRacingCloseDoesNotPanic(t *testing.T) {
	fabric := NewLocalFabric(zap.NewNop())
	event := models.NewTypingEvent("room-1", 1, "alice", true)

	// One member detaching while another sends must never crash the
	// publisher, whichever side wins the race.
	for i := 0; i < 500; i++ {
		sub, err := fabric.Subscribe(context.Background(), "room-1")
		require.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, fabric.Publish(context.Background(), "room-1", event))
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, sub.Close())
		}()
		wg.Wait()
	}
}

func TestLocalFabricDropsWhenSubscriberFull(t *testing.T) {
	fabric := NewLocalFabric(zap.NewNop())

	sub, err := fabric.Subscribe(context.Background(), "room-1")
	require.NoError(t, err)
	defer sub.Close()

	event := models.NewTypingEvent("room-1", 1, "alice", true)
	for i := 0; i < subscriptionBuffer+10; i++ {
		require.NoError(t, fabric.Publish(context.Background(), "room-1", event))
	}

	drained := 0
	for {
		select {
		case <-sub.Events():
			drained++
			continue
		default:
		}
		break
	}
	assert.Equal(t, subscriptionBuffer, drained)
}

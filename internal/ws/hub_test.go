package ws

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"messaging-core/internal/broadcast"
	"messaging-core/internal/identity"
	"messaging-core/internal/mocks"
	"messaging-core/internal/models"
)

func newHubSession(t *testing.T, hub *Hub, roomID string, userID int64) *Session {
	t.Helper()
	_, server := dialTestConn(t)
	user := identity.User{ID: userID, Username: "u"}
	return NewSession(ConnInfo{UserID: userID}, roomID, user, server, hub, nil, nil, nil, zap.NewNop())
}

func TestHubSubscribesOnFirstSessionOnly(t *testing.T) {
	fabric := new(mocks.FabricMock)
	hub := NewHub(fabric, zap.NewNop())

	sub := &mocks.SubscriptionMock{}
	events := make(chan models.Event)
	sub.On("Events").Return((<-chan models.Event)(events))
	sub.On("Close").Return(nil).Once()
	fabric.On("Subscribe", mock.Anything, "room-1").Return(sub, nil).Once()

	first := newHubSession(t, hub, "room-1", 1)
	second := newHubSession(t, hub, "room-1", 2)

	require.NoError(t, hub.Add(context.Background(), first))
	require.NoError(t, hub.Add(context.Background(), second))
	assert.Equal(t, 2, hub.SessionCount("room-1"))

	hub.Remove(first)
	assert.Equal(t, 1, hub.SessionCount("room-1"))

	hub.Remove(second)
	assert.Equal(t, 0, hub.SessionCount("room-1"))

	close(events)
	fabric.AssertExpectations(t)
	sub.AssertExpectations(t)
}

func TestHubAddFailsWhenSubscribeFails(t *testing.T) {
	fabric := new(mocks.FabricMock)
	hub := NewHub(fabric, zap.NewNop())

	fabric.On("Subscribe", mock.Anything, "room-1").Return(nil, assert.AnError).Once()

	s := newHubSession(t, hub, "room-1", 1)
	require.Error(t, hub.Add(context.Background(), s))
	assert.Equal(t, 0, hub.SessionCount("room-1"))
}

func TestHubDeliversFabricEventsToSessions(t *testing.T) {
	fabric := broadcast.NewLocalFabric(zap.NewNop())
	hub := NewHub(fabric, zap.NewNop())

	s := newHubSession(t, hub, "room-1", 1)
	require.NoError(t, hub.Add(context.Background(), s))
	defer hub.Remove(s)

	event := models.NewTypingEvent("room-1", 2, "bob", true)
	require.NoError(t, hub.Broadcast(context.Background(), event))

	select {
	case got := <-s.send:
		assert.Equal(t, models.EventTyping, got.Kind)
		assert.Equal(t, int64(2), got.UserID)
	case <-time.After(2 * time.Second):
		t.Fatal("event never delivered to session")
	}
}

func TestHubIgnoresRoomsWithoutSessions(t *testing.T) {
	fabric := broadcast.NewLocalFabric(zap.NewNop())
	hub := NewHub(fabric, zap.NewNop())

	event := models.NewTypingEvent("empty-room", 2, "bob", true)
	require.NoError(t, hub.Broadcast(context.Background(), event))
	assert.Equal(t, 0, hub.SessionCount("empty-room"))
}

package readreceipts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"messaging-core/internal/mocks"
	"messaging-core/internal/repositories"
)

func newTrackerForTest() (*Tracker, *mocks.ReadReceiptRepositoryMock, *mocks.MessageRepositoryMock, *mocks.RoomRepositoryMock) {
	reads := new(mocks.ReadReceiptRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	rooms := new(mocks.RoomRepositoryMock)
	return NewTracker(reads, messages, rooms, zap.NewNop()), reads, messages, rooms
}

func TestMarkRead(t *testing.T) {
	tracker, reads, _, _ := newTrackerForTest()

	reads.On("MarkRead", mock.Anything, "m-1", int64(2)).Return(true, nil).Once()

	require.NoError(t, tracker.MarkRead(context.Background(), "m-1", 2))
	reads.AssertExpectations(t)
}

func TestMarkRoomReadAdvancesPointer(t *testing.T) {
	tracker, reads, messages, rooms := newTrackerForTest()

	reads.On("MarkRoomRead", mock.Anything, "room-1", int64(2)).Return(int64(4), nil).Once()
	messages.On("LatestInRoom", mock.Anything, "room-1").Return("m-9", nil).Once()
	rooms.On("SetLastRead", mock.Anything, "room-1", int64(2), "m-9").Return(nil).Once()

	marked, err := tracker.MarkRoomRead(context.Background(), "room-1", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(4), marked)
	reads.AssertExpectations(t)
	messages.AssertExpectations(t)
	rooms.AssertExpectations(t)
}

func TestMarkRoomReadEmptyRoom(t *testing.T) {
	tracker, reads, messages, rooms := newTrackerForTest()

	reads.On("MarkRoomRead", mock.Anything, "room-1", int64(2)).Return(int64(0), nil).Once()
	messages.On("LatestInRoom", mock.Anything, "room-1").Return("", repositories.ErrMessageNotFound).Once()

	marked, err := tracker.MarkRoomRead(context.Background(), "room-1", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(0), marked)
	rooms.AssertNotCalled(t, "SetLastRead", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMarkRoomReadPointerFailureIsNotFatal(t *testing.T) {
	tracker, reads, messages, rooms := newTrackerForTest()

	reads.On("MarkRoomRead", mock.Anything, "room-1", int64(2)).Return(int64(1), nil).Once()
	messages.On("LatestInRoom", mock.Anything, "room-1").Return("m-9", nil).Once()
	rooms.On("SetLastRead", mock.Anything, "room-1", int64(2), "m-9").Return(assert.AnError).Once()

	marked, err := tracker.MarkRoomRead(context.Background(), "room-1", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), marked)
}

func TestMarkRoomReadBulkFailure(t *testing.T) {
	tracker, reads, messages, _ := newTrackerForTest()

	reads.On("MarkRoomRead", mock.Anything, "room-1", int64(2)).Return(int64(0), assert.AnError).Once()

	_, err := tracker.MarkRoomRead(context.Background(), "room-1", 2)
	require.Error(t, err)
	messages.AssertNotCalled(t, "LatestInRoom", mock.Anything, mock.Anything)
}

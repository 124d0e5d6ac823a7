package readreceipts

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"messaging-core/internal/models"
	"messaging-core/internal/observability"
	"messaging-core/internal/repositories"
)

// Tracker records which users have seen which messages, without ever
// over-counting or double-writing.
type Tracker struct {
	reads    repositories.ReadReceiptRepository
	messages repositories.MessageRepository
	rooms    repositories.RoomRepository
	logger   *zap.Logger
}

// NewTracker constructs a Tracker.
func NewTracker(reads repositories.ReadReceiptRepository, messages repositories.MessageRepository, rooms repositories.RoomRepository, logger *zap.Logger) *Tracker {
	return &Tracker{reads: reads, messages: messages, rooms: rooms, logger: logger}
}

// MarkRead idempotently records that userID has seen the message. The
// message's own sender is never recorded.
func (t *Tracker) MarkRead(ctx context.Context, messageID string, userID int64) error {
	created, err := t.reads.MarkRead(ctx, messageID, userID)
	if err != nil {
		return err
	}
	if created {
		observability.AddReadMarkersCreated(1)
	}
	return nil
}

// MarkRoomRead marks every unread message in the room for the user and
// advances the member's denormalized read pointer. Returns the count newly
// marked; an immediate second call returns 0.
func (t *Tracker) MarkRoomRead(ctx context.Context, roomID string, userID int64) (int64, error) {
	marked, err := t.reads.MarkRoomRead(ctx, roomID, userID)
	if err != nil {
		return 0, err
	}
	observability.AddReadMarkersCreated(marked)

	latest, err := t.messages.LatestInRoom(ctx, roomID)
	switch {
	case errors.Is(err, repositories.ErrMessageNotFound):
		// Empty room; nothing to point at.
	case err != nil:
		t.logger.Warn("latest message lookup failed", zap.String("room_id", roomID), zap.Error(err))
	default:
		if err := t.rooms.SetLastRead(ctx, roomID, userID, latest); err != nil {
			// The pointer is a convenience; the markers are the truth.
			t.logger.Warn("last-read pointer update failed", zap.String("room_id", roomID), zap.Error(err))
		}
	}
	return marked, nil
}

// QueryReaders returns the (user, read time) pairs for a message. Not on
// the hot path; may lag concurrent marking.
func (t *Tracker) QueryReaders(ctx context.Context, messageID string) ([]models.ReadMarker, error) {
	return t.reads.ListReaders(ctx, messageID)
}

package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"messaging-core/internal/models"
)

// ReadReceiptRepository owns ReadMarker rows. All creation paths are
// idempotent: a duplicate attempt is success, never an error.
type ReadReceiptRepository interface {
	MarkRead(ctx context.Context, messageID string, userID int64) (bool, error)
	MarkRoomRead(ctx context.Context, roomID string, userID int64) (int64, error)
	ListReaders(ctx context.Context, messageID string) ([]models.ReadMarker, error)
}

// ReadReceiptRepo is a sqlx implementation of ReadReceiptRepository.
type ReadReceiptRepo struct {
	db *sqlx.DB
}

// NewReadReceiptRepo constructs a ReadReceiptRepo.
func NewReadReceiptRepo(db *sqlx.DB) *ReadReceiptRepo {
	return &ReadReceiptRepo{db: db}
}

// MarkRead records that a user has seen a message. The INSERT's source
// SELECT skips the sender's own messages and missing messages; the unique
// constraint absorbs duplicate calls. Returns whether a marker was newly
// created.
func (r *ReadReceiptRepo) MarkRead(ctx context.Context, messageID string, userID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO message_reads (message_id, user_id)
        SELECT id, $2 FROM messages WHERE id=$1 AND sender_id <> $2
        ON CONFLICT (message_id, user_id) DO NOTHING`, messageID, userID)
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	return count > 0, err
}

// MarkRoomRead creates markers for every live message in the room not sent
// by the user and not yet marked, in one bulk statement. Messages arriving
// mid-call are left for the next call. Returns the count newly marked.
func (r *ReadReceiptRepo) MarkRoomRead(ctx context.Context, roomID string, userID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO message_reads (message_id, user_id)
        SELECT m.id, $2 FROM messages m
        WHERE m.room_id=$1 AND m.sender_id <> $2 AND m.deleted_at IS NULL
        ON CONFLICT (message_id, user_id) DO NOTHING`, roomID, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListReaders returns who has read the message and when.
func (r *ReadReceiptRepo) ListReaders(ctx context.Context, messageID string) ([]models.ReadMarker, error) {
	var markers []models.ReadMarker
	err := r.db.SelectContext(ctx, &markers, `SELECT message_id, user_id, read_at
        FROM message_reads WHERE message_id=$1 ORDER BY read_at ASC`, messageID)
	return markers, err
}

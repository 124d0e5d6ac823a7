package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"messaging-core/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines interactions for room messages.
type MessageRepository interface {
	Create(ctx context.Context, roomID string, senderID int64, senderName, content string, msgType models.MessageType, replyTo *string) (models.Message, error)
	Get(ctx context.Context, messageID string) (models.Message, error)
	ListForRoom(ctx context.Context, roomID string, limit int) ([]models.Message, error)
	SetContent(ctx context.Context, messageID string, content string) (models.Message, error)
	SoftDelete(ctx context.Context, messageID string) error
	ToggleReaction(ctx context.Context, messageID string, userID int64, symbol string) (models.Message, error)
	LatestInRoom(ctx context.Context, roomID string) (string, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, room_id, sender_id, sender_name, content, type, reply_to, edited_at, deleted_at, reactions, created_at`

// Create persists a message with a time-ordered id. A reply_to that no
// longer references a live message in the same room is dropped, not
// rejected, so the send survives races with concurrent deletion.
func (r *MessageRepo) Create(ctx context.Context, roomID string, senderID int64, senderName, content string, msgType models.MessageType, replyTo *string) (models.Message, error) {
	if replyTo != nil {
		var ok bool
		err := r.db.GetContext(ctx, &ok, `SELECT EXISTS(
            SELECT 1 FROM messages WHERE id=$1 AND room_id=$2 AND deleted_at IS NULL)`, *replyTo, roomID)
		if err != nil || !ok {
			replyTo = nil
		}
	}

	id, err := uuid.NewV7()
	if err != nil {
		return models.Message{}, err
	}

	var msg models.Message
	err = r.db.GetContext(ctx, &msg, `INSERT INTO messages (id, room_id, sender_id, sender_name, content, type, reply_to)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING `+messageColumns, id.String(), roomID, senderID, senderName, content, msgType, replyTo)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "foreign_key_violation" {
			return models.Message{}, ErrRoomNotFound
		}
		return models.Message{}, err
	}
	return msg, nil
}

// Get retrieves a single message.
func (r *MessageRepo) Get(ctx context.Context, messageID string) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// ListForRoom returns the room's live messages in persisted order, used
// for pull-based catch-up. Soft-deleted messages are hidden.
func (r *MessageRepo) ListForRoom(ctx context.Context, roomID string, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 100
	}
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM messages
        WHERE room_id=$1 AND deleted_at IS NULL
        ORDER BY created_at ASC, id ASC
        LIMIT $2`, roomID, limit)
	return msgs, err
}

// SetContent rewrites the content and stamps the edit time.
func (r *MessageRepo) SetContent(ctx context.Context, messageID string, content string) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `UPDATE messages SET content=$2, edited_at=NOW()
        WHERE id=$1 AND deleted_at IS NULL
        RETURNING `+messageColumns, messageID, content)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// SoftDelete stamps the delete time; content stays stored but readers must
// treat the message as hidden.
func (r *MessageRepo) SoftDelete(ctx context.Context, messageID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET deleted_at=NOW()
        WHERE id=$1 AND deleted_at IS NULL`, messageID)
	if err != nil {
		return err
	}
	if count, err := res.RowsAffected(); err == nil && count == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// ToggleReaction flips the user's membership in the symbol's reactor set
// under a row lock so concurrent toggles serialize.
func (r *MessageRepo) ToggleReaction(ctx context.Context, messageID string, userID int64, symbol string) (models.Message, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer tx.Rollback()

	var msg models.Message
	err = tx.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1 AND deleted_at IS NULL FOR UPDATE`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	if err != nil {
		return models.Message{}, err
	}

	if msg.Reactions == nil {
		msg.Reactions = models.Reactions{}
	}
	msg.Reactions.Toggle(symbol, userID)

	if _, err := tx.ExecContext(ctx, `UPDATE messages SET reactions=$2 WHERE id=$1`, messageID, msg.Reactions); err != nil {
		return models.Message{}, err
	}
	if err := tx.Commit(); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// LatestInRoom returns the id of the newest live message in the room.
func (r *MessageRepo) LatestInRoom(ctx context.Context, roomID string) (string, error) {
	var id string
	err := r.db.GetContext(ctx, &id, `SELECT id FROM messages WHERE room_id=$1 AND deleted_at IS NULL
        ORDER BY created_at DESC, id DESC LIMIT 1`, roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrMessageNotFound
	}
	return id, err
}

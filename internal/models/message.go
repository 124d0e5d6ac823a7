package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// MessageType is the content kind of a message.
type MessageType string

const (
	MessageText     MessageType = "text"
	MessageImage    MessageType = "image"
	MessageVideo    MessageType = "video"
	MessageAudio    MessageType = "audio"
	MessageFile     MessageType = "file"
	MessageLocation MessageType = "location"
	MessageContact  MessageType = "contact"
	MessageSticker  MessageType = "sticker"
	MessageSystem   MessageType = "system"
)

// ValidMessageType reports whether t is one of the known content kinds.
func ValidMessageType(t MessageType) bool {
	switch t {
	case MessageText, MessageImage, MessageVideo, MessageAudio,
		MessageFile, MessageLocation, MessageContact, MessageSticker, MessageSystem:
		return true
	}
	return false
}

// Reactions maps a reaction symbol to the set of users who applied it.
// Stored as JSONB.
type Reactions map[string][]int64

// Value implements driver.Valuer.
func (r Reactions) Value() (driver.Value, error) {
	if r == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r)
}

// Scan implements sql.Scanner.
func (r *Reactions) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*r = Reactions{}
		return nil
	case []byte:
		return json.Unmarshal(v, r)
	case string:
		return json.Unmarshal([]byte(v), r)
	default:
		return errors.New("reactions: unsupported scan type")
	}
}

// Toggle flips userID's membership in the symbol's reactor set and drops
// the symbol entry when its set empties. Returns true if the user is a
// reactor after the call.
func (r Reactions) Toggle(symbol string, userID int64) bool {
	users := r[symbol]
	for i, id := range users {
		if id == userID {
			users = append(users[:i], users[i+1:]...)
			if len(users) == 0 {
				delete(r, symbol)
			} else {
				r[symbol] = users
			}
			return false
		}
	}
	r[symbol] = append(users, userID)
	return true
}

// Message is a persisted room message. Immutable except for content (via
// edit), the soft-delete stamp and the reaction map; it never moves
// between rooms. Ordering within a room is (created_at, id) with a
// time-ordered id.
type Message struct {
	ID         string      `db:"id" json:"id"`
	RoomID     string      `db:"room_id" json:"room_id"`
	SenderID   int64       `db:"sender_id" json:"sender_id"`
	SenderName string      `db:"sender_name" json:"sender_name"`
	Content    string      `db:"content" json:"content"`
	Type       MessageType `db:"type" json:"type"`
	ReplyTo    *string     `db:"reply_to" json:"reply_to,omitempty"`
	EditedAt   *time.Time  `db:"edited_at" json:"edited_at,omitempty"`
	DeletedAt  *time.Time  `db:"deleted_at" json:"deleted_at,omitempty"`
	Reactions  Reactions   `db:"reactions" json:"reactions"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
}

// Deleted reports whether the message has been soft-deleted.
func (m Message) Deleted() bool {
	return m.DeletedAt != nil
}

// ReadMarker records that a user has seen a message. Created at most once
// per (message, user) pair and never by the message's own sender.
type ReadMarker struct {
	MessageID string    `db:"message_id" json:"message_id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	ReadAt    time.Time `db:"read_at" json:"read_at"`
}

package models

import "time"

// EventKind tags the closed set of room events carried by the broadcast
// fabric. Delivery code switches exhaustively on it.
type EventKind string

const (
	EventMessage  EventKind = "message"
	EventTyping   EventKind = "typing"
	EventPresence EventKind = "presence"
)

// PresenceStatus is the wire value of a presence change.
type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusOffline PresenceStatus = "offline"
)

// MessagePayload is the message-created event body, carrying the full
// persisted message so subscribers need no follow-up read.
type MessagePayload struct {
	MessageID  string      `json:"message_id"`
	Content    string      `json:"content"`
	Type       MessageType `json:"type"`
	SenderID   int64       `json:"sender_id"`
	SenderName string      `json:"sender_name"`
	Timestamp  time.Time   `json:"timestamp"`
	ReplyTo    *string     `json:"reply_to,omitempty"`
}

// TypingPayload is an advisory typing-state change.
type TypingPayload struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	IsTyping bool   `json:"is_typing"`
}

// PresencePayload is an online/offline transition.
type PresencePayload struct {
	UserID   int64          `json:"user_id"`
	Username string         `json:"username"`
	Status   PresenceStatus `json:"status"`
}

// Event is the tagged variant published through the broadcast fabric.
// Exactly one payload pointer is set, matching Kind. UserID is the
// originating user and is the key for self-echo suppression.
type Event struct {
	Kind     EventKind        `json:"kind"`
	RoomID   string           `json:"room_id"`
	UserID   int64            `json:"user_id"`
	Message  *MessagePayload  `json:"message,omitempty"`
	Typing   *TypingPayload   `json:"typing,omitempty"`
	Presence *PresencePayload `json:"presence,omitempty"`
}

// NewMessageEvent builds a message-created event from a persisted message.
func NewMessageEvent(msg Message) Event {
	return Event{
		Kind:   EventMessage,
		RoomID: msg.RoomID,
		UserID: msg.SenderID,
		Message: &MessagePayload{
			MessageID:  msg.ID,
			Content:    msg.Content,
			Type:       msg.Type,
			SenderID:   msg.SenderID,
			SenderName: msg.SenderName,
			Timestamp:  msg.CreatedAt,
			ReplyTo:    msg.ReplyTo,
		},
	}
}

// NewTypingEvent builds a typing-state event.
func NewTypingEvent(roomID string, userID int64, username string, isTyping bool) Event {
	return Event{
		Kind:   EventTyping,
		RoomID: roomID,
		UserID: userID,
		Typing: &TypingPayload{UserID: userID, Username: username, IsTyping: isTyping},
	}
}

// NewPresenceEvent builds a presence-change event.
func NewPresenceEvent(roomID string, userID int64, username string, status PresenceStatus) Event {
	return Event{
		Kind:     EventPresence,
		RoomID:   roomID,
		UserID:   userID,
		Presence: &PresencePayload{UserID: userID, Username: username, Status: status},
	}
}

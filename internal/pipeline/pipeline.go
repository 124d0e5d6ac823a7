package pipeline

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"messaging-core/internal/broadcast"
	"messaging-core/internal/identity"
	"messaging-core/internal/models"
	"messaging-core/internal/observability"
	"messaging-core/internal/repositories"
)

var (
	ErrEmptyContent = errors.New("empty message content")
	ErrInvalidType  = errors.New("invalid message type")
	ErrForbidden    = errors.New("forbidden")
)

// Pipeline turns a validated inbound message request into a persisted,
// ordered, broadcast fact. The store write always happens before the
// publish, which is what gives subscribers per-room delivery order.
type Pipeline struct {
	rooms    repositories.RoomRepository
	messages repositories.MessageRepository
	fabric   broadcast.Fabric
	logger   *zap.Logger
}

// New constructs a Pipeline.
func New(rooms repositories.RoomRepository, messages repositories.MessageRepository, fabric broadcast.Fabric, logger *zap.Logger) *Pipeline {
	return &Pipeline{rooms: rooms, messages: messages, fabric: fabric, logger: logger}
}

// Submit persists a message, bumps the room's activity stamp and
// publishes the message-created event. An invalid reply-to reference is
// dropped by the store, not rejected; a room that vanished before the
// write surfaces as ErrRoomNotFound.
func (p *Pipeline) Submit(ctx context.Context, roomID string, sender identity.User, content string, msgType models.MessageType, replyTo *string) (models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return models.Message{}, ErrEmptyContent
	}
	if msgType == "" {
		msgType = models.MessageText
	}
	if !models.ValidMessageType(msgType) {
		return models.Message{}, ErrInvalidType
	}

	msg, err := p.messages.Create(ctx, roomID, sender.ID, sender.Username, content, msgType, replyTo)
	if err != nil {
		return models.Message{}, err
	}
	observability.IncMessagePersisted()

	if err := p.rooms.Touch(ctx, roomID); err != nil {
		// The message is already durable; the activity stamp catches up
		// on the next send.
		p.logger.Warn("room touch failed", zap.String("room_id", roomID), zap.Error(err))
	}

	if err := p.fabric.Publish(ctx, roomID, models.NewMessageEvent(msg)); err != nil {
		// Live delivery is best effort; catch-up reads recover the miss.
		p.logger.Warn("message publish failed", zap.String("room_id", roomID), zap.Error(err))
	}
	return msg, nil
}

// Edit rewrites a message's content. Only the original sender may edit.
func (p *Pipeline) Edit(ctx context.Context, messageID string, requester int64, content string) (models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return models.Message{}, ErrEmptyContent
	}

	msg, err := p.messages.Get(ctx, messageID)
	if err != nil {
		return models.Message{}, err
	}
	if msg.SenderID != requester {
		return models.Message{}, ErrForbidden
	}
	return p.messages.SetContent(ctx, messageID, content)
}

// SoftDelete hides a message from all readers. Only the original sender
// may delete; the content stays stored.
func (p *Pipeline) SoftDelete(ctx context.Context, messageID string, requester int64) error {
	msg, err := p.messages.Get(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != requester {
		return ErrForbidden
	}
	return p.messages.SoftDelete(ctx, messageID)
}

// React toggles the requester's membership in the symbol's reactor set:
// present removes, absent adds.
func (p *Pipeline) React(ctx context.Context, messageID string, requester int64, symbol string) (models.Message, error) {
	if symbol == "" {
		return models.Message{}, errors.New("empty reaction symbol")
	}
	return p.messages.ToggleReaction(ctx, messageID, requester, symbol)
}

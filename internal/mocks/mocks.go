package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"messaging-core/internal/broadcast"
	"messaging-core/internal/identity"
	"messaging-core/internal/models"
	"messaging-core/internal/presence"
	"messaging-core/internal/repositories"
)

type RoomRepositoryMock struct {
	mock.Mock
}

var _ repositories.RoomRepository = (*RoomRepositoryMock)(nil)

func (m *RoomRepositoryMock) CreateOrGetDirectRoom(ctx context.Context, userID, peerID int64) (models.Room, error) {
	args := m.Called(ctx, userID, peerID)
	return args.Get(0).(models.Room), args.Error(1)
}

func (m *RoomRepositoryMock) GetRoom(ctx context.Context, roomID string) (models.Room, error) {
	args := m.Called(ctx, roomID)
	return args.Get(0).(models.Room), args.Error(1)
}

func (m *RoomRepositoryMock) IsMember(ctx context.Context, roomID string, userID int64) (bool, error) {
	args := m.Called(ctx, roomID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *RoomRepositoryMock) GetMembership(ctx context.Context, roomID string, userID int64) (models.Membership, error) {
	args := m.Called(ctx, roomID, userID)
	return args.Get(0).(models.Membership), args.Error(1)
}

func (m *RoomRepositoryMock) AddMember(ctx context.Context, roomID string, userID int64, role models.Role) error {
	args := m.Called(ctx, roomID, userID, role)
	return args.Error(0)
}

func (m *RoomRepositoryMock) RemoveMember(ctx context.Context, roomID string, userID int64) error {
	args := m.Called(ctx, roomID, userID)
	return args.Error(0)
}

func (m *RoomRepositoryMock) Touch(ctx context.Context, roomID string) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}

func (m *RoomRepositoryMock) SetLastRead(ctx context.Context, roomID string, userID int64, messageID string) error {
	args := m.Called(ctx, roomID, userID, messageID)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)

func (m *MessageRepositoryMock) Create(ctx context.Context, roomID string, senderID int64, senderName, content string, msgType models.MessageType, replyTo *string) (models.Message, error) {
	args := m.Called(ctx, roomID, senderID, senderName, content, msgType, replyTo)
	return args.Get(0).(models.Message), args.Error(1)
}

func (m *MessageRepositoryMock) Get(ctx context.Context, messageID string) (models.Message, error) {
	args := m.Called(ctx, messageID)
	return args.Get(0).(models.Message), args.Error(1)
}

func (m *MessageRepositoryMock) ListForRoom(ctx context.Context, roomID string, limit int) ([]models.Message, error) {
	args := m.Called(ctx, roomID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MessageRepositoryMock) SetContent(ctx context.Context, messageID string, content string) (models.Message, error) {
	args := m.Called(ctx, messageID, content)
	return args.Get(0).(models.Message), args.Error(1)
}

func (m *MessageRepositoryMock) SoftDelete(ctx context.Context, messageID string) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) ToggleReaction(ctx context.Context, messageID string, userID int64, symbol string) (models.Message, error) {
	args := m.Called(ctx, messageID, userID, symbol)
	return args.Get(0).(models.Message), args.Error(1)
}

func (m *MessageRepositoryMock) LatestInRoom(ctx context.Context, roomID string) (string, error) {
	args := m.Called(ctx, roomID)
	return args.String(0), args.Error(1)
}

type ReadReceiptRepositoryMock struct {
	mock.Mock
}

var _ repositories.ReadReceiptRepository = (*ReadReceiptRepositoryMock)(nil)

func (m *ReadReceiptRepositoryMock) MarkRead(ctx context.Context, messageID string, userID int64) (bool, error) {
	args := m.Called(ctx, messageID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ReadReceiptRepositoryMock) MarkRoomRead(ctx context.Context, roomID string, userID int64) (int64, error) {
	args := m.Called(ctx, roomID, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *ReadReceiptRepositoryMock) ListReaders(ctx context.Context, messageID string) ([]models.ReadMarker, error) {
	args := m.Called(ctx, messageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ReadMarker), args.Error(1)
}

type FabricMock struct {
	mock.Mock
}

var _ broadcast.Fabric = (*FabricMock)(nil)

func (m *FabricMock) Publish(ctx context.Context, roomID string, event models.Event) error {
	args := m.Called(ctx, roomID, event)
	return args.Error(0)
}

func (m *FabricMock) Subscribe(ctx context.Context, roomID string) (broadcast.Subscription, error) {
	args := m.Called(ctx, roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(broadcast.Subscription), args.Error(1)
}

type SubscriptionMock struct {
	mock.Mock
}

var _ broadcast.Subscription = (*SubscriptionMock)(nil)

func (m *SubscriptionMock) Events() <-chan models.Event {
	args := m.Called()
	return args.Get(0).(<-chan models.Event)
}

func (m *SubscriptionMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

type RegistryMock struct {
	mock.Mock
}

var _ presence.Registry = (*RegistryMock)(nil)

func (m *RegistryMock) Connect(ctx context.Context, userID int64) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *RegistryMock) Disconnect(ctx context.Context, userID int64, at time.Time) (bool, error) {
	args := m.Called(ctx, userID, at)
	return args.Bool(0), args.Error(1)
}

func (m *RegistryMock) State(ctx context.Context, userID int64) (models.PresenceState, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(models.PresenceState), args.Error(1)
}

type VerifierMock struct {
	mock.Mock
}

var _ identity.Verifier = (*VerifierMock)(nil)

func (m *VerifierMock) VerifyCredential(ctx context.Context, token string) (identity.User, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(identity.User), args.Error(1)
}

package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"messaging-core/internal/mocks"
	"messaging-core/internal/models"
	"messaging-core/internal/readreceipts"
)

func setupRoomRouter(handler *RoomHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", int64(1))
		c.Set("username", "me")
		c.Next()
	})
	r.POST("/rooms/direct", handler.StartDirectRoom)
	r.GET("/rooms/:room_id/messages", handler.GetRoomMessages)
	r.POST("/rooms/:room_id/read", handler.MarkRoomRead)
	r.GET("/rooms/:room_id/messages/:message_id/readers", handler.GetReaders)
	r.GET("/presence/:user_id", handler.GetPresence)
	return r
}

func newRoomHandlerForTest(rooms *mocks.RoomRepositoryMock, messages *mocks.MessageRepositoryMock,
	reads *mocks.ReadReceiptRepositoryMock, registry *mocks.RegistryMock) *RoomHandler {
	tracker := readreceipts.NewTracker(reads, messages, rooms, zap.NewNop())
	return NewRoomHandler(rooms, messages, tracker, registry, nil)
}

func TestStartDirectRoomSuccess(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	handler := newRoomHandlerForTest(rooms, new(mocks.MessageRepositoryMock), new(mocks.ReadReceiptRepositoryMock), new(mocks.RegistryMock))
	router := setupRoomRouter(handler)

	rooms.On("CreateOrGetDirectRoom", mock.Anything, int64(1), int64(2)).
		Return(models.Room{ID: "room-1", Kind: models.RoomDirect}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/rooms/direct", strings.NewReader(`{"peer_id":2}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "room-1", resp["room_id"])
	rooms.AssertExpectations(t)
}

func TestStartDirectRoomWithSelf(t *testing.T) {
	handler := newRoomHandlerForTest(new(mocks.RoomRepositoryMock), new(mocks.MessageRepositoryMock), new(mocks.ReadReceiptRepositoryMock), new(mocks.RegistryMock))
	router := setupRoomRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/rooms/direct", strings.NewReader(`{"peer_id":1}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartDirectRoomRepoError(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	handler := newRoomHandlerForTest(rooms, new(mocks.MessageRepositoryMock), new(mocks.ReadReceiptRepositoryMock), new(mocks.RegistryMock))
	router := setupRoomRouter(handler)

	rooms.On("CreateOrGetDirectRoom", mock.Anything, int64(1), int64(2)).
		Return(models.Room{}, assert.AnError).Once()

	req := httptest.NewRequest(http.MethodPost, "/rooms/direct", strings.NewReader(`{"peer_id":2}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	rooms.AssertExpectations(t)
}

func TestGetRoomMessagesSuccess(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	handler := newRoomHandlerForTest(rooms, messages, new(mocks.ReadReceiptRepositoryMock), new(mocks.RegistryMock))
	router := setupRoomRouter(handler)

	rooms.On("IsMember", mock.Anything, "room-1", int64(1)).Return(true, nil).Once()
	messages.On("ListForRoom", mock.Anything, "room-1", 100).
		Return([]models.Message{{ID: "m-1", RoomID: "room-1", SenderID: 2, Content: "hi"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/rooms/room-1/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "m-1", resp.Messages[0].ID)
	rooms.AssertExpectations(t)
	messages.AssertExpectations(t)
}

func TestGetRoomMessagesNotAMember(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	handler := newRoomHandlerForTest(rooms, new(mocks.MessageRepositoryMock), new(mocks.ReadReceiptRepositoryMock), new(mocks.RegistryMock))
	router := setupRoomRouter(handler)

	rooms.On("IsMember", mock.Anything, "room-1", int64(1)).Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/rooms/room-1/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	rooms.AssertExpectations(t)
}

func TestMarkRoomReadReportsCount(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	reads := new(mocks.ReadReceiptRepositoryMock)
	handler := newRoomHandlerForTest(rooms, messages, reads, new(mocks.RegistryMock))
	router := setupRoomRouter(handler)

	rooms.On("IsMember", mock.Anything, "room-1", int64(1)).Return(true, nil).Once()
	reads.On("MarkRoomRead", mock.Anything, "room-1", int64(1)).Return(int64(3), nil).Once()
	messages.On("LatestInRoom", mock.Anything, "room-1").Return("m-9", nil).Once()
	rooms.On("SetLastRead", mock.Anything, "room-1", int64(1), "m-9").Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/rooms/room-1/read", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, float64(3), resp["marked"])
	rooms.AssertExpectations(t)
	reads.AssertExpectations(t)
	messages.AssertExpectations(t)
}

func TestGetReadersRejectsForeignMessage(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	handler := newRoomHandlerForTest(rooms, messages, new(mocks.ReadReceiptRepositoryMock), new(mocks.RegistryMock))
	router := setupRoomRouter(handler)

	rooms.On("IsMember", mock.Anything, "room-1", int64(1)).Return(true, nil).Once()
	messages.On("Get", mock.Anything, "m-1").
		Return(models.Message{ID: "m-1", RoomID: "other-room"}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/rooms/room-1/messages/m-1/readers", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	rooms.AssertExpectations(t)
	messages.AssertExpectations(t)
}

func TestGetReadersSuccess(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	reads := new(mocks.ReadReceiptRepositoryMock)
	handler := newRoomHandlerForTest(rooms, messages, reads, new(mocks.RegistryMock))
	router := setupRoomRouter(handler)

	rooms.On("IsMember", mock.Anything, "room-1", int64(1)).Return(true, nil).Once()
	messages.On("Get", mock.Anything, "m-1").
		Return(models.Message{ID: "m-1", RoomID: "room-1"}, nil).Once()
	reads.On("ListReaders", mock.Anything, "m-1").
		Return([]models.ReadMarker{{MessageID: "m-1", UserID: 2, ReadAt: time.Now()}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/rooms/room-1/messages/m-1/readers", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Readers []models.ReadMarker `json:"readers"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Readers, 1)
	assert.Equal(t, int64(2), resp.Readers[0].UserID)
}

func TestGetPresence(t *testing.T) {
	registry := new(mocks.RegistryMock)
	handler := newRoomHandlerForTest(new(mocks.RoomRepositoryMock), new(mocks.MessageRepositoryMock), new(mocks.ReadReceiptRepositoryMock), registry)
	router := setupRoomRouter(handler)

	registry.On("State", mock.Anything, int64(7)).
		Return(models.PresenceState{UserID: 7, Online: true}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/presence/7", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var state models.PresenceState
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&state))
	assert.True(t, state.Online)
	registry.AssertExpectations(t)
}

func TestGetPresenceInvalidID(t *testing.T) {
	handler := newRoomHandlerForTest(new(mocks.RoomRepositoryMock), new(mocks.MessageRepositoryMock), new(mocks.ReadReceiptRepositoryMock), new(mocks.RegistryMock))
	router := setupRoomRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/presence/abc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

package ws

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"messaging-core/internal/broadcast"
	"messaging-core/internal/identity"
	"messaging-core/internal/mocks"
	"messaging-core/internal/pipeline"
	"messaging-core/internal/readreceipts"
)

type handlerFixture struct {
	router   *gin.Engine
	rooms    *mocks.RoomRepositoryMock
	verifier *mocks.VerifierMock
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	fabric := broadcast.NewLocalFabric(logger)
	hub := NewHub(fabric, logger)

	rooms := new(mocks.RoomRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	reads := new(mocks.ReadReceiptRepositoryMock)
	registry := new(mocks.RegistryMock)
	verifier := new(mocks.VerifierMock)

	pl := pipeline.New(rooms, messages, fabric, logger)
	tracker := readreceipts.NewTracker(reads, messages, rooms, logger)
	handler := NewHandler(hub, rooms, pl, tracker, registry, verifier, logger)

	router := gin.New()
	router.GET("/ws/rooms/:room_id", handler.HandleRoom)
	return &handlerFixture{router: router, rooms: rooms, verifier: verifier}
}

func (fx *handlerFixture) get(path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	fx.router.ServeHTTP(w, req)
	return w
}

func TestHandleRoomRejectsMissingCredential(t *testing.T) {
	fx := newHandlerFixture(t)

	w := fx.get("/ws/rooms/room-1")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandleRoomRejectsNonMember(t *testing.T) {
	fx := newHandlerFixture(t)
	fx.verifier.On("VerifyCredential", mock.Anything, "tok").
		Return(identity.User{ID: 1, Username: "alice"}, nil).Once()
	fx.rooms.On("IsMember", mock.Anything, "room-1", int64(1)).Return(false, nil).Once()

	w := fx.get("/ws/rooms/room-1?token=tok")
	assert.Equal(t, http.StatusForbidden, w.Code)
	fx.rooms.AssertExpectations(t)
}

func TestHandleRoomMembershipCheckFailure(t *testing.T) {
	fx := newHandlerFixture(t)
	fx.verifier.On("VerifyCredential", mock.Anything, "tok").
		Return(identity.User{ID: 1, Username: "alice"}, nil).Once()
	fx.rooms.On("IsMember", mock.Anything, "room-1", int64(1)).
		Return(false, errors.New("store down")).Once()

	// A store failure is not a membership verdict.
	w := fx.get("/ws/rooms/room-1?token=tok")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	fx.rooms.AssertExpectations(t)
}

package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"messaging-core/internal/middleware"
	"messaging-core/internal/models"
	"messaging-core/internal/presence"
	"messaging-core/internal/readreceipts"
	"messaging-core/internal/repositories"
	"messaging-core/internal/telemetry"
)

// RoomHandler manages room-scoped read paths and receipts.
type RoomHandler struct {
	rooms    repositories.RoomRepository
	messages repositories.MessageRepository
	tracker  *readreceipts.Tracker
	registry presence.Registry
	audit    *telemetry.AuditEmitter
}

// NewRoomHandler builds a RoomHandler.
func NewRoomHandler(rooms repositories.RoomRepository, messages repositories.MessageRepository,
	tracker *readreceipts.Tracker, registry presence.Registry, audit *telemetry.AuditEmitter) *RoomHandler {
	return &RoomHandler{
		rooms:    rooms,
		messages: messages,
		tracker:  tracker,
		registry: registry,
		audit:    audit,
	}
}

// StartDirectRoom resolves (or creates) the direct room between the
// caller and a peer. Both sides always land on the same room, including
// under concurrent first contact.
func (h *RoomHandler) StartDirectRoom(c *gin.Context) {
	var req struct {
		PeerID int64 `json:"peer_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	caller := middleware.CallerFromContext(c)
	if req.PeerID == caller.ID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot open a direct room with yourself"})
		return
	}

	room, err := h.rooms.CreateOrGetDirectRoom(c.Request.Context(), caller.ID, req.PeerID)
	if err != nil {
		h.emitAudit(c, "ERROR", "direct room resolution failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not resolve direct room"})
		return
	}

	h.emitAudit(c, "INFO", "direct room resolved")
	c.JSON(http.StatusOK, gin.H{"room_id": room.ID, "kind": room.Kind})
}

// GetRoomMessages returns the room's live messages in persisted order,
// the pull-based catch-up for missed live delivery.
func (h *RoomHandler) GetRoomMessages(c *gin.Context) {
	roomID := c.Param("room_id")
	caller := middleware.CallerFromContext(c)

	if !h.requireMember(c, roomID, caller.ID) {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	msgs, err := h.messages.ListForRoom(c.Request.Context(), roomID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// MarkRoomRead marks everything unread in the room for the caller and
// returns the count newly marked; an immediate repeat returns 0.
func (h *RoomHandler) MarkRoomRead(c *gin.Context) {
	roomID := c.Param("room_id")
	caller := middleware.CallerFromContext(c)

	if !h.requireMember(c, roomID, caller.ID) {
		return
	}

	marked, err := h.tracker.MarkRoomRead(c.Request.Context(), roomID, caller.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not mark room read"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"marked": marked})
}

// GetReaders returns who has read a message and when.
func (h *RoomHandler) GetReaders(c *gin.Context) {
	roomID := c.Param("room_id")
	caller := middleware.CallerFromContext(c)

	if !h.requireMember(c, roomID, caller.ID) {
		return
	}

	msg, err := h.messages.Get(c.Request.Context(), c.Param("message_id"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrMessageNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "message not found"})
		return
	}
	if msg.RoomID != roomID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message does not belong to room"})
		return
	}

	readers, err := h.tracker.QueryReaders(c.Request.Context(), msg.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load readers"})
		return
	}
	if readers == nil {
		readers = []models.ReadMarker{}
	}

	c.JSON(http.StatusOK, gin.H{"readers": readers})
}

// GetPresence reports a user's online flag and last-seen fallback.
func (h *RoomHandler) GetPresence(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	state, err := h.registry.State(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load presence"})
		return
	}

	c.JSON(http.StatusOK, state)
}

func (h *RoomHandler) requireMember(c *gin.Context, roomID string, userID int64) bool {
	member, err := h.rooms.IsMember(c.Request.Context(), roomID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return false
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a room member"})
		return false
	}
	return true
}

func (h *RoomHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}

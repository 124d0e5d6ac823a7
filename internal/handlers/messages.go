package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-core/internal/middleware"
	"messaging-core/internal/models"
	"messaging-core/internal/pipeline"
	"messaging-core/internal/repositories"
	"messaging-core/internal/telemetry"
)

// MessageHandler exposes the message pipeline over REST.
type MessageHandler struct {
	rooms    repositories.RoomRepository
	pipeline *pipeline.Pipeline
	audit    *telemetry.AuditEmitter
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(rooms repositories.RoomRepository, pl *pipeline.Pipeline, audit *telemetry.AuditEmitter) *MessageHandler {
	return &MessageHandler{rooms: rooms, pipeline: pl, audit: audit}
}

// PostMessage submits a message into the room.
func (h *MessageHandler) PostMessage(c *gin.Context) {
	roomID := c.Param("room_id")
	caller := middleware.CallerFromContext(c)

	if !h.requireMember(c, roomID, caller.ID) {
		return
	}

	var req struct {
		Content string             `json:"content" binding:"required"`
		Type    models.MessageType `json:"type"`
		ReplyTo *string            `json:"reply_to"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.pipeline.Submit(c.Request.Context(), roomID, caller, req.Content, req.Type, req.ReplyTo)
	switch {
	case errors.Is(err, pipeline.ErrEmptyContent), errors.Is(err, pipeline.ErrInvalidType):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, repositories.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	case err != nil:
		h.emitAudit(c, "ERROR", "message submit failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}

	c.JSON(http.StatusCreated, msg)
}

// EditMessage rewrites content; sender only.
func (h *MessageHandler) EditMessage(c *gin.Context) {
	roomID := c.Param("room_id")
	caller := middleware.CallerFromContext(c)

	if !h.requireMember(c, roomID, caller.ID) {
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.pipeline.Edit(c.Request.Context(), c.Param("message_id"), caller.ID, req.Content)
	if err != nil {
		h.respondPipelineError(c, err, "could not edit message")
		return
	}

	c.JSON(http.StatusOK, msg)
}

// DeleteMessage soft-deletes; sender only.
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	roomID := c.Param("room_id")
	caller := middleware.CallerFromContext(c)

	if !h.requireMember(c, roomID, caller.ID) {
		return
	}

	if err := h.pipeline.SoftDelete(c.Request.Context(), c.Param("message_id"), caller.ID); err != nil {
		h.respondPipelineError(c, err, "could not delete message")
		return
	}

	h.emitAudit(c, "INFO", "message deleted")
	c.Status(http.StatusNoContent)
}

// ToggleReaction flips the caller's reaction on a message.
func (h *MessageHandler) ToggleReaction(c *gin.Context) {
	roomID := c.Param("room_id")
	caller := middleware.CallerFromContext(c)

	if !h.requireMember(c, roomID, caller.ID) {
		return
	}

	var req struct {
		Symbol string `json:"symbol" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.pipeline.React(c.Request.Context(), c.Param("message_id"), caller.ID, req.Symbol)
	if err != nil {
		h.respondPipelineError(c, err, "could not toggle reaction")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message_id": msg.ID, "reactions": msg.Reactions})
}

func (h *MessageHandler) respondPipelineError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, pipeline.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "only the sender may do that"})
	case errors.Is(err, repositories.ErrMessageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
	case errors.Is(err, pipeline.ErrEmptyContent):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

func (h *MessageHandler) requireMember(c *gin.Context, roomID string, userID int64) bool {
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

func (h *MessageHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}

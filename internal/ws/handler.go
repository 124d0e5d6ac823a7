package ws

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"messaging-core/internal/identity"
	"messaging-core/internal/observability"
	"messaging-core/internal/pipeline"
	"messaging-core/internal/presence"
	"messaging-core/internal/readreceipts"
	"messaging-core/internal/repositories"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler upgrades client connections into room sessions.
type Handler struct {
	hub      *Hub
	rooms    repositories.RoomRepository
	pipeline *pipeline.Pipeline
	tracker  *readreceipts.Tracker
	registry presence.Registry
	verifier identity.Verifier
	logger   *zap.Logger
}

// NewHandler constructs a Handler.
func NewHandler(hub *Hub, rooms repositories.RoomRepository, pl *pipeline.Pipeline,
	tracker *readreceipts.Tracker, registry presence.Registry, verifier identity.Verifier, logger *zap.Logger) *Handler {
	return &Handler{
		hub:      hub,
		rooms:    rooms,
		pipeline: pl,
		tracker:  tracker,
		registry: registry,
		verifier: verifier,
		logger:   logger,
	}
}

// HandleRoom attaches the caller to an existing room by id. The caller
// must hold a current membership; a failed check terminates the attempt
// before the upgrade with no join state left behind.
func (h *Handler) HandleRoom(c *gin.Context) {
	roomID := c.Param("room_id")

	ctx, span := otel.Tracer("messaging-core/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	user, ok := h.authenticate(c)
	if !ok {
		return
	}

	member, err := h.rooms.IsMember(ctx, roomID, user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "membership check failed"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a room member"})
		return
	}

	h.attach(c, roomID, user, span.SpanContext().TraceID().String())
}

// HandleDirect attaches the caller to the direct room shared with a peer.
// The room is computed deterministically from the ordered pair of user
// ids so both sides converge on the same room, creating it on first
// contact.
func (h *Handler) HandleDirect(c *gin.Context) {
	peerID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid peer id"})
		return
	}

	ctx, span := otel.Tracer("messaging-core/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	user, ok := h.authenticate(c)
	if !ok {
		return
	}
	if peerID == user.ID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot open a direct room with self"})
		return
	}

	room, err := h.rooms.CreateOrGetDirectRoom(ctx, user.ID, peerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not resolve direct room"})
		return
	}

	h.attach(c, room.ID, user, span.SpanContext().TraceID().String())
}

// authenticate resolves the caller's identity from the Authorization
// header, falling back to the token query parameter for browser clients.
func (h *Handler) authenticate(c *gin.Context) (identity.User, bool) {
	header := c.GetHeader("Authorization")
	token := ""
	if parts := strings.SplitN(header, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		token = parts[1]
	}
	if token == "" {
		token = c.Query("token")
	}
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing credential"})
		return identity.User{}, false
	}

	user, err := h.verifier.VerifyCredential(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credential"})
		return identity.User{}, false
	}
	return user, true
}

func (h *Handler) attach(c *gin.Context, roomID string, user identity.User, traceID string) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	requestID := observability.RequestIDFromRequest(c.Request)
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      user.ID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		UserAgent:   observability.UserAgentFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   requestID,
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}

	session := NewSession(info, roomID, user, conn, h.hub, h.pipeline, h.tracker, h.registry, h.logger)
	if err := session.Start(c.Request.Context()); err != nil {
		h.logger.Error("session start failed",
			zap.String("room_id", roomID), zap.Int64("user_id", user.ID), zap.Error(err))
		conn.Close()
		return
	}

	_ = observability.PublishEvent(c.Request.Context(), "ws_events.rooms", observability.NewEnvelope(
		"ws_events", "ws_connect", map[string]interface{}{
			"ws": map[string]interface{}{
				"room_id": roomID,
				"event":   "ws_connect",
				"conn_id": info.ConnID,
			},
			"identity": map[string]interface{}{
				"user_id":    info.UserID,
				"device_id":  info.DeviceID,
				"user_agent": info.UserAgent,
				"ip":         info.IP,
			},
		}), observability.BuildHeaders(requestID, traceID))
}

package ws

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"messaging-core/internal/identity"
	"messaging-core/internal/models"
	"messaging-core/internal/observability"
	"messaging-core/internal/pipeline"
	"messaging-core/internal/presence"
	"messaging-core/internal/readreceipts"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound frame size.
	maxFrameSize = 4096

	sendBuffer = 64
)

// Inbound frame kinds.
const (
	frameMessage     = "message"
	frameTyping      = "typing"
	frameReadReceipt = "read_receipt"
)

type inboundFrame struct {
	Kind      string             `json:"kind"`
	Content   string             `json:"content,omitempty"`
	Type      models.MessageType `json:"type,omitempty"`
	ReplyTo   *string            `json:"reply_to,omitempty"`
	IsTyping  bool               `json:"is_typing,omitempty"`
	MessageID string             `json:"message_id,omitempty"`
}

type outboundFrame struct {
	Type     string                  `json:"type"`
	Message  *models.MessagePayload  `json:"message,omitempty"`
	Typing   *models.TypingPayload   `json:"typing,omitempty"`
	Presence *models.PresencePayload `json:"presence,omitempty"`
}

// Session is one live client attachment to a room: it translates inbound
// client frames into core operations and outbound broadcast events into
// client frames, suppressing the sender's own echo.
type Session struct {
	info   ConnInfo
	roomID string
	user   identity.User
	conn   *websocket.Conn

	hub      *Hub
	pipeline *pipeline.Pipeline
	tracker  *readreceipts.Tracker
	registry presence.Registry
	logger   *zap.Logger

	send chan models.Event
	done chan struct{}
	once sync.Once
}

// NewSession builds a session for an upgraded, membership-checked
// connection.
func NewSession(info ConnInfo, roomID string, user identity.User, conn *websocket.Conn,
	hub *Hub, pl *pipeline.Pipeline, tracker *readreceipts.Tracker, registry presence.Registry, logger *zap.Logger) *Session {
	return &Session{
		info:     info,
		roomID:   roomID,
		user:     user,
		conn:     conn,
		hub:      hub,
		pipeline: pl,
		tracker:  tracker,
		registry: registry,
		logger:   logger.With(zap.String("room_id", roomID), zap.Int64("user_id", user.ID)),
		send:     make(chan models.Event, sendBuffer),
		done:     make(chan struct{}),
	}
}

// Start registers the session, marks the user online and launches the
// pumps. The presence-changed event goes out only on the offline→online
// transition so a second device does not re-announce.
func (s *Session) Start(ctx context.Context) error {
	if err := s.hub.Add(ctx, s); err != nil {
		return err
	}

	online, err := s.registry.Connect(ctx, s.user.ID)
	if err != nil {
		s.hub.Remove(s)
		return err
	}
	if online {
		event := models.NewPresenceEvent(s.roomID, s.user.ID, s.user.Username, models.StatusOnline)
		if err := s.hub.Broadcast(ctx, event); err != nil {
			s.logger.Warn("presence broadcast failed", zap.Error(err))
		}
	}

	observability.IncWSActive()
	observability.IncWSEvent("connect")

	go s.writePump()
	go s.readPump()
	return nil
}

// enqueue hands an event to the write pump without blocking. A false
// return means the session is gone or too slow to keep.
func (s *Session) enqueue(event models.Event) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- event:
		return true
	default:
		return false
	}
}

// Teardown runs exactly once no matter how many paths signal disconnect:
// it stops outbound delivery, detaches from the hub, releases the
// presence session and closes the socket. An inbound operation already
// dispatched is allowed to finish; no new inbound events are accepted
// once teardown begins.
func (s *Session) Teardown() {
	s.once.Do(func() {
		close(s.done)
		s.hub.Remove(s)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		offline, err := s.registry.Disconnect(ctx, s.user.ID, time.Now())
		if err != nil {
			s.logger.Warn("presence disconnect failed", zap.Error(err))
		} else if offline {
			event := models.NewPresenceEvent(s.roomID, s.user.ID, s.user.Username, models.StatusOffline)
			if err := s.hub.Broadcast(ctx, event); err != nil {
				s.logger.Warn("presence broadcast failed", zap.Error(err))
			}
		}

		s.conn.Close()
		observability.DecWSActive()
		observability.IncWSEvent("disconnect")
	})
}

// readPump pulls frames off the socket and dispatches them until the
// connection drops or teardown begins.
func (s *Session) readPump() {
	defer s.Teardown()

	s.conn.SetReadLimit(maxFrameSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("read failed", zap.Error(err))
				observability.IncWSEvent("error")
			}
			return
		}

		select {
		case <-s.done:
			return
		default:
		}

		s.dispatch(raw)
	}
}

// dispatch routes one inbound frame. Malformed or empty payloads are
// dropped without killing the session; so are store failures, which the
// client retries on its next event.
func (s *Session) dispatch(raw []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		s.logger.Debug("dropping malformed frame", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch frame.Kind {
	case frameMessage:
		if strings.TrimSpace(frame.Content) == "" {
			return
		}
		_, err := s.pipeline.Submit(ctx, s.roomID, s.user, frame.Content, frame.Type, frame.ReplyTo)
		if err != nil && !errors.Is(err, pipeline.ErrEmptyContent) {
			s.logger.Warn("submit failed", zap.Error(err))
		}
	case frameTyping:
		event := models.NewTypingEvent(s.roomID, s.user.ID, s.user.Username, frame.IsTyping)
		if err := s.hub.Broadcast(ctx, event); err != nil {
			s.logger.Debug("typing broadcast failed", zap.Error(err))
		}
	case frameReadReceipt:
		if frame.MessageID == "" {
			return
		}
		if err := s.tracker.MarkRead(ctx, frame.MessageID, s.user.ID); err != nil {
			s.logger.Warn("mark read failed", zap.Error(err))
		}
	default:
		s.logger.Debug("dropping frame with unknown kind", zap.String("kind", frame.Kind))
	}
}

// writePump delivers broadcast events to the client, suppressing events
// the session's own user originated, and keeps the connection alive.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Teardown()
	}()

	for {
		select {
		case <-s.done:
			return
		case event := <-s.send:
			if event.UserID == s.user.ID {
				continue
			}
			frame, ok := frameFor(event)
			if !ok {
				continue
			}
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(frame); err != nil {
				s.logger.Debug("write failed", zap.Error(err))
				observability.IncWSEvent("error")
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// frameFor maps a fabric event onto its client frame. The switch is the
// delivery boundary for the closed event set; anything else is refused.
func frameFor(event models.Event) (outboundFrame, bool) {
	switch event.Kind {
	case models.EventMessage:
		return outboundFrame{Type: "message_created", Message: event.Message}, event.Message != nil
	case models.EventTyping:
		return outboundFrame{Type: "typing", Typing: event.Typing}, event.Typing != nil
	case models.EventPresence:
		return outboundFrame{Type: "presence", Presence: event.Presence}, event.Presence != nil
	default:
		return outboundFrame{}, false
	}
}

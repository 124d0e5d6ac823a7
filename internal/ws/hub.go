package ws

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"messaging-core/internal/broadcast"
	"messaging-core/internal/models"
)

// Hub is the per-room registry of currently-attached sessions. It is
// local delivery bookkeeping only; membership authority stays in the
// store. The first session attached to a room subscribes the room on the
// broadcast fabric, the last one leaving unsubscribes it, so a room with
// zero sessions costs nothing and events for it are simply not delivered
// locally.
type Hub struct {
	fabric broadcast.Fabric
	logger *zap.Logger

	mu    sync.RWMutex
	rooms map[string]*roomState
}

type roomState struct {
	sessions map[*Session]bool
	sub      broadcast.Subscription
}

// NewHub creates an empty hub on top of a broadcast fabric.
func NewHub(fabric broadcast.Fabric, logger *zap.Logger) *Hub {
	return &Hub{
		fabric: fabric,
		logger: logger,
		rooms:  make(map[string]*roomState),
	}
}

// Add attaches a session to its room, subscribing the room on the fabric
// if this is the room's first local session.
func (h *Hub) Add(ctx context.Context, s *Session) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	state, ok := h.rooms[s.roomID]
	if !ok {
		sub, err := h.fabric.Subscribe(ctx, s.roomID)
		if err != nil {
			return err
		}
		state = &roomState{sessions: make(map[*Session]bool), sub: sub}
		h.rooms[s.roomID] = state
		go h.deliver(s.roomID, sub)
	}
	state.sessions[s] = true
	return nil
}

// Remove detaches a session; the last session out closes the room's
// fabric subscription.
func (h *Hub) Remove(s *Session) {
	h.mu.Lock()
	state, ok := h.rooms[s.roomID]
	if ok {
		delete(state.sessions, s)
		if len(state.sessions) == 0 {
			delete(h.rooms, s.roomID)
		} else {
			state = nil
		}
	}
	h.mu.Unlock()

	if state != nil {
		if err := state.sub.Close(); err != nil {
			h.logger.Warn("fabric unsubscribe failed", zap.String("room_id", s.roomID), zap.Error(err))
		}
	}
}

// SessionCount reports how many sessions are attached to a room.
func (h *Hub) SessionCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if state, ok := h.rooms[roomID]; ok {
		return len(state.sessions)
	}
	return 0
}

// deliver pumps one room's fabric subscription into its attached
// sessions. Runs until the subscription's event channel closes.
func (h *Hub) deliver(roomID string, sub broadcast.Subscription) {
	for event := range sub.Events() {
		h.mu.RLock()
		state, ok := h.rooms[roomID]
		var targets []*Session
		if ok {
			targets = make([]*Session, 0, len(state.sessions))
			for s := range state.sessions {
				targets = append(targets, s)
			}
		}
		h.mu.RUnlock()

		for _, s := range targets {
			if !s.enqueue(event) {
				h.logger.Warn("evicting slow session",
					zap.String("room_id", roomID), zap.Int64("user_id", s.user.ID))
				s.Teardown()
			}
		}
	}
}

// Broadcast publishes an event for the session's room through the fabric.
// Local delivery happens on the subscription path, same as remote.
func (h *Hub) Broadcast(ctx context.Context, event models.Event) error {
	return h.fabric.Publish(ctx, event.RoomID, event)
}

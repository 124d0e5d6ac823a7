package presence

import (
	"context"
	"sync"
	"time"

	"messaging-core/internal/models"
)

// Registry is the single source of truth for online/offline per user. A
// user is online while at least one session is active, so implementations
// keep a per-user count of active sessions rather than the last event
// seen: a second device disconnecting must not mark a still-connected
// user offline.
type Registry interface {
	// Connect registers one more active session. Returns true when the
	// user transitioned from offline to online.
	Connect(ctx context.Context, userID int64) (bool, error)
	// Disconnect releases one active session, recording last-seen on the
	// transition to offline. Returns true on that transition.
	Disconnect(ctx context.Context, userID int64, at time.Time) (bool, error)
	// State reports the user's current presence.
	State(ctx context.Context, userID int64) (models.PresenceState, error)
}

// MemoryRegistry tracks presence in-process. Suitable for single-node
// deployments and tests.
type MemoryRegistry struct {
	mu       sync.Mutex
	sessions map[int64]int
	lastSeen map[int64]time.Time
}

// NewMemoryRegistry constructs an empty MemoryRegistry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		sessions: make(map[int64]int),
		lastSeen: make(map[int64]time.Time),
	}
}

func (r *MemoryRegistry) Connect(_ context.Context, userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[userID]++
	return r.sessions[userID] == 1, nil
}

func (r *MemoryRegistry) Disconnect(_ context.Context, userID int64, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[userID] == 0 {
		return false, nil
	}
	r.sessions[userID]--
	if r.sessions[userID] > 0 {
		return false, nil
	}
	delete(r.sessions, userID)
	r.lastSeen[userID] = at
	return true, nil
}

func (r *MemoryRegistry) State(_ context.Context, userID int64) (models.PresenceState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state := models.PresenceState{UserID: userID, Online: r.sessions[userID] > 0}
	if seen, ok := r.lastSeen[userID]; ok {
		t := seen
		state.LastSeen = &t
	}
	return state, nil
}

var _ Registry = (*MemoryRegistry)(nil)

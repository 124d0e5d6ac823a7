package broadcast

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"messaging-core/internal/models"
	"messaging-core/internal/observability"
)

// LocalFabric fans events out inside a single process. Used for
// single-node deployments and tests; the wire semantics match the
// distributed drivers.
type LocalFabric struct {
	mu     sync.RWMutex
	rooms  map[string]map[*localSubscription]bool
	logger *zap.Logger
}

// NewLocalFabric constructs an empty LocalFabric.
func NewLocalFabric(logger *zap.Logger) *LocalFabric {
	return &LocalFabric{rooms: make(map[string]map[*localSubscription]bool), logger: logger}
}

type localSubscription struct {
	fabric *LocalFabric
	roomID string
	events chan models.Event
	once   sync.Once
}

func (s *localSubscription) Events() <-chan models.Event { return s.events }

// Close removes the subscription and closes its event channel. The
// close happens under the fabric's write lock, and Publish sends only
// while holding the read lock, so a send can never hit a closed channel.
func (s *localSubscription) Close() error {
	s.once.Do(func() {
		s.fabric.mu.Lock()
		if subs, ok := s.fabric.rooms[s.roomID]; ok {
			delete(subs, s)
			if len(subs) == 0 {
				delete(s.fabric.rooms, s.roomID)
			}
		}
		close(s.events)
		s.fabric.mu.Unlock()
	})
	return nil
}

func (f *LocalFabric) Publish(_ context.Context, roomID string, event models.Event) error {
	f.mu.RLock()
	for s := range f.rooms[roomID] {
		select {
		case s.events <- event:
		default:
			// Subscriber is not draining; drop rather than block.
			f.logger.Warn("local fabric dropped event",
				zap.String("room_id", roomID), zap.String("kind", string(event.Kind)))
		}
	}
	f.mu.RUnlock()

	observability.IncBroadcastPublished("local", string(event.Kind))
	return nil
}

func (f *LocalFabric) Subscribe(_ context.Context, roomID string) (Subscription, error) {
	sub := &localSubscription{
		fabric: f,
		roomID: roomID,
		events: make(chan models.Event, subscriptionBuffer),
	}
	f.mu.Lock()
	if f.rooms[roomID] == nil {
		f.rooms[roomID] = make(map[*localSubscription]bool)
	}
	f.rooms[roomID][sub] = true
	f.mu.Unlock()
	return sub, nil
}

var _ Fabric = (*LocalFabric)(nil)

package presence

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"messaging-core/internal/models"
)

const lastSeenHash = "presence:last_seen"

func sessionsKey(userID int64) string {
	return "presence:sessions:" + strconv.FormatInt(userID, 10)
}

// RedisRegistry tracks presence across processes with atomic per-user
// session counters.
type RedisRegistry struct {
	client *redis.Client
}

// NewRedisRegistry constructs a RedisRegistry.
func NewRedisRegistry(client *redis.Client) *RedisRegistry {
	return &RedisRegistry{client: client}
}

func (r *RedisRegistry) Connect(ctx context.Context, userID int64) (bool, error) {
	count, err := r.client.Incr(ctx, sessionsKey(userID)).Result()
	if err != nil {
		return false, err
	}
	return count == 1, nil
}

// disconnectScript decrements the session counter and, when it reaches
// zero, deletes the key and records last-seen in the same script. Doing
// all three atomically keeps a concurrent Connect from incrementing
// between the decrement and the cleanup and having its count erased. A
// stray double-disconnect drives the counter negative; the key is
// deleted so the next Connect starts clean at 1.
var disconnectScript = redis.NewScript(`
local n = redis.call("DECR", KEYS[1])
if n <= 0 then
	redis.call("DEL", KEYS[1])
end
if n == 0 then
	redis.call("HSET", KEYS[2], ARGV[1], ARGV[2])
end
return n
`)

func (r *RedisRegistry) Disconnect(ctx context.Context, userID int64, at time.Time) (bool, error) {
	count, err := disconnectScript.Run(ctx, r.client,
		[]string{sessionsKey(userID), lastSeenHash},
		strconv.FormatInt(userID, 10), at.UTC().Format(time.RFC3339Nano)).Int64()
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

func (r *RedisRegistry) State(ctx context.Context, userID int64) (models.PresenceState, error) {
	state := models.PresenceState{UserID: userID}

	count, err := r.client.Get(ctx, sessionsKey(userID)).Int64()
	if err != nil && err != redis.Nil {
		return state, err
	}
	state.Online = count > 0

	raw, err := r.client.HGet(ctx, lastSeenHash, strconv.FormatInt(userID, 10)).Result()
	if err == redis.Nil {
		return state, nil
	}
	if err != nil {
		return state, err
	}
	if seen, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		state.LastSeen = &seen
	}
	return state, nil
}

var _ Registry = (*RedisRegistry)(nil)

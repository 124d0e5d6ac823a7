package presence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisRegistry(t *testing.T) *RedisRegistry {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisRegistry(client)
}

func TestRedisRegistryTwoDevicesStayOnline(t *testing.T) {
	reg := newRedisRegistry(t)
	ctx := context.Background()

	cameOnline, err := reg.Connect(ctx, 7)
	require.NoError(t, err)
	assert.True(t, cameOnline)

	cameOnline, err = reg.Connect(ctx, 7)
	require.NoError(t, err)
	assert.False(t, cameOnline, "second device must not re-announce online")

	wentOffline, err := reg.Disconnect(ctx, 7, time.Now())
	require.NoError(t, err)
	assert.False(t, wentOffline, "one device still connected")

	state, err := reg.State(ctx, 7)
	require.NoError(t, err)
	assert.True(t, state.Online)

	wentOffline, err = reg.Disconnect(ctx, 7, time.Now())
	require.NoError(t, err)
	assert.True(t, wentOffline)

	state, err = reg.State(ctx, 7)
	require.NoError(t, err)
	assert.False(t, state.Online)
	require.NotNil(t, state.LastSeen)
}

func TestRedisRegistryReconnectAfterDisconnectStartsClean(t *testing.T) {
	reg := newRedisRegistry(t)
	ctx := context.Background()

	_, err := reg.Connect(ctx, 7)
	require.NoError(t, err)
	_, err = reg.Disconnect(ctx, 7, time.Now())
	require.NoError(t, err)

	cameOnline, err := reg.Connect(ctx, 7)
	require.NoError(t, err)
	assert.True(t, cameOnline)

	state, err := reg.State(ctx, 7)
	require.NoError(t, err)
	assert.True(t, state.Online, "reconnect after full disconnect must count from a clean key")
}

func TestRedisRegistryStrayDisconnectDoesNotStickNegative(t *testing.T) {
	reg := newRedisRegistry(t)
	ctx := context.Background()

	wentOffline, err := reg.Disconnect(ctx, 7, time.Now())
	require.NoError(t, err)
	assert.False(t, wentOffline, "a user who never connected did not transition offline")

	cameOnline, err := reg.Connect(ctx, 7)
	require.NoError(t, err)
	assert.True(t, cameOnline, "counter must not be stuck below zero")

	state, err := reg.State(ctx, 7)
	require.NoError(t, err)
	assert.True(t, state.Online)
}

func TestRedisRegistryUnknownUserOffline(t *testing.T) {
	reg := newRedisRegistry(t)

	state, err := reg.State(context.Background(), 99)
	require.NoError(t, err)
	assert.False(t, state.Online)
	assert.Nil(t, state.LastSeen)
}

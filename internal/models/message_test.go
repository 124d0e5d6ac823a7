package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReactionsToggle(t *testing.T) {
	reactions := Reactions{}

	assert.True(t, reactions.Toggle("👍", 1))
	assert.True(t, reactions.Toggle("👍", 2))
	assert.Equal(t, []int64{1, 2}, reactions["👍"])

	assert.False(t, reactions.Toggle("👍", 1))
	assert.Equal(t, []int64{2}, reactions["👍"])

	assert.False(t, reactions.Toggle("👍", 2))
	_, ok := reactions["👍"]
	assert.False(t, ok, "empty reactor set must drop the symbol entry")
}

func TestReactionsScanRoundTrip(t *testing.T) {
	original := Reactions{"❤️": {3, 5}}
	value, err := original.Value()
	require.NoError(t, err)

	var scanned Reactions
	require.NoError(t, scanned.Scan(value))
	assert.Equal(t, original, scanned)

	var fromNil Reactions
	require.NoError(t, fromNil.Scan(nil))
	assert.Empty(t, fromNil)
}

func TestValidMessageType(t *testing.T) {
	assert.True(t, ValidMessageType(MessageText))
	assert.True(t, ValidMessageType(MessageSticker))
	assert.False(t, ValidMessageType("hologram"))
	assert.False(t, ValidMessageType(""))
}

func TestMessageDeleted(t *testing.T) {
	msg := Message{}
	assert.False(t, msg.Deleted())

	now := time.Now()
	msg.DeletedAt = &now
	assert.True(t, msg.Deleted())
}

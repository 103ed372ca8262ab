package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeEventAddsTypeTag(t *testing.T) {
	data, err := EncodeEvent(SendNotificationEvent{
		Message:     "alice: hello",
		Sender:      "alice",
		Link:        "/chat/alice/",
		UnreadCount: 3,
	})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "new_message", got["type"])
	assert.Equal(t, "alice: hello", got["message"])
	assert.Equal(t, "/chat/alice/", got["link"])
	assert.EqualValues(t, 3, got["unread_count"])
}

func TestDecodeEventRestoresVariant(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	data, err := EncodeEvent(ChatMessageEvent{Message: ChatMessagePayload{
		ID: 7, Content: "hello", Sender: "alice", SenderID: 1, CreatedAt: created,
	}})
	require.NoError(t, err)

	ev, err := DecodeEvent(data)
	require.NoError(t, err)
	msg, ok := ev.(ChatMessageEvent)
	require.True(t, ok)
	assert.Equal(t, int64(7), msg.Message.ID)
	assert.Equal(t, "hello", msg.Message.Content)
	assert.True(t, created.Equal(msg.Message.CreatedAt))
}

func TestDecodeEventUnknownType(t *testing.T) {
	_, err := DecodeEvent([]byte(`{"type":"weird"}`))
	assert.ErrorIs(t, err, ErrUnknownEvent)
}

func TestChannelNames(t *testing.T) {
	assert.Equal(t, "chat:12", ChatChannel(12))
	assert.Equal(t, "notify:3", NotifyChannel(3))
}

func TestRoomCounterpart(t *testing.T) {
	lo, hi := OrderedPair(9, 4)
	room := ChatRoom{User1ID: lo, User2ID: hi}
	assert.Equal(t, int64(4), room.User1ID)
	assert.Equal(t, int64(9), room.Counterpart(4))
	assert.True(t, room.HasParticipant(9))
	assert.False(t, room.HasParticipant(5))
}

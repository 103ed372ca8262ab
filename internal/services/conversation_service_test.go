package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"realtime-service/internal/mocks"
	"realtime-service/internal/models"
	"realtime-service/internal/repositories"
	"realtime-service/internal/repositories/memory"
)

func TestStartChatRequiresFriendship(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.chats.StartChat(ctx, alice.UserID, bob.UserID)
	assert.ErrorIs(t, err, ErrNotFriends)

	_, err = f.chats.StartChat(ctx, alice.UserID, alice.UserID)
	assert.ErrorIs(t, err, ErrSelfRequest)

	f.befriend(t, alice, bob)
	room, err := f.chats.StartChat(ctx, alice.UserID, bob.UserID)
	require.NoError(t, err)
	assert.True(t, room.HasParticipant(alice.UserID))
	assert.True(t, room.HasParticipant(bob.UserID))

	same, err := f.chats.StartChat(ctx, bob.UserID, alice.UserID)
	require.NoError(t, err)
	assert.Equal(t, room.ID, same.ID)
}

func TestGetOrCreateRoomConcurrentCallsShareRoom(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	ids := make(chan int64, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := alice.UserID, bob.UserID
			if i%2 == 1 {
				a, b = b, a
			}
			room, err := f.chats.GetOrCreateRoom(context.Background(), a, b)
			assert.NoError(t, err)
			ids <- room.ID
		}(i)
	}
	wg.Wait()
	close(ids)

	first := <-ids
	for id := range ids {
		assert.Equal(t, first, id)
	}

	created := 0
	for _, key := range f.routingKeys() {
		if key == EventChatRoomCreated {
			created++
		}
	}
	assert.Equal(t, 1, created)
}

func TestPostMessageFansOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.befriend(t, alice, bob)
	room, err := f.chats.StartChat(ctx, alice.UserID, bob.UserID)
	require.NoError(t, err)

	msg, err := f.chats.PostMessage(ctx, room.ID, alice, "  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Content)
	assert.False(t, msg.IsRead)

	chatEvents := f.realtime.On(models.ChatChannel(room.ID))
	require.Len(t, chatEvents, 1)
	chatEvent := chatEvents[0].(models.ChatMessageEvent)
	assert.Equal(t, "alice", chatEvent.Message.Sender)
	assert.Equal(t, "hello", chatEvent.Message.Content)

	bobEvents := f.realtime.On(models.NotifyChannel(bob.UserID))
	last, ok := bobEvents[len(bobEvents)-1].(models.SendNotificationEvent)
	require.True(t, ok)
	assert.Equal(t, "alice: hello", last.Message)
	assert.Equal(t, "/chat/alice/", last.Link)
	assert.Equal(t, 1, last.UnreadCount)

	_, err = f.chats.PostMessage(ctx, room.ID, alice, "again")
	require.NoError(t, err)
	bobEvents = f.realtime.On(models.NotifyChannel(bob.UserID))
	assert.Equal(t, 2, bobEvents[len(bobEvents)-1].(models.SendNotificationEvent).UnreadCount)

	assert.Empty(t, f.realtime.On(models.NotifyChannel(alice.UserID))[1:])
	assert.Contains(t, f.routingKeys(), EventChatMessagePosted)
}

func TestPostMessageValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room, err := f.chats.GetOrCreateRoom(ctx, alice.UserID, bob.UserID)
	require.NoError(t, err)

	_, err = f.chats.PostMessage(ctx, room.ID, alice, " \n\t ")
	assert.ErrorIs(t, err, ErrEmptyBody)

	_, err = f.chats.PostMessage(ctx, room.ID, alice, strings.Repeat("x", MaxMessageLength+1))
	assert.ErrorIs(t, err, ErrBodyTooLong)

	_, err = f.chats.PostMessage(ctx, room.ID, carol, "hi")
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, err = f.chats.PostMessage(ctx, room.ID+100, alice, "hi")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Empty(t, f.realtime.All())
}

func TestNewMessagePreviewIsTruncated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room, err := f.chats.GetOrCreateRoom(ctx, alice.UserID, bob.UserID)
	require.NoError(t, err)

	body := strings.Repeat("é", 80)
	_, err = f.chats.PostMessage(ctx, room.ID, alice, body)
	require.NoError(t, err)

	events := f.realtime.On(models.NotifyChannel(bob.UserID))
	require.Len(t, events, 1)
	ev := events[0].(models.SendNotificationEvent)
	assert.Equal(t, "alice: "+strings.Repeat("é", 50), ev.Message)
}

func TestMarkReadAndUnreadCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room, err := f.chats.GetOrCreateRoom(ctx, alice.UserID, bob.UserID)
	require.NoError(t, err)

	for _, body := range []string{"one", "two"} {
		_, err := f.chats.PostMessage(ctx, room.ID, alice, body)
		require.NoError(t, err)
	}
	_, err = f.chats.PostMessage(ctx, room.ID, bob, "three")
	require.NoError(t, err)

	count, err := f.chats.UnreadCountForUser(ctx, bob.UserID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	marked, err := f.chats.MarkRead(ctx, room.ID, bob.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), marked)

	marked, err = f.chats.MarkRead(ctx, room.ID, bob.UserID)
	require.NoError(t, err)
	assert.Zero(t, marked)

	count, err = f.chats.UnreadCountForUser(ctx, alice.UserID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	rooms, err := f.chats.ListRooms(ctx, alice.UserID)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, bob.UserID, rooms[0].FriendID)
	assert.Equal(t, 1, rooms[0].UnreadCount)
	assert.Equal(t, "three", rooms[0].LastMessage)
}

func TestRecentMessagesDefaultsAndOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room, err := f.chats.GetOrCreateRoom(ctx, alice.UserID, bob.UserID)
	require.NoError(t, err)

	for i := 0; i < DefaultRecentLimit+5; i++ {
		_, err := f.chats.PostMessage(ctx, room.ID, alice, strings.Repeat("m", i+1))
		require.NoError(t, err)
	}

	msgs, err := f.chats.RecentMessages(ctx, room.ID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, DefaultRecentLimit)
	assert.Len(t, msgs[0].Content, 6)
	assert.Len(t, msgs[len(msgs)-1].Content, DefaultRecentLimit+5)
}

func TestPostMessageStoreFailure(t *testing.T) {
	rooms := &mocks.ChatRepositoryMock{}
	messages := &mocks.MessageRepositoryMock{}
	room := models.ChatRoom{ID: 4, User1ID: alice.UserID, User2ID: bob.UserID}
	boom := errors.New("db down")
	rooms.On("GetRoom", mock.Anything, int64(4)).Return(room, nil)
	messages.On("Append", mock.Anything, int64(4), alice.UserID, "alice", "hi").Return(nil, boom)
	realtime := &mocks.RealtimeRecorder{}

	svc := NewConversationService(rooms, messages, nil, realtime, nil, nil, zap.NewNop())
	_, err := svc.PostMessage(context.Background(), 4, alice, "hi")
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, realtime.All())
	messages.AssertExpectations(t)
}

// viewingPublisher marks the room read for viewer as soon as a chat message
// reaches the room channel, the way an open chat session does on receipt.
type viewingPublisher struct {
	mocks.RealtimeRecorder
	messages repositories.MessageRepository
	roomID   int64
	viewer   int64
}

func (p *viewingPublisher) Publish(ctx context.Context, channel string, event models.Event) {
	p.RealtimeRecorder.Publish(ctx, channel, event)
	if ev, ok := event.(models.ChatMessageEvent); ok && ev.Message.SenderID != p.viewer {
		_, _ = p.messages.MarkRoomRead(ctx, p.roomID, p.viewer)
	}
}

func TestPostMessageCountsUnreadBeforeRoomBroadcast(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()
	store := memory.NewStore()
	messages := memory.NewMessageRepo(store)
	realtime := &viewingPublisher{messages: messages, viewer: bob.UserID}

	notifications := NewNotificationService(memory.NewNotificationRepo(store))
	notifier := NewNotifier(notifications, messages, realtime, nil, logger)
	friends := NewFriendshipService(memory.NewFriendshipRepo(store), notifier, nil, logger)
	chats := NewConversationService(memory.NewChatRepo(store), messages, friends, realtime, notifier, nil, logger)

	req, err := friends.SendRequest(ctx, alice, bob.UserID)
	require.NoError(t, err)
	_, err = friends.Accept(ctx, req.ID, bob)
	require.NoError(t, err)
	room, err := chats.StartChat(ctx, alice.UserID, bob.UserID)
	require.NoError(t, err)
	realtime.roomID = room.ID

	_, err = chats.PostMessage(ctx, room.ID, alice, "are you there?")
	require.NoError(t, err)

	var pushed []models.SendNotificationEvent
	for _, ev := range realtime.On(models.NotifyChannel(bob.UserID)) {
		if push, ok := ev.(models.SendNotificationEvent); ok {
			pushed = append(pushed, push)
		}
	}
	require.Len(t, pushed, 1)
	assert.Equal(t, 1, pushed[0].UnreadCount)

	unread, err := chats.UnreadCountForUser(ctx, bob.UserID)
	require.NoError(t, err)
	assert.Zero(t, unread)
}

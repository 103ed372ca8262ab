package ws

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"realtime-service/internal/auth"
	"realtime-service/internal/models"
	"realtime-service/internal/repositories/memory"
	"realtime-service/internal/services"
)

var (
	alice = models.Identity{UserID: 1, Username: "alice"}
	bob   = models.Identity{UserID: 2, Username: "bob"}
	carol = models.Identity{UserID: 3, Username: "carol"}
)

type wsFixture struct {
	server        *httptest.Server
	hub           *Hub
	dispatcher    *Dispatcher
	validator     *auth.JWTValidator
	friends       *services.FriendshipService
	chats         *services.ConversationService
	notifications *services.NotificationService
}

func newWSFixture(t *testing.T, cfg SessionConfig) *wsFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	store := memory.NewStore()
	hub := NewHub()
	dispatcher := NewDispatcher(hub, logger)
	messages := memory.NewMessageRepo(store)
	notifications := services.NewNotificationService(memory.NewNotificationRepo(store))
	notifier := services.NewNotifier(notifications, messages, dispatcher, nil, logger)
	friends := services.NewFriendshipService(memory.NewFriendshipRepo(store), notifier, nil, logger)
	chats := services.NewConversationService(memory.NewChatRepo(store), messages, friends, dispatcher, notifier, nil, logger)

	validator := auth.NewJWTValidator("test-secret")
	endpoint := Endpoint{Hub: hub, Validator: validator, Config: cfg, Logger: logger}

	router := gin.New()
	router.GET("/ws/chats/:chat_id", NewChatWebSocketHandler(endpoint, chats).Handle)
	router.GET("/ws/notifications", NewNotifyWebSocketHandler(endpoint, notifications).Handle)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &wsFixture{
		server:        server,
		hub:           hub,
		dispatcher:    dispatcher,
		validator:     validator,
		friends:       friends,
		chats:         chats,
		notifications: notifications,
	}
}

func (f *wsFixture) url(t *testing.T, path string, id models.Identity) string {
	t.Helper()
	token, err := f.validator.Sign(id, time.Hour)
	require.NoError(t, err)
	return "ws" + strings.TrimPrefix(f.server.URL, "http") + path + "?token=" + token
}

func (f *wsFixture) dial(t *testing.T, path string, id models.Identity) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(f.url(t, path, id), nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (f *wsFixture) dialChat(t *testing.T, roomID int64, id models.Identity) *websocket.Conn {
	t.Helper()
	conn := f.dial(t, fmt.Sprintf("/ws/chats/%d", roomID), id)
	f.waitForMembers(t, models.ChatChannel(roomID), id)
	return conn
}

// waitForMembers blocks until a session of id has joined channel.
func (f *wsFixture) waitForMembers(t *testing.T, channel string, id models.Identity) {
	t.Helper()
	require.Eventually(t, func() bool {
		for _, m := range f.hub.Members(channel) {
			if s, ok := m.(*Session); ok && s.Identity().UserID == id.UserID {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func (f *wsFixture) room(t *testing.T, a, b models.Identity) models.ChatRoom {
	t.Helper()
	ctx := context.Background()
	req, err := f.friends.SendRequest(ctx, a, b.UserID)
	require.NoError(t, err)
	_, err = f.friends.Accept(ctx, req.ID, b)
	require.NoError(t, err)
	room, err := f.chats.StartChat(ctx, a.UserID, b.UserID)
	require.NoError(t, err)
	return room
}

func readEvent(t *testing.T, conn *websocket.Conn) models.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	ev, err := models.DecodeEvent(data)
	require.NoError(t, err)
	return ev
}

func TestChatAndNotificationFlow(t *testing.T) {
	f := newWSFixture(t, DefaultSessionConfig())
	room := f.room(t, alice, bob)
	ctx := context.Background()

	bobNotify := f.dial(t, "/ws/notifications", bob)
	initial, ok := readEvent(t, bobNotify).(models.UnreadCountEvent)
	require.True(t, ok)
	expected, err := f.notifications.UnreadCount(ctx, bob.UserID)
	require.NoError(t, err)
	assert.Equal(t, expected, initial.Count)

	aliceChat := f.dialChat(t, room.ID, alice)
	require.NoError(t, aliceChat.WriteJSON(map[string]string{"message": "hi bob"}))

	echo, ok := readEvent(t, aliceChat).(models.ChatMessageEvent)
	require.True(t, ok)
	assert.Equal(t, "hi bob", echo.Message.Content)
	assert.Equal(t, "alice", echo.Message.Sender)

	push, ok := readEvent(t, bobNotify).(models.SendNotificationEvent)
	require.True(t, ok)
	assert.Equal(t, "alice: hi bob", push.Message)
	assert.Equal(t, "alice", push.Sender)
	assert.Equal(t, 1, push.UnreadCount)

	bobChat := f.dialChat(t, room.ID, bob)
	require.Eventually(t, func() bool {
		n, err := f.chats.UnreadCountForUser(ctx, bob.UserID)
		return err == nil && n == 0
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, aliceChat.WriteJSON(map[string]string{"message": "still there?"}))
	got, ok := readEvent(t, bobChat).(models.ChatMessageEvent)
	require.True(t, ok)
	assert.Equal(t, "still there?", got.Message.Content)
	assert.Equal(t, alice.UserID, got.Message.SenderID)

	second, ok := readEvent(t, bobNotify).(models.SendNotificationEvent)
	require.True(t, ok)
	assert.Equal(t, 1, second.UnreadCount)

	require.Eventually(t, func() bool {
		n, err := f.chats.UnreadCountForUser(ctx, bob.UserID)
		return err == nil && n == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestChatHandshakeRejections(t *testing.T) {
	f := newWSFixture(t, DefaultSessionConfig())
	room := f.room(t, alice, bob)

	cases := []struct {
		name   string
		url    string
		status int
	}{
		{"missing token", "ws" + strings.TrimPrefix(f.server.URL, "http") + fmt.Sprintf("/ws/chats/%d", room.ID), http.StatusUnauthorized},
		{"bad token", "ws" + strings.TrimPrefix(f.server.URL, "http") + fmt.Sprintf("/ws/chats/%d?token=nope", room.ID), http.StatusUnauthorized},
		{"not a participant", f.url(t, fmt.Sprintf("/ws/chats/%d", room.ID), carol), http.StatusForbidden},
		{"unknown room", f.url(t, fmt.Sprintf("/ws/chats/%d", room.ID+50), alice), http.StatusForbidden},
		{"malformed room id", f.url(t, "/ws/chats/abc", alice), http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(tc.url, nil)
			require.ErrorIs(t, err, websocket.ErrBadHandshake)
			require.NotNil(t, resp)
			defer resp.Body.Close()
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
	assert.Zero(t, f.hub.ChannelCount())
}

func TestNotificationHandshakeRequiresToken(t *testing.T) {
	f := newWSFixture(t, DefaultSessionConfig())

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(f.server.URL, "http")+"/ws/notifications", nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDisconnectLeavesChannels(t *testing.T) {
	f := newWSFixture(t, DefaultSessionConfig())
	room := f.room(t, alice, bob)

	chat := f.dialChat(t, room.ID, alice)
	notify := f.dial(t, "/ws/notifications", alice)
	readEvent(t, notify)
	assert.Equal(t, 2, f.hub.ChannelCount())

	require.NoError(t, chat.Close())
	require.NoError(t, notify.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))

	require.Eventually(t, func() bool { return f.hub.ChannelCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestChatFrameErrors(t *testing.T) {
	f := newWSFixture(t, DefaultSessionConfig())
	room := f.room(t, alice, bob)
	chat := f.dialChat(t, room.ID, alice)

	require.NoError(t, chat.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, chat.WriteMessage(websocket.TextMessage, []byte(`{"text":"wrong field"}`)))
	require.NoError(t, chat.WriteJSON(map[string]string{"message": "   "}))

	errEvent, ok := readEvent(t, chat).(models.ErrorEvent)
	require.True(t, ok)
	assert.Equal(t, services.ErrEmptyBody.Error(), errEvent.Error)

	require.NoError(t, chat.WriteJSON(map[string]string{"message": strings.Repeat("x", services.MaxMessageLength+1)}))
	errEvent, ok = readEvent(t, chat).(models.ErrorEvent)
	require.True(t, ok)
	assert.Equal(t, services.ErrBodyTooLong.Error(), errEvent.Error)

	require.NoError(t, chat.WriteJSON(map[string]string{"message": "ok"}))
	msg, ok := readEvent(t, chat).(models.ChatMessageEvent)
	require.True(t, ok)
	assert.Equal(t, "ok", msg.Message.Content)
}

func TestNotificationActions(t *testing.T) {
	f := newWSFixture(t, DefaultSessionConfig())
	ctx := context.Background()
	_, err := f.friends.SendRequest(ctx, alice, bob.UserID)
	require.NoError(t, err)

	conn := f.dial(t, "/ws/notifications", bob)
	start := readEvent(t, conn).(models.UnreadCountEvent)
	assert.Equal(t, 1, start.Count)

	recent, err := f.notifications.Recent(ctx, bob.UserID, 10, true)
	require.NoError(t, err)
	require.Len(t, recent, 1)

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "mark_read"}))
	assert.Equal(t, models.ErrorEvent{Error: "notification_id is required"}, readEvent(t, conn))

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "mark_read", "notification_id": recent[0].ID + 100}))
	assert.Equal(t, models.ErrorEvent{Error: "notification not found"}, readEvent(t, conn))

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "dance"}))
	require.NoError(t, conn.WriteJSON(map[string]any{"action": "mark_read", "notification_id": recent[0].ID}))
	assert.Equal(t, models.UnreadCountEvent{Count: 0}, readEvent(t, conn))

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "mark_all_read"}))
	assert.Equal(t, models.UnreadCountEvent{Count: 0}, readEvent(t, conn))
}

func TestInboundRateLimit(t *testing.T) {
	cfg := DefaultSessionConfig()
	cfg.RatePerSecond = 0.001
	cfg.RateBurst = 1
	f := newWSFixture(t, cfg)
	room := f.room(t, alice, bob)
	chat := f.dialChat(t, room.ID, alice)

	require.NoError(t, chat.WriteJSON(map[string]string{"message": "first"}))
	require.NoError(t, chat.WriteJSON(map[string]string{"message": "second"}))

	first, ok := readEvent(t, chat).(models.ChatMessageEvent)
	require.True(t, ok)
	assert.Equal(t, "first", first.Message.Content)

	assert.Never(t, func() bool {
		msgs, err := f.chats.RecentMessages(context.Background(), room.ID, 10)
		return err != nil || len(msgs) > 1
	}, 200*time.Millisecond, 20*time.Millisecond)
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	f := newWSFixture(t, DefaultSessionConfig())
	room := f.room(t, alice, bob)
	f.dialChat(t, room.ID, alice)

	members := f.hub.Members(models.ChatChannel(room.ID))
	require.Len(t, members, 1)
	s := members[0].(*Session)

	s.Close("test")
	s.Close("test again")
	assert.Equal(t, StateClosed, s.State())
	assert.False(t, s.Deliver(Delivery{Payload: []byte(`{}`)}))
	assert.Empty(t, s.Channels())
	assert.Zero(t, f.hub.ChannelCount())

	s.Join(models.ChatChannel(room.ID))
	assert.Zero(t, f.hub.ChannelCount())
}

func TestPublishWhileSessionDisconnects(t *testing.T) {
	cfg := DefaultSessionConfig()
	cfg.SendBuffer = 256
	f := newWSFixture(t, cfg)
	room := f.room(t, alice, bob)
	channel := models.ChatChannel(room.ID)

	aliceChat := f.dialChat(t, room.ID, alice)
	f.dialChat(t, room.ID, bob)

	var bobSession *Session
	for _, m := range f.hub.Members(channel) {
		if s, ok := m.(*Session); ok && s.Identity().UserID == bob.UserID {
			bobSession = s
		}
	}
	require.NotNil(t, bobSession)

	const total = 100
	published := make(chan struct{})
	go func() {
		defer close(published)
		for i := 0; i < total; i++ {
			f.dispatcher.Publish(context.Background(), channel, models.ChatMessageEvent{
				Message: models.ChatMessagePayload{ID: int64(i + 1), Content: fmt.Sprintf("m%d", i), Sender: "carol", SenderID: carol.UserID},
			})
		}
	}()
	bobSession.Close("client gone")
	<-published

	for i := 0; i < total; i++ {
		ev, ok := readEvent(t, aliceChat).(models.ChatMessageEvent)
		require.True(t, ok)
		assert.Equal(t, int64(i+1), ev.Message.ID)
	}

	assert.Equal(t, StateClosed, bobSession.State())
	for _, m := range f.hub.Members(channel) {
		assert.NotEqual(t, bobSession.ID(), m.ID())
	}
	assert.Len(t, f.hub.Members(channel), 1)
}

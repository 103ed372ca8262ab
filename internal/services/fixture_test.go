package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"realtime-service/internal/mocks"
	"realtime-service/internal/models"
	"realtime-service/internal/repositories/memory"
)

var (
	alice = models.Identity{UserID: 1, Username: "alice"}
	bob   = models.Identity{UserID: 2, Username: "bob"}
	carol = models.Identity{UserID: 3, Username: "carol"}
)

type fixture struct {
	realtime      *mocks.RealtimeRecorder
	events        *mocks.PublisherMock
	friends       *FriendshipService
	chats         *ConversationService
	notifications *NotificationService
	notifier      *Notifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	realtime := &mocks.RealtimeRecorder{}
	events := &mocks.PublisherMock{}
	events.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	logger := zap.NewNop()

	messages := memory.NewMessageRepo(store)
	notifications := NewNotificationService(memory.NewNotificationRepo(store))
	notifier := NewNotifier(notifications, messages, realtime, events, logger)
	friends := NewFriendshipService(memory.NewFriendshipRepo(store), notifier, events, logger)
	chats := NewConversationService(memory.NewChatRepo(store), messages, friends, realtime, notifier, events, logger)

	return &fixture{
		realtime:      realtime,
		events:        events,
		friends:       friends,
		chats:         chats,
		notifications: notifications,
		notifier:      notifier,
	}
}

func (f *fixture) befriend(t *testing.T, a, b models.Identity) {
	t.Helper()
	req, err := f.friends.SendRequest(context.Background(), a, b.UserID)
	if err != nil {
		t.Fatalf("send request: %v", err)
	}
	if _, err := f.friends.Accept(context.Background(), req.ID, b); err != nil {
		t.Fatalf("accept request: %v", err)
	}
}

func (f *fixture) routingKeys() []string {
	var keys []string
	for _, call := range f.events.Calls {
		if call.Method == "Publish" {
			keys = append(keys, call.Arguments.String(1))
		}
	}
	return keys
}

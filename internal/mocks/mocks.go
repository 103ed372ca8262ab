package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"realtime-service/internal/models"
	"realtime-service/internal/repositories"
)

type ChatRepositoryMock struct {
	mock.Mock
}

func (m *ChatRepositoryMock) GetOrCreateRoom(ctx context.Context, userA, userB int64) (models.ChatRoom, bool, error) {
	args := m.Called(ctx, userA, userB)
	var room models.ChatRoom
	if val := args.Get(0); val != nil {
		room = val.(models.ChatRoom)
	}
	return room, args.Bool(1), args.Error(2)
}

func (m *ChatRepositoryMock) GetRoom(ctx context.Context, roomID int64) (models.ChatRoom, error) {
	args := m.Called(ctx, roomID)
	var room models.ChatRoom
	if val := args.Get(0); val != nil {
		room = val.(models.ChatRoom)
	}
	return room, args.Error(1)
}

func (m *ChatRepositoryMock) ListRooms(ctx context.Context, userID int64) ([]models.RoomSummary, error) {
	args := m.Called(ctx, userID)
	var list []models.RoomSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.RoomSummary)
	}
	return list, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Append(ctx context.Context, roomID, senderID int64, senderName, content string) (models.Message, error) {
	args := m.Called(ctx, roomID, senderID, senderName, content)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) Recent(ctx context.Context, roomID int64, limit int) ([]models.Message, error) {
	args := m.Called(ctx, roomID, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) MarkRoomRead(ctx context.Context, roomID, readerID int64) (int64, error) {
	args := m.Called(ctx, roomID, readerID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MessageRepositoryMock) UnreadCountForUser(ctx context.Context, userID int64) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

type FriendshipRepositoryMock struct {
	mock.Mock
}

func (m *FriendshipRepositoryMock) friendship(args mock.Arguments) (models.Friendship, error) {
	var f models.Friendship
	if val := args.Get(0); val != nil {
		f = val.(models.Friendship)
	}
	return f, args.Error(1)
}

func (m *FriendshipRepositoryMock) friendships(args mock.Arguments) ([]models.Friendship, error) {
	var list []models.Friendship
	if val := args.Get(0); val != nil {
		list = val.([]models.Friendship)
	}
	return list, args.Error(1)
}

func (m *FriendshipRepositoryMock) CreateRequest(ctx context.Context, requesterID, recipientID int64) (models.Friendship, error) {
	return m.friendship(m.Called(ctx, requesterID, recipientID))
}

func (m *FriendshipRepositoryMock) GetByID(ctx context.Context, id int64) (models.Friendship, error) {
	return m.friendship(m.Called(ctx, id))
}

func (m *FriendshipRepositoryMock) GetBetween(ctx context.Context, userA, userB int64) (models.Friendship, error) {
	return m.friendship(m.Called(ctx, userA, userB))
}

func (m *FriendshipRepositoryMock) UpdateStatus(ctx context.Context, id int64, from, to models.FriendshipStatus) (models.Friendship, error) {
	return m.friendship(m.Called(ctx, id, from, to))
}

func (m *FriendshipRepositoryMock) DeleteBetween(ctx context.Context, userA, userB int64) (bool, error) {
	args := m.Called(ctx, userA, userB)
	return args.Bool(0), args.Error(1)
}

func (m *FriendshipRepositoryMock) Block(ctx context.Context, blockerID, targetID int64) (models.Friendship, error) {
	return m.friendship(m.Called(ctx, blockerID, targetID))
}

func (m *FriendshipRepositoryMock) ListFriendIDs(ctx context.Context, userID int64) ([]int64, error) {
	args := m.Called(ctx, userID)
	var ids []int64
	if val := args.Get(0); val != nil {
		ids = val.([]int64)
	}
	return ids, args.Error(1)
}

func (m *FriendshipRepositoryMock) ListPendingReceived(ctx context.Context, userID int64) ([]models.Friendship, error) {
	return m.friendships(m.Called(ctx, userID))
}

func (m *FriendshipRepositoryMock) ListPendingSent(ctx context.Context, userID int64) ([]models.Friendship, error) {
	return m.friendships(m.Called(ctx, userID))
}

type NotificationRepositoryMock struct {
	mock.Mock
}

func (m *NotificationRepositoryMock) Create(ctx context.Context, n models.Notification) (models.Notification, error) {
	args := m.Called(ctx, n)
	var out models.Notification
	if val := args.Get(0); val != nil {
		out = val.(models.Notification)
	}
	return out, args.Error(1)
}

func (m *NotificationRepositoryMock) MarkRead(ctx context.Context, id, recipientID int64) error {
	return m.Called(ctx, id, recipientID).Error(0)
}

func (m *NotificationRepositoryMock) MarkAllRead(ctx context.Context, recipientID int64) (int64, error) {
	args := m.Called(ctx, recipientID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *NotificationRepositoryMock) UnreadCount(ctx context.Context, recipientID int64) (int, error) {
	args := m.Called(ctx, recipientID)
	return args.Int(0), args.Error(1)
}

func (m *NotificationRepositoryMock) Recent(ctx context.Context, recipientID int64, limit int, unreadOnly bool) ([]models.Notification, error) {
	args := m.Called(ctx, recipientID, limit, unreadOnly)
	var list []models.Notification
	if val := args.Get(0); val != nil {
		list = val.([]models.Notification)
	}
	return list, args.Error(1)
}

func (m *NotificationRepositoryMock) DeleteMatching(ctx context.Context, recipientID, senderID int64, typ models.NotificationType, link string) (int64, error) {
	args := m.Called(ctx, recipientID, senderID, typ, link)
	return args.Get(0).(int64), args.Error(1)
}

var (
	_ repositories.ChatRepository         = (*ChatRepositoryMock)(nil)
	_ repositories.MessageRepository      = (*MessageRepositoryMock)(nil)
	_ repositories.FriendshipRepository   = (*FriendshipRepositoryMock)(nil)
	_ repositories.NotificationRepository = (*NotificationRepositoryMock)(nil)
)

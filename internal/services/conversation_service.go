package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"realtime-service/internal/models"
	"realtime-service/internal/repositories"
)

const (
	MaxMessageLength     = 5000
	DefaultRecentLimit   = 50
	maxRecentMessageRead = 500
)

// ConversationService owns chat rooms and their message history.
type ConversationService struct {
	rooms       repositories.ChatRepository
	messages    repositories.MessageRepository
	friendships *FriendshipService
	realtime    RealtimePublisher
	notifier    *Notifier
	events      eventLog
	logger      *zap.Logger
}

func NewConversationService(
	rooms repositories.ChatRepository,
	messages repositories.MessageRepository,
	friendships *FriendshipService,
	realtime RealtimePublisher,
	notifier *Notifier,
	events EventPublisher,
	logger *zap.Logger,
) *ConversationService {
	if realtime == nil {
		realtime = noopRealtime{}
	}
	return &ConversationService{
		rooms:       rooms,
		messages:    messages,
		friendships: friendships,
		realtime:    realtime,
		notifier:    notifier,
		events:      eventLog{publisher: events, logger: logger},
		logger:      logger,
	}
}

// GetOrCreateRoom returns the single room of the pair, creating it on first use.
func (s *ConversationService) GetOrCreateRoom(ctx context.Context, userA, userB int64) (models.ChatRoom, error) {
	if userA == userB {
		return models.ChatRoom{}, ErrSelfRequest
	}
	room, created, err := s.rooms.GetOrCreateRoom(ctx, userA, userB)
	if err != nil {
		return models.ChatRoom{}, fmt.Errorf("get or create room: %w", err)
	}
	if created {
		s.events.emit(ctx, EventChatRoomCreated, room)
	}
	return room, nil
}

// StartChat opens the room between the caller and a friend.
func (s *ConversationService) StartChat(ctx context.Context, userID, friendID int64) (models.ChatRoom, error) {
	if userID == friendID {
		return models.ChatRoom{}, ErrSelfRequest
	}
	ok, err := s.friendships.AreFriends(ctx, userID, friendID)
	if err != nil {
		return models.ChatRoom{}, fmt.Errorf("check friendship: %w", err)
	}
	if !ok {
		return models.ChatRoom{}, ErrNotFriends
	}
	return s.GetOrCreateRoom(ctx, userID, friendID)
}

// ShareWithFriend posts body into the room shared with a friend, opening the
// room on first use. It is how content links are sent to friends.
func (s *ConversationService) ShareWithFriend(ctx context.Context, sender models.Identity, friendID int64, body string) (models.ChatRoom, models.Message, error) {
	room, err := s.StartChat(ctx, sender.UserID, friendID)
	if err != nil {
		return models.ChatRoom{}, models.Message{}, err
	}
	msg, err := s.PostMessage(ctx, room.ID, sender, body)
	if err != nil {
		return models.ChatRoom{}, models.Message{}, err
	}
	return room, msg, nil
}

func (s *ConversationService) Room(ctx context.Context, roomID int64) (models.ChatRoom, error) {
	room, err := s.rooms.GetRoom(ctx, roomID)
	if errors.Is(err, repositories.ErrNotFound) {
		return models.ChatRoom{}, ErrNotFound
	}
	return room, err
}

// ParticipantRoom loads the room and checks that userID belongs to it.
func (s *ConversationService) ParticipantRoom(ctx context.Context, roomID, userID int64) (models.ChatRoom, error) {
	room, err := s.Room(ctx, roomID)
	if err != nil {
		return models.ChatRoom{}, err
	}
	if !room.HasParticipant(userID) {
		return models.ChatRoom{}, ErrNotParticipant
	}
	return room, nil
}

// PostMessage stores a message, notifies the other participant and pushes
// the message to the room channel.
func (s *ConversationService) PostMessage(ctx context.Context, roomID int64, sender models.Identity, body string) (models.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return models.Message{}, ErrEmptyBody
	}
	if utf8.RuneCountInString(body) > MaxMessageLength {
		return models.Message{}, ErrBodyTooLong
	}

	room, err := s.ParticipantRoom(ctx, roomID, sender.UserID)
	if err != nil {
		return models.Message{}, err
	}

	msg, err := s.messages.Append(ctx, room.ID, sender.UserID, sender.Username, body)
	if errors.Is(err, repositories.ErrNotFound) {
		return models.Message{}, ErrNotFound
	}
	if err != nil {
		return models.Message{}, fmt.Errorf("append message: %w", err)
	}

	// The unread count must be taken before the room broadcast: sessions
	// viewing the room mark it read on receipt.
	s.notifier.MessagePosted(ctx, room, msg)
	s.realtime.Publish(ctx, models.ChatChannel(room.ID), models.ChatMessageEvent{Message: msg.Payload()})
	s.events.emit(ctx, EventChatMessagePosted, msg)
	return msg, nil
}

// MarkRead marks every message the reader received in the room as read.
func (s *ConversationService) MarkRead(ctx context.Context, roomID, readerID int64) (int64, error) {
	return s.messages.MarkRoomRead(ctx, roomID, readerID)
}

// RecentMessages returns the latest messages in chronological order.
func (s *ConversationService) RecentMessages(ctx context.Context, roomID int64, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if limit > maxRecentMessageRead {
		limit = maxRecentMessageRead
	}
	return s.messages.Recent(ctx, roomID, limit)
}

func (s *ConversationService) UnreadCountForUser(ctx context.Context, userID int64) (int, error) {
	return s.messages.UnreadCountForUser(ctx, userID)
}

func (s *ConversationService) ListRooms(ctx context.Context, userID int64) ([]models.RoomSummary, error) {
	return s.rooms.ListRooms(ctx, userID)
}

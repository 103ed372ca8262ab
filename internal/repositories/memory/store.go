// Package memory provides in-process implementations of the repository
// interfaces. They are used by tests and by single-node development runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"realtime-service/internal/models"
	"realtime-service/internal/repositories"
)

// Store holds every table behind one mutex, so each repository call is
// atomic with respect to all others.
type Store struct {
	mu  sync.Mutex
	now func() time.Time

	seq int64

	friendships   map[int64]models.Friendship
	rooms         map[int64]models.ChatRoom
	roomsByPair   map[[2]int64]int64
	messages      map[int64][]models.Message
	notifications map[int64]models.Notification
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		now:           time.Now,
		friendships:   make(map[int64]models.Friendship),
		rooms:         make(map[int64]models.ChatRoom),
		roomsByPair:   make(map[[2]int64]int64),
		messages:      make(map[int64][]models.Message),
		notifications: make(map[int64]models.Notification),
	}
}

// SetClock overrides the time source.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

func (s *Store) nextID() int64 {
	s.seq++
	return s.seq
}

func pairKey(a, b int64) [2]int64 {
	lo, hi := models.OrderedPair(a, b)
	return [2]int64{lo, hi}
}

// FriendshipRepo implements repositories.FriendshipRepository.
type FriendshipRepo struct{ s *Store }

// ChatRepo implements repositories.ChatRepository.
type ChatRepo struct{ s *Store }

// MessageRepo implements repositories.MessageRepository.
type MessageRepo struct{ s *Store }

// NotificationRepo implements repositories.NotificationRepository.
type NotificationRepo struct{ s *Store }

func NewFriendshipRepo(s *Store) *FriendshipRepo     { return &FriendshipRepo{s: s} }
func NewChatRepo(s *Store) *ChatRepo                 { return &ChatRepo{s: s} }
func NewMessageRepo(s *Store) *MessageRepo           { return &MessageRepo{s: s} }
func NewNotificationRepo(s *Store) *NotificationRepo { return &NotificationRepo{s: s} }

var (
	_ repositories.FriendshipRepository   = (*FriendshipRepo)(nil)
	_ repositories.ChatRepository         = (*ChatRepo)(nil)
	_ repositories.MessageRepository      = (*MessageRepo)(nil)
	_ repositories.NotificationRepository = (*NotificationRepo)(nil)
)

// friendships

func (s *Store) findPair(a, b int64) (models.Friendship, bool) {
	key := pairKey(a, b)
	for _, f := range s.friendships {
		if pairKey(f.RequesterID, f.RecipientID) == key {
			return f, true
		}
	}
	return models.Friendship{}, false
}

func (r *FriendshipRepo) CreateRequest(_ context.Context, requesterID, recipientID int64) (models.Friendship, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.findPair(requesterID, recipientID); ok {
		if existing.Status != models.FriendshipRejected {
			return models.Friendship{}, repositories.ErrConflict
		}
		delete(s.friendships, existing.ID)
	}
	now := s.now()
	f := models.Friendship{
		ID:          s.nextID(),
		RequesterID: requesterID,
		RecipientID: recipientID,
		Status:      models.FriendshipPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.friendships[f.ID] = f
	return f, nil
}

func (r *FriendshipRepo) GetByID(_ context.Context, id int64) (models.Friendship, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f, ok := r.s.friendships[id]
	if !ok {
		return models.Friendship{}, repositories.ErrNotFound
	}
	return f, nil
}

func (r *FriendshipRepo) GetBetween(_ context.Context, userA, userB int64) (models.Friendship, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f, ok := r.s.findPair(userA, userB)
	if !ok {
		return models.Friendship{}, repositories.ErrNotFound
	}
	return f, nil
}

func (r *FriendshipRepo) UpdateStatus(_ context.Context, id int64, from, to models.FriendshipStatus) (models.Friendship, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.friendships[id]
	if !ok {
		return models.Friendship{}, repositories.ErrNotFound
	}
	if f.Status != from {
		return models.Friendship{}, repositories.ErrConflict
	}
	f.Status = to
	f.UpdatedAt = s.now()
	s.friendships[id] = f
	return f, nil
}

func (r *FriendshipRepo) DeleteBetween(_ context.Context, userA, userB int64) (bool, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.findPair(userA, userB)
	if !ok {
		return false, nil
	}
	delete(s.friendships, f.ID)
	return true, nil
}

func (r *FriendshipRepo) Block(_ context.Context, blockerID, targetID int64) (models.Friendship, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.findPair(blockerID, targetID); ok {
		delete(s.friendships, existing.ID)
	}
	now := s.now()
	f := models.Friendship{
		ID:          s.nextID(),
		RequesterID: blockerID,
		RecipientID: targetID,
		Status:      models.FriendshipBlocked,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.friendships[f.ID] = f
	return f, nil
}

func (r *FriendshipRepo) ListFriendIDs(_ context.Context, userID int64) ([]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	seen := map[int64]struct{}{}
	ids := []int64{}
	for _, f := range r.s.friendships {
		if f.Status != models.FriendshipAccepted || !f.Involves(userID) {
			continue
		}
		other := f.Counterpart(userID)
		if _, dup := seen[other]; dup || other == userID {
			continue
		}
		seen[other] = struct{}{}
		ids = append(ids, other)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *FriendshipRepo) ListPendingReceived(_ context.Context, userID int64) ([]models.Friendship, error) {
	return r.listPending(func(f models.Friendship) bool { return f.RecipientID == userID }), nil
}

func (r *FriendshipRepo) ListPendingSent(_ context.Context, userID int64) ([]models.Friendship, error) {
	return r.listPending(func(f models.Friendship) bool { return f.RequesterID == userID }), nil
}

func (r *FriendshipRepo) listPending(match func(models.Friendship) bool) []models.Friendship {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.Friendship{}
	for _, f := range r.s.friendships {
		if f.Status == models.FriendshipPending && match(f) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// rooms

func (r *ChatRepo) GetOrCreateRoom(_ context.Context, userA, userB int64) (models.ChatRoom, bool, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey(userA, userB)
	if id, ok := s.roomsByPair[key]; ok {
		return s.rooms[id], false, nil
	}
	now := s.now()
	room := models.ChatRoom{
		ID:             s.nextID(),
		User1ID:        key[0],
		User2ID:        key[1],
		CreatedAt:      now,
		LastActivityAt: now,
	}
	s.rooms[room.ID] = room
	s.roomsByPair[key] = room.ID
	return room, true, nil
}

func (r *ChatRepo) GetRoom(_ context.Context, roomID int64) (models.ChatRoom, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	room, ok := r.s.rooms[roomID]
	if !ok {
		return models.ChatRoom{}, repositories.ErrNotFound
	}
	return room, nil
}

func (r *ChatRepo) ListRooms(_ context.Context, userID int64) ([]models.RoomSummary, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.RoomSummary{}
	for _, room := range s.rooms {
		if !room.HasParticipant(userID) {
			continue
		}
		summary := models.RoomSummary{
			RoomID:         room.ID,
			FriendID:       room.Counterpart(userID),
			LastActivityAt: room.LastActivityAt,
		}
		msgs := s.messages[room.ID]
		if len(msgs) > 0 {
			summary.LastMessage = msgs[len(msgs)-1].Content
		}
		for _, m := range msgs {
			if !m.IsRead && m.SenderID != userID {
				summary.UnreadCount++
			}
		}
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastActivityAt.Equal(out[j].LastActivityAt) {
			return out[i].RoomID > out[j].RoomID
		}
		return out[i].LastActivityAt.After(out[j].LastActivityAt)
	})
	return out, nil
}

// messages

func (r *MessageRepo) Append(_ context.Context, roomID, senderID int64, senderName, content string) (models.Message, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return models.Message{}, repositories.ErrNotFound
	}
	msg := models.Message{
		ID:         s.nextID(),
		RoomID:     roomID,
		SenderID:   senderID,
		SenderName: senderName,
		Content:    content,
		CreatedAt:  s.now(),
	}
	s.messages[roomID] = append(s.messages[roomID], msg)
	room.LastActivityAt = msg.CreatedAt
	s.rooms[roomID] = room
	return msg, nil
}

func (r *MessageRepo) Recent(_ context.Context, roomID int64, limit int) ([]models.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	msgs := r.s.messages[roomID]
	if limit >= 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (r *MessageRepo) MarkRoomRead(_ context.Context, roomID, readerID int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	msgs := r.s.messages[roomID]
	for i := range msgs {
		if msgs[i].SenderID != readerID && !msgs[i].IsRead {
			msgs[i].IsRead = true
			n++
		}
	}
	return n, nil
}

func (r *MessageRepo) UnreadCountForUser(_ context.Context, userID int64) (int, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for roomID, msgs := range s.messages {
		if !s.rooms[roomID].HasParticipant(userID) {
			continue
		}
		for _, m := range msgs {
			if !m.IsRead && m.SenderID != userID {
				count++
			}
		}
	}
	return count, nil
}

// notifications

func (r *NotificationRepo) Create(_ context.Context, n models.Notification) (models.Notification, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ID = s.nextID()
	n.IsRead = false
	n.CreatedAt = s.now()
	if n.SenderID != nil {
		sender := *n.SenderID
		n.SenderID = &sender
	}
	s.notifications[n.ID] = n
	return n, nil
}

func (r *NotificationRepo) MarkRead(_ context.Context, id, recipientID int64) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok || n.RecipientID != recipientID {
		return repositories.ErrNotFound
	}
	n.IsRead = true
	s.notifications[id] = n
	return nil
}

func (r *NotificationRepo) MarkAllRead(_ context.Context, recipientID int64) (int64, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for id, n := range s.notifications {
		if n.RecipientID == recipientID && !n.IsRead {
			n.IsRead = true
			s.notifications[id] = n
			count++
		}
	}
	return count, nil
}

func (r *NotificationRepo) UnreadCount(_ context.Context, recipientID int64) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	count := 0
	for _, n := range r.s.notifications {
		if n.RecipientID == recipientID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (r *NotificationRepo) Recent(_ context.Context, recipientID int64, limit int, unreadOnly bool) ([]models.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.Notification{}
	for _, n := range r.s.notifications {
		if n.RecipientID != recipientID || (unreadOnly && n.IsRead) {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *NotificationRepo) DeleteMatching(_ context.Context, recipientID, senderID int64, typ models.NotificationType, link string) (int64, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for id, n := range s.notifications {
		if n.RecipientID == recipientID && n.SenderID != nil && *n.SenderID == senderID && n.Type == typ && n.Link == link {
			delete(s.notifications, id)
			count++
		}
	}
	return count, nil
}

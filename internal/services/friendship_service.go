package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"realtime-service/internal/models"
	"realtime-service/internal/repositories"
)

// FriendshipService implements the friendship state machine:
// pending -> accepted | rejected, accepted -> removed, any -> blocked.
type FriendshipService struct {
	repo     repositories.FriendshipRepository
	notifier *Notifier
	events   eventLog
	logger   *zap.Logger
}

func NewFriendshipService(repo repositories.FriendshipRepository, notifier *Notifier, events EventPublisher, logger *zap.Logger) *FriendshipService {
	return &FriendshipService{
		repo:     repo,
		notifier: notifier,
		events:   eventLog{publisher: events, logger: logger},
		logger:   logger,
	}
}

func (s *FriendshipService) SendRequest(ctx context.Context, from models.Identity, to int64) (models.Friendship, error) {
	if from.UserID == to {
		return models.Friendship{}, ErrSelfRequest
	}
	f, err := s.repo.CreateRequest(ctx, from.UserID, to)
	if errors.Is(err, repositories.ErrConflict) {
		return models.Friendship{}, ErrDuplicateRequest
	}
	if err != nil {
		return models.Friendship{}, fmt.Errorf("create friend request: %w", err)
	}

	s.events.emit(ctx, EventFriendshipRequested, f)
	s.notifier.FriendRequested(ctx, f, from)
	return f, nil
}

func (s *FriendshipService) Accept(ctx context.Context, requestID int64, actor models.Identity) (models.Friendship, error) {
	f, err := s.decide(ctx, requestID, actor.UserID, models.FriendshipAccepted)
	if err != nil {
		return models.Friendship{}, err
	}
	s.events.emit(ctx, EventFriendshipAccepted, f)
	s.notifier.FriendAccepted(ctx, f, actor)
	return f, nil
}

func (s *FriendshipService) Reject(ctx context.Context, requestID int64, actor models.Identity) (models.Friendship, error) {
	f, err := s.decide(ctx, requestID, actor.UserID, models.FriendshipRejected)
	if err != nil {
		return models.Friendship{}, err
	}
	s.events.emit(ctx, EventFriendshipRejected, f)
	return f, nil
}

func (s *FriendshipService) decide(ctx context.Context, requestID, actorID int64, to models.FriendshipStatus) (models.Friendship, error) {
	current, err := s.repo.GetByID(ctx, requestID)
	if errors.Is(err, repositories.ErrNotFound) {
		return models.Friendship{}, ErrNotFound
	}
	if err != nil {
		return models.Friendship{}, fmt.Errorf("load friend request: %w", err)
	}
	if current.RecipientID != actorID {
		return models.Friendship{}, ErrNotAuthorized
	}
	if current.Status != models.FriendshipPending {
		return models.Friendship{}, ErrRequestNotPending
	}

	f, err := s.repo.UpdateStatus(ctx, requestID, models.FriendshipPending, to)
	switch {
	case errors.Is(err, repositories.ErrConflict):
		return models.Friendship{}, ErrRequestNotPending
	case errors.Is(err, repositories.ErrNotFound):
		return models.Friendship{}, ErrNotFound
	case err != nil:
		return models.Friendship{}, fmt.Errorf("update friend request: %w", err)
	}
	return f, nil
}

// Remove deletes whatever relationship exists between the pair. It is a
// no-op when there is none.
func (s *FriendshipService) Remove(ctx context.Context, userA, userB int64) error {
	removed, err := s.repo.DeleteBetween(ctx, userA, userB)
	if err != nil {
		return fmt.Errorf("remove friendship: %w", err)
	}
	if removed {
		s.events.emit(ctx, EventFriendshipRemoved, map[string]int64{"user_id": userA, "other_user_id": userB})
	}
	return nil
}

func (s *FriendshipService) Block(ctx context.Context, blocker, target int64) (models.Friendship, error) {
	if blocker == target {
		return models.Friendship{}, ErrSelfRequest
	}
	f, err := s.repo.Block(ctx, blocker, target)
	if errors.Is(err, repositories.ErrConflict) {
		return models.Friendship{}, ErrDuplicateRequest
	}
	if err != nil {
		return models.Friendship{}, fmt.Errorf("block user: %w", err)
	}
	s.events.emit(ctx, EventFriendshipBlocked, f)
	return f, nil
}

func (s *FriendshipService) AreFriends(ctx context.Context, userA, userB int64) (bool, error) {
	if userA == userB {
		return false, nil
	}
	f, err := s.repo.GetBetween(ctx, userA, userB)
	if errors.Is(err, repositories.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return f.Status == models.FriendshipAccepted, nil
}

func (s *FriendshipService) ListFriends(ctx context.Context, userID int64) ([]int64, error) {
	return s.repo.ListFriendIDs(ctx, userID)
}

func (s *FriendshipService) PendingReceived(ctx context.Context, userID int64) ([]models.Friendship, error) {
	return s.repo.ListPendingReceived(ctx, userID)
}

func (s *FriendshipService) PendingSent(ctx context.Context, userID int64) ([]models.Friendship, error) {
	return s.repo.ListPendingSent(ctx, userID)
}

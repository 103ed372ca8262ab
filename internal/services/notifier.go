package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"realtime-service/internal/models"
	"realtime-service/internal/observability"
)

const (
	MaxCommentLength = 1000
	previewLength    = 50
)

// Notifier holds the notify-on-domain-event policy. Each exported method
// handles one kind of event: it skips self-targeted events, works out the
// recipient, stores the notification and pushes it with a fresh unread count.
// Failures are logged; they never undo the mutation that triggered them.
type Notifier struct {
	notifications *NotificationService
	unread        UnreadCounter
	realtime      RealtimePublisher
	events        eventLog
	logger        *zap.Logger
}

// UnreadCounter reports a user's unread chat message total.
type UnreadCounter interface {
	UnreadCountForUser(ctx context.Context, userID int64) (int, error)
}

func NewNotifier(notifications *NotificationService, unread UnreadCounter, realtime RealtimePublisher, events EventPublisher, logger *zap.Logger) *Notifier {
	if realtime == nil {
		realtime = noopRealtime{}
	}
	return &Notifier{
		notifications: notifications,
		unread:        unread,
		realtime:      realtime,
		events:        eventLog{publisher: events, logger: logger},
		logger:        logger,
	}
}

func (n *Notifier) FriendRequested(ctx context.Context, f models.Friendship, requester models.Identity) {
	n.notify(ctx, f.RecipientID, requester, models.NotificationFollow,
		fmt.Sprintf("%s sent you a friend request", requester.Username), "/friends/requests/")
}

func (n *Notifier) FriendAccepted(ctx context.Context, f models.Friendship, accepter models.Identity) {
	n.notify(ctx, f.RequesterID, accepter, models.NotificationFollow,
		fmt.Sprintf("%s accepted your friend request", accepter.Username), "/friends/")
}

// MessagePosted stores a new_message notification for the other participant
// and pushes a new_message event carrying their unread chat message total.
func (n *Notifier) MessagePosted(ctx context.Context, room models.ChatRoom, msg models.Message) {
	recipient := room.Counterpart(msg.SenderID)
	if recipient == msg.SenderID {
		return
	}

	text := fmt.Sprintf("%s: %s", msg.SenderName, truncateRunes(msg.Content, previewLength))
	link := fmt.Sprintf("/chat/%s/", msg.SenderName)
	sender := models.Identity{UserID: msg.SenderID, Username: msg.SenderName}
	if _, ok := n.store(ctx, recipient, sender, models.NotificationNewMessage, text, link); !ok {
		return
	}

	count, err := n.unread.UnreadCountForUser(ctx, recipient)
	if err != nil {
		n.logger.Warn("unread message count failed", zap.Int64("user_id", recipient), zap.Error(err))
		return
	}
	n.realtime.Publish(ctx, models.NotifyChannel(recipient), models.SendNotificationEvent{
		Message:     text,
		Sender:      msg.SenderName,
		Link:        link,
		UnreadCount: count,
	})
}

// ValidateActivity checks an activity record before it reaches the policy.
func ValidateActivity(a models.Activity) error {
	if a.ActorID <= 0 || a.OwnerID <= 0 {
		return fmt.Errorf("%w: actor_id and owner_id are required", ErrInvalidActivity)
	}
	switch a.Kind {
	case models.ActivityLike, models.ActivityUnlike, models.ActivityLikeComment, models.ActivitySave:
	case models.ActivityComment, models.ActivityReply:
		text := strings.TrimSpace(a.Text)
		if text == "" {
			return fmt.Errorf("%w: comment cannot be empty", ErrInvalidActivity)
		}
		if utf8.RuneCountInString(text) > MaxCommentLength {
			return fmt.Errorf("%w: comment is too long (max %d characters)", ErrInvalidActivity, MaxCommentLength)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidActivity, a.Kind)
	}
	return nil
}

// Activity applies the policy to something a user did to content owned by
// another user. Self-targeted activity is a no-op.
func (n *Notifier) Activity(ctx context.Context, a models.Activity) error {
	if err := ValidateActivity(a); err != nil {
		return err
	}
	if a.ActorID == a.OwnerID {
		return nil
	}
	actor := models.Identity{UserID: a.ActorID, Username: a.ActorName}

	switch a.Kind {
	case models.ActivityLike:
		n.notify(ctx, a.OwnerID, actor, models.NotificationLike,
			fmt.Sprintf("%s liked your pin \"%s\"", a.ActorName, a.TargetTitle), a.Link)
	case models.ActivityUnlike:
		return n.withdrawLike(ctx, a)
	case models.ActivityLikeComment:
		n.notify(ctx, a.OwnerID, actor, models.NotificationLike,
			fmt.Sprintf("%s liked your comment", a.ActorName), a.Link)
	case models.ActivitySave:
		n.notify(ctx, a.OwnerID, actor, models.NotificationSave,
			fmt.Sprintf("%s saved your pin \"%s\" to \"%s\"", a.ActorName, a.TargetTitle, a.BoardTitle), a.Link)
	case models.ActivityComment:
		n.notify(ctx, a.OwnerID, actor, models.NotificationComment,
			fmt.Sprintf("%s commented on your pin: \"%s...\"", a.ActorName, truncateRunes(strings.TrimSpace(a.Text), previewLength)), a.Link)
	case models.ActivityReply:
		n.notify(ctx, a.OwnerID, actor, models.NotificationComment,
			fmt.Sprintf("%s replied to your comment: \"%s...\"", a.ActorName, truncateRunes(strings.TrimSpace(a.Text), previewLength)), a.Link)
	}
	return nil
}

func (n *Notifier) withdrawLike(ctx context.Context, a models.Activity) error {
	removed, err := n.notifications.DeleteMatching(ctx, a.OwnerID, a.ActorID, models.NotificationLike, a.Link)
	if err != nil {
		return fmt.Errorf("delete like notification: %w", err)
	}
	if removed > 0 {
		n.PushUnreadCount(ctx, a.OwnerID)
	}
	return nil
}

// PushUnreadCount sends the user's current unread notification count to all
// of their notification sessions.
func (n *Notifier) PushUnreadCount(ctx context.Context, userID int64) {
	count, err := n.notifications.UnreadCount(ctx, userID)
	if err != nil {
		n.logger.Warn("unread notification count failed", zap.Int64("user_id", userID), zap.Error(err))
		return
	}
	n.realtime.Publish(ctx, models.NotifyChannel(userID), models.UnreadCountEvent{Count: count})
}

func (n *Notifier) notify(ctx context.Context, recipient int64, actor models.Identity, typ models.NotificationType, text, link string) {
	created, ok := n.store(ctx, recipient, actor, typ, text, link)
	if !ok {
		return
	}
	count, err := n.notifications.UnreadCount(ctx, recipient)
	if err != nil {
		n.logger.Warn("unread notification count failed", zap.Int64("user_id", recipient), zap.Error(err))
		return
	}
	n.realtime.Publish(ctx, models.NotifyChannel(recipient), models.NewNotificationEvent{
		Notification: created.Payload(),
		Count:        count,
	})
}

func (n *Notifier) store(ctx context.Context, recipient int64, actor models.Identity, typ models.NotificationType, text, link string) (models.Notification, bool) {
	if recipient == actor.UserID {
		return models.Notification{}, false
	}
	sender := actor.UserID
	created, err := n.notifications.Create(ctx, models.Notification{
		RecipientID: recipient,
		SenderID:    &sender,
		SenderName:  actor.Username,
		Type:        typ,
		Message:     text,
		Link:        link,
	})
	if err != nil {
		n.logger.Error("create notification failed",
			zap.Int64("user_id", recipient), zap.String("type", string(typ)), zap.Error(err))
		return models.Notification{}, false
	}
	observability.IncNotificationCreated(string(typ))
	n.events.emit(ctx, EventNotificationCreated, created)
	return created, true
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

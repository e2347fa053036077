package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/askarthikey/cleverSM/internal/core/domain"
	"github.com/askarthikey/cleverSM/internal/core/ports"
)

// NotificationService implémente ports.NotificationService (boîte de réception).
type NotificationService struct {
	inbox *inbox
}

func NewNotificationService(repo ports.NotificationRepository, counter ports.UnreadCounter, metrics ports.Metrics) *NotificationService {
	return &NotificationService{
		inbox: &inbox{repo: repo, counter: counter, metrics: orNoopMetrics(metrics)},
	}
}

func (s *NotificationService) List(ctx context.Context, userID string, page ports.Page) (*ports.NotificationPage, error) {
	if err := domain.ValidateID(userID); err != nil {
		return nil, err
	}
	page = page.Normalize()

	items, total, err := s.inbox.repo.ListForRecipient(ctx, userID, page)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	unread, err := s.UnreadCount(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &ports.NotificationPage{
		Notifications: items,
		Total:         total,
		UnreadCount:   unread,
		Page:          page,
	}, nil
}

// UnreadCount lit d'abord le cache Redis ; le store reste la source de vérité.
// La version lue avant le comptage protège le cache d'une écriture concurrente.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	if err := domain.ValidateID(userID); err != nil {
		return 0, err
	}

	counter := s.inbox.counter
	var version int64
	if counter != nil {
		n, v, ok, err := counter.Get(ctx, userID)
		switch {
		case err != nil:
			slog.WarnContext(ctx, "⚠️ Unread counter cache unavailable", "user_id", userID, "error", err)
			counter = nil
		case ok:
			return n, nil
		default:
			version = v
		}
	}

	n, err := s.inbox.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}

	if counter != nil {
		if err := counter.Set(ctx, userID, n, version); err != nil {
			slog.WarnContext(ctx, "⚠️ Failed to warm unread counter", "user_id", userID, "error", err)
		}
	}
	return n, nil
}

func (s *NotificationService) MarkAsRead(ctx context.Context, id, userID string) error {
	if err := domain.ValidateIDs(id, userID); err != nil {
		return err
	}
	if err := s.inbox.repo.MarkRead(ctx, id, userID); err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	s.inbox.invalidate(ctx, userID)
	return nil
}

func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID string) (int64, error) {
	if err := domain.ValidateID(userID); err != nil {
		return 0, err
	}
	n, err := s.inbox.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	s.inbox.invalidate(ctx, userID)
	return n, nil
}

func (s *NotificationService) Delete(ctx context.Context, id, userID string) error {
	if err := domain.ValidateIDs(id, userID); err != nil {
		return err
	}
	if err := s.inbox.repo.Delete(ctx, id, userID); err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	s.inbox.invalidate(ctx, userID)
	return nil
}

// NotifyInteraction : like/comment/share émis par le service d'interactions.
// Une interaction sur son propre post ne produit rien (nil, nil).
func (s *NotificationService) NotifyInteraction(ctx context.Context, cmd ports.InteractionCmd) (*domain.Notification, error) {
	if !cmd.Type.IsInteraction() {
		return nil, domain.ErrInvalidNotificationType
	}
	if err := domain.ValidateIDs(cmd.RecipientID, cmd.SenderID); err != nil {
		return nil, err
	}
	if cmd.RecipientID == cmd.SenderID {
		return nil, nil
	}

	n, err := domain.NewNotification(cmd.RecipientID, cmd.SenderID, cmd.SenderUsername, cmd.Type,
		domain.InteractionMessage(cmd.SenderUsername, cmd.Type),
		domain.NotificationData{PostID: cmd.PostID, CommentID: cmd.CommentID})
	if err != nil {
		return nil, err
	}
	if err := s.inbox.push(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

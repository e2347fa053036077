package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/askarthikey/cleverSM/internal/core/domain"
	"github.com/askarthikey/cleverSM/internal/core/ports"
)

// inbox regroupe l'écriture des notifications et l'invalidation du compteur de non-lues.
// Partagé par le coordinateur et le service de notifications.
type inbox struct {
	repo    ports.NotificationRepository
	counter ports.UnreadCounter // nil si Redis n'est pas configuré
	metrics ports.Metrics
}

func (b *inbox) push(ctx context.Context, n *domain.Notification) error {
	if err := b.repo.Create(ctx, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	b.metrics.NotificationCreated(n.Type)
	b.invalidate(ctx, n.RecipientID)
	return nil
}

func (b *inbox) invalidate(ctx context.Context, userID string) {
	if b.counter == nil {
		return
	}
	if err := b.counter.Invalidate(ctx, userID); err != nil {
		slog.WarnContext(ctx, "⚠️ Failed to invalidate unread counter", "user_id", userID, "error", err)
	}
}

// --- NO-OP ADAPTERS ---
// Utilisés quand NATS ou Prometheus ne sont pas branchés (tests, mode local).

type noopPublisher struct{}

func (noopPublisher) PublishUserRegistered(context.Context, *domain.User) error { return nil }
func (noopPublisher) PublishFollowRequested(context.Context, *domain.FollowRequest) error { return nil }
func (noopPublisher) PublishFollowResolved(context.Context, *domain.FollowRequest) error { return nil }
func (noopPublisher) PublishFollowed(context.Context, string, string) error { return nil }
func (noopPublisher) PublishUnfollowed(context.Context, string, string) error { return nil }

type noopMetrics struct{}

func (noopMetrics) FollowRequestTransition(domain.FollowStatus) {}
func (noopMetrics) NotificationCreated(domain.NotificationType) {}
func (noopMetrics) CompensationTriggered(string) {}

func orNoopPublisher(p ports.EventPublisher) ports.EventPublisher {
	if p == nil {
		return noopPublisher{}
	}
	return p
}

func orNoopMetrics(m ports.Metrics) ports.Metrics {
	if m == nil {
		return noopMetrics{}
	}
	return m
}

package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/askarthikey/cleverSM/internal/core/domain"
	"github.com/askarthikey/cleverSM/internal/core/ports"
)

const (
	InteractionStream  = "INTERACTIONS"
	InteractionSubject = "interaction.post.*"
	ConsumerName       = "cleversm-notifications"

	handleTimeout = 30 * time.Second
)

// InteractionEvent : payload publié par le service d'interactions.
type InteractionEvent struct {
	PostID        string `json:"postId"`
	PostAuthorID  string `json:"postAuthorId"`
	ActorID       string `json:"actorId"`
	ActorUsername string `json:"actorUsername"`
	CommentID     string `json:"commentId,omitempty"`
}

var errMalformed = errors.New("malformed interaction event")

type EventHandler struct {
	svc    ports.NotificationService
	tracer trace.Tracer
	cc     jetstream.ConsumeContext
}

func NewEventHandler(svc ports.NotificationService) *EventHandler {
	return &EventHandler{
		svc:    svc,
		tracer: otel.Tracer("cleversm-interaction-consumer"),
	}
}

// Start crée (ou reprend) le consumer durable et commence la consommation.
func (h *EventHandler) Start(ctx context.Context, js jetstream.JetStream) error {
	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     InteractionStream,
		Subjects: []string{"interaction.>"},
		Storage:  jetstream.FileStorage,
		Replicas: 1,
	})
	if err != nil {
		return fmt.Errorf("create stream: %w", err)
	}

	cons, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:       ConsumerName,
		FilterSubject: InteractionSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    5,
	})
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}

	h.cc, err = cons.Consume(h.onMessage)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	slog.Info("🎧 Listening for interaction events", "subject", InteractionSubject)
	return nil
}

func (h *EventHandler) Stop() {
	if h.cc != nil {
		h.cc.Stop()
	}
}

func (h *EventHandler) onMessage(msg jetstream.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	err := h.Handle(ctx, msg.Subject(), propagation.HeaderCarrier(msg.Headers()), msg.Data())
	switch {
	case err == nil:
		_ = msg.Ack()
	case errors.Is(err, errMalformed) || domain.KindOf(err) == domain.KindBadRequest:
		// inutile de rejouer un message invalide
		_ = msg.Term()
	default:
		_ = msg.Nak()
	}
}

// Handle traite un événement d'interaction. Exposé pour les tests.
func (h *EventHandler) Handle(ctx context.Context, subject string, carrier propagation.TextMapCarrier, data []byte) error {
	// 1. Récupération du contexte de trace du producteur
	ctx = otel.GetTextMapPropagator().Extract(ctx, carrier)
	ctx, span := h.tracer.Start(ctx, "process "+subject, trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	typ, ok := notificationTypeFor(subject)
	if !ok {
		span.SetStatus(codes.Error, "unknown subject")
		return fmt.Errorf("%w: unknown subject %q", errMalformed, subject)
	}

	var event InteractionEvent
	if err := json.Unmarshal(data, &event); err != nil {
		span.RecordError(err)
		slog.ErrorContext(ctx, "❌ Failed to unmarshal interaction event", "subject", subject, "error", err)
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	span.SetAttributes(
		attribute.String("post.id", event.PostID),
		attribute.String("actor.id", event.ActorID),
	)

	n, err := h.svc.NotifyInteraction(ctx, ports.InteractionCmd{
		RecipientID:    event.PostAuthorID,
		SenderID:       event.ActorID,
		SenderUsername: event.ActorUsername,
		Type:           typ,
		PostID:         event.PostID,
		CommentID:      event.CommentID,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.ErrorContext(ctx, "❌ Failed to notify interaction", "subject", subject, "error", err)
		return err
	}
	if n != nil {
		slog.DebugContext(ctx, "🔔 Interaction notified", "notification_id", n.ID, "type", typ)
	}
	return nil
}

func notificationTypeFor(subject string) (domain.NotificationType, bool) {
	switch subject[strings.LastIndexByte(subject, '.')+1:] {
	case "liked":
		return domain.NotificationLike, true
	case "commented":
		return domain.NotificationComment, true
	case "shared":
		return domain.NotificationShare, true
	}
	return "", false
}

package eventbroker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/askarthikey/cleverSM/internal/core/domain"
	"github.com/askarthikey/cleverSM/internal/core/ports"
)

const (
	StreamName     = "SOCIAL"
	SubjectPattern = "social.>"

	SubjectUserRegistered = "social.user.registered"
	SubjectFollowPrefix   = "social.follow." // + statut de la demande
	SubjectFollowed       = "social.graph.followed"
	SubjectUnfollowed     = "social.graph.unfollowed"
)

// msgPublisher : sous-ensemble de jetstream.JetStream utilisé ici.
type msgPublisher interface {
	PublishMsg(ctx context.Context, msg *nats.Msg, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

type NatsBroker struct {
	js msgPublisher
}

var _ ports.EventPublisher = (*NatsBroker)(nil)

// NewNatsBroker s'assure que le stream SOCIAL existe (idempotent).
func NewNatsBroker(ctx context.Context, js jetstream.JetStream) (*NatsBroker, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     StreamName,
		Subjects: []string{SubjectPattern},
		Storage:  jetstream.FileStorage,
		Replicas: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("create stream: %w", err)
	}
	return &NatsBroker{js: js}, nil
}

// --- PAYLOADS ---

type UserRegisteredEvent struct {
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

type FollowRequestEvent struct {
	RequestID   string    `json:"requestId"`
	SenderID    string    `json:"senderId"`
	RecipientID string    `json:"recipientId"`
	Status      string    `json:"status"`
	OccurredAt  time.Time `json:"occurredAt"`
}

type FollowEdgeEvent struct {
	FollowerID string    `json:"followerId"`
	TargetID   string    `json:"targetId"`
	OccurredAt time.Time `json:"occurredAt"`
}

func (n *NatsBroker) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	return n.publish(ctx, SubjectUserRegistered, UserRegisteredEvent{
		UserID:    user.ID,
		Username:  user.Username,
		CreatedAt: user.CreatedAt,
	})
}

func (n *NatsBroker) PublishFollowRequested(ctx context.Context, req *domain.FollowRequest) error {
	return n.publishRequest(ctx, req)
}

func (n *NatsBroker) PublishFollowResolved(ctx context.Context, req *domain.FollowRequest) error {
	return n.publishRequest(ctx, req)
}

func (n *NatsBroker) publishRequest(ctx context.Context, req *domain.FollowRequest) error {
	return n.publish(ctx, SubjectFollowPrefix+string(req.Status), FollowRequestEvent{
		RequestID:   req.ID,
		SenderID:    req.SenderID,
		RecipientID: req.RecipientID,
		Status:      string(req.Status),
		OccurredAt:  req.UpdatedAt,
	})
}

func (n *NatsBroker) PublishFollowed(ctx context.Context, followerID, targetID string) error {
	return n.publish(ctx, SubjectFollowed, FollowEdgeEvent{FollowerID: followerID, TargetID: targetID, OccurredAt: time.Now().UTC()})
}

func (n *NatsBroker) PublishUnfollowed(ctx context.Context, followerID, targetID string) error {
	return n.publish(ctx, SubjectUnfollowed, FollowEdgeEvent{FollowerID: followerID, TargetID: targetID, OccurredAt: time.Now().UTC()})
}

func (n *NatsBroker) publish(ctx context.Context, subject string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := &nats.Msg{Subject: subject, Data: data, Header: nats.Header{}}
	// Trace ID propagé aux consommateurs via les headers NATS
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(msg.Header))

	ack, err := n.js.PublishMsg(ctx, msg)
	if err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	slog.DebugContext(ctx, "📢 Event published", "subject", subject, "seq", ack.Sequence)
	return nil
}

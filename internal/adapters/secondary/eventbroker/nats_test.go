package eventbroker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/askarthikey/cleverSM/internal/core/domain"
)

type capturePublisher struct {
	msgs []*nats.Msg
	err  error
}

func (c *capturePublisher) PublishMsg(_ context.Context, msg *nats.Msg, _ ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.msgs = append(c.msgs, msg)
	return &jetstream.PubAck{Stream: StreamName, Sequence: uint64(len(c.msgs))}, nil
}

func TestPublishFollowLifecycle(t *testing.T) {
	pub := &capturePublisher{}
	broker := &NatsBroker{js: pub}
	ctx := context.Background()

	req, err := domain.NewFollowRequest(domain.NewID(), "alice", domain.NewID(), "bob", "")
	require.NoError(t, err)

	require.NoError(t, broker.PublishFollowRequested(ctx, req))
	require.NoError(t, req.Transition(domain.FollowStatusAccepted))
	require.NoError(t, broker.PublishFollowResolved(ctx, req))
	require.NoError(t, broker.PublishFollowed(ctx, req.SenderID, req.RecipientID))

	require.Len(t, pub.msgs, 3)
	assert.Equal(t, "social.follow.pending", pub.msgs[0].Subject)
	assert.Equal(t, "social.follow.accepted", pub.msgs[1].Subject)
	assert.Equal(t, SubjectFollowed, pub.msgs[2].Subject)

	var event FollowRequestEvent
	require.NoError(t, json.Unmarshal(pub.msgs[1].Data, &event))
	assert.Equal(t, req.ID, event.RequestID)
	assert.Equal(t, "accepted", event.Status)
}

func TestPublishInjectsTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	pub := &capturePublisher{}
	require.NoError(t, (&NatsBroker{js: pub}).PublishUnfollowed(ctx, domain.NewID(), domain.NewID()))
	require.Len(t, pub.msgs, 1)
	assert.Contains(t, pub.msgs[0].Header.Get("traceparent"), "4bf92f3577b34da6a3ce929d0e0e4736")
}

func TestPublishError(t *testing.T) {
	boom := errors.New("no responders")
	broker := &NatsBroker{js: &capturePublisher{err: boom}}
	u, err := domain.NewUser("alice", "", "", "hash")
	require.NoError(t, err)
	assert.ErrorIs(t, broker.PublishUserRegistered(context.Background(), u), boom)
}

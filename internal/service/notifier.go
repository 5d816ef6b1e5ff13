package service

import (
	"context"

	"github.com/peerlearn/peerlearn/internal/events"
	"github.com/peerlearn/peerlearn/pkg/log"
	"github.com/peerlearn/peerlearn/pkg/pubsub"
)

// Notifier fans conversation events out to live sessions and, when a broker
// is configured, to the durable chat event stream. Failures are logged only.
type Notifier struct {
	bus      pubsub.Publisher
	producer events.Producer
}

// NewNotifier creates a notifier. A nil producer disables the event stream.
func NewNotifier(bus pubsub.Publisher, producer events.Producer) *Notifier {
	if producer == nil {
		producer = events.NopProducer{}
	}
	return &Notifier{bus: bus, producer: producer}
}

// Notify publishes eventType with payload on the conversation's channel.
func (n *Notifier) Notify(ctx context.Context, eventType, conversationID string, isGroup bool, payload interface{}) {
	l := log.Ctx(ctx)

	event, err := pubsub.NewEvent(eventType, conversationID, isGroup, payload)
	if err != nil {
		l.Error().Err(err).Str("event_type", eventType).Msg("failed to build event")
		return
	}

	if err := n.bus.Publish(ctx, event.Channel(), event); err != nil {
		l.Warn().Err(err).Str("channel", event.Channel()).Msg("failed to publish event")
	}
	if err := n.producer.Produce(ctx, event); err != nil {
		l.Warn().Err(err).Str("event_type", eventType).Msg("failed to produce event")
	}
}

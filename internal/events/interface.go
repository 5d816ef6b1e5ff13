package events

import (
	"context"

	"github.com/peerlearn/peerlearn/pkg/pubsub"
)

// Producer writes chat events to a durable stream for downstream consumers.
type Producer interface {
	Produce(ctx context.Context, event *pubsub.Event) error
	Close() error
}

// NopProducer drops every event. Used when no broker is configured.
type NopProducer struct{}

func (NopProducer) Produce(context.Context, *pubsub.Event) error { return nil }

func (NopProducer) Close() error { return nil }

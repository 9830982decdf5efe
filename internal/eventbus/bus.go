// Package eventbus is the process-wide domain event bus. It wraps a watermill
// in-memory pub/sub so that each subscription receives its topic's events one
// at a time, in publish order.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.uber.org/zap"
)

// Topics consumed by the indexing core.
const (
	TopicSettingsUpdated = "settings.updated"
	TopicFAQCreated      = "faq.created"
	TopicFAQUpdated      = "faq.updated"
	TopicFAQDeleted      = "faq.deleted"
)

// Handler processes one event payload. A returned error is logged; the event is not redelivered.
type Handler func(ctx context.Context, payload []byte) error

// Bus publishes and fans out domain events.
type Bus struct {
	pubsub *gochannel.GoChannel
	logger *zap.Logger
}

// New creates an in-memory bus. Publish blocks until every subscriber has
// handled the event, which keeps a single subscription's events ordered.
func New(logger *zap.Logger) *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{BlockPublishUntilSubscriberAck: true},
			NewZapAdapter(logger.Named("watermill")),
		),
		logger: logger,
	}
}

// Publish JSON-encodes event and publishes it on topic.
func (b *Bus) Publish(ctx context.Context, topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", topic, err)
	}
	return b.PublishRaw(ctx, topic, payload)
}

// PublishRaw publishes an already encoded payload on topic.
func (b *Bus) PublishRaw(ctx context.Context, topic string, payload []byte) error {
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	if err := b.pubsub.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe runs handler for every event on topic in a dedicated goroutine
// until ctx is cancelled or the returned unsubscribe func is called.
func (b *Bus) Subscribe(ctx context.Context, topic string, handler Handler) (func(), error) {
	subCtx, cancel := context.WithCancel(ctx)
	messages, err := b.pubsub.Subscribe(subCtx, topic)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}

	go func() {
		for msg := range messages {
			if err := handler(subCtx, msg.Payload); err != nil {
				b.logger.Error("Event handler failed",
					zap.String("topic", topic),
					zap.String("message_uuid", msg.UUID),
					zap.Error(err),
				)
			}
			msg.Ack()
		}
	}()

	return cancel, nil
}

// Close stops all subscriptions.
func (b *Bus) Close() error {
	if err := b.pubsub.Close(); err != nil {
		return fmt.Errorf("close pubsub: %w", err)
	}
	return nil
}

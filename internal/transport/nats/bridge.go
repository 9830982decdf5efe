// Package nats republishes domain events received over NATS onto the
// in-process event bus, so that settings and FAQ changes made by other
// services reach the indexing core.
package nats

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/kailas-cloud/deskindex/internal/eventbus"
)

// DefaultSubjectPrefix namespaces bridged subjects: "<prefix>.<topic>".
const DefaultSubjectPrefix = "deskindex"

// BridgedTopics are the bus topics forwarded from NATS.
var BridgedTopics = []string{
	eventbus.TopicSettingsUpdated,
	eventbus.TopicFAQCreated,
	eventbus.TopicFAQUpdated,
	eventbus.TopicFAQDeleted,
}

// Publisher accepts already encoded events.
type Publisher interface {
	PublishRaw(ctx context.Context, topic string, payload []byte) error
}

// Bridge forwards NATS messages to a Publisher.
type Bridge struct {
	nc     *nats.Conn
	bus    Publisher
	prefix string
	logger *zap.Logger
	subs   []*nats.Subscription
}

// Connect dials url and returns a bridge that is not yet subscribed.
func Connect(url, prefix string, bus Publisher, logger *zap.Logger) (*Bridge, error) {
	nc, err := nats.Connect(url,
		nats.Name("deskindex"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return newBridge(nc, prefix, bus, logger), nil
}

func newBridge(nc *nats.Conn, prefix string, bus Publisher, logger *zap.Logger) *Bridge {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &Bridge{nc: nc, bus: bus, prefix: prefix, logger: logger}
}

// Subject returns the NATS subject bridged to topic.
func (b *Bridge) Subject(topic string) string {
	return b.prefix + "." + topic
}

// Start subscribes to every bridged subject.
func (b *Bridge) Start() error {
	for _, topic := range BridgedTopics {
		sub, err := b.nc.Subscribe(b.Subject(topic), b.handle)
		if err != nil {
			b.unsubscribe()
			return fmt.Errorf("subscribe %s: %w", b.Subject(topic), err)
		}
		b.subs = append(b.subs, sub)
	}
	b.logger.Info("NATS bridge started", zap.String("prefix", b.prefix), zap.Int("subjects", len(b.subs)))
	return nil
}

// handle runs on the subscription goroutine, so messages of one subject are
// forwarded in arrival order.
func (b *Bridge) handle(msg *nats.Msg) {
	topic, ok := strings.CutPrefix(msg.Subject, b.prefix+".")
	if !ok {
		b.logger.Warn("Ignoring message outside bridge prefix", zap.String("subject", msg.Subject))
		return
	}
	if err := b.bus.PublishRaw(context.Background(), topic, msg.Data); err != nil {
		b.logger.Error("Failed to forward NATS message",
			zap.String("subject", msg.Subject),
			zap.Error(err),
		)
	}
}

func (b *Bridge) unsubscribe() {
	for _, sub := range b.subs {
		_ = sub.Unsubscribe()
	}
	b.subs = nil
}

// Close unsubscribes and drains the connection.
func (b *Bridge) Close() {
	b.unsubscribe()
	if b.nc != nil {
		if err := b.nc.Drain(); err != nil {
			b.nc.Close()
		}
	}
}

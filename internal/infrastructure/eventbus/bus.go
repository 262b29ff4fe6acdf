package eventbus

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/quorvia/erpcore/internal/domain"
)

// Bus is an in-process pub/sub bus backed by watermill's gochannel
// transport. Topics are event type names.
type Bus struct {
	pubsub *gochannel.GoChannel
}

// New creates a Bus. A nil logger silences watermill.
func New(logger watermill.LoggerAdapter) *Bus {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 64,
		}, logger),
	}
}

// Publish marshals the payload and publishes it on the topic.
func (b *Bus) Publish(ctx context.Context, topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.SetContext(ctx)
	return b.pubsub.Publish(topic, msg)
}

// Subscribe returns a message channel for the topic. Messages must be
// Acked or Nacked by the consumer.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, topic)
}

// Close shuts the bus down and closes all subscriber channels.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}

// OutboxPublisher forwards drained outbox events onto the bus, keyed by
// event type.
type OutboxPublisher struct {
	bus *Bus
}

// NewOutboxPublisher creates an OutboxPublisher.
func NewOutboxPublisher(bus *Bus) *OutboxPublisher {
	return &OutboxPublisher{bus: bus}
}

// Publish implements the outbox drain target.
func (p *OutboxPublisher) Publish(ctx context.Context, event *domain.OutboxEvent) error {
	return p.bus.Publish(ctx, event.EventType, event.Payload)
}

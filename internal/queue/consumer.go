package queue

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/pipeboard/pkg/types"
)

// Handler processes one change. Returning an error rejects the message to
// the dead-letter queue.
type Handler func(ctx context.Context, c types.Change) error

// Consumer reads changes from the change queue with manual acknowledgement.
type Consumer struct {
	ch     Channel
	tag    string
	logger *zap.Logger
}

// NewConsumer returns a Consumer on ch identified by tag (empty lets the
// broker pick one).
func NewConsumer(ch Channel, tag string, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{ch: ch, tag: tag, logger: logger}
}

// Watch delivers changes to h until ctx is done or the broker closes the
// delivery channel. Malformed messages are rejected without requeue.
func (c *Consumer) Watch(ctx context.Context, h Handler) error {
	msgs, err := c.ch.Consume(QueueName, c.tag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("registering consumer: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return nil
			}
			c.handle(ctx, d, h)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery, h Handler) {
	var change types.Change
	if err := json.Unmarshal(d.Body, &change); err != nil {
		c.logger.Warn("malformed change message", zap.String("message_id", d.MessageId), zap.Error(err))
		c.nack(d)
		return
	}
	if err := h(ctx, change); err != nil {
		c.logger.Warn("change handler failed", zap.Int64("revision", change.Revision), zap.Error(err))
		c.nack(d)
		return
	}
	if err := d.Ack(false); err != nil {
		c.logger.Error("ack failed", zap.Int64("revision", change.Revision), zap.Error(err))
	}
}

func (c *Consumer) nack(d amqp.Delivery) {
	if err := d.Nack(false, false); err != nil {
		c.logger.Error("nack failed", zap.String("message_id", d.MessageId), zap.Error(err))
	}
}

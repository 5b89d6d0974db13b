package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/pipeboard/pkg/types"
)

// Publisher sends board changes to the pipeline exchange. It implements
// persist.Notifier.
type Publisher struct {
	ch     Channel
	logger *zap.Logger
}

// NewPublisher returns a Publisher writing to ch. The topology must already
// be declared (Dial does this).
func NewPublisher(ch Channel, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{ch: ch, logger: logger}
}

// Notify publishes one persistent JSON message per change, in order. It
// stops at the first failure; the caller retries the whole batch, so
// consumers may see a change more than once.
func (p *Publisher) Notify(ctx context.Context, changes []types.Change) error {
	for _, c := range changes {
		body, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("encoding change %d: %w", c.Revision, err)
		}
		msg := amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    strconv.FormatInt(c.Revision, 10),
			Type:         c.Op,
			Timestamp:    c.At,
			Body:         body,
		}
		if err := p.ch.PublishWithContext(ctx, ExchangeName, RoutingKey, false, false, msg); err != nil {
			return fmt.Errorf("publishing change %d: %w", c.Revision, err)
		}
		p.logger.Debug("change published",
			zap.String("op", c.Op),
			zap.String("record", c.RecordID),
			zap.Int64("revision", c.Revision))
	}
	return nil
}

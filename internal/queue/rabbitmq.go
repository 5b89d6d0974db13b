// Package queue publishes board change events to RabbitMQ and consumes them
// back for watchers.
//
// Topology: a durable direct exchange routes every change to a durable queue.
// Messages a consumer rejects are dead-lettered to a separate exchange and
// queue so they can be inspected without blocking the stream.
package queue

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Topology names.
const (
	ExchangeName = "ex.pipeline"
	QueueName    = "q.pipeline.changes"
	DLXName      = "ex.pipeline.dlx"
	DLQName      = "q.pipeline.changes.dlq"
	RoutingKey   = "k.board.changed"
)

// Channel is the subset of *amqp.Channel used by this package.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	IsClosed() bool
	Close() error
}

// Conn is an open broker connection with its channel and declared topology.
type Conn struct {
	conn *amqp.Connection
	ch   Channel
}

// Dial connects to the broker at url, opens a channel and declares the
// topology.
func Dial(url string) (*Conn, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening channel: %w", err)
	}
	if err := SetupTopology(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	return &Conn{conn: conn, ch: ch}, nil
}

// Channel returns the connection's channel.
func (c *Conn) Channel() Channel {
	return c.ch
}

// IsClosed reports whether the channel or connection has closed.
func (c *Conn) IsClosed() bool {
	if c.ch.IsClosed() {
		return true
	}
	return c.conn != nil && c.conn.IsClosed()
}

// Close closes the channel and the connection.
func (c *Conn) Close() error {
	err := c.ch.Close()
	if c.conn != nil {
		if cerr := c.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// SetupTopology declares the dead-letter exchange and queue first, then the
// main exchange and the change queue that dead-letters into them.
// Declarations are idempotent.
func SetupTopology(ch Channel) error {
	if err := ch.ExchangeDeclare(DLXName, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declaring exchange %s: %w", DLXName, err)
	}
	if _, err := ch.QueueDeclare(DLQName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declaring queue %s: %w", DLQName, err)
	}
	if err := ch.QueueBind(DLQName, RoutingKey, DLXName, false, nil); err != nil {
		return fmt.Errorf("binding queue %s: %w", DLQName, err)
	}

	args := amqp.Table{
		"x-dead-letter-exchange":    DLXName,
		"x-dead-letter-routing-key": RoutingKey,
	}
	if err := ch.ExchangeDeclare(ExchangeName, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declaring exchange %s: %w", ExchangeName, err)
	}
	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, args); err != nil {
		return fmt.Errorf("declaring queue %s: %w", QueueName, err)
	}
	if err := ch.QueueBind(QueueName, RoutingKey, ExchangeName, false, nil); err != nil {
		return fmt.Errorf("binding queue %s: %w", QueueName, err)
	}
	return nil
}

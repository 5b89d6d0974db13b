// Unit tests for topology setup, change publishing and the consumer loop.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/pipeboard/pkg/types"
)

// MockChannel
type MockChannel struct {
	mock.Mock
}

func (m *MockChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	return m.Called(name, kind, durable, args).Error(0)
}

func (m *MockChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	a := m.Called(name, durable, args)
	return amqp.Queue{Name: name}, a.Error(0)
}

func (m *MockChannel) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	return m.Called(name, key, exchange).Error(0)
}

func (m *MockChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	return m.Called(exchange, key, msg).Error(0)
}

func (m *MockChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	a := m.Called(queue, autoAck)
	ch, _ := a.Get(0).(chan amqp.Delivery)
	return ch, a.Error(1)
}

func (m *MockChannel) IsClosed() bool {
	return m.Called().Bool(0)
}

func (m *MockChannel) Close() error {
	return m.Called().Error(0)
}

// ackRecorder records acknowledgements by delivery tag.
type ackRecorder struct {
	acked  []uint64
	nacked []uint64
}

func (a *ackRecorder) Ack(tag uint64, _ bool) error {
	a.acked = append(a.acked, tag)
	return nil
}

func (a *ackRecorder) Nack(tag uint64, _ bool, requeue bool) error {
	if requeue {
		return errors.New("unexpected requeue")
	}
	a.nacked = append(a.nacked, tag)
	return nil
}

func (a *ackRecorder) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func TestSetupTopology(t *testing.T) {
	ch := new(MockChannel)
	dlArgs := amqp.Table{
		"x-dead-letter-exchange":    DLXName,
		"x-dead-letter-routing-key": RoutingKey,
	}
	ch.On("ExchangeDeclare", DLXName, "direct", true, amqp.Table(nil)).Return(nil).Once()
	ch.On("QueueDeclare", DLQName, true, amqp.Table(nil)).Return(nil).Once()
	ch.On("QueueBind", DLQName, RoutingKey, DLXName).Return(nil).Once()
	ch.On("ExchangeDeclare", ExchangeName, "direct", true, amqp.Table(nil)).Return(nil).Once()
	ch.On("QueueDeclare", QueueName, true, dlArgs).Return(nil).Once()
	ch.On("QueueBind", QueueName, RoutingKey, ExchangeName).Return(nil).Once()

	require.NoError(t, SetupTopology(ch))
	ch.AssertExpectations(t)
}

func TestSetupTopologyStopsAtFirstError(t *testing.T) {
	ch := new(MockChannel)
	ch.On("ExchangeDeclare", DLXName, "direct", true, amqp.Table(nil)).Return(errors.New("access refused"))

	err := SetupTopology(ch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), DLXName)
	ch.AssertNotCalled(t, "QueueDeclare", mock.Anything, mock.Anything, mock.Anything)
}

func TestPublisherNotify(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	changes := []types.Change{
		{Op: types.OpCreate, RecordID: "task-1", ToBucket: "nuevo", FromIndex: -1, ToIndex: 0, Revision: 1, At: at},
		{Op: types.OpMove, RecordID: "task-1", FromBucket: "nuevo", ToBucket: "demo", FromIndex: 0, ToIndex: 0, Revision: 2, At: at},
	}

	ch := new(MockChannel)
	var published []amqp.Publishing
	ch.On("PublishWithContext", ExchangeName, RoutingKey, mock.Anything).
		Run(func(args mock.Arguments) { published = append(published, args.Get(2).(amqp.Publishing)) }).
		Return(nil)

	p := NewPublisher(ch, nil)
	require.NoError(t, p.Notify(context.Background(), changes))

	require.Len(t, published, 2)
	for i, msg := range published {
		assert.Equal(t, "application/json", msg.ContentType)
		assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
		assert.Equal(t, changes[i].Op, msg.Type)

		var got types.Change
		require.NoError(t, json.Unmarshal(msg.Body, &got))
		assert.Equal(t, changes[i].Revision, got.Revision)
		assert.Equal(t, changes[i].ToBucket, got.ToBucket)
	}
	assert.Equal(t, "1", published[0].MessageId)
	assert.Equal(t, "2", published[1].MessageId)
}

func TestPublisherNotifyStopsOnError(t *testing.T) {
	ch := new(MockChannel)
	ch.On("PublishWithContext", ExchangeName, RoutingKey, mock.Anything).Return(errors.New("channel closed")).Once()

	p := NewPublisher(ch, nil)
	err := p.Notify(context.Background(), []types.Change{{Revision: 1}, {Revision: 2}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "change 1")
	ch.AssertNumberOfCalls(t, "PublishWithContext", 1)
}

func delivery(ack amqp.Acknowledger, tag uint64, body string) amqp.Delivery {
	return amqp.Delivery{Acknowledger: ack, DeliveryTag: tag, Body: []byte(body)}
}

func TestConsumerWatch(t *testing.T) {
	ack := &ackRecorder{}
	msgs := make(chan amqp.Delivery, 3)
	msgs <- delivery(ack, 1, `{"op":"create","recordId":"task-1","revision":1}`)
	msgs <- delivery(ack, 2, `{not json`)
	msgs <- delivery(ack, 3, `{"op":"delete","recordId":"task-9","revision":2}`)
	close(msgs)

	ch := new(MockChannel)
	ch.On("Consume", QueueName, false).Return(msgs, nil)

	var seen []string
	h := func(_ context.Context, c types.Change) error {
		seen = append(seen, c.RecordID)
		if c.RecordID == "task-9" {
			return errors.New("unknown record")
		}
		return nil
	}

	c := NewConsumer(ch, "", nil)
	require.NoError(t, c.Watch(context.Background(), h))

	assert.Equal(t, []string{"task-1", "task-9"}, seen)
	assert.Equal(t, []uint64{1}, ack.acked)
	assert.Equal(t, []uint64{2, 3}, ack.nacked)
}

func TestConsumerWatchStopsOnContext(t *testing.T) {
	msgs := make(chan amqp.Delivery)
	ch := new(MockChannel)
	ch.On("Consume", QueueName, false).Return(msgs, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewConsumer(ch, "watch", nil)
	assert.NoError(t, c.Watch(ctx, func(context.Context, types.Change) error { return nil }))
}

func TestConsumerWatchConsumeError(t *testing.T) {
	ch := new(MockChannel)
	ch.On("Consume", QueueName, false).Return(nil, errors.New("not found"))

	c := NewConsumer(ch, "", nil)
	assert.Error(t, c.Watch(context.Background(), func(context.Context, types.Change) error { return nil }))
}

func TestConnIsClosedAndClose(t *testing.T) {
	ch := new(MockChannel)
	ch.On("IsClosed").Return(false).Once()
	ch.On("Close").Return(nil).Once()

	c := &Conn{ch: ch}
	assert.False(t, c.IsClosed())
	assert.NoError(t, c.Close())
	ch.AssertExpectations(t)
}

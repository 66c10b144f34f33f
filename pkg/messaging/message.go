package messaging

import (
	"encoding/json"

	"github.com/streadway/amqp"

	"medflow/pkg/contextx"
)

// Message is one received delivery. Handlers must finish it with exactly
// one of Ack, Reject or RequeueWithDelay.
type Message struct {
	Topic         string
	Queue         string
	MessageID     string
	CorrelationID string
	AppID         string
	Body          []byte

	delivery amqp.Delivery
	broker   *Broker
}

func (m *Message) Decode(v interface{}) error {
	return json.Unmarshal(m.Body, v)
}

func (m *Message) Ack() error {
	return m.delivery.Ack(false)
}

// Reject drops the message. requeue puts it straight back on the queue
// instead.
func (m *Message) Reject(requeue bool) error {
	return m.delivery.Reject(requeue)
}

// RequeueWithDelay parks the message on the delay queue, whose dead
// letter routing brings it back to the original topic after the
// configured delay.
func (m *Message) RequeueWithDelay() error {
	if err := m.broker.publishDelayed(m); err != nil {
		return err
	}
	return m.delivery.Ack(false)
}

// Handler processes one message.
type Handler func(ctx *contextx.Context, msg *Message)

// Publisher sends a serialized event to a topic.
type Publisher interface {
	Publish(ctx *contextx.Context, topic string, event interface{}) error
}

// Subscriber binds handlers to topics.
type Subscriber interface {
	Subscribe(topic, queue string, handler Handler) error
}

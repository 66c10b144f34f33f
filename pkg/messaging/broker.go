package messaging

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"

	"medflow/app/config"
	"medflow/pkg/contextx"
	"medflow/pkg/log"
)

const (
	defaultHeartbeat = 10 * time.Second
	dialInterval     = 3 * time.Second
)

// Broker is a RabbitMQ topic-exchange client serving both publish and
// subscribe. Requeue-with-delay runs through a per-topic delay queue
// that dead-letters back into the main exchange.
type Broker struct {
	cfg config.MessagingConfig
	url string

	mu        sync.Mutex
	conn      *amqp.Connection
	publishCh *amqp.Channel

	subscriptions []*subscription
	closed        bool
}

type subscription struct {
	topic   string
	queue   string
	handler Handler
}

func NewBroker(cfg config.MessagingConfig) (*Broker, error) {
	amqpUrl, err := parseConnectionUrl(cfg.Connection)
	if err != nil {
		return nil, err
	}

	broker := &Broker{cfg: cfg, url: amqpUrl}
	if err := broker.connect(); err != nil {
		return nil, err
	}
	return broker, nil
}

// parseConnectionUrl converts the rabbit:// form carried in config into
// a dialable amqp:// url, dropping the query options.
func parseConnectionUrl(connUrl string) (string, error) {
	uri, err := url.Parse(connUrl)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("amqp://%s@%s%s", uri.User.String(), uri.Host, uri.Path), nil
}

func (b *Broker) connect() error {
	conn, err := amqp.DialConfig(b.url, amqp.Config{Heartbeat: defaultHeartbeat})
	if err != nil {
		return err
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return err
	}
	if err := channel.ExchangeDeclare(b.cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return err
	}

	b.conn = conn
	b.publishCh = channel

	events := make(chan *amqp.Error)
	conn.NotifyClose(events)
	go b.watchConnection(events)
	return nil
}

func (b *Broker) watchConnection(events chan *amqp.Error) {
	err := <-events
	if err == nil {
		return
	}
	log.Warnf(nil, "broker connection lost, error: %s", err.Error())

	for {
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return
		}
		connectErr := b.connect()
		b.mu.Unlock()

		if connectErr == nil {
			break
		}
		log.Errorf(nil, "broker reconnect failed, error: %s", connectErr.Error())
		time.Sleep(dialInterval)
	}

	b.mu.Lock()
	subscriptions := b.subscriptions
	b.mu.Unlock()
	for _, sub := range subscriptions {
		if err := b.startConsumer(sub); err != nil {
			log.Errorf(nil, "resubscribe to %s failed, error: %s", sub.topic, err.Error())
		}
	}
}

func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}

// Publish serializes the event as JSON and sends it to the topic with a
// fresh message id, retrying per the configured retry count.
func (b *Broker) Publish(ctx *contextx.Context, topic string, event interface{}) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	publishing := amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     uuid.NewString(),
		CorrelationId: ctx.GetCorrelationID(),
		Timestamp:     time.Now().UTC(),
		Body:          body,
	}

	var lastErr error
	for attempt := 0; attempt <= b.cfg.Retries; attempt++ {
		b.mu.Lock()
		channel := b.publishCh
		b.mu.Unlock()
		if channel == nil {
			lastErr = fmt.Errorf("publish on a disconnected broker")
			time.Sleep(dialInterval)
			continue
		}

		lastErr = channel.Publish(b.cfg.Exchange, topic, false, false, publishing)
		if lastErr == nil {
			log.Debugf(ctx, "published message %s to topic %s", publishing.MessageId, topic)
			return nil
		}
		log.Warnf(ctx, "publish to %s failed, error: %s", topic, lastErr.Error())
	}
	return fmt.Errorf("publish to %s failed, error: %s", topic, lastErr.Error())
}

// Subscribe binds a durable queue to the topic and feeds every delivery
// to the handler on its own goroutine.
func (b *Broker) Subscribe(topic, queue string, handler Handler) error {
	if queue == "" {
		queue = topic
	}
	sub := &subscription{topic: topic, queue: queue, handler: handler}

	b.mu.Lock()
	b.subscriptions = append(b.subscriptions, sub)
	b.mu.Unlock()

	return b.startConsumer(sub)
}

func (b *Broker) startConsumer(sub *subscription) error {
	channel, err := b.conn.Channel()
	if err != nil {
		return err
	}

	if err := channel.ExchangeDeclare(b.cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return err
	}
	arguments := amqp.Table{
		"x-dead-letter-exchange": b.cfg.DeadLetter,
	}
	if _, err := channel.QueueDeclare(sub.queue, true, false, false, false, arguments); err != nil {
		return err
	}
	if err := channel.QueueBind(sub.queue, sub.topic, b.cfg.Exchange, false, nil); err != nil {
		return err
	}

	deliveries, err := channel.Consume(sub.queue, uuid.NewString(), false, false, false, false, nil)
	if err != nil {
		return err
	}

	go b.consumeLoop(sub, deliveries)
	return nil
}

func (b *Broker) consumeLoop(sub *subscription, deliveries <-chan amqp.Delivery) {
	for delivery := range deliveries {
		if delivery.Body == nil {
			continue
		}
		msg := &Message{
			Topic:         sub.topic,
			Queue:         sub.queue,
			MessageID:     delivery.MessageId,
			CorrelationID: delivery.CorrelationId,
			AppID:         delivery.AppId,
			Body:          delivery.Body,
			delivery:      delivery,
			broker:        b,
		}

		ctx := contextx.NewContext()
		ctx.Set("correlationId", msg.CorrelationID)
		go sub.handler(ctx, msg)
	}
	log.Debugf(nil, "consume loop on queue %s ended, channel closed or canceled", sub.queue)
}

// publishDelayed parks a message on <topic>.delay. The queue has no
// consumer; expired messages dead-letter back to the main exchange with
// the original routing key.
func (b *Broker) publishDelayed(msg *Message) error {
	b.mu.Lock()
	channel := b.publishCh
	b.mu.Unlock()
	if channel == nil {
		return fmt.Errorf("requeue on a disconnected broker")
	}

	delayQueue := msg.Topic + ".delay"
	arguments := amqp.Table{
		"x-message-ttl":             int32(b.cfg.RequeueDelay * 1000),
		"x-dead-letter-exchange":    b.cfg.Exchange,
		"x-dead-letter-routing-key": msg.Topic,
	}
	if _, err := channel.QueueDeclare(delayQueue, true, false, false, false, arguments); err != nil {
		return err
	}

	return channel.Publish("", delayQueue, false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     msg.MessageID,
		CorrelationId: msg.CorrelationID,
		Timestamp:     time.Now().UTC(),
		Body:          msg.Body,
	})
}

package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"famledger/internal/logger"
)

const (
	publishTimeout = 5 * time.Second
	// publishBuffer is the number of scope events queued for the
	// background publisher before new ones are dropped.
	publishBuffer = 256
)

// RoutingKey is the routing key of every scope event. Each process binds its
// own queue to it so that all of them see every event.
const RoutingKey = "scope.changed"

// Client publishes and consumes scope events over a durable direct exchange.
type Client struct {
	mu           sync.Mutex
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string

	send    func(context.Context, ScopeEvent) error
	stateMu sync.RWMutex
	closed  bool
	pending chan ScopeEvent
	done    chan struct{}
}

// NewClient dials the broker and declares the exchange, queue and binding.
func NewClient(url, exchangeName, queueName string) (*Client, error) {
	return dial(url, exchangeName, queueName)
}

// NewPublisher dials the broker and declares only the exchange. Use it in
// processes that publish events but never consume them.
func NewPublisher(url, exchangeName string) (*Client, error) {
	return dial(url, exchangeName, "")
}

func dial(url, exchangeName, queueName string) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		queueName:    queueName,
	}
	client.send = client.Publish

	if err := client.setup(); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	client.startPublisher(publishBuffer)
	return client, nil
}

// topology is the subset of *amqp091.Channel used to declare the exchange,
// queue and binding.
type topology interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp091.Table) error
}

func (c *Client) setup() error {
	return declare(c.channel, c.exchangeName, c.queueName)
}

// declare declares the exchange and, when queueName is set, the queue bound
// to RoutingKey.
func declare(ch topology, exchangeName, queueName string) error {
	err := ch.ExchangeDeclare(
		exchangeName, // name
		"direct",     // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if queueName == "" {
		return nil
	}

	_, err = ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	err = ch.QueueBind(queueName, RoutingKey, exchangeName, false, nil)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

func (c *Client) startPublisher(buffer int) {
	c.pending = make(chan ScopeEvent, buffer)
	c.done = make(chan struct{})
	go func() {
		defer close(c.done)
		log := logger.Named("amqp")
		for ev := range c.pending {
			if err := c.send(context.Background(), ev); err != nil {
				log.Warnw("failed to publish scope event",
					"error", err,
					"scope_key", ev.ScopeKey,
					"reason", ev.Reason,
				)
			}
		}
	}()
}

// Publish sends ev as a persistent JSON message.
func (c *Client) Publish(ctx context.Context, ev ScopeEvent) error {
	body, err := ev.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	err = c.channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		RoutingKey,     // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    ev.OccurredAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	logger.Named("amqp").Debugw("Published scope event",
		"scope_key", ev.ScopeKey,
		"reason", ev.Reason,
		"exchange", c.exchangeName,
	)
	return nil
}

// ScopeChanged queues ev for the background publisher and returns at once.
// Delivery is best effort: events are dropped when the queue is full or the
// client is closed, and remote caches are also bounded by their TTL.
func (c *Client) ScopeChanged(_ context.Context, ev ScopeEvent) {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.pending <- ev:
	default:
		logger.Named("amqp").Warnw("scope event dropped, publish queue full",
			"scope_key", ev.ScopeKey,
			"reason", ev.Reason,
		)
	}
}

// Consume delivers events to handler until ctx is done. Malformed messages
// are dropped; handler failures are requeued.
func (c *Client) Consume(ctx context.Context, handler func(context.Context, ScopeEvent) error) error {
	msgs, err := c.channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	log := logger.Named("amqp")
	log.Infow("Started consuming scope events", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			log.Infow("Stopping scope event consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return errors.New("message channel closed")
			}

			ev, err := ScopeEventFromJSON(delivery.Body)
			if err != nil {
				log.Errorw("Failed to unmarshal scope event", "error", err)
				_ = delivery.Nack(false, false)
				continue
			}

			if err := handler(ctx, ev); err != nil {
				log.Errorw("Failed to handle scope event", "error", err, "scope_key", ev.ScopeKey)
				_ = delivery.Nack(false, true)
				continue
			}

			_ = delivery.Ack(false)
		}
	}
}

// Close publishes the events still queued, then closes the channel and the
// connection.
func (c *Client) Close() error {
	c.stateMu.Lock()
	if !c.closed && c.pending != nil {
		close(c.pending)
	}
	c.closed = true
	c.stateMu.Unlock()
	if c.done != nil {
		<-c.done
	}

	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// ConsumeWithRetry keeps a consumer running across broker restarts. It dials
// a fresh client after connection failures, backing off exponentially.
func ConsumeWithRetry(ctx context.Context, url, exchangeName, queueName string, handler func(context.Context, ScopeEvent) error) error {
	log := logger.Named("amqp")
	for attempt := 0; ; attempt++ {
		client, err := NewClient(url, exchangeName, queueName)
		if err == nil {
			attempt = 0
			err = client.Consume(ctx, handler)
			client.Close()
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !isConnectionError(err) {
			return err
		}

		wait := exponentialBackoff(attempt)
		log.Warnw("AMQP connection lost, reconnecting", "error", err, "retry_in", wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func exponentialBackoff(attempt int) time.Duration {
	const maxBackoff = 30 * time.Second
	if attempt > 5 {
		return maxBackoff
	}
	d := time.Duration(1<<attempt) * time.Second
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"connection refused",
		"connection closed",
		"channel closed",
		"eof",
		"broken pipe",
		"use of closed network connection",
		"dial amqp",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

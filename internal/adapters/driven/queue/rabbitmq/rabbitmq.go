// Package rabbitmq hands sync requests to the sync worker over RabbitMQ.
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
	"github.com/ihssane2002/chatbot-entreprise/internal/core/ports/driven"
	"github.com/ihssane2002/chatbot-entreprise/internal/logger"
)

// Ensure Publisher implements the interface.
var _ driven.SyncQueue = (*Publisher)(nil)

// DefaultQueue is the durable queue carrying sync requests.
const DefaultQueue = "chatbot.sync"

// Dial connects to the broker and checks a channel can be opened.
func Dial(ctx context.Context, url string) (*amqp.Connection, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: amqp url is required", domain.ErrInvalidInput)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("dial rabbitmq failed: %w", err)
	}
	conn, err := amqp.DialConfig(url, amqp.Config{Dial: amqp.DefaultDial(3 * time.Second)})
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq failed: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	_ = ch.Close()
	return conn, nil
}

func declare(ch *amqp.Channel, queue string) error {
	_, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	return err
}

// Publisher publishes persistent JSON sync requests.
type Publisher struct {
	conn  *amqp.Connection
	queue string
}

// NewPublisher creates a publisher on an open connection. It owns the connection.
func NewPublisher(conn *amqp.Connection, queue string) *Publisher {
	if queue == "" {
		queue = DefaultQueue
	}
	return &Publisher{conn: conn, queue: queue}
}

// Publish enqueues a request.
func (p *Publisher) Publish(ctx context.Context, req domain.SyncRequest) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	if err := declare(ch, p.queue); err != nil {
		return fmt.Errorf("declare queue failed: %w", err)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal sync request failed: %w", err)
	}

	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    req.ID,
		Timestamp:    req.RequestedAt,
		Body:         payload,
		DeliveryMode: amqp.Persistent,
	}); err != nil {
		return fmt.Errorf("publish sync request failed: %w", err)
	}
	return nil
}

// Close closes the connection.
func (p *Publisher) Close() error {
	if p.conn.IsClosed() {
		return nil
	}
	return p.conn.Close()
}

// Handler processes one sync request.
type Handler func(ctx context.Context, req domain.SyncRequest) error

// Consumer delivers sync requests one at a time to a handler.
type Consumer struct {
	conn    *amqp.Connection
	queue   string
	handler Handler

	cancel context.CancelFunc
	wg     sync.WaitGroup
	errs   chan error
}

// NewConsumer creates a consumer on an open connection.
func NewConsumer(conn *amqp.Connection, queue string, handler Handler) *Consumer {
	if queue == "" {
		queue = DefaultQueue
	}
	return &Consumer{conn: conn, queue: queue, handler: handler, errs: make(chan error, 1)}
}

// Start declares the queue and begins consuming in the background.
func (c *Consumer) Start(ctx context.Context) error {
	if c.cancel != nil {
		return nil
	}

	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("open worker channel failed: %w", err)
	}
	if err := declare(ch, c.queue); err != nil {
		_ = ch.Close()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}
	// Syncs are serialised: one unacknowledged delivery at a time.
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		return fmt.Errorf("set worker qos failed: %w", err)
	}
	deliveries, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	workerCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					c.errs <- fmt.Errorf("rabbitmq deliveries closed")
					return
				}
				c.handle(workerCtx, d)
			}
		}
	}()
	return nil
}

// Done reports a broken delivery channel; it never fires after Close.
func (c *Consumer) Done() <-chan error {
	return c.errs
}

// Close stops consuming and waits for the in-flight request.
func (c *Consumer) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

// acknowledger is the part of amqp.Delivery used to settle a message.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	c.process(ctx, d.Body, &d)
}

// process decodes and runs one request. Undecodable messages are dropped;
// handler failures are dropped too since the next request runs a full sync.
func (c *Consumer) process(ctx context.Context, body []byte, ack acknowledger) {
	req, err := DecodeRequest(body)
	if err != nil {
		logger.Warn("worker decode sync request failed: %v", err)
		_ = ack.Nack(false, false)
		return
	}
	if err := c.handler(ctx, req); err != nil {
		logger.Error("worker sync %s failed: %v", req.ID, err)
		_ = ack.Nack(false, false)
		return
	}
	_ = ack.Ack(false)
}

// DecodeRequest parses a sync request message.
func DecodeRequest(body []byte) (domain.SyncRequest, error) {
	var req domain.SyncRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return domain.SyncRequest{}, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	return req, nil
}

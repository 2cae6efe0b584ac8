package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/abdul-hamid-achik/mediaflow/internal/logger"
	amqp "github.com/rabbitmq/amqp091-go"
)

const exchangeKindTopic = "topic"

var _ Publisher = (*AMQPPublisher)(nil)

// AMQPPublisher publishes to a durable topic exchange. A single channel is
// shared, so publishes are serialized.
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	closed   bool
}

func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open amqp channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, exchangeKindTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	return &AMQPPublisher{
		conn:     conn,
		ch:       ch,
		exchange: exchange,
	}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, e *Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPublisherClosed
	}

	err := p.ch.PublishWithContext(ctx, p.exchange, e.RoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    e.ID,
		Timestamp:    e.CreatedAt,
		Type:         e.RoutingKey,
		Headers: amqp.Table{
			"event_id": e.ID,
		},
		Body: e.Data,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", e.RoutingKey, err)
	}

	logger.FromContext(ctx).Debug("event published", "routing_key", e.RoutingKey, "event_id", e.ID, "exchange", p.exchange)
	return nil
}

func (p *AMQPPublisher) HealthCheck(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.conn.IsClosed() {
		return fmt.Errorf("amqp connection closed")
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	chErr := p.ch.Close()
	if err := p.conn.Close(); err != nil {
		return err
	}
	return chErr
}

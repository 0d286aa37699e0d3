package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	publishTimeout = 5 * time.Second
	dialAttempts   = 5
)

// channel is the part of *amqp.Channel the publisher needs.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes events to a durable topic exchange, routed by
// Kind.RoutingKey().
type AMQPPublisher struct {
	exchange string
	log      *zap.Logger

	mu     sync.RWMutex
	conn   *amqp.Connection
	ch     channel
	closed bool
}

// DialAMQP connects to url, declares exchange as a durable topic exchange,
// and returns a publisher. Connection attempts back off up to five times.
func DialAMQP(ctx context.Context, url, exchange string, log *zap.Logger) (*AMQPPublisher, error) {
	if exchange == "" {
		exchange = "bloodhub.events"
	}
	delay := time.Second
	var lastErr error
	for attempt := 1; attempt <= dialAttempts; attempt++ {
		conn, ch, err := dial(url, exchange)
		if err == nil {
			log.Info("rabbitmq connected",
				zap.String("exchange", exchange),
				zap.Int("attempt", attempt))
			return &AMQPPublisher{exchange: exchange, log: log, conn: conn, ch: ch}, nil
		}
		lastErr = err
		log.Warn("rabbitmq connection attempt failed",
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", delay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, 30*time.Second)
	}
	return nil, fmt.Errorf("connect rabbitmq after %d attempts: %w", dialAttempts, lastErr)
}

func dial(url, exchange string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("declare exchange %q: %w", exchange, err)
	}
	return conn, ch, nil
}

// Publish sends e as a persistent JSON message.
func (p *AMQPPublisher) Publish(ctx context.Context, e Event) error {
	p.mu.RLock()
	ch, closed := p.ch, p.closed
	p.mu.RUnlock()
	if closed || ch == nil {
		return errors.New("rabbitmq channel not available")
	}

	body, err := json.Marshal(e)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return ch.PublishWithContext(ctx, p.exchange, e.Kind.RoutingKey(), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    e.At,
		Type:         e.Type,
		Body:         body,
	})
}

// Close closes the channel and connection. Safe to call more than once.
func (p *AMQPPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.log.Info("rabbitmq connection closed")
}

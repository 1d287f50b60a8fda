package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPOptions configures AMQPPublisher.
type AMQPOptions struct {
	URL        string
	Exchange   string
	RoutingKey string
}

// AMQPPublisher publishes persistent JSON messages to a topic exchange.
type AMQPPublisher struct {
	conn       *amqp.Connection
	exchange   string
	routingKey string

	mu      sync.Mutex
	channel *amqp.Channel
}

// NewAMQPPublisher dials the broker and declares the exchange.
func NewAMQPPublisher(opts AMQPOptions) (*AMQPPublisher, error) {
	url := strings.TrimSpace(opts.URL)
	if url == "" {
		return nil, errors.New("amqp url is required")
	}
	exchange := strings.TrimSpace(opts.Exchange)
	if exchange == "" {
		exchange = "camrec"
	}
	routingKey := strings.TrimSpace(opts.RoutingKey)
	if routingKey == "" {
		routingKey = TypeRecordingCommitted
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open publisher channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &AMQPPublisher{conn: conn, channel: ch, exchange: exchange, routingKey: routingKey}, nil
}

// Publish sends evt to the exchange with the configured routing key.
func (p *AMQPPublisher) Publish(ctx context.Context, evt Event) error {
	body, err := encode(evt)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.PublishWithContext(ctx,
		p.exchange,
		p.routingKey,
		false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Type:         evt.Type,
			MessageId:    evt.RunID,
		},
	)
	if err != nil {
		return fmt.Errorf("amqp publish %s/%s: %w", p.exchange, p.routingKey, err)
	}
	return nil
}

// Close closes the channel and connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	chErr := p.channel.Close()
	connErr := p.conn.Close()
	return errors.Join(chErr, connErr)
}

package notification

import (
	"context"
	"errors"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPPublisher publishes persistent messages through the default exchange to a durable queue named
// after the full channel.
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	prefix   string
	declared map[string]bool
}

func NewAMQPPublisher(url string, prefix string) (*AMQPPublisher, error) {
	conn, errDial := amqp.Dial(url)
	if errDial != nil {
		return nil, errors.Join(errDial, ErrConnect)
	}

	channel, errChannel := conn.Channel()
	if errChannel != nil {
		_ = conn.Close()

		return nil, errors.Join(errChannel, ErrConnect)
	}

	return &AMQPPublisher{conn: conn, channel: channel, prefix: prefix, declared: map[string]bool{}}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, channel string, payload any) error {
	body, errBody := encode(channel, payload)
	if errBody != nil {
		return errBody
	}

	queue := Channel(p.prefix, channel)

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.declared[queue] {
		if _, errDeclare := p.channel.QueueDeclare(queue, true, false, false, false, nil); errDeclare != nil {
			return errors.Join(errDeclare, ErrPublish)
		}

		p.declared[queue] = true
	}

	if errPublish := p.channel.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}); errPublish != nil {
		return errors.Join(errPublish, ErrPublish)
	}

	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return errors.Join(p.channel.Close(), p.conn.Close())
}

// Package notification publishes best-effort events for downstream game servers, either over redis
// pub/sub or a RabbitMQ queue.
package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/furfur/central/internal/config"
)

var (
	ErrConnect = errors.New("failed to connect to notification backend")
	ErrPublish = errors.New("failed to publish notification")
	ErrEncode  = errors.New("failed to encode notification payload")
	ErrBackend = errors.New("unknown notification backend")
	ErrChannel = errors.New("notification channel must not be empty")
)

// Publisher sends a JSON encoded payload to a named channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload any) error
	Close() error
}

// Channel returns the full channel name, "<prefix>.<channel>", or channel alone when prefix is empty.
func Channel(prefix string, channel string) string {
	if prefix == "" {
		return channel
	}

	return prefix + "." + channel
}

func encode(channel string, payload any) ([]byte, error) {
	if channel == "" {
		return nil, ErrChannel
	}

	body, errJSON := json.Marshal(payload)
	if errJSON != nil {
		return nil, errors.Join(errJSON, ErrEncode)
	}

	return body, nil
}

// New creates the publisher selected by conf.Notification.Backend.
func New(ctx context.Context, conf config.Config) (Publisher, error) { //nolint:ireturn
	switch conf.Notification.Backend {
	case config.NotificationRedis:
		return NewRedisPublisher(ctx, conf.Redis, conf.Notification.Prefix)
	case config.NotificationAMQP:
		return NewAMQPPublisher(conf.AMQP.URL, conf.Notification.Prefix)
	case config.NotificationNone, "":
		return NullPublisher{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrBackend, conf.Notification.Backend)
	}
}

// NullPublisher discards every notification.
type NullPublisher struct{}

func (NullPublisher) Publish(_ context.Context, channel string, payload any) error {
	_, err := encode(channel, payload)

	return err
}

func (NullPublisher) Close() error {
	return nil
}

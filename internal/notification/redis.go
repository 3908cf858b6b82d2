package notification

import (
	"context"
	"errors"
	"time"

	"github.com/furfur/central/internal/config"
	"github.com/redis/go-redis/v9"
)

const pingTimeout = 2 * time.Second

type RedisPublisher struct {
	client *redis.Client
	prefix string
}

// NewRedisPublisher connects to redis and verifies the connection with a ping.
func NewRedisPublisher(ctx context.Context, conf config.Redis, prefix string) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Addr,
		Password: conf.Password,
		DB:       conf.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if errPing := client.Ping(pingCtx).Err(); errPing != nil {
		_ = client.Close()

		return nil, errors.Join(errPing, ErrConnect)
	}

	return &RedisPublisher{client: client, prefix: prefix}, nil
}

func (p *RedisPublisher) Publish(ctx context.Context, channel string, payload any) error {
	body, errBody := encode(channel, payload)
	if errBody != nil {
		return errBody
	}

	if errPublish := p.client.Publish(ctx, Channel(p.prefix, channel), body).Err(); errPublish != nil {
		return errors.Join(errPublish, ErrPublish)
	}

	return nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close() //nolint:wrapcheck
}

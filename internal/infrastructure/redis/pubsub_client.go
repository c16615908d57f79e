// Package redis publica los reportes de corrida en un canal Pub/Sub de Redis
// para consumidores externos (paneles, bots de guardia).
package redis

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/jhoicas/pharma-sentinel/pkg/config"
)

// PubSubClient envoltorio mínimo de Pub/Sub sobre go-redis.
type PubSubClient struct {
	rdb *redis.Client
}

// NewPubSubClient conecta y verifica con PING.
func NewPubSubClient(ctx context.Context, cfg config.RedisConfig) (*PubSubClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return &PubSubClient{rdb: rdb}, nil
}

func (c *PubSubClient) Publish(ctx context.Context, channel, message string) error {
	return c.rdb.Publish(ctx, channel, message).Err()
}

// Listen entrega cada mensaje del canal a fn hasta que ctx termine.
func (c *PubSubClient) Listen(ctx context.Context, channel string, fn func(payload string)) error {
	sub := c.rdb.Subscribe(ctx, channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			fn(msg.Payload)
		}
	}
}

func (c *PubSubClient) Close() error {
	return c.rdb.Close()
}

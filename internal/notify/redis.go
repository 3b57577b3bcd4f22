// SPDX-License-Identifier: MIT
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/streamforge/provisiond/internal/log"
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string // Redis server address (host:port)
	Password string // Redis password (optional)
	DB       int    // Redis database number
	Channel  string // pub/sub channel for playback-ready events
}

// RedisPublisher publishes playback-ready notifications on a Redis pub/sub
// channel consumed by the playback API and CDN warmers.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	logger  zerolog.Logger
}

// NewRedisPublisher connects to Redis and verifies the connection.
func NewRedisPublisher(cfg RedisConfig) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger := log.WithComponent("notify")
	logger.Info().
		Str("addr", cfg.Addr).
		Str("channel", cfg.Channel).
		Msg("connected to Redis for notifications")

	return &RedisPublisher{client: client, channel: cfg.Channel, logger: logger}, nil
}

func (p *RedisPublisher) PublishPlaybackReady(ctx context.Context, n PlaybackReady) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode playback-ready notification: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish playback-ready for %s: %w", n.Metadata.ContentID, err)
	}
	p.logger.Debug().
		Str(log.FieldContentID, n.Metadata.ContentID).
		Str(log.FieldChannelID, n.Metadata.ChannelID).
		Msg("published playback-ready notification")
	return nil
}

// Close closes the Redis connection.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// HealthCheck checks if Redis is available.
func (p *RedisPublisher) HealthCheck(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

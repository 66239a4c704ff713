package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultChannel is the redis pub/sub channel balance events travel on.
const DefaultChannel = "points:balance-changed"

// RedisPublisher publishes events to a redis channel so every node can forward them to its
// own websocket clients.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher creates a publisher on channel (DefaultChannel when empty).
func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

// Publish implements Publisher.
func (p *RedisPublisher) Publish(ctx context.Context, ev BalanceChanged) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.client.Publish(ctx, p.channel, b).Err()
}

// Relay subscribes to channel and hands every event to hub until ctx is cancelled.
func Relay(ctx context.Context, client *redis.Client, channel string, hub *Hub, logger *zap.Logger) {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	sub := client.Subscribe(ctx, channel)
	defer sub.Close()

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			var ev BalanceChanged
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				logger.Warn("relay: bad balance event", zap.Error(err))
				continue
			}
			hub.deliver(ev.UserID, []byte(msg.Payload))
		}
	}
}

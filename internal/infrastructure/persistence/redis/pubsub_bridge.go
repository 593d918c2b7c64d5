package redis

import (
	"context"

	"github.com/proam-rankings/rankings-hub/internal/infrastructure/messaging"
)

// ══════════════════════════════════════════════════════════════════════════════
// PUB/SUB BRIDGE
// Adapts the Cache's pub/sub surface to the transport interface the
// distributed event bus expects.
// ══════════════════════════════════════════════════════════════════════════════

// PubSubBridge exposes the Cache's Redis connection as an event bus
// transport. The bus serializes events itself, so string and byte payloads
// pass through to Redis untouched.
type PubSubBridge struct {
	cache *Cache
}

var _ messaging.RedisClient = (*PubSubBridge)(nil)

// NewPubSubBridge wraps an existing cache connection.
func NewPubSubBridge(cache *Cache) *PubSubBridge {
	return &PubSubBridge{cache: cache}
}

// Publish sends a message to a Redis channel. Pre-serialized payloads go
// through raw; anything else takes the cache's JSON path.
func (b *PubSubBridge) Publish(ctx context.Context, channel string, message interface{}) error {
	if channel == "" {
		return ErrCacheKeyEmpty
	}

	switch m := message.(type) {
	case string:
		return b.cache.Client().Publish(ctx, channel, m).Err()
	case []byte:
		return b.cache.Client().Publish(ctx, channel, m).Err()
	default:
		return b.cache.Publish(ctx, channel, message)
	}
}

// Subscribe opens a subscription on the given channels and streams incoming
// messages until the context is cancelled.
func (b *PubSubBridge) Subscribe(ctx context.Context, channels ...string) (<-chan messaging.RedisMessage, error) {
	sub := b.cache.Subscribe(ctx, channels...)

	// Первое сообщение подтверждает подписку; ошибка здесь значит,
	// что канал так и не открылся.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan messaging.RedisMessage, 64)
	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()

		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- messaging.RedisMessage{Channel: msg.Channel, Payload: msg.Payload}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Close is a no-op: the underlying connection belongs to the Cache and is
// closed with it.
func (b *PubSubBridge) Close() error {
	return nil
}

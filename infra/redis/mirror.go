// Package redis mirrors the latest market events into Redis.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"marketstate/infra/codec"
)

const (
	keyPrefix     = "marketstate:"
	channelPrefix = "marketstate."
)

// Mirror keeps the last event of every kind under a key and publishes it
// on a channel, so late subscribers can read the snapshot and then follow
// the channel.
//
//	key:     marketstate:<symbol>:<kind>
//	channel: marketstate.<symbol>.<kind>
type Mirror struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewMirror(client redis.UniversalClient, ttl time.Duration) *Mirror {
	return &Mirror{client: client, ttl: ttl}
}

func Key(symbol, kind string) string {
	return keyPrefix + symbol + ":" + kind
}

func Channel(symbol, kind string) string {
	return channelPrefix + symbol + "." + kind
}

func (m *Mirror) Publish(ctx context.Context, ev codec.Event) error {
	if ev.Kind == codec.KindHeartbeat {
		return nil
	}
	payload, err := codec.Encode(ev)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Kind, err)
	}

	symbol, kind := codec.Symbol(ev.Stream), ev.Kind.String()

	pipe := m.client.Pipeline()
	pipe.Set(ctx, Key(symbol, kind), payload, m.ttl)
	pipe.Publish(ctx, Channel(symbol, kind), payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}
	return nil
}

// Latest returns the mirrored payload for symbol and kind, or redis.Nil.
func (m *Mirror) Latest(ctx context.Context, symbol, kind string) ([]byte, error) {
	return m.client.Get(ctx, Key(symbol, kind)).Bytes()
}

func (m *Mirror) Close() error {
	return m.client.Close()
}

package redis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"marketstate/domain/ticker"
	"marketstate/infra/codec"
)

func TestMirrorPublish(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	m := NewMirror(client, time.Hour)
	defer m.Close()

	ctx := context.Background()
	sub := client.Subscribe(ctx, Channel("btcusdt", "ticker"))
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	ev := codec.Event{
		Kind:   codec.KindTicker,
		Stream: "btcusdt@bookTicker",
		Ticker: &ticker.Quote{UpdateID: 3, Symbol: "BTCUSDT", BestBidPrice: "50000", BestBidQty: "1", BestAskPrice: "50001", BestAskQty: "2"},
	}
	if err := m.Publish(ctx, ev); err != nil {
		t.Fatalf("publish: %v", err)
	}

	stored, err := mr.Get("marketstate:btcusdt:ticker")
	if err != nil {
		t.Fatalf("key not written: %v", err)
	}
	if !strings.Contains(stored, `"b":"50000"`) {
		t.Errorf("unexpected payload %s", stored)
	}
	if ttl := mr.TTL("marketstate:btcusdt:ticker"); ttl != time.Hour {
		t.Errorf("ttl = %s", ttl)
	}

	select {
	case msg := <-sub.Channel():
		if msg.Payload != stored {
			t.Errorf("published %s, stored %s", msg.Payload, stored)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message published")
	}

	latest, err := m.Latest(ctx, "btcusdt", "ticker")
	if err != nil || string(latest) != stored {
		t.Errorf("Latest = %s, %v", latest, err)
	}
	if _, err := m.Latest(ctx, "btcusdt", "depth"); !errors.Is(err, redis.Nil) {
		t.Errorf("expected redis.Nil, got %v", err)
	}
}

func TestMirrorSkipsHeartbeat(t *testing.T) {
	mr := miniredis.RunT(t)
	m := NewMirror(redis.NewClient(&redis.Options{Addr: mr.Addr()}), 0)
	defer m.Close()

	if err := m.Publish(context.Background(), codec.Event{Kind: codec.KindHeartbeat}); err != nil {
		t.Fatal(err)
	}
	if keys := mr.Keys(); len(keys) != 0 {
		t.Errorf("unexpected keys %v", keys)
	}
}

func TestMirrorServerDown(t *testing.T) {
	mr := miniredis.RunT(t)
	m := NewMirror(redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1}), time.Minute)
	defer m.Close()
	mr.Close()

	err := m.Publish(context.Background(), codec.Event{Kind: codec.KindTrade, Stream: "btcusdt@trade"})
	if err == nil {
		t.Error("expected error with redis down")
	}
}

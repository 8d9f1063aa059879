// Package codec decodes combined-stream frames into typed events.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"marketstate/domain/orderbook"
	"marketstate/domain/ticker"
	"marketstate/domain/trades"
)

var ErrDecode = errors.New("codec: decode failed")

type Kind uint8

const (
	KindHeartbeat Kind = iota
	KindDepth
	KindTicker
	KindTrade
)

func (k Kind) String() string {
	switch k {
	case KindHeartbeat:
		return "heartbeat"
	case KindDepth:
		return "depth"
	case KindTicker:
		return "ticker"
	case KindTrade:
		return "trade"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// DepthUpdate is a partial depth payload: a self-contained top-N snapshot.
type DepthUpdate struct {
	LastUpdateID uint64               `json:"lastUpdateId"`
	Bids         []orderbook.RawLevel `json:"bids"`
	Asks         []orderbook.RawLevel `json:"asks"`
}

// Event is one decoded frame. Exactly one payload field is set, matching
// Kind; a heartbeat carries none.
type Event struct {
	Kind   Kind
	Stream string

	Depth  *DepthUpdate
	Ticker *ticker.Quote
	Trade  *trades.Record
}

type envelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

var null = []byte("null")

// Decoder is stateless and safe for concurrent use.
type Decoder struct{}

// Decode never panics. Frames without data, such as the subscription ack,
// come back as heartbeats.
func (Decoder) Decode(raw []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Event{}, fmt.Errorf("%w: envelope: %v", ErrDecode, err)
	}

	if len(env.Data) == 0 || bytes.Equal(bytes.TrimSpace(env.Data), null) {
		return Event{Kind: KindHeartbeat, Stream: env.Stream}, nil
	}

	ev := Event{Stream: env.Stream}
	switch kind := streamKind(env.Stream); kind {
	case KindDepth:
		var d DepthUpdate
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return Event{}, fmt.Errorf("%w: depth %q: %v", ErrDecode, env.Stream, err)
		}
		ev.Kind, ev.Depth = kind, &d
	case KindTicker:
		var q ticker.Quote
		if err := json.Unmarshal(env.Data, &q); err != nil {
			return Event{}, fmt.Errorf("%w: ticker %q: %v", ErrDecode, env.Stream, err)
		}
		ev.Kind, ev.Ticker = kind, &q
	case KindTrade:
		var r trades.Record
		if err := json.Unmarshal(env.Data, &r); err != nil {
			return Event{}, fmt.Errorf("%w: trade %q: %v", ErrDecode, env.Stream, err)
		}
		ev.Kind, ev.Trade = kind, &r
	default:
		return Event{}, fmt.Errorf("%w: unknown stream %q", ErrDecode, env.Stream)
	}
	return ev, nil
}

// streamKind maps "<symbol>@<channel>" to an event kind. KindHeartbeat
// means the channel is not recognised.
func streamKind(stream string) Kind {
	_, channel, ok := strings.Cut(stream, "@")
	if !ok {
		return KindHeartbeat
	}
	switch {
	case strings.HasPrefix(channel, "depth"):
		return KindDepth
	case channel == "bookTicker":
		return KindTicker
	case channel == "trade":
		return KindTrade
	}
	return KindHeartbeat
}

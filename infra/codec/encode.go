package codec

import (
	"encoding/json"
	"strings"
)

// Message is the outbound shape of an applied event.
type Message struct {
	Kind   string `json:"kind"`
	Stream string `json:"stream"`
	Symbol string `json:"symbol"`
	Data   any    `json:"data"`
}

// Encode renders ev for downstream consumers. Payload text fields are
// kept exactly as received.
func Encode(ev Event) ([]byte, error) {
	m := Message{Kind: ev.Kind.String(), Stream: ev.Stream, Symbol: Symbol(ev.Stream)}
	switch ev.Kind {
	case KindDepth:
		m.Data = ev.Depth
	case KindTicker:
		m.Data = ev.Ticker
	case KindTrade:
		m.Data = ev.Trade
	}
	return json.Marshal(m)
}

// Symbol is the lowercase symbol part of a stream name.
func Symbol(stream string) string {
	sym, _, _ := strings.Cut(stream, "@")
	return strings.ToLower(sym)
}

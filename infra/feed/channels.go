package feed

import (
	"fmt"
	"strings"
)

// DefaultURL is the venue's combined-stream endpoint.
const DefaultURL = "wss://stream.binance.com:9443/stream"

// DepthChannel names the partial depth stream of the top depth levels,
// pushed every 100ms.
func DepthChannel(symbol string, depth int) string {
	return fmt.Sprintf("%s@depth%d@100ms", strings.ToLower(symbol), depth)
}

func BookTickerChannel(symbol string) string {
	return strings.ToLower(symbol) + "@bookTicker"
}

func TradeChannel(symbol string) string {
	return strings.ToLower(symbol) + "@trade"
}

package orderbook

import (
	"strconv"
	"testing"

	"marketstate/domain/numeric"
)

func benchLevels(n, base int) []RawLevel {
	out := make([]RawLevel, n)
	for i := range out {
		out[i] = RawLevel{strconv.Itoa(base + i), "1.25"}
	}
	return out
}

func BenchmarkApplyUpdateDepth20(b *testing.B) {
	r := NewReplica(numeric.NewParser(nil))
	bids := benchLevels(20, 1000)
	asks := benchLevels(20, 1020)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.ApplyUpdate(uint64(i), bids, asks)
	}
}

func BenchmarkFullDepth20(b *testing.B) {
	r := NewReplica(numeric.NewParser(nil))
	r.ApplyUpdate(1, benchLevels(20, 1000), benchLevels(20, 1020))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = r.Full()
	}
}

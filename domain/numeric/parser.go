// Package numeric turns price and quantity text from the wire into
// decimals.
//
// Text that does not parse is coerced to zero, matching the venue
// adapters this service replaced. Every coercion is counted so the fault
// shows up in health output instead of silently skewing derived metrics.
package numeric

import (
	"sync/atomic"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Parser is safe for concurrent use.
type Parser struct {
	logger  *zap.Logger
	coerced atomic.Uint64
}

func NewParser(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{logger: logger}
}

// Parse returns the decimal value of s, or zero when s is not a number.
func (p *Parser) Parse(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		n := p.coerced.Add(1)
		p.logger.Warn("non-numeric value coerced to zero",
			zap.String("text", s),
			zap.Uint64("coerced_total", n),
		)
		return decimal.Zero
	}
	return d
}

// Coerced returns how many values have been replaced by zero so far.
func (p *Parser) Coerced() uint64 {
	return p.coerced.Load()
}

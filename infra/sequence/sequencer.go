// Package sequence numbers journal records.
package sequence

import "sync/atomic"

// Sequencer hands out strictly increasing numbers starting after last.
// Safe for concurrent use.
type Sequencer struct {
	last atomic.Uint64
}

// New resumes after last; a fresh journal starts at 0 so the first
// number issued is 1.
func New(last uint64) *Sequencer {
	s := &Sequencer{}
	s.last.Store(last)
	return s
}

func (s *Sequencer) Next() uint64 {
	return s.last.Add(1)
}

// Last returns the most recently issued number.
func (s *Sequencer) Last() uint64 {
	return s.last.Load()
}

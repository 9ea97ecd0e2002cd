package service

import "sync/atomic"

// Sequencer hands out monotonic generation numbers. A fetch takes a number
// before it starts and may only publish its result while that number is
// still the newest one issued.
type Sequencer struct {
	n atomic.Uint64
}

// Next issues a new generation.
func (s *Sequencer) Next() uint64 {
	return s.n.Add(1)
}

// Current returns the newest generation issued.
func (s *Sequencer) Current() uint64 {
	return s.n.Load()
}

// IsCurrent reports whether gen is still the newest generation.
func (s *Sequencer) IsCurrent(gen uint64) bool {
	return s.n.Load() == gen
}

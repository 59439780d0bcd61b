package service

import "time"

// Clock supplies the current time. Injected so tests can control
// date_added and date_last_opened values.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }

// IDGenerator produces fresh unique link IDs. IDs only move forward, so an
// ID is never reused after a delete.
type IDGenerator interface {
	Next() int64
}

// Sequence is a monotonically increasing IDGenerator.
type Sequence struct {
	last int64
}

// NewSequence creates a Sequence that continues after the given ID.
func NewSequence(last int64) *Sequence {
	return &Sequence{last: last}
}

// Next returns the next ID in the sequence.
func (s *Sequence) Next() int64 {
	s.last++
	return s.last
}

package clock

import "time"

// Clock abstracts wall time so the scheduling rules (past-date, booking
// horizon, cancellation threshold) stay deterministic under test.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// Real returns a Clock backed by the system clock, in UTC.
func Real() Clock { return realClock{} }

// Fixed is a Clock pinned to a single instant. Tests mutate T directly.
type Fixed struct {
	T time.Time
}

func (f *Fixed) Now() time.Time { return f.T }

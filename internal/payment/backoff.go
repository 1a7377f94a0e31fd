package payment

import "time"

// BackoffPolicy decides how long to wait before retry attempt n (1-based)
type BackoffPolicy interface {
	NextDelay(attempt int) time.Duration
}

// FixedBackoff waits the same interval before every retry
type FixedBackoff struct {
	Interval time.Duration
}

func (b *FixedBackoff) NextDelay(attempt int) time.Duration {
	return b.Interval
}

// ExponentialBackoff doubles the base interval per attempt, capped at Max
type ExponentialBackoff struct {
	Base time.Duration
	Max  time.Duration
}

func (b *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := b.Base * time.Duration(1<<uint(attempt-1))
	if b.Max > 0 && delay > b.Max {
		return b.Max
	}
	return delay
}

// NoBackoff never waits; used in tests
type NoBackoff struct{}

func (b *NoBackoff) NextDelay(attempt int) time.Duration {
	return 0
}

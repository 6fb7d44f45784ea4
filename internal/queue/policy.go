package queue

import (
	"time"
)

// RetryPolicy is the redelivery schedule for failed scrape attempts,
// expressed as plain data so it is testable without a running queue.
type RetryPolicy struct {
	// MaxAttempts is the total delivery budget, first attempt included.
	MaxAttempts int
	// BaseDelay is the wait before the first retry.
	BaseDelay time.Duration
	// Multiplier grows the delay per subsequent retry.
	Multiplier int
}

// DefaultRetryPolicy matches the queue defaults: three attempts, two second
// base delay, doubling.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		Multiplier:  2,
	}
}

// Delay returns the backoff before redelivering a message that has already
// been attempted `attempts` times. Attempt counts below one are treated as
// one.
func (p RetryPolicy) Delay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	delay := p.BaseDelay
	for i := 1; i < attempts; i++ {
		delay *= time.Duration(p.Multiplier)
	}
	return delay
}

// Exhausted reports whether the delivery budget is spent.
func (p RetryPolicy) Exhausted(attempts int) bool {
	return attempts >= p.MaxAttempts
}

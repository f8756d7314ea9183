package gateway

import (
	"time"

	"companion/internal/provider"
)

// Retry policy: one initial try plus two retries, exponential delay starting at
// 2s. Only transient provider failures are retried.
const (
	// MaxAttempts is the total number of tries for one generation call.
	MaxAttempts = 3

	// BaseDelay is the delay before the first retry; it doubles per retry.
	BaseDelay = 2 * time.Second
)

// Decision is the outcome of the backoff policy for one failed attempt.
type Decision struct {
	Retry bool
	Delay time.Duration
}

// Decide returns the retry decision after a failure on the given zero-based
// attempt. It is a pure function of its inputs.
func Decide(attempt int, class provider.ErrorClass) Decision {
	if !class.Retryable() {
		return Decision{}
	}
	if attempt < 0 || attempt >= MaxAttempts-1 {
		return Decision{}
	}
	return Decision{
		Retry: true,
		Delay: BaseDelay << uint(attempt),
	}
}

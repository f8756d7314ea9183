package gateway

import (
	"testing"
	"time"

	"companion/internal/provider"
)

func TestDecide_ExponentialDelays(t *testing.T) {
	tests := []struct {
		attempt   int
		wantRetry bool
		wantDelay time.Duration
	}{
		{0, true, 2 * time.Second},
		{1, true, 4 * time.Second},
		{2, false, 0},
		{3, false, 0},
		{-1, false, 0},
	}

	for _, tt := range tests {
		got := Decide(tt.attempt, provider.ClassRateLimited)
		if got.Retry != tt.wantRetry || got.Delay != tt.wantDelay {
			t.Errorf("Decide(%d, rate_limited) = %+v, want retry=%v delay=%v",
				tt.attempt, got, tt.wantRetry, tt.wantDelay)
		}
	}
}

func TestDecide_RetryableClasses(t *testing.T) {
	for _, class := range []provider.ErrorClass{
		provider.ClassRateLimited,
		provider.ClassOverloaded,
		provider.ClassTimeout,
		provider.ClassUnavailable,
	} {
		if got := Decide(0, class); !got.Retry {
			t.Errorf("expected retry for class %s", class)
		}
	}
}

func TestDecide_FatalNeverRetries(t *testing.T) {
	if got := Decide(0, provider.ClassFatal); got.Retry {
		t.Error("fatal class must never retry")
	}
	if got := Decide(0, provider.ErrorClass("unknown")); got.Retry {
		t.Error("unrecognized class must never retry")
	}
}

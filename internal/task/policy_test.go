package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyRetryableDefaults(t *testing.T) {
	pol := DefaultPolicy()

	assert.True(t, pol.Retryable(KindTimeout))
	assert.True(t, pol.Retryable(KindRateLimited))
	assert.True(t, pol.Retryable(KindNetwork))

	assert.False(t, pol.Retryable(KindInvalidInput))
	assert.False(t, pol.Retryable(KindPermission))
	assert.False(t, pol.Retryable(KindNotFound))
	assert.False(t, pol.Retryable(KindUnknown))
}

func TestPolicyRetryableOverride(t *testing.T) {
	pol := Policy{RetryableKinds: []ErrorKind{KindNotFound}}

	assert.True(t, pol.Retryable(KindNotFound))
	assert.False(t, pol.Retryable(KindNetwork), "override replaces the default set")
}

func TestBackoffBoundedByMax(t *testing.T) {
	pol := Policy{BaseBackoff: 100 * time.Millisecond, MaxBackoff: time.Second}

	for attempt := 0; attempt < 20; attempt++ {
		for i := 0; i < 50; i++ {
			d := pol.Backoff(attempt)
			require.LessOrEqual(t, d, pol.MaxBackoff, "attempt %d produced delay above cap", attempt)
			require.Greater(t, d, time.Duration(0))
		}
	}
}

func TestBackoffMonotonicInExpectation(t *testing.T) {
	pol := Policy{BaseBackoff: 10 * time.Millisecond, MaxBackoff: time.Hour}

	// Jitter is uniform in [0.5, 1.5), so the sample mean over enough draws
	// tracks base * 2^attempt closely; successive means must grow.
	const samples = 500
	mean := func(attempt int) float64 {
		var total time.Duration
		for i := 0; i < samples; i++ {
			total += pol.Backoff(attempt)
		}
		return float64(total) / samples
	}

	previous := mean(0)
	for attempt := 1; attempt <= 5; attempt++ {
		current := mean(attempt)
		assert.Greater(t, current, previous, "expected backoff for attempt %d to exceed attempt %d", attempt, attempt-1)
		previous = current
	}
}

func TestBackoffJitterRange(t *testing.T) {
	pol := Policy{BaseBackoff: 100 * time.Millisecond, MaxBackoff: time.Hour}

	expected := float64(800 * time.Millisecond) // base * 2^3
	for i := 0; i < 200; i++ {
		d := float64(pol.Backoff(3))
		require.GreaterOrEqual(t, d, expected*0.5)
		require.Less(t, d, expected*1.5)
	}
}

package task

import (
	"math/rand"
	"time"
)

const (
	DefaultMaxAttempts = 3
	DefaultTimeout     = 60 * time.Second
	DefaultBaseBackoff = 500 * time.Millisecond
	DefaultMaxBackoff  = 30 * time.Second
)

// Policy is the failure policy the runtime applies around one invocation.
// Tasks themselves carry no retry logic; the policy is the only place retry
// behavior is configured.
type Policy struct {
	// MaxAttempts is the total number of executions, first try included.
	MaxAttempts int
	// Timeout bounds a single attempt. The attempt is abandoned and
	// classified as failure(timeout) when it elapses.
	Timeout time.Duration
	// BaseBackoff and MaxBackoff shape the retry delay:
	// base * 2^attempt * random(0.5, 1.5), capped at MaxBackoff.
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	// RetryableKinds lists the error kinds eligible for retry. Empty means
	// the defaults (timeout, rate_limited, network).
	RetryableKinds []ErrorKind
}

// DefaultPolicy returns the policy used when a stage supplies nothing.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		Timeout:     DefaultTimeout,
		BaseBackoff: DefaultBaseBackoff,
		MaxBackoff:  DefaultMaxBackoff,
	}
}

// Retryable reports whether a failure of the given kind may be retried
// under this policy.
func (p Policy) Retryable(kind ErrorKind) bool {
	kinds := p.RetryableKinds
	if len(kinds) == 0 {
		kinds = []ErrorKind{KindTimeout, KindRateLimited, KindNetwork}
	}
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Backoff returns the jittered delay before retrying the given zero-based
// attempt. Delays grow exponentially in expectation and are capped at
// MaxBackoff after jitter, so no single sleep exceeds the cap.
func (p Policy) Backoff(attempt int) time.Duration {
	base := p.BaseBackoff
	if base <= 0 {
		base = DefaultBaseBackoff
	}
	max := p.MaxBackoff
	if max <= 0 {
		max = DefaultMaxBackoff
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= max {
			d = max
			break
		}
	}
	jittered := time.Duration(float64(d) * (0.5 + rand.Float64()))
	if jittered > max {
		jittered = max
	}
	return jittered
}

func (p Policy) maxAttempts() int {
	if p.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return p.MaxAttempts
}

func (p Policy) timeout() time.Duration {
	if p.Timeout <= 0 {
		return DefaultTimeout
	}
	return p.Timeout
}

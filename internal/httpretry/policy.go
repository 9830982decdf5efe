// Package httpretry provides an http.RoundTripper that retries failed outbound
// requests with exponential backoff and bounded symmetric jitter.
package httpretry

import (
	"math/rand/v2"
	"net/http"
	"slices"
	"time"
)

// Policy configures retry behaviour. The zero value of each field means "use the default".
type Policy struct {
	MaxRetries      int
	InitialDelay    time.Duration
	ExponentialBase float64
	// DisableJitter turns off the random +/- component of each delay.
	DisableJitter bool
	RetryOn       []int
}

// Defaults.
const (
	DefaultMaxRetries      = 10
	DefaultInitialDelay    = 500 * time.Millisecond
	DefaultExponentialBase = 1.5
	maxJitter              = time.Second
)

// DefaultRetryOn lists request-timeout, too-early, rate-limited and 5xx gateway statuses.
var DefaultRetryOn = []int{
	http.StatusRequestTimeout,
	http.StatusTooEarly,
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

// WithDefaults returns a copy of p with unset fields filled in.
func (p Policy) WithDefaults() Policy {
	if p.MaxRetries <= 0 {
		p.MaxRetries = DefaultMaxRetries
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = DefaultInitialDelay
	}
	if p.ExponentialBase <= 0 {
		p.ExponentialBase = DefaultExponentialBase
	}
	if len(p.RetryOn) == 0 {
		p.RetryOn = slices.Clone(DefaultRetryOn)
	}
	return p
}

func (p Policy) retryable(status int) bool {
	return slices.Contains(p.RetryOn, status)
}

// exponentialBackOff implements backoff.BackOff with the policy's delay formula:
// wait = delay + uniform(-j, +j) with j = min(delay/2, 1s), then delay *= base.
type exponentialBackOff struct {
	policy Policy
	delay  time.Duration
	rand   func() float64
}

func newExponentialBackOff(p Policy) *exponentialBackOff {
	return &exponentialBackOff{policy: p, delay: p.InitialDelay, rand: rand.Float64}
}

func (b *exponentialBackOff) Reset() {
	b.delay = b.policy.InitialDelay
}

func (b *exponentialBackOff) NextBackOff() time.Duration {
	wait := b.delay
	if !b.policy.DisableJitter {
		j := min(b.delay/2, maxJitter)
		wait += time.Duration((2*b.rand() - 1) * float64(j))
	}
	b.delay = time.Duration(float64(b.delay) * b.policy.ExponentialBase)
	return wait
}

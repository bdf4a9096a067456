package pipeline

import (
	"context"

	"golang.org/x/time/rate"
)

// Throttle paces calls to a single external dependency with a token bucket.
// A nil *Throttle never waits.
type Throttle struct {
	name    string
	limiter *rate.Limiter
}

// NewThrottle builds a throttle from a rule. A non-positive interval means
// unlimited.
func NewThrottle(name string, rule ThrottleRule) *Throttle {
	burst := rule.Burst
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Inf
	if rule.Interval > 0 {
		limit = rate.Every(rule.Interval)
	}
	return &Throttle{name: name, limiter: rate.NewLimiter(limit, burst)}
}

// Wait blocks until a token is available or ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	if t == nil || t.limiter == nil {
		return nil
	}
	return t.limiter.Wait(ctx)
}

// Name returns the dependency this throttle guards.
func (t *Throttle) Name() string {
	if t == nil {
		return ""
	}
	return t.name
}

// Throttles groups one throttle per external dependency.
type Throttles struct {
	ArXiv     *Throttle
	HTML      *Throttle
	LLM       *Throttle
	WordPress *Throttle
}

// NewThrottles builds the per-dependency throttles.
func NewThrottles(cfg ThrottleConfig) Throttles {
	return Throttles{
		ArXiv:     NewThrottle("arxiv", cfg.ArXiv),
		HTML:      NewThrottle("html", cfg.HTML),
		LLM:       NewThrottle("llm", cfg.LLM),
		WordPress: NewThrottle("wordpress", cfg.WordPress),
	}
}

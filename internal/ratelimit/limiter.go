package ratelimit

import (
	"context"
	"strings"
	"time"

	"github.com/iliyamo/blog-platform/internal/config"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Permitted  bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration // zero unless the request was rejected by the limit
}

// Limiter applies per-route fixed-window rules to client keys.
type Limiter struct {
	store    CounterStore
	rules    map[string]config.RateRule
	prefix   string
	failOpen bool
	debug    bool
}

// NewLimiter builds a limiter over store using the rules and failure
// policy of cfg.
func NewLimiter(store CounterStore, cfg config.RateLimitConfig) *Limiter {
	rules := make(map[string]config.RateRule, len(cfg.Rules))
	for k, v := range cfg.Rules {
		rules[k] = v
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "rl"
	}
	return &Limiter{store: store, rules: rules, prefix: prefix, failOpen: cfg.FailOpen, debug: cfg.Debug}
}

// Debug reports whether every decision should be logged.
func (l *Limiter) Debug() bool { return l.debug }

// Allow counts one request of clientKey against route.  Routes without a
// rule are always permitted.  When the store fails, the error is returned
// together with a decision that follows the configured failure policy.
func (l *Limiter) Allow(ctx context.Context, clientKey, route string) (Decision, error) {
	rule, ok := l.rules[route]
	if !ok {
		return Decision{Permitted: true}, nil
	}
	if clientKey == "" {
		clientKey = "unknown"
	}
	key := strings.Join([]string{l.prefix, route, clientKey}, ":")

	c, err := l.store.Increment(ctx, key, rule.Window)
	if err != nil {
		return Decision{Permitted: l.failOpen, Limit: rule.MaxRequests}, err
	}

	d := Decision{Permitted: true, Limit: rule.MaxRequests}
	if c.Count > int64(rule.MaxRequests) {
		d.Permitted = false
		d.RetryAfter = c.ResetIn
		return d, nil
	}
	d.Remaining = rule.MaxRequests - int(c.Count)
	return d, nil
}

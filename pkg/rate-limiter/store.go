package ratelimiter

import (
	"context"
	"fmt"
	"time"
)

// CounterStore is the backing counter of the fixed-window limiter. An
// in-memory implementation serves tests and single-node deployments, a
// redis or mongo backed one multi-node deployments.
type CounterStore interface {
	// IncrementAndGet adds one to the counter under key, creating it with
	// the window as its lifetime when absent, and returns the count after
	// the increment together with the remaining window time. The operation
	// is atomic: concurrent callers observe distinct counts.
	IncrementAndGet(ctx context.Context, key string, window time.Duration) (count int64, remaining time.Duration, err error)
}

// LimitRule is one named fixed-window limit.
type LimitRule struct {
	Limit  int64
	Window time.Duration
}

func (r LimitRule) Validate() error {
	if r.Limit < 1 {
		return fmt.Errorf("limit must be at least 1, got %d", r.Limit)
	}
	if r.Window <= 0 {
		return fmt.Errorf("window must be positive, got %s", r.Window)
	}
	return nil
}

// Limits holds the named limits evaluated around signup and verification.
type Limits struct {
	AddressHourly LimitRule
	AddressDaily  LimitRule
	Session       LimitRule
	Resend        LimitRule
}

func DefaultLimits() Limits {
	return Limits{
		AddressHourly: LimitRule{Limit: 5, Window: time.Hour},
		AddressDaily:  LimitRule{Limit: 20, Window: 24 * time.Hour},
		Session:       LimitRule{Limit: 3, Window: 24 * time.Hour},
		Resend:        LimitRule{Limit: 3, Window: time.Hour},
	}
}

func (l Limits) Validate() error {
	for name, rule := range map[string]LimitRule{
		"address_hourly": l.AddressHourly,
		"address_daily":  l.AddressDaily,
		"session":        l.Session,
		"resend":         l.Resend,
	} {
		if err := rule.Validate(); err != nil {
			return fmt.Errorf("limit '%s': %w", name, err)
		}
	}
	return nil
}

package ratelimiter

import (
	"context"
	"log/slog"
	"time"
)

// Scope prefixes for counter keys. Identifiers appended to these are
// always hashed values, never raw addresses or emails.
const (
	SCOPE_SIGNUP_ADDRESS_HOURLY = "signup:addr:hourly"
	SCOPE_SIGNUP_ADDRESS_DAILY  = "signup:addr:daily"
	SCOPE_SIGNUP_SESSION        = "signup:session"
	SCOPE_VERIFICATION_RESEND   = "verification:resend"
)

// Result of one limit evaluation. FailedOpen marks decisions taken while
// the counter store was unreachable; those always allow.
type Result struct {
	Allowed    bool
	Count      int64
	Remaining  int64
	RetryAfter time.Duration
	FailedOpen bool
}

// Limiter evaluates the named fixed-window limits against a counter store.
// Checking a limit always increments its counter (increment, then compare).
type Limiter struct {
	store  CounterStore
	limits Limits
}

func NewLimiter(store CounterStore, limits Limits) (*Limiter, error) {
	if err := limits.Validate(); err != nil {
		return nil, err
	}
	return &Limiter{store: store, limits: limits}, nil
}

func (l *Limiter) Limits() Limits {
	return l.limits
}

// CheckAddressHourly evaluates the per-address hourly signup limit.
func (l *Limiter) CheckAddressHourly(ctx context.Context, addressHash string) Result {
	return l.check(ctx, SCOPE_SIGNUP_ADDRESS_HOURLY, addressHash, l.limits.AddressHourly)
}

// CheckAddressDaily evaluates the per-address daily signup limit.
func (l *Limiter) CheckAddressDaily(ctx context.Context, addressHash string) Result {
	return l.check(ctx, SCOPE_SIGNUP_ADDRESS_DAILY, addressHash, l.limits.AddressDaily)
}

// CheckSession evaluates the per-session signup limit.
func (l *Limiter) CheckSession(ctx context.Context, sessionID string) Result {
	return l.check(ctx, SCOPE_SIGNUP_SESSION, sessionID, l.limits.Session)
}

// CheckResend evaluates the per-account verification resend limit.
func (l *Limiter) CheckResend(ctx context.Context, accountID string) Result {
	return l.check(ctx, SCOPE_VERIFICATION_RESEND, accountID, l.limits.Resend)
}

func (l *Limiter) check(ctx context.Context, scope string, identifier string, rule LimitRule) Result {
	key := scope + ":" + identifier

	count, remainingWindow, err := l.store.IncrementAndGet(ctx, key, rule.Window)
	if err != nil {
		// An unavailable counter store must not take signups down with it.
		slog.Warn("rate limit store unavailable, failing open",
			slog.String("scope", scope),
			slog.String("error", err.Error()))
		return Result{Allowed: true, FailedOpen: true}
	}

	result := Result{
		Allowed: count <= rule.Limit,
		Count:   count,
	}
	if left := rule.Limit - count; left > 0 {
		result.Remaining = left
	}
	if !result.Allowed {
		result.RetryAfter = remainingWindow
	}
	return result
}

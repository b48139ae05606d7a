package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	attemptledger "github.com/djenkins452/dbawholelifejourney-sub000/pkg/db/attempt-ledger"
	verificationtokens "github.com/djenkins452/dbawholelifejourney-sub000/pkg/db/verification-tokens"
	"github.com/djenkins452/dbawholelifejourney-sub000/pkg/privacy"
	ratelimiter "github.com/djenkins452/dbawholelifejourney-sub000/pkg/rate-limiter"
)

type TokenStore interface {
	AddToken(token verificationtokens.VerificationToken) (verificationtokens.VerificationToken, error)
	InvalidateOlderActiveTokens(token verificationtokens.VerificationToken) (int64, error)
	ConsumeToken(token string, now time.Time) (verificationtokens.VerificationToken, error)
}

type AccountStore interface {
	MarkAccountVerified(id string, verifiedAt time.Time) error
}

type AttemptLedger interface {
	MarkCompletedByAccountID(accountID string, completedAt time.Time) error
}

// EmailSender dispatches the verification link. Implementations build the
// full link from the token.
type EmailSender interface {
	SendVerificationEmail(to string, token string) error
}

type ResendLimiter interface {
	CheckResend(ctx context.Context, accountID string) ratelimiter.Result
}

// TokenService owns the email verification lifecycle: issuing single-use
// links, consuming them exactly once, and gating resends.
type TokenService struct {
	tokenStore   TokenStore
	accountStore AccountStore
	ledger       AttemptLedger
	sender       EmailSender
	limiter      ResendLimiter
	tokenTTL     time.Duration
}

func NewTokenService(
	tokenStore TokenStore,
	accountStore AccountStore,
	ledger AttemptLedger,
	sender EmailSender,
	limiter ResendLimiter,
	tokenTTL time.Duration,
) *TokenService {
	if tokenTTL <= 0 {
		tokenTTL = DEFAULT_TOKEN_TTL
	}
	return &TokenService{
		tokenStore:   tokenStore,
		accountStore: accountStore,
		ledger:       ledger,
		sender:       sender,
		limiter:      limiter,
		tokenTTL:     tokenTTL,
	}
}

// Issue stores a fresh token, revokes every earlier link for the account
// and dispatches the new one. The insert happens first: when two issues
// race, each revokes everything older than its own insert, so at most one
// link of an account stays usable. A failed email dispatch is logged but
// does not undo the newly stored token; a resend stays possible.
func (s *TokenService) Issue(accountID string, email string) error {
	tokenStr, err := GenerateVerificationTokenString()
	if err != nil {
		return fmt.Errorf("failed to generate token string: %w", err)
	}

	now := time.Now()
	stored, err := s.tokenStore.AddToken(verificationtokens.VerificationToken{
		AccountID: accountID,
		Token:     tokenStr,
		CreatedAt: now,
		ExpiresAt: now.Add(s.tokenTTL),
	})
	if err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}

	if _, err := s.tokenStore.InvalidateOlderActiveTokens(stored); err != nil {
		return fmt.Errorf("failed to invalidate earlier tokens: %w", err)
	}

	if s.sender == nil {
		slog.Warn("no email sender configured, verification link not dispatched")
		return nil
	}
	if err := s.sender.SendVerificationEmail(email, tokenStr); err != nil {
		slog.Error("failed to send verification email",
			slog.String("email", privacy.BlurEmailAddress(email)),
			slog.String("error", err.Error()))
		return nil
	}
	slog.Debug("verification email sent", slog.String("email", privacy.BlurEmailAddress(email)))
	return nil
}

// Consume redeems the token, marks the owning account verified and closes
// the signup attempt. The returned error distinguishes why a token was
// rejected; callers present all rejections identically.
func (s *TokenService) Consume(tokenStr string) (accountID string, err error) {
	now := time.Now()
	consumed, err := s.tokenStore.ConsumeToken(tokenStr, now)
	if err != nil {
		return "", err
	}

	if err := s.accountStore.MarkAccountVerified(consumed.AccountID, now); err != nil {
		return "", fmt.Errorf("failed to mark account verified: %w", err)
	}

	if s.ledger != nil {
		err := s.ledger.MarkCompletedByAccountID(consumed.AccountID, now)
		if err != nil && !errors.Is(err, attemptledger.ErrAttemptNotFound) {
			slog.Warn("could not close signup attempt",
				slog.String("accountID", consumed.AccountID),
				slog.String("error", err.Error()))
		}
	}
	return consumed.AccountID, nil
}

// CanResend reports whether the account may receive another verification
// email right now. Each call counts against the resend limit.
func (s *TokenService) CanResend(ctx context.Context, accountID string) bool {
	if s.limiter == nil {
		return true
	}
	return s.limiter.CheckResend(ctx, accountID).Allowed
}

package verification

import (
	"context"
	"encoding/base32"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	verificationtokens "github.com/djenkins452/dbawholelifejourney-sub000/pkg/db/verification-tokens"
	ratelimiter "github.com/djenkins452/dbawholelifejourney-sub000/pkg/rate-limiter"
)

type mockTokenStore struct {
	mu       sync.Mutex
	tokens   map[string]*verificationtokens.VerificationToken
	order    map[string]int
	inserts  int
	failWith error
}

func newMockTokenStore() *mockTokenStore {
	return &mockTokenStore{
		tokens: map[string]*verificationtokens.VerificationToken{},
		order:  map[string]int{},
	}
}

func (s *mockTokenStore) AddToken(token verificationtokens.VerificationToken) (verificationtokens.VerificationToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return token, s.failWith
	}
	if _, exists := s.tokens[token.Token]; exists {
		return token, errors.New("duplicate token")
	}
	stored := token
	s.tokens[token.Token] = &stored
	s.inserts += 1
	s.order[token.Token] = s.inserts
	return token, nil
}

func (s *mockTokenStore) InvalidateOlderActiveTokens(token verificationtokens.VerificationToken) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return 0, s.failWith
	}
	count := int64(0)
	for _, stored := range s.tokens {
		if stored.AccountID == token.AccountID &&
			s.order[stored.Token] < s.order[token.Token] &&
			!stored.Invalidated && stored.ConsumedAt == nil {
			stored.Invalidated = true
			count += 1
		}
	}
	return count, nil
}

func (s *mockTokenStore) ConsumeToken(token string, now time.Time) (verificationtokens.VerificationToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.tokens[token]
	if !ok {
		return verificationtokens.VerificationToken{}, verificationtokens.ErrTokenNotFound
	}
	if stored.Invalidated {
		return verificationtokens.VerificationToken{}, verificationtokens.ErrTokenInvalidated
	}
	if stored.ConsumedAt != nil {
		return verificationtokens.VerificationToken{}, verificationtokens.ErrTokenConsumed
	}
	if !stored.ExpiresAt.After(now) {
		return verificationtokens.VerificationToken{}, verificationtokens.ErrTokenExpired
	}
	consumedAt := now
	stored.ConsumedAt = &consumedAt
	return *stored, nil
}

func (s *mockTokenStore) activeTokensFor(accountID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	active := []string{}
	for _, token := range s.tokens {
		if token.AccountID == accountID && !token.Invalidated && token.ConsumedAt == nil {
			active = append(active, token.Token)
		}
	}
	return active
}

// laggyTokenStore adds a round-trip delay per store call so concurrent
// issues interleave instead of running back to back.
type laggyTokenStore struct {
	*mockTokenStore
}

func (s *laggyTokenStore) AddToken(token verificationtokens.VerificationToken) (verificationtokens.VerificationToken, error) {
	time.Sleep(time.Millisecond)
	return s.mockTokenStore.AddToken(token)
}

func (s *laggyTokenStore) InvalidateOlderActiveTokens(token verificationtokens.VerificationToken) (int64, error) {
	time.Sleep(time.Millisecond)
	return s.mockTokenStore.InvalidateOlderActiveTokens(token)
}

type mockAccountStore struct {
	mu       sync.Mutex
	verified map[string]time.Time
	failWith error
}

func newMockAccountStore() *mockAccountStore {
	return &mockAccountStore{verified: map[string]time.Time{}}
}

func (s *mockAccountStore) MarkAccountVerified(id string, verifiedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.verified[id] = verifiedAt
	return nil
}

type mockLedger struct {
	mu        sync.Mutex
	completed []string
}

func (l *mockLedger) MarkCompletedByAccountID(accountID string, completedAt time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.completed = append(l.completed, accountID)
	return nil
}

type mockSender struct {
	mu       sync.Mutex
	sent     []string
	failWith error
}

func (s *mockSender) SendVerificationEmail(to string, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.sent = append(s.sent, token)
	return nil
}

type mockResendLimiter struct {
	allowed bool
}

func (l *mockResendLimiter) CheckResend(ctx context.Context, accountID string) ratelimiter.Result {
	return ratelimiter.Result{Allowed: l.allowed}
}

func TestGenerateVerificationTokenString(t *testing.T) {
	t.Run("token is long enough and url safe", func(t *testing.T) {
		token, err := GenerateVerificationTokenString()
		if err != nil {
			t.Errorf("unexpected error: %v", err)
			return
		}

		decoded, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.ToUpper(token))
		if err != nil {
			t.Errorf("token is not valid base32: %v", err)
			return
		}
		if len(decoded) < 38 {
			t.Errorf("token carries %d bytes, want at least 38", len(decoded))
		}
		if token != strings.ToLower(token) {
			t.Errorf("token should be lowercase: %s", token)
		}
		if strings.ContainsAny(token, "/+= ") {
			t.Errorf("token contains unsafe characters: %s", token)
		}
	})

	t.Run("tokens do not repeat", func(t *testing.T) {
		seen := map[string]struct{}{}
		for i := 0; i < 200; i++ {
			token, err := GenerateVerificationTokenString()
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if _, exists := seen[token]; exists {
				t.Errorf("token repeated after %d draws", i)
				return
			}
			seen[token] = struct{}{}
		}
	})
}

func TestIssue(t *testing.T) {
	t.Run("stores a fresh token and dispatches it", func(t *testing.T) {
		store := newMockTokenStore()
		sender := &mockSender{}
		service := NewTokenService(store, newMockAccountStore(), &mockLedger{}, sender, nil, time.Hour)

		if err := service.Issue("acc1", "user@example.com"); err != nil {
			t.Errorf("unexpected error: %v", err)
			return
		}

		active := store.activeTokensFor("acc1")
		if len(active) != 1 {
			t.Errorf("expected one active token, got %d", len(active))
			return
		}
		if len(sender.sent) != 1 || sender.sent[0] != active[0] {
			t.Errorf("dispatched token does not match stored token")
		}
	})

	t.Run("issuing again invalidates the earlier link", func(t *testing.T) {
		store := newMockTokenStore()
		service := NewTokenService(store, newMockAccountStore(), &mockLedger{}, &mockSender{}, nil, time.Hour)

		if err := service.Issue("acc1", "user@example.com"); err != nil {
			t.Errorf("unexpected error: %v", err)
			return
		}
		first := store.activeTokensFor("acc1")[0]

		if err := service.Issue("acc1", "user@example.com"); err != nil {
			t.Errorf("unexpected error: %v", err)
			return
		}

		active := store.activeTokensFor("acc1")
		if len(active) != 1 {
			t.Errorf("expected one active token, got %d", len(active))
			return
		}
		if active[0] == first {
			t.Errorf("earlier token should have been invalidated")
		}
		if _, err := store.ConsumeToken(first, time.Now()); !errors.Is(err, verificationtokens.ErrTokenInvalidated) {
			t.Errorf("expected invalidated error for earlier token, got %v", err)
		}
	})

	t.Run("concurrent issues leave one usable link", func(t *testing.T) {
		store := newMockTokenStore()
		service := NewTokenService(&laggyTokenStore{store}, newMockAccountStore(), &mockLedger{}, &mockSender{}, nil, time.Hour)

		const issues = 4
		var wg sync.WaitGroup
		for i := 0; i < issues; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := service.Issue("acc1", "user@example.com"); err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		if active := store.activeTokensFor("acc1"); len(active) != 1 {
			t.Errorf("expected exactly one active token, got %d", len(active))
		}
	})

	t.Run("send failure does not fail the issue", func(t *testing.T) {
		store := newMockTokenStore()
		sender := &mockSender{failWith: errors.New("smtp down")}
		service := NewTokenService(store, newMockAccountStore(), &mockLedger{}, sender, nil, time.Hour)

		if err := service.Issue("acc1", "user@example.com"); err != nil {
			t.Errorf("unexpected error: %v", err)
			return
		}
		if len(store.activeTokensFor("acc1")) != 1 {
			t.Errorf("token should be stored even when the email could not be sent")
		}
	})

	t.Run("store failure surfaces", func(t *testing.T) {
		store := newMockTokenStore()
		store.failWith = errors.New("db down")
		service := NewTokenService(store, newMockAccountStore(), &mockLedger{}, &mockSender{}, nil, time.Hour)

		if err := service.Issue("acc1", "user@example.com"); err == nil {
			t.Errorf("expected error when the store is unavailable")
		}
	})
}

func TestConsume(t *testing.T) {
	prepToken := func(store *mockTokenStore, accountID string, expiresAt time.Time) string {
		tokenStr, err := GenerateVerificationTokenString()
		if err != nil {
			panic(err)
		}
		_, err = store.AddToken(verificationtokens.VerificationToken{
			AccountID: accountID,
			Token:     tokenStr,
			CreatedAt: time.Now(),
			ExpiresAt: expiresAt,
		})
		if err != nil {
			panic(err)
		}
		return tokenStr
	}

	t.Run("valid token verifies the account and closes the attempt", func(t *testing.T) {
		store := newMockTokenStore()
		accountStore := newMockAccountStore()
		ledger := &mockLedger{}
		service := NewTokenService(store, accountStore, ledger, &mockSender{}, nil, time.Hour)

		tokenStr := prepToken(store, "acc1", time.Now().Add(time.Hour))

		accountID, err := service.Consume(tokenStr)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
			return
		}
		if accountID != "acc1" {
			t.Errorf("unexpected account id: %s", accountID)
		}
		if _, ok := accountStore.verified["acc1"]; !ok {
			t.Errorf("account should be marked verified")
		}
		if len(ledger.completed) != 1 || ledger.completed[0] != "acc1" {
			t.Errorf("attempt should be marked completed")
		}
	})

	t.Run("unknown token", func(t *testing.T) {
		service := NewTokenService(newMockTokenStore(), newMockAccountStore(), &mockLedger{}, &mockSender{}, nil, time.Hour)

		if _, err := service.Consume("nosuchtoken"); !errors.Is(err, verificationtokens.ErrTokenNotFound) {
			t.Errorf("expected not found error, got %v", err)
		}
	})

	t.Run("expired token", func(t *testing.T) {
		store := newMockTokenStore()
		service := NewTokenService(store, newMockAccountStore(), &mockLedger{}, &mockSender{}, nil, time.Hour)

		tokenStr := prepToken(store, "acc1", time.Now().Add(-time.Minute))

		if _, err := service.Consume(tokenStr); !errors.Is(err, verificationtokens.ErrTokenExpired) {
			t.Errorf("expected expired error, got %v", err)
		}
	})

	t.Run("second use is rejected", func(t *testing.T) {
		store := newMockTokenStore()
		service := NewTokenService(store, newMockAccountStore(), &mockLedger{}, &mockSender{}, nil, time.Hour)

		tokenStr := prepToken(store, "acc1", time.Now().Add(time.Hour))

		if _, err := service.Consume(tokenStr); err != nil {
			t.Errorf("unexpected error: %v", err)
			return
		}
		if _, err := service.Consume(tokenStr); !errors.Is(err, verificationtokens.ErrTokenConsumed) {
			t.Errorf("expected consumed error, got %v", err)
		}
	})

	t.Run("concurrent consumes succeed exactly once", func(t *testing.T) {
		store := newMockTokenStore()
		service := NewTokenService(store, newMockAccountStore(), &mockLedger{}, &mockSender{}, nil, time.Hour)

		tokenStr := prepToken(store, "acc1", time.Now().Add(time.Hour))

		const attempts = 20
		var wg sync.WaitGroup
		successes := make(chan struct{}, attempts)
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := service.Consume(tokenStr); err == nil {
					successes <- struct{}{}
				}
			}()
		}
		wg.Wait()
		close(successes)

		count := 0
		for range successes {
			count += 1
		}
		if count != 1 {
			t.Errorf("expected exactly one successful consume, got %d", count)
		}
	})
}

func TestCanResend(t *testing.T) {
	t.Run("within the limit", func(t *testing.T) {
		service := NewTokenService(newMockTokenStore(), newMockAccountStore(), &mockLedger{}, &mockSender{}, &mockResendLimiter{allowed: true}, time.Hour)
		if !service.CanResend(context.Background(), "acc1") {
			t.Errorf("resend should be allowed")
		}
	})

	t.Run("over the limit", func(t *testing.T) {
		service := NewTokenService(newMockTokenStore(), newMockAccountStore(), &mockLedger{}, &mockSender{}, &mockResendLimiter{allowed: false}, time.Hour)
		if service.CanResend(context.Background(), "acc1") {
			t.Errorf("resend should be denied")
		}
	})

	t.Run("without a limiter", func(t *testing.T) {
		service := NewTokenService(newMockTokenStore(), newMockAccountStore(), &mockLedger{}, &mockSender{}, nil, time.Hour)
		if !service.CanResend(context.Background(), "acc1") {
			t.Errorf("resend should be allowed when no limiter is set")
		}
	})
}

package risk

import (
	"context"
	"time"

	attemptledger "github.com/djenkins452/dbawholelifejourney-sub000/pkg/db/attempt-ledger"
	"github.com/djenkins452/dbawholelifejourney-sub000/pkg/oracles"
	ratelimiter "github.com/djenkins452/dbawholelifejourney-sub000/pkg/rate-limiter"
	"github.com/djenkins452/dbawholelifejourney-sub000/pkg/scoring"
)

// SignupInput is one evaluation request, assembled by the API layer from
// the request payload and the connection.
type SignupInput struct {
	Email          string
	RemoteAddress  string
	SessionID      string
	ChallengeToken string
	HoneypotValue  string
	Telemetry      *scoring.BehavioralTelemetry
	Fingerprint    *FingerprintPayload
}

// FingerprintPayload carries the client-reported device components. Hash
// is the client's own digest of them; when absent, a server-side digest
// of the components is used instead.
type FingerprintPayload struct {
	Components map[string]interface{} `json:"components"`
	Hash       string                 `json:"hash"`
}

// Decision is the complete outcome of one evaluation. Score is nil when a
// gate hit or a hard rate limit ended the evaluation before scoring.
type Decision struct {
	Action      scoring.EnforcementAction
	Level       scoring.RiskLevel
	Score       *scoring.RiskScore
	BlockReason string
	RetryAfter  time.Duration

	EmailHash       string
	AddressHash     string
	FingerprintHash string
}

func (d Decision) IsBlocked() bool {
	return d.Action == scoring.ActionBlock
}

type BotScoreProvider interface {
	FetchScore(challengeToken string, remoteAddress string) (*oracles.BotScoreResult, error)
}

type AddressReputationProvider interface {
	FetchReputation(address string) (*oracles.IPReputationResult, error)
}

type DomainClassifier interface {
	ClassifyEmail(ctx context.Context, email string) scoring.DomainClass
}

type FingerprintHistory interface {
	CountDistinctAccountsByFingerprint(fingerprintHash string) (int, error)
}

type AttemptRecorder interface {
	AddAttempt(attempt attemptledger.SignupAttempt) (attemptledger.SignupAttempt, error)
}

type SignupLimiter interface {
	CheckAddressHourly(ctx context.Context, addressHash string) ratelimiter.Result
	CheckAddressDaily(ctx context.Context, addressHash string) ratelimiter.Result
	CheckSession(ctx context.Context, sessionID string) ratelimiter.Result
}

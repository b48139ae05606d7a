package attemptledger

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AttemptStatus string

const (
	StatusPending    AttemptStatus = "pending"
	StatusAllowed    AttemptStatus = "allowed"
	StatusChallenged AttemptStatus = "challenged"
	StatusBlocked    AttemptStatus = "blocked"
	StatusCompleted  AttemptStatus = "completed"
	StatusAbandoned  AttemptStatus = "abandoned"
)

// Block reasons stored on blocked attempts.
const (
	BLOCK_REASON_BLOCKLIST      = "blocklist"
	BLOCK_REASON_HONEYPOT       = "honeypot"
	BLOCK_REASON_MULTI_ACCOUNT  = "multi_account"
	BLOCK_REASON_RATE_LIMIT     = "rate_limit"
	BLOCK_REASON_RISK_SCORE     = "risk_score"
	BLOCK_REASON_INTERNAL_ERROR = "internal_error"
)

// SignupAttempt is one audit record of the decision flow. It carries only
// hashed identifiers; raw emails, addresses and passwords never reach the
// ledger. Sub-scores are absent for attempts the gate or a rate limit
// stopped before scoring.
type SignupAttempt struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	EmailHash       string             `bson:"emailHash" json:"emailHash"`
	AddressHash     string             `bson:"addressHash" json:"addressHash"`
	FingerprintHash string             `bson:"fingerprintHash,omitempty" json:"fingerprintHash,omitempty"`
	SubScores       map[string]float64 `bson:"subScores,omitempty" json:"subScores,omitempty"`
	DegradedSignals []string           `bson:"degradedSignals,omitempty" json:"degradedSignals,omitempty"`
	TotalScore      *float64           `bson:"totalScore,omitempty" json:"totalScore,omitempty"`
	RiskLevel       string             `bson:"riskLevel,omitempty" json:"riskLevel,omitempty"`
	EnforcedAction  string             `bson:"enforcedAction,omitempty" json:"enforcedAction,omitempty"`
	Status          AttemptStatus      `bson:"status" json:"status"`
	BlockReason     string             `bson:"blockReason,omitempty" json:"blockReason,omitempty"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	CompletedAt     *time.Time         `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	AccountID       string             `bson:"accountID,omitempty" json:"accountID,omitempty"`
}

package verificationtokens

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrTokenNotFound    = errors.New("verification token not found")
	ErrTokenExpired     = errors.New("verification token expired")
	ErrTokenConsumed    = errors.New("verification token already consumed")
	ErrTokenInvalidated = errors.New("verification token invalidated")
)

// VerificationToken is one emailed verification link. At most one token
// per account is valid at a time; issuing a new one invalidates the rest.
type VerificationToken struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	AccountID   string             `bson:"accountID" json:"accountID"`
	Token       string             `bson:"token" json:"token"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	ExpiresAt   time.Time          `bson:"expiresAt" json:"expiresAt"`
	ConsumedAt  *time.Time         `bson:"consumedAt,omitempty" json:"consumedAt,omitempty"`
	Invalidated bool               `bson:"invalidated" json:"invalidated"`
}

func (t VerificationToken) IsExpired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

func (t VerificationToken) IsConsumed() bool {
	return t.ConsumedAt != nil
}

func (t VerificationToken) IsValid(now time.Time) bool {
	return !t.Invalidated && !t.IsConsumed() && !t.IsExpired(now)
}

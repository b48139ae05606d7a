package accounts

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountExists   = errors.New("account already exists")
)

// Account is the minimal registry entry the signup flow needs. Profile
// data lives outside this subsystem; the email address is only kept as a
// peppered hash.
type Account struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	EmailHash            string             `bson:"emailHash" json:"emailHash"`
	CreatedAt            time.Time          `bson:"createdAt" json:"createdAt"`
	VerifiedAt           *time.Time         `bson:"verifiedAt,omitempty" json:"verifiedAt,omitempty"`
	VerificationRequired bool               `bson:"verificationRequired" json:"verificationRequired"`
}

func (a Account) IsVerified() bool {
	return a.VerifiedAt != nil
}

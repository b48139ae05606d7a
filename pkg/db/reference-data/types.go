package referencedata

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type BlockEntryKind string

const (
	KindAddress   BlockEntryKind = "address"
	KindCIDR      BlockEntryKind = "cidr"
	KindEmailHash BlockEntryKind = "email_hash"
)

// BlockEntry is one administratively maintained deny-list row.
type BlockEntry struct {
	ID      primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Kind    BlockEntryKind     `bson:"kind" json:"kind"`
	Value   string             `bson:"value" json:"value"`
	Note    string             `bson:"note,omitempty" json:"note,omitempty"`
	AddedAt time.Time          `bson:"addedAt" json:"addedAt"`
}

type DisposableDomainEntry struct {
	ID      primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Domain  string             `bson:"domain" json:"domain"`
	AddedAt time.Time          `bson:"addedAt" json:"addedAt"`
}

// Snapshot is the immutable in-memory view the decision path reads.
// A fresh one replaces the old wholesale on refresh.
type Snapshot struct {
	Addresses         []string
	CIDRs             []string
	EmailHashes       []string
	DisposableDomains []string
	LoadedAt          time.Time
}

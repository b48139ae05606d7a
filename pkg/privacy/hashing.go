package privacy

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
)

const SHORT_HASH_LENGTH = 12

// Hasher derives stable keyed digests for personal identifiers, so that raw
// email addresses and network addresses never reach storage or log output.
type Hasher struct {
	pepper []byte
}

func NewHasher(pepper string) Hasher {
	if pepper == "" {
		slog.Error("identifier hash pepper not set")
		panic("identifier hash pepper not set")
	}
	return Hasher{pepper: []byte(pepper)}
}

func (h Hasher) hash(value string) string {
	mac := hmac.New(sha256.New, h.pepper)
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}

// HashEmail normalizes the address first, so equivalent spellings map to the same digest.
func (h Hasher) HashEmail(email string) string {
	return h.hash(SanitizeEmail(email))
}

func (h Hasher) HashAddress(address string) string {
	return h.hash(strings.TrimSpace(address))
}

func (h Hasher) HashFingerprint(fingerprint string) string {
	return h.hash(strings.TrimSpace(fingerprint))
}

func (h Hasher) HashSessionID(sessionID string) string {
	return h.hash(strings.TrimSpace(sessionID))
}

// ShortHash truncates a digest for audit payloads and log attributes.
func ShortHash(hash string) string {
	if len(hash) <= SHORT_HASH_LENGTH {
		return hash
	}
	return hash[:SHORT_HASH_LENGTH]
}

package verification

import (
	"crypto/rand"
	"strings"
	"time"

	b32 "encoding/base32"
)

const (
	DEFAULT_TOKEN_TTL = 24 * time.Hour

	// number of unpredictable bytes in a token, after the timestamp prefix
	tokenRandomBytes = 32
)

// GenerateVerificationTokenString returns an unguessable, URL safe token
// string: a 6 byte timestamp prefix followed by random bytes, base32
// encoded in lowercase.
func GenerateVerificationTokenString() (string, error) {
	t := time.Now()
	ms := uint64(t.Unix())*1000 + uint64(t.Nanosecond()/int(time.Millisecond))

	token := make([]byte, 6+tokenRandomBytes)
	token[0] = byte(ms >> 40)
	token[1] = byte(ms >> 32)
	token[2] = byte(ms >> 24)
	token[3] = byte(ms >> 16)
	token[4] = byte(ms >> 8)
	token[5] = byte(ms)

	_, err := rand.Read(token[6:])
	if err != nil {
		return "", err
	}

	tokenStr := b32.StdEncoding.WithPadding(b32.NoPadding).EncodeToString(token)
	tokenStr = strings.ToLower(tokenStr)
	return tokenStr, nil
}

func GetExpirationTime(validityPeriod time.Duration) time.Time {
	return time.Now().Add(validityPeriod)
}

package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
)

// Signer derives per-request HMAC-SHA256 signatures from a shared secret.
// Binding each signature to a timestamp lets the server recompute and compare
// without the secret ever crossing the wire, and rejects stale replays.
type Signer struct {
	secret []byte
}

// NewSigner creates a Signer keyed by the shared mobile secret.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign computes the HMAC-SHA256 of the decimal string representation of
// timestampMillis and returns it base64-encoded.
func (s *Signer) Sign(timestampMillis int64) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(strconv.FormatInt(timestampMillis, 10)))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

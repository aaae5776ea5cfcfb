package subscription

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignatureVerifier authenticates raw payment-gateway callbacks before their
// payload is trusted.
type SignatureVerifier interface {
	Verify(payload []byte, signature string) bool
}

// HMACVerifier checks a hex-encoded HMAC-SHA256 signature over the raw
// request body, computed with the secret shared with the gateway.
type HMACVerifier struct {
	secret []byte
}

// NewHMACVerifier constructs an HMACVerifier.
func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret)}
}

// Verify reports whether signature matches payload. Comparison is constant
// time.
func (v *HMACVerifier) Verify(payload []byte, signature string) bool {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

package whatsapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// ValidateSignature checks an X-Hub-Signature-256 style header against the
// HMAC-SHA256 of the raw body keyed by appSecret. It never errors: any missing
// or malformed input yields false, and the comparison is constant-time.
func ValidateSignature(rawBody []byte, signatureHeader, appSecret string) bool {
	if signatureHeader == "" || appSecret == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(rawBody)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signatureHeader))
}

package whatsapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestValidateSignature(t *testing.T) {
	body := []byte(`{"entry":[{"changes":[]}]}`)
	secret := "app-secret"

	t.Run("valid signature", func(t *testing.T) {
		assert.True(t, ValidateSignature(body, sign(body, secret), secret))
	})

	t.Run("single byte mutation fails", func(t *testing.T) {
		header := sign(body, secret)
		mutated := append([]byte{}, body...)
		mutated[0] = 'X'
		assert.False(t, ValidateSignature(mutated, header, secret))
	})

	t.Run("wrong secret fails", func(t *testing.T) {
		assert.False(t, ValidateSignature(body, sign(body, "other"), secret))
	})

	t.Run("missing header fails without panicking", func(t *testing.T) {
		assert.False(t, ValidateSignature(body, "", secret))
	})

	t.Run("missing secret fails without panicking", func(t *testing.T) {
		assert.False(t, ValidateSignature(body, sign(body, secret), ""))
	})

	t.Run("garbage header fails", func(t *testing.T) {
		assert.False(t, ValidateSignature(body, "sha256=not-hex", secret))
		assert.False(t, ValidateSignature(body, "md5=whatever", secret))
	})
}

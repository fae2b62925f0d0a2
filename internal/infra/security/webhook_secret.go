package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// WebhookSecrets derives the per-bot secret token Telegram echoes in the
// X-Telegram-Bot-Api-Secret-Token header from one master key.
type WebhookSecrets struct {
	key []byte
}

func NewWebhookSecrets(master string) *WebhookSecrets {
	return &WebhookSecrets{key: []byte(master)}
}

// For returns the hex HMAC-SHA256 of botID: 64 characters from Telegram's allowed set.
func (s *WebhookSecrets) For(botID string) string {
	mac := hmac.New(sha256.New, s.key)
	_, _ = mac.Write([]byte(botID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether got is the secret for botID.
func (s *WebhookSecrets) Verify(botID, got string) bool {
	return subtle.ConstantTimeCompare([]byte(s.For(botID)), []byte(got)) == 1
}

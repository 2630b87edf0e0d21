package core

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

// HMACSigner signs webhook bodies with HMAC-SHA256 and hex encoding. The
// signature always covers the exact wire bytes; receivers must verify
// against the raw request body before parsing it.
type HMACSigner struct{}

func (HMACSigner) Sign(secret string, payload []byte) (string, error) {
	trimmed := strings.TrimSpace(secret)
	if trimmed == "" {
		return "", fmt.Errorf("core: signing secret is required")
	}
	mac := hmac.New(sha256.New, []byte(trimmed))
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

func (s HMACSigner) Verify(secret string, payload []byte, signature string) bool {
	expected, err := s.Sign(secret, payload)
	if err != nil {
		return false
	}
	provided, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	decoded, err := hex.DecodeString(expected)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(provided, decoded) == 1
}

var _ WebhookSigner = HMACSigner{}

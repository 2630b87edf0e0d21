package core

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func TestHMACSignerSign(t *testing.T) {
	signer := HMACSigner{}
	payload := []byte(`{"id":"evt-1","eventType":"payment.created"}`)

	signature, err := signer.Sign("super-secret", payload)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	mac := hmac.New(sha256.New, []byte("super-secret"))
	mac.Write(payload)
	if want := hex.EncodeToString(mac.Sum(nil)); signature != want {
		t.Fatalf("signature = %s, want %s", signature, want)
	}
}

func TestHMACSignerRequiresSecret(t *testing.T) {
	if _, err := (HMACSigner{}).Sign("  ", []byte("payload")); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestHMACSignerVerify(t *testing.T) {
	signer := HMACSigner{}
	payload := []byte(`{"id":"evt-1"}`)

	signature, err := signer.Sign("secret-key", payload)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !signer.Verify("secret-key", payload, signature) {
		t.Fatal("valid signature should verify")
	}
	if signer.Verify("other-key", payload, signature) {
		t.Fatal("wrong secret should not verify")
	}
	if signer.Verify("secret-key", []byte(`{"id":"evt-2"}`), signature) {
		t.Fatal("tampered payload should not verify")
	}
	if signer.Verify("secret-key", payload, "not-hex") {
		t.Fatal("malformed signature should not verify")
	}
}

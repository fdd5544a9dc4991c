package engine

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"
)

func TestSign(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		secret  string
	}{
		{
			name:    "basic payload",
			payload: []byte(`{"event":"payment.completed","data":{"id":"123"}}`),
			secret:  "s3cr3t",
		},
		{
			name:    "empty payload",
			payload: []byte(`{}`),
			secret:  "secret",
		},
		{
			name:    "unicode payload",
			payload: []byte(`{"member":"Zoë","plan":"€49 monthly"}`),
			secret:  "unicode-key-日本語",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := Sign(tt.secret, tt.payload)

			decoded, err := hex.DecodeString(sig)
			if err != nil {
				t.Fatalf("signature is not valid hex: %v", err)
			}
			if len(decoded) != 32 {
				t.Fatalf("expected 32 bytes, got %d", len(decoded))
			}

			mac := hmac.New(sha256.New, []byte(tt.secret))
			mac.Write(tt.payload)
			expected := hex.EncodeToString(mac.Sum(nil))
			if sig != expected {
				t.Errorf("signature mismatch:\n  got:  %s\n  want: %s", sig, expected)
			}
			if !Verify(tt.secret, tt.payload, sig) {
				t.Error("Verify should accept its own signature")
			}
		})
	}
}

func TestSign_Deterministic(t *testing.T) {
	payload := []byte(`{"event":"test"}`)
	if Sign("k", payload) != Sign("k", payload) {
		t.Error("same input should produce same signature")
	}
	if Sign("k1", payload) == Sign("k2", payload) {
		t.Error("different secrets should produce different signatures")
	}
}

func TestVerify_DetectsTampering(t *testing.T) {
	body := []byte(`{"event":"payment.completed","data":{"amount":100}}`)
	sig := Sign("s3cr3t", body)

	tampered := append([]byte(nil), body...)
	tampered[len(tampered)-3] = '9'

	if Verify("s3cr3t", tampered, sig) {
		t.Error("a one-byte change must invalidate the signature")
	}
	if Verify("other", body, sig) {
		t.Error("wrong secret must not verify")
	}
	if Verify("s3cr3t", body, "zz-not-hex") {
		t.Error("malformed signature must not verify")
	}
}

func TestBackoff_Delay(t *testing.T) {
	b := NewBackoff(time.Second)
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{5, 32 * time.Second},
	}
	for _, tt := range tests {
		if got := b.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}

	if NewBackoff(0).Unit != time.Second {
		t.Error("zero unit should default to one second")
	}
	if got := NewBackoff(time.Millisecond).Delay(3); got != 8*time.Millisecond {
		t.Errorf("custom unit Delay(3) = %v, want 8ms", got)
	}
}

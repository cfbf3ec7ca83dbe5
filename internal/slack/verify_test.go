package slack

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"
)

func TestVerifySignature(t *testing.T) {
	secret := "secret"
	body := []byte("payload=test")
	ts := time.Now().Unix()
	timestamp := fmt.Sprintf("%d", ts)

	err := VerifySignature(secret, Sign(secret, timestamp, body), timestamp, body, time.Unix(ts, 0))
	if err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}
}

func TestSignMatchesSlackScheme(t *testing.T) {
	mac := hmac.New(sha256.New, []byte("secret"))
	_, _ = mac.Write([]byte("v0:1700000000:payload=x"))
	want := "v0=" + hex.EncodeToString(mac.Sum(nil))
	if got := Sign("secret", "1700000000", []byte("payload=x")); got != want {
		t.Fatalf("sign = %s, want %s", got, want)
	}
}

func TestVerifySignatureInvalid(t *testing.T) {
	now := time.Now()
	err := VerifySignature("secret", "v0=bad", fmt.Sprintf("%d", now.Unix()), []byte("x"), now)
	if err != ErrInvalidSignature {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifySignatureMissing(t *testing.T) {
	err := VerifySignature("secret", "", "", []byte("x"), time.Now())
	if err != ErrMissingSignature {
		t.Fatalf("expected ErrMissingSignature, got %v", err)
	}
}

func TestVerifySignatureStale(t *testing.T) {
	now := time.Now()
	for _, skew := range []time.Duration{-10 * time.Minute, 10 * time.Minute} {
		timestamp := fmt.Sprintf("%d", now.Add(skew).Unix())
		sig := Sign("secret", timestamp, []byte("x"))
		if err := VerifySignature("secret", sig, timestamp, []byte("x"), now); err != ErrStaleTimestamp {
			t.Fatalf("skew %s: expected ErrStaleTimestamp, got %v", skew, err)
		}
	}
}

func TestVerifySignatureBadTimestamp(t *testing.T) {
	err := VerifySignature("secret", "v0=bad", "not-a-time", []byte("x"), time.Now())
	if err != ErrInvalidSignature {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

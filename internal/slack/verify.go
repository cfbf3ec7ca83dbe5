package slack

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"
)

var (
	ErrMissingSignature = errors.New("missing slack signature")
	ErrInvalidSignature = errors.New("invalid slack signature")
	ErrStaleTimestamp   = errors.New("stale slack timestamp")
)

// Requests older or newer than this are rejected as replays.
const maxClockSkew = 5 * time.Minute

// Sign returns the v0 signature Slack sends for body at timestamp.
func Sign(signingSecret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(signingSecret))
	_, _ = mac.Write([]byte("v0:" + timestamp + ":"))
	_, _ = mac.Write(body)
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature validates the Slack signing secret against the request.
func VerifySignature(signingSecret, signature, timestamp string, body []byte, now time.Time) error {
	if signature == "" || timestamp == "" {
		return ErrMissingSignature
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	requestTime := time.Unix(ts, 0)
	if skew := now.Sub(requestTime); skew > maxClockSkew || skew < -maxClockSkew {
		return ErrStaleTimestamp
	}

	if !hmac.Equal([]byte(Sign(signingSecret, timestamp, body)), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

package webhook

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"time"
)

// Delivery headers.
const (
	SignatureHeader = "X-Botkit-Signature-256"
	TimestampHeader = "X-Botkit-Timestamp"
	EventHeader     = "X-Botkit-Event"
	DeliveryHeader  = "X-Botkit-Delivery"
)

var (
	ErrBadSignature   = errors.New("webhook signature mismatch")
	ErrStaleSignature = errors.New("webhook timestamp outside tolerance")
)

// Sign returns "sha256=<hex>" over "<unix seconds>.<payload>".
func Sign(secret string, ts time.Time, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts.Unix(), 10)))
	mac.Write([]byte{'.'})
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks the signature and timestamp headers of a delivery. A zero
// tolerance skips the freshness check.
func Verify(secret string, h http.Header, payload []byte, tolerance time.Duration, now time.Time) error {
	unix, err := strconv.ParseInt(h.Get(TimestampHeader), 10, 64)
	if err != nil {
		return ErrBadSignature
	}
	ts := time.Unix(unix, 0)
	if tolerance > 0 && (now.Sub(ts) > tolerance || ts.Sub(now) > tolerance) {
		return ErrStaleSignature
	}
	expected := Sign(secret, ts, payload)
	if !hmac.Equal([]byte(expected), []byte(h.Get(SignatureHeader))) {
		return ErrBadSignature
	}
	return nil
}

// GenerateSecret returns a cryptographically random 32-byte hex string.
func GenerateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

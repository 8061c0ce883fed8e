package billing_service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissingSignature = errors.New("missing Stripe-Signature header")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

type signatureHeader struct {
	timestamp  int64
	signatures []string
}

// parseSignatureHeader reads "t=<unix>,v1=<hex>[,v1=<hex>...]". Unknown keys
// such as v0 are ignored.
func parseSignatureHeader(header string) (signatureHeader, error) {
	var out signatureHeader
	var hasTimestamp bool

	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return out, fmt.Errorf("%w: malformed pair %q", ErrInvalidSignature, part)
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)

		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return out, fmt.Errorf("%w: bad timestamp", ErrInvalidSignature)
			}
			out.timestamp = ts
			hasTimestamp = true
		case "v1":
			out.signatures = append(out.signatures, value)
		}
	}

	if !hasTimestamp {
		return out, fmt.Errorf("%w: no timestamp", ErrInvalidSignature)
	}
	if len(out.signatures) == 0 {
		return out, fmt.Errorf("%w: no v1 signature", ErrInvalidSignature)
	}
	return out, nil
}

func computeSignature(secret string, timestamp int64, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	return mac.Sum(nil)
}

// SignPayload builds a Stripe-Signature header value for body.
func SignPayload(secret string, timestamp int64, body []byte) string {
	return fmt.Sprintf("t=%d,v1=%s", timestamp, hex.EncodeToString(computeSignature(secret, timestamp, body)))
}

// VerifySignature checks header against the raw request body. The body must
// be the exact bytes received, never a re-encoded object.
func VerifySignature(body []byte, header, secret string) error {
	return VerifySignatureWithTolerance(body, header, secret, 0, time.Time{})
}

// VerifySignatureWithTolerance additionally rejects signatures whose timestamp
// is further than tolerance from now. A zero tolerance skips that check.
func VerifySignatureWithTolerance(body []byte, header, secret string, tolerance time.Duration, now time.Time) error {
	if strings.TrimSpace(header) == "" {
		return ErrMissingSignature
	}
	if secret == "" {
		return fmt.Errorf("%w: no secret configured", ErrInvalidSignature)
	}

	parsed, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}

	if tolerance > 0 {
		age := now.Sub(time.Unix(parsed.timestamp, 0))
		if age > tolerance || age < -tolerance {
			return fmt.Errorf("%w: timestamp outside tolerance", ErrInvalidSignature)
		}
	}

	// Compared as lowercase hex text so an upper-cased digit does not verify.
	expected := []byte(hex.EncodeToString(computeSignature(secret, parsed.timestamp, body)))
	for _, sig := range parsed.signatures {
		if hmac.Equal(expected, []byte(sig)) {
			return nil
		}
	}
	return ErrInvalidSignature
}

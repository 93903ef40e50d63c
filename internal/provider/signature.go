// Package provider implements the boundary with the payment provider's
// webhook delivery: signature verification over the exact raw bytes.
package provider

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	domainErrors "github.com/lumeworks/billing-reconciler/internal/domain/errors"
)

// SignatureHeader is the HTTP header carrying the webhook signature.
const SignatureHeader = "X-Webhook-Signature"

// DefaultTolerance is the default allowed clock skew between the signed
// timestamp and the receiving host.
const DefaultTolerance = 5 * time.Minute

// Verify authenticates payload against a signature header of the form
//
//	t=<unix seconds>,v1=<hex hmac-sha256>
//
// where the MAC is computed over "<t>.<payload>" with the shared secret.
// Several v1 entries may be present during secret rotation; any match
// passes. Timestamps outside the tolerance window are rejected to limit
// replay. The comparison is constant time. Failure reasons are kept vague
// on purpose.
func Verify(payload []byte, header, secret string, tolerance time.Duration, now time.Time) error {
	if header == "" {
		return domainErrors.NewAuthentication("missing signature header")
	}

	timestamp, signatures, err := parseHeader(header)
	if err != nil {
		return err
	}

	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	skew := now.Sub(time.Unix(timestamp, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > tolerance {
		return domainErrors.NewAuthentication("signature timestamp outside tolerance")
	}

	expected := computeMAC(payload, secret, timestamp)
	for _, sig := range signatures {
		decoded, decErr := hex.DecodeString(sig)
		if decErr != nil {
			continue
		}
		if hmac.Equal(decoded, expected) {
			return nil
		}
	}

	return domainErrors.NewAuthentication("signature mismatch")
}

// Sign produces a signature header for payload. It exists for outbound test
// traffic and local tooling; the provider computes the real thing.
func Sign(payload []byte, secret string, at time.Time) string {
	ts := at.Unix()
	mac := computeMAC(payload, secret, ts)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac))
}

func parseHeader(header string) (timestamp int64, signatures []string, err error) {
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			timestamp, err = strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, nil, domainErrors.NewAuthentication("invalid signature timestamp")
			}
		case "v1":
			signatures = append(signatures, value)
		}
	}

	if timestamp == 0 {
		return 0, nil, domainErrors.NewAuthentication("signature timestamp missing")
	}
	if len(signatures) == 0 {
		return 0, nil, domainErrors.NewAuthentication("no usable signature in header")
	}
	return timestamp, signatures, nil
}

func computeMAC(payload []byte, secret string, timestamp int64) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return mac.Sum(nil)
}

package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/girderhq/girder/internal/common/errorx"
)

// Event is the envelope every provider notification decodes into. Data keeps
// the resource-specific part raw for downstream consumers.
type Event struct {
	ID           string          `json:"id"`
	Event        string          `json:"event"`
	ResourceType string          `json:"resource_type"`
	ResourceID   string          `json:"resource_id"`
	CompanyID    string          `json:"company_id"`
	Timestamp    time.Time       `json:"timestamp"`
	Data         json.RawMessage `json:"data"`
}

// Verifier checks inbound webhook signatures of the form
// "t=<unix seconds>,v1=<hex hmac-sha256>". The signed string is
// "<t>.<payload>" with t exactly as it appears in the header.
type Verifier struct {
	key       []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewVerifier creates a verifier for one provider's signing key.
func NewVerifier(secret string, tolerance time.Duration) *Verifier {
	return NewVerifierWithClock(secret, tolerance, time.Now)
}

// NewVerifierWithClock creates a verifier with an injected clock for tests.
func NewVerifierWithClock(secret string, tolerance time.Duration, now func() time.Time) *Verifier {
	if tolerance <= 0 {
		tolerance = 180 * time.Second
	}
	return &Verifier{
		key:       []byte(secret),
		tolerance: tolerance,
		now:       now,
	}
}

// Verify authenticates payload against header and decodes the event envelope.
// Error messages name only the failure category so responses reveal nothing
// useful to a forger.
func (v *Verifier) Verify(payload []byte, header string) (*Event, error) {
	if len(v.key) == 0 {
		return nil, fmt.Errorf("%w: webhook signing key not configured", errorx.ErrValidation)
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", errorx.ErrValidation)
	}
	if header == "" {
		return nil, fmt.Errorf("%w: missing signature header", errorx.ErrValidation)
	}

	rawTimestamp, signature, err := parseHeader(header)
	if err != nil {
		return nil, err
	}

	ts, err := strconv.ParseInt(rawTimestamp, 10, 64)
	if err != nil {
		return nil, errorx.NewAuthInvalid("malformed signature header")
	}

	skew := v.now().Sub(time.Unix(ts, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > v.tolerance {
		return nil, errorx.NewAuthInvalid("stale timestamp")
	}

	mac := hmac.New(sha256.New, v.key)
	mac.Write([]byte(rawTimestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	if !hmac.Equal(signature, expected) {
		return nil, errorx.NewAuthInvalid("signature mismatch")
	}

	// The sender is authentic at this point; a bad body is their bug, not
	// an auth failure.
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: malformed event payload", errorx.ErrValidation)
	}
	return &event, nil
}

// parseHeader extracts the raw timestamp and decoded v1 signature.
func parseHeader(header string) (string, []byte, error) {
	var rawTimestamp, rawSignature string
	for _, part := range strings.Split(header, ",") {
		k, val, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch k {
		case "t":
			rawTimestamp = val
		case "v1":
			rawSignature = val
		}
	}
	if rawTimestamp == "" || rawSignature == "" {
		return "", nil, errorx.NewAuthInvalid("malformed signature header")
	}

	sig, err := hex.DecodeString(rawSignature)
	if err != nil {
		return "", nil, errorx.NewAuthInvalid("malformed signature header")
	}
	return rawTimestamp, sig, nil
}

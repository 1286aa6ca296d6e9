package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/girderhq/girder/internal/common/errorx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_construction"

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestVerifier() *Verifier {
	return NewVerifierWithClock(testSecret, 180*time.Second, func() time.Time { return testNow })
}

func signPayload(t *testing.T, secret string, ts int64, payload []byte) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func validPayload() []byte {
	return []byte(`{
		"id": "evt_01",
		"event": "rfi.updated",
		"resource_type": "rfi",
		"resource_id": "412",
		"company_id": "88",
		"timestamp": "2025-03-01T11:59:30Z",
		"data": {"status": "answered"}
	}`)
}

func TestVerifyAcceptsValidSignature(t *testing.T) {
	v := newTestVerifier()
	payload := validPayload()
	header := signPayload(t, testSecret, testNow.Unix(), payload)

	event, err := v.Verify(payload, header)
	require.NoError(t, err)
	assert.Equal(t, "evt_01", event.ID)
	assert.Equal(t, "rfi.updated", event.Event)
	assert.Equal(t, "rfi", event.ResourceType)
	assert.Equal(t, "412", event.ResourceID)
	assert.Equal(t, "88", event.CompanyID)
	assert.JSONEq(t, `{"status": "answered"}`, string(event.Data))
}

func TestVerifyAcceptsSkewWithinTolerance(t *testing.T) {
	v := newTestVerifier()
	payload := validPayload()

	for _, offset := range []time.Duration{-179 * time.Second, 0, 179 * time.Second} {
		ts := testNow.Add(offset).Unix()
		_, err := v.Verify(payload, signPayload(t, testSecret, ts, payload))
		assert.NoError(t, err, "offset %s", offset)
	}
}

func TestVerifyRejectsStaleTimestamp(t *testing.T) {
	v := newTestVerifier()
	payload := validPayload()

	for _, offset := range []time.Duration{-181 * time.Second, 181 * time.Second} {
		ts := testNow.Add(offset).Unix()
		_, err := v.Verify(payload, signPayload(t, testSecret, ts, payload))
		require.Error(t, err, "offset %s", offset)
		assert.True(t, errorx.IsAuthInvalid(err))
		assert.Contains(t, err.Error(), "stale timestamp")
	}
}

func TestVerifyRejectsBitFlip(t *testing.T) {
	v := newTestVerifier()
	payload := validPayload()
	header := signPayload(t, testSecret, testNow.Unix(), payload)

	// flip one bit in the payload
	tampered := append([]byte(nil), payload...)
	tampered[10] ^= 0x01
	_, err := v.Verify(tampered, header)
	require.Error(t, err)
	assert.True(t, errorx.IsAuthInvalid(err))
	assert.Contains(t, err.Error(), "signature mismatch")

	// flip one hex digit in the signature
	badHeader := []byte(header)
	last := badHeader[len(badHeader)-1]
	if last == 'f' {
		badHeader[len(badHeader)-1] = '0'
	} else {
		badHeader[len(badHeader)-1] = 'f'
	}
	_, err = v.Verify(payload, string(badHeader))
	require.Error(t, err)
	assert.True(t, errorx.IsAuthInvalid(err))
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	v := newTestVerifier()
	payload := validPayload()
	header := signPayload(t, "other-secret", testNow.Unix(), payload)

	_, err := v.Verify(payload, header)
	require.Error(t, err)
	assert.True(t, errorx.IsAuthInvalid(err))
}

func TestVerifyMalformedHeader(t *testing.T) {
	v := newTestVerifier()
	payload := validPayload()

	cases := []string{
		"garbage",
		"t=notanumber,v1=deadbeef",
		"t=1234",
		"v1=deadbeef",
		"t=1234,v1=zzzz",
	}
	for _, header := range cases {
		_, err := v.Verify(payload, header)
		require.Error(t, err, "header %q", header)
		assert.True(t, errorx.IsAuthInvalid(err), "header %q", header)
		assert.Contains(t, err.Error(), "malformed signature header")
	}
}

func TestVerifyEmptyInputs(t *testing.T) {
	v := newTestVerifier()
	payload := validPayload()
	header := signPayload(t, testSecret, testNow.Unix(), payload)

	_, err := v.Verify(nil, header)
	assert.ErrorIs(t, err, errorx.ErrValidation)

	_, err = v.Verify(payload, "")
	assert.ErrorIs(t, err, errorx.ErrValidation)

	empty := NewVerifierWithClock("", 180*time.Second, func() time.Time { return testNow })
	_, err = empty.Verify(payload, header)
	assert.ErrorIs(t, err, errorx.ErrValidation)
}

func TestVerifyValidSignatureBadJSON(t *testing.T) {
	// a correctly signed but unparseable body is the sender's defect,
	// not an authentication failure
	v := newTestVerifier()
	payload := []byte("{not json")
	header := signPayload(t, testSecret, testNow.Unix(), payload)

	_, err := v.Verify(payload, header)
	require.Error(t, err)
	assert.ErrorIs(t, err, errorx.ErrValidation)
	assert.False(t, errorx.IsAuthInvalid(err))
}

func TestVerifyIgnoresUnknownHeaderParts(t *testing.T) {
	v := newTestVerifier()
	payload := validPayload()
	header := signPayload(t, testSecret, testNow.Unix(), payload) + ",v0=legacy"

	_, err := v.Verify(payload, header)
	assert.NoError(t, err)
}

func TestVerifyErrorsDoNotLeakExpectations(t *testing.T) {
	v := newTestVerifier()
	payload := validPayload()
	header := signPayload(t, "other-secret", testNow.Unix(), payload)

	_, err := v.Verify(payload, header)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), hex.EncodeToString([]byte(testSecret)))
	var ae *errorx.AuthInvalidError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "signature mismatch", ae.Reason)
}

package server

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/girderhq/girder/internal/common/cnst"

	"github.com/stretchr/testify/assert"
)

func signWebhook(secret string, ts int64, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func webhookRequest(provider string, payload []byte, header string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/"+provider, bytes.NewReader(payload))
	if header != "" {
		req.Header.Set(cnst.HeaderWebhookSignature, header)
	}
	return req
}

func TestWebhookAccepted(t *testing.T) {
	h := newHarness(t, nil)

	payload := []byte(`{"id":"evt_81","event":"project.updated","resource_type":"project","resource_id":"proj-441","company_id":"co-12","timestamp":"2026-08-23T10:00:00Z","data":{"status":"active"}}`)
	header := signWebhook("whsec_test", time.Now().Unix(), payload)

	w := h.do(webhookRequest("buildsite", payload, header))
	assert.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
	assert.Empty(t, w.Body.String())
}

func TestWebhookRejected(t *testing.T) {
	h := newHarness(t, nil)
	payload := []byte(`{"id":"evt_81","event":"project.updated"}`)

	t.Run("tampered payload", func(t *testing.T) {
		header := signWebhook("whsec_test", time.Now().Unix(), payload)
		tampered := []byte(`{"id":"evt_81","event":"project.deleted"}`)
		w := h.do(webhookRequest("buildsite", tampered, header))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		body := decodeJSON(t, w)
		assert.Equal(t, "authentication_invalid", body["error"])
		assert.Equal(t, "signature mismatch", body["reason"])
	})

	t.Run("wrong key", func(t *testing.T) {
		header := signWebhook("whsec_other", time.Now().Unix(), payload)
		w := h.do(webhookRequest("buildsite", payload, header))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("stale timestamp", func(t *testing.T) {
		header := signWebhook("whsec_test", time.Now().Add(-10*time.Minute).Unix(), payload)
		w := h.do(webhookRequest("buildsite", payload, header))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "stale timestamp", decodeJSON(t, w)["reason"])
	})

	t.Run("missing signature header", func(t *testing.T) {
		w := h.do(webhookRequest("buildsite", payload, ""))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "validation_failed", decodeJSON(t, w)["error"])
	})

	t.Run("unknown provider", func(t *testing.T) {
		header := signWebhook("whsec_test", time.Now().Unix(), payload)
		w := h.do(webhookRequest("sitecast", payload, header))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

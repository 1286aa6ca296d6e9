package errorx

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOAuth2ErrorRendersAsJSON(t *testing.T) {
	e := &OAuth2Error{ErrorType: "invalid_request", ErrorDescription: "missing client_id", HTTPStatus: http.StatusBadRequest}
	s := e.Error()
	assert.Contains(t, s, `"error":"invalid_request"`)
	assert.Contains(t, s, `"error_description":"missing client_id"`)
	assert.NotContains(t, s, "HTTPStatus")
}

func TestOAuth2SentinelStatuses(t *testing.T) {
	assert.Equal(t, http.StatusConflict, ErrClientAlreadyExists.HTTPStatus)
	assert.Equal(t, http.StatusUnauthorized, ErrInvalidClient.HTTPStatus)
	assert.Equal(t, http.StatusBadRequest, ErrUnsupportedResponseType.HTTPStatus)
	assert.Equal(t, "code_verifier_mismatch", ErrCodeVerifierMismatch.ErrorCode)
	assert.Equal(t, "invalid_grant", ErrAuthorizationCodeExpired.ErrorType)
}

func TestConvertToOAuth2Error(t *testing.T) {
	t.Run("passes protocol errors through", func(t *testing.T) {
		assert.Same(t, ErrInvalidGrant, ConvertToOAuth2Error(ErrInvalidGrant))
	})

	t.Run("unwraps nested protocol errors", func(t *testing.T) {
		wrapped := fmt.Errorf("redeem code: %w", ErrAuthorizationCodeNotFound)
		assert.Same(t, ErrAuthorizationCodeNotFound, ConvertToOAuth2Error(wrapped))
	})

	t.Run("wraps foreign errors as unknown", func(t *testing.T) {
		out := ConvertToOAuth2Error(errors.New("storage offline"))
		require.NotNil(t, out)
		assert.Equal(t, "unknown_error", out.ErrorType)
		assert.Equal(t, "storage offline", out.ErrorDescription)
		assert.Equal(t, http.StatusInternalServerError, out.HTTPStatus)
	})
}

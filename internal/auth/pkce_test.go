package auth

import (
	"testing"

	"github.com/girderhq/girder/internal/common/errorx"

	"github.com/stretchr/testify/assert"
)

func TestComputeCodeChallenge(t *testing.T) {
	plain, err := computeCodeChallenge("abc", "plain")
	assert.NoError(t, err)
	assert.Equal(t, "abc", plain)

	// RFC 7636 appendix B vector.
	s256, err := computeCodeChallenge("dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk", "S256")
	assert.NoError(t, err)
	assert.Equal(t, "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM", s256)

	_, err = computeCodeChallenge("abc", "S512")
	assert.ErrorIs(t, err, errorx.ErrInvalidRequest)
}

func TestVerifyCodeChallenge(t *testing.T) {
	challenge, err := computeCodeChallenge("verifier-value", "S256")
	assert.NoError(t, err)

	assert.NoError(t, verifyCodeChallenge("verifier-value", challenge, "S256"))
	assert.ErrorIs(t, verifyCodeChallenge("wrong-verifier", challenge, "S256"), errorx.ErrCodeVerifierMismatch)

	assert.NoError(t, verifyCodeChallenge("plain-secret", "plain-secret", "plain"))
	assert.ErrorIs(t, verifyCodeChallenge("plain-secret", "other", "plain"), errorx.ErrCodeVerifierMismatch)
}

func TestNormalizeChallengeMethod(t *testing.T) {
	assert.Equal(t, "plain", normalizeChallengeMethod(""))
	assert.Equal(t, "S256", normalizeChallengeMethod("S256"))
}

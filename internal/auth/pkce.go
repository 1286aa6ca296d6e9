package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"

	"github.com/girderhq/girder/internal/common/errorx"
)

func normalizeChallengeMethod(method string) string {
	if method == "" {
		return "plain"
	}
	return method
}

func computeCodeChallenge(codeVerifier, method string) (string, error) {
	switch method {
	case "plain":
		return codeVerifier, nil
	case "S256":
		sum := sha256.Sum256([]byte(codeVerifier))
		return base64.RawURLEncoding.EncodeToString(sum[:]), nil
	default:
		return "", errorx.ErrInvalidRequest
	}
}

// verifyCodeChallenge checks the verifier against the challenge bound at
// authorization time. Comparison is constant time for both methods.
func verifyCodeChallenge(codeVerifier, challenge, method string) error {
	expected, err := computeCodeChallenge(codeVerifier, method)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(expected), []byte(challenge)) != 1 {
		return errorx.ErrCodeVerifierMismatch
	}
	return nil
}

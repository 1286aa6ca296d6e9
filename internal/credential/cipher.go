package credential

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/girderhq/girder/internal/common/errorx"
	"golang.org/x/crypto/hkdf"
)

// minMasterKeyLen guards against secrets short enough to brute force.
const minMasterKeyLen = 16

// cipherKeyInfo binds derived keys to this use so the same master secret can
// safely feed other derivations later.
const cipherKeyInfo = "girder/credential-vault/v1"

// Cipher seals credential tokens with AES-256-GCM. The data key is derived
// from the configured master secret via HKDF-SHA256, so rotating the master
// secret invalidates every stored row at once.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher derives the data key and prepares the AEAD. A missing or short
// master secret is a deployment defect, reported as a configuration error.
func NewCipher(masterKey string) (*Cipher, error) {
	if len(masterKey) < minMasterKeyLen {
		return nil, fmt.Errorf("%w: vault master key missing or shorter than %d bytes", errorx.ErrConfiguration, minMasterKeyLen)
	}

	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, []byte(masterKey), nil, []byte(cipherKeyInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("%w: derive data key: %v", errorx.ErrConfiguration, err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errorx.ErrConfiguration, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errorx.ErrConfiguration, err)
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext and returns base64(nonce || ciphertext).
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Every row was written by us, so an unreadable row
// means the master key changed underneath the store: a configuration error,
// deliberately distinct from a missing credential.
func (c *Cipher) Decrypt(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: undecodable ciphertext", errorx.ErrConfiguration)
	}
	ns := c.aead.NonceSize()
	if len(raw) < ns {
		return "", fmt.Errorf("%w: truncated ciphertext", errorx.ErrConfiguration)
	}
	plain, err := c.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: ciphertext rejected", errorx.ErrConfiguration)
	}
	return string(plain), nil
}

package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
)

var (
	ErrInvalidKeySize = errors.New("invalid key size")
	ErrEncryption     = errors.New("encryption failed")
	ErrDecryption     = errors.New("decryption failed")
)

// Encryptor seals and opens blobs at rest.
type Encryptor interface {
	Encrypt(data []byte) ([]byte, error)
	Decrypt(data []byte) ([]byte, error)
}

// NewAESEncryptor creates an AES-GCM encryptor. key must be 16, 24 or 32 bytes.
func NewAESEncryptor(key []byte) (Encryptor, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ErrInvalidKeySize
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, ErrEncryption
	}

	return &gcmEncryptor{gcm: gcm}, nil
}

// KeyFromSecret turns a configured secret into an AES-256 key. A 64 char hex
// string is used as is; anything else is hashed with SHA-256.
func KeyFromSecret(secret string) []byte {
	if len(secret) == 64 {
		if raw, err := hex.DecodeString(secret); err == nil {
			return raw
		}
	}
	sum := sha256.Sum256([]byte(secret))
	return sum[:]
}

type gcmEncryptor struct {
	gcm cipher.AEAD
}

// Encrypt returns nonce || ciphertext.
func (g *gcmEncryptor) Encrypt(data []byte) ([]byte, error) {
	nonce := make([]byte, g.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, ErrEncryption
	}

	return g.gcm.Seal(nonce, nonce, data, nil), nil
}

func (g *gcmEncryptor) Decrypt(data []byte) ([]byte, error) {
	nonceSize := g.gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, ErrDecryption
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := g.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryption
	}

	return plaintext, nil
}

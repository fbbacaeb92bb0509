package security

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("secret1")
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", hash)

	assert.NoError(t, h.Compare(hash, "secret1"))
	assert.ErrorIs(t, h.Compare(hash, "secret2"), ErrMismatch)
}

func TestBcryptHasherRejectsShortPassword(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	_, err := h.Hash("12345")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestBcryptHasherRejectsLongPassword(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	_, err := h.Hash(strings.Repeat("p", MaxPasswordBytes+1))
	assert.ErrorIs(t, err, ErrPasswordTooLong)

	_, err = h.Hash(strings.Repeat("p", MaxPasswordBytes))
	assert.NoError(t, err)
}

func TestAESEncryptorRoundTrip(t *testing.T) {
	enc, err := NewAESEncryptor(bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)

	plain := []byte("%PDF-1.4 lab report")
	sealed, err := enc.Encrypt(plain)
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "lab report")

	opened, err := enc.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, plain, opened)
}

func TestAESEncryptorRejectsTamperedData(t *testing.T) {
	enc, err := NewAESEncryptor(bytes.Repeat([]byte{1}, 16))
	require.NoError(t, err)

	sealed, err := enc.Encrypt([]byte("x-ray"))
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0xff

	_, err = enc.Decrypt(sealed)
	assert.ErrorIs(t, err, ErrDecryption)

	_, err = enc.Decrypt([]byte{1, 2})
	assert.ErrorIs(t, err, ErrDecryption)
}

func TestNewAESEncryptorKeySize(t *testing.T) {
	_, err := NewAESEncryptor([]byte("short"))
	assert.ErrorIs(t, err, ErrInvalidKeySize)
}

func TestKeyFromSecret(t *testing.T) {
	hexKey := "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
	assert.Equal(t, byte(0x1f), KeyFromSecret(hexKey)[31])
	assert.Len(t, KeyFromSecret("correct horse battery staple"), 32)
	assert.Equal(t, KeyFromSecret("a"), KeyFromSecret("a"))
	assert.NotEqual(t, KeyFromSecret("a"), KeyFromSecret("b"))
}

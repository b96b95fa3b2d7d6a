package utils

import (
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(key)
}

func TestEncryptor_RoundTrip(t *testing.T) {
	enc, err := NewEncryptor(testKey(t))
	require.NoError(t, err)

	sealed, err := enc.Encrypt("service-role-key-value")
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "service-role-key-value")

	plain, err := enc.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "service-role-key-value", plain)
}

func TestEncryptor_NonceVariesPerSeal(t *testing.T) {
	enc, err := NewEncryptor(testKey(t))
	require.NoError(t, err)

	first, err := enc.Encrypt("secret")
	require.NoError(t, err)
	second, err := enc.Encrypt("secret")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestEncryptor_WrongKeyFails(t *testing.T) {
	enc, err := NewEncryptor(testKey(t))
	require.NoError(t, err)
	other, err := NewEncryptor(testKey(t))
	require.NoError(t, err)

	sealed, err := enc.Encrypt("secret")
	require.NoError(t, err)

	_, err = other.Decrypt(sealed)
	assert.Error(t, err)
}

func TestEncryptor_TamperedCiphertextFails(t *testing.T) {
	enc, err := NewEncryptor(testKey(t))
	require.NoError(t, err)

	sealed, err := enc.Encrypt("secret")
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0xff

	_, err = enc.Decrypt(sealed)
	assert.Error(t, err)
}

func TestNewEncryptor_RejectsBadKeys(t *testing.T) {
	_, err := NewEncryptor("")
	assert.Error(t, err)

	_, err = NewEncryptor("not base64!!!")
	assert.Error(t, err)

	short := base64.StdEncoding.EncodeToString([]byte("too short"))
	_, err = NewEncryptor(short)
	assert.Error(t, err)
}

func TestEncryptor_TruncatedCiphertext(t *testing.T) {
	enc, err := NewEncryptor(testKey(t))
	require.NoError(t, err)

	_, err = enc.Decrypt([]byte{0x01, 0x02})
	assert.Error(t, err)
}

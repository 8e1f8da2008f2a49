package vaultcrypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c, salt, err := New("correct horse battery staple")
	require.NoError(t, err)
	require.Len(t, salt, SaltLen)

	plaintext := []byte("hello")
	sealed, err := c.Encrypt(plaintext)
	require.NoError(t, err)
	assert.Len(t, sealed, NonceLen+len(plaintext)+TagLen)

	got, err := c.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestFromSaltReproducesKey(t *testing.T) {
	_, salt, err := New("pw")
	require.NoError(t, err)

	a := FromSalt("pw", salt)
	b := FromSalt("pw", salt)

	sealed, err := a.Encrypt([]byte("data"))
	require.NoError(t, err)

	got, err := b.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), got)
}

func TestDecryptWrongPasswordFails(t *testing.T) {
	_, salt, err := New("pw1")
	require.NoError(t, err)

	right := FromSalt("pw1", salt)
	wrong := FromSalt("pw2", salt)

	sealed, err := right.Encrypt([]byte("secret"))
	require.NoError(t, err)

	_, err = wrong.Decrypt(sealed)
	assert.Error(t, err)
}

func TestDecryptTruncatedCiphertext(t *testing.T) {
	c, _, err := New("pw")
	require.NoError(t, err)

	_, err = c.Decrypt([]byte("short"))
	assert.Error(t, err)
}

func TestDisabledPassesThrough(t *testing.T) {
	c := Disabled()
	assert.False(t, c.Enabled())

	sealed, err := c.Encrypt([]byte("plain"))
	require.NoError(t, err)
	assert.Equal(t, []byte("plain"), sealed)

	got, err := c.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, []byte("plain"), got)
}

func TestCheckValueRoundTrip(t *testing.T) {
	c, salt, err := New("pw")
	require.NoError(t, err)

	cv, err := c.SealCheckValue()
	require.NoError(t, err)

	reopened := FromSalt("pw", salt)
	require.NoError(t, reopened.VerifyCheckValue(cv))

	wrong := FromSalt("nope", salt)
	assert.Error(t, wrong.VerifyCheckValue(cv))
}

func TestEncryptStringIsURLSafeBase64(t *testing.T) {
	c, _, err := New("pw")
	require.NoError(t, err)

	s, err := c.EncryptString("hello world")
	require.NoError(t, err)

	got, err := c.DecryptString(s)
	require.NoError(t, err)
	assert.Equal(t, "hello world", got)
}

package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAESRoundTrip(t *testing.T) {
	cipher, err := NewAES(strings.Repeat("k", 32))
	require.NoError(t, err)

	encrypted, err := cipher.Encrypt("super-secret-token")
	require.NoError(t, err)
	assert.NotEqual(t, "super-secret-token", encrypted)

	decrypted, err := cipher.Decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, "super-secret-token", decrypted)
}

func TestAESNonDeterministic(t *testing.T) {
	cipher, err := NewAES(strings.Repeat("k", 32))
	require.NoError(t, err)

	a, err := cipher.Encrypt("token")
	require.NoError(t, err)
	b, err := cipher.Encrypt("token")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestAESKeyLength(t *testing.T) {
	_, err := NewAES("too-short")
	assert.Error(t, err)

	_, err = NewAES(strings.Repeat("k", 33))
	assert.Error(t, err)
}

func TestAESRejectsGarbage(t *testing.T) {
	cipher, err := NewAES(strings.Repeat("k", 32))
	require.NoError(t, err)

	_, err = cipher.Decrypt("not-base64!!")
	assert.Error(t, err)

	_, err = cipher.Decrypt("dG9vc2hvcnQ=")
	assert.Error(t, err)
}

func TestPlainPassThrough(t *testing.T) {
	var c Cipher = Plain{}
	enc, err := c.Encrypt("x")
	require.NoError(t, err)
	dec, err := c.Decrypt(enc)
	require.NoError(t, err)
	assert.Equal(t, "x", dec)
}

package crypt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parcelview/internal/errors"
)

func TestRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	plain := []byte("parcel bytes")
	tok, err := Encrypt(plain, []byte(key))
	require.NoError(t, err)
	assert.NotEqual(t, plain, tok)

	got, err := Decrypt(tok, []byte(key))
	require.NoError(t, err)
	assert.Equal(t, plain, got)
}

func TestDecryptWrongKey(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	other, err := GenerateKey()
	require.NoError(t, err)

	tok, err := Encrypt([]byte("parcel bytes"), []byte(key))
	require.NoError(t, err)

	got, err := Decrypt(tok, []byte(other))
	assert.Nil(t, got)
	assert.True(t, errors.Is(err, errors.ErrCodeDecryption))
}

func TestDecryptTampered(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	tok, err := Encrypt([]byte("parcel bytes"), []byte(key))
	require.NoError(t, err)

	// Flip a character in the body of the token.
	mid := len(tok) / 2
	if tok[mid] == 'A' {
		tok[mid] = 'B'
	} else {
		tok[mid] = 'A'
	}

	got, err := Decrypt(tok, []byte(key))
	assert.Nil(t, got)
	assert.True(t, errors.Is(err, errors.ErrCodeDecryption))
}

func TestDecryptInvalidInputs(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	tests := []struct {
		name       string
		ciphertext []byte
		key        []byte
	}{
		{"empty key", []byte("gAAAA"), nil},
		{"malformed key", []byte("gAAAA"), []byte("not-a-key")},
		{"empty ciphertext", nil, []byte(key)},
		{"garbage ciphertext", []byte("definitely not fernet"), []byte(key)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decrypt(tt.ciphertext, tt.key)
			assert.Nil(t, got)
			assert.True(t, errors.Is(err, errors.ErrCodeDecryption))
		})
	}
}

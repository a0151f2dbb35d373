// Package crypt decrypts the bundled parcel dataset.
//
// The dataset ships as a single Fernet token (AES-128-CBC with an HMAC-SHA256
// tag). Any key or authentication failure is a hard DECRYPTION error: a token
// that does not verify never yields bytes, so corrupted geometry can't reach
// the parser.
package crypt

import (
	"bytes"
	"strings"

	"github.com/fernet/fernet-go"

	"parcelview/internal/errors"
)

// noExpiry disables Fernet's timestamp check; the dataset is encrypted once
// and shipped, so token age carries no meaning.
const noExpiry = -1

// ParseKey decodes a url-safe (or standard) base64 32-byte Fernet key.
func ParseKey(s string) (*fernet.Key, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New(errors.ErrCodeDecryption, "encryption key is empty")
	}
	k, err := fernet.DecodeKey(s)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDecryption, err, "invalid encryption key")
	}
	return k, nil
}

// Decrypt verifies and decrypts ciphertext with key. It fails with a
// DECRYPTION error if the key is malformed, if it is the wrong key, or if the
// token was tampered with.
func Decrypt(ciphertext, key []byte) ([]byte, error) {
	k, err := ParseKey(string(key))
	if err != nil {
		return nil, err
	}
	tok := bytes.TrimSpace(ciphertext)
	if len(tok) == 0 {
		return nil, errors.New(errors.ErrCodeDecryption, "ciphertext is empty")
	}
	msg := fernet.VerifyAndDecrypt(tok, noExpiry, []*fernet.Key{k})
	if msg == nil {
		return nil, errors.New(errors.ErrCodeDecryption, "token failed authentication (wrong key or tampered data)")
	}
	return msg, nil
}

// Encrypt produces a Fernet token for plaintext under key.
func Encrypt(plaintext, key []byte) ([]byte, error) {
	k, err := ParseKey(string(key))
	if err != nil {
		return nil, err
	}
	tok, err := fernet.EncryptAndSign(plaintext, k)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encrypt dataset")
	}
	return tok, nil
}

// GenerateKey returns a fresh random key in its encoded form.
func GenerateKey() (string, error) {
	var k fernet.Key
	if err := k.Generate(); err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "generate key")
	}
	return k.Encode(), nil
}

// Package crypto provides cryptographic utilities for Meridian Identity.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// keySize is the size of the AES-256 key in bytes.
	keySize = 32

	// nonceSize is the size of the GCM nonce in bytes.
	nonceSize = 12
)

// ErrInvalidToken indicates a confirmation token is malformed, tampered
// with, or undecodable.
var ErrInvalidToken = errors.New("invalid confirmation token")

// SealToken encrypts plaintext under a freshly generated AES-256-GCM key
// and returns "key:ciphertext" with both halves base64url-encoded. The
// key travels with the token: each key is single-use and the token's
// lifetime is short, so carrying it trades token size for key-management
// simplicity.
func SealToken(plaintext string) (string, error) {
	key := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("failed to generate token key: %w", err)
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)

	return base64.RawURLEncoding.EncodeToString(key) + ":" +
		base64.RawURLEncoding.EncodeToString(ciphertext), nil
}

// OpenToken decrypts a "key:ciphertext" token produced by SealToken.
// Returns ErrInvalidToken for anything malformed, tampered, or
// undecodable.
func OpenToken(token string) (string, error) {
	keyPart, cipherPart, ok := strings.Cut(token, ":")
	if !ok {
		return "", ErrInvalidToken
	}

	key, err := base64.RawURLEncoding.DecodeString(keyPart)
	if err != nil || len(key) != keySize {
		return "", ErrInvalidToken
	}

	ciphertext, err := base64.RawURLEncoding.DecodeString(cipherPart)
	if err != nil {
		return "", ErrInvalidToken
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", ErrInvalidToken
	}

	if len(ciphertext) < nonceSize+gcm.Overhead() {
		return "", ErrInvalidToken
	}

	nonce := ciphertext[:nonceSize]
	plaintext, err := gcm.Open(nil, nonce, ciphertext[nonceSize:], nil)
	if err != nil {
		return "", ErrInvalidToken
	}

	return string(plaintext), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

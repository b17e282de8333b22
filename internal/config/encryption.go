// VitalSync - Health Data Synchronization and Goal Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalsync

package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	tokenEncryptionSalt = "vitalsync-oauth-tokens"
	tokenEncryptionInfo = "oauth-token-encryption-v1"
	aesKeySize          = 32
	gcmNonceSize        = 12
)

var (
	// ErrEmptySecret is returned when no key material is configured.
	ErrEmptySecret = errors.New("encryption secret cannot be empty")

	// ErrEmptyCiphertext is returned when attempting to decrypt empty data.
	ErrEmptyCiphertext = errors.New("ciphertext cannot be empty")

	// ErrDecryptionFailed is returned for tampered data or a wrong key.
	ErrDecryptionFailed = errors.New("decryption failed: invalid ciphertext or authentication tag")

	// ErrInvalidCiphertext is returned when the ciphertext is not valid base64.
	ErrInvalidCiphertext = errors.New("invalid ciphertext format")

	// ErrCiphertextTooShort is returned when the ciphertext cannot hold a nonce and tag.
	ErrCiphertextTooShort = errors.New("ciphertext too short")
)

// CredentialEncryptor seals OAuth tokens at rest with AES-256-GCM.
// The key is derived from the configured secret with HKDF-SHA256.
// Output format: base64(nonce || ciphertext || tag).
type CredentialEncryptor struct {
	aead cipher.AEAD
}

// NewCredentialEncryptor derives a key from secret and prepares the cipher.
func NewCredentialEncryptor(secret string) (*CredentialEncryptor, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	key := make([]byte, aesKeySize)
	r := hkdf.New(sha256.New, []byte(secret), []byte(tokenEncryptionSalt), []byte(tokenEncryptionInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &CredentialEncryptor{aead: aead}, nil
}

// Encrypt seals plaintext. An empty plaintext encrypts to "" so optional
// tokens (a missing refresh token) round-trip unchanged.
func (e *CredentialEncryptor) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	nonce := make([]byte, gcmNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt.
func (e *CredentialEncryptor) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", ErrEmptyCiphertext
	}
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: base64 decode failed: %s", ErrInvalidCiphertext, err.Error())
	}
	if len(data) < gcmNonceSize+1+e.aead.Overhead() {
		return "", ErrCiphertextTooShort
	}
	plaintext, err := e.aead.Open(nil, data[:gcmNonceSize], data[gcmNonceSize:], nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

// DecryptOptional is Decrypt that maps "" to "".
func (e *CredentialEncryptor) DecryptOptional(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}
	return e.Decrypt(ciphertext)
}

// MaskCredential returns "****..." plus the last 4 characters, for logs.
func MaskCredential(credential string) string {
	if credential == "" {
		return ""
	}
	if len(credential) <= 4 {
		return "****"
	}
	return "****..." + credential[len(credential)-4:]
}

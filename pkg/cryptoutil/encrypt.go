// Package cryptoutil provides the symmetric encryption used to protect
// broker credentials at rest, and password hashing for platform logins.
package cryptoutil

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

var (
	ErrInvalidKeyLength  = errors.New("cryptoutil: derived key must be exactly 32 bytes for AES-256")
	ErrInvalidCiphertext = errors.New("cryptoutil: invalid ciphertext")
	ErrCiphertextTooShort = errors.New("cryptoutil: ciphertext too short")
	ErrDecryptionFailed  = errors.New("cryptoutil: decryption failed, authentication error")
)

// PBKDF2Iterations matches the spec's ~480k-iteration requirement for
// deriving the credential encryption key from a process secret.
const PBKDF2Iterations = 480_000

// CredentialCipher encrypts and decrypts broker credentials using a key
// derived once at construction via PBKDF2-HMAC-SHA256 over a process
// secret and a stable salt. A random salt per record would be stronger;
// the wire-compatibility requirement here is only that Decrypt(Encrypt(x))
// round-trips and that a tampered ciphertext is rejected.
type CredentialCipher struct {
	key []byte
}

// NewCredentialCipher derives the AES-256 key from secret and salt.
func NewCredentialCipher(secret, salt string) *CredentialCipher {
	key := pbkdf2.Key([]byte(secret), []byte(salt), PBKDF2Iterations, 32, sha256.New)
	return &CredentialCipher{key: key}
}

// Encrypt returns a base64-wrapped AES-256-GCM ciphertext of plaintext.
func (c *CredentialCipher) Encrypt(plaintext string) (string, error) {
	if len(c.key) != 32 {
		return "", ErrInvalidKeyLength
	}
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt, rejecting ciphertext with an invalid
// authentication tag.
func (c *CredentialCipher) Decrypt(ciphertextBase64 string) (string, error) {
	if len(c.key) != 32 {
		return "", ErrInvalidKeyLength
	}
	raw, err := base64.StdEncoding.DecodeString(ciphertextBase64)
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonceSize := gcm.NonceSize()
	if len(raw) < nonceSize {
		return "", ErrCiphertextTooShort
	}
	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

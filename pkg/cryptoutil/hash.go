package cryptoutil

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmptyPassword    = errors.New("cryptoutil: password cannot be empty")
	ErrPasswordMismatch = errors.New("cryptoutil: password does not match hash")
	ErrInvalidHash      = errors.New("cryptoutil: invalid password hash format")
	ErrPasswordTooLong  = errors.New("cryptoutil: password exceeds maximum length of 72 bytes")
)

const DefaultCost = 12
const MaxPasswordLength = 72

// HashPassword hashes a platform login password with bcrypt.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if len(password) > MaxPasswordLength {
		return "", ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword checks password against hash using bcrypt's constant-time
// comparison.
func VerifyPassword(password, hash string) error {
	if password == "" {
		return ErrEmptyPassword
	}
	if hash == "" {
		return ErrInvalidHash
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return ErrInvalidHash
	}
	return nil
}

// CheckPasswordMatch is a bool-returning convenience wrapper over VerifyPassword.
func CheckPasswordMatch(password, hash string) bool {
	return VerifyPassword(password, hash) == nil
}

// NeedsRehash reports whether hash's cost factor is below desiredCost.
func NeedsRehash(hash string, desiredCost int) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return true
	}
	return cost < desiredCost
}

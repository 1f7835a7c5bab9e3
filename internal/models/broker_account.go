package models

import "time"

// BrokerAccount holds a user's encrypted credentials for one broker.
// APIKey, APISecret, AccessToken and RefreshToken are ciphertext at rest;
// the Broker Client Factory is the only component that decrypts them.
type BrokerAccount struct {
	ID             int64     `json:"id" db:"id"`
	UserID         int64     `json:"user_id" db:"user_id"`
	BrokerID       string    `json:"broker_id" db:"broker_id"`
	APIKey         string    `json:"-" db:"api_key"`
	APISecret      string    `json:"-" db:"api_secret"`
	AccessToken    string    `json:"-" db:"access_token"`
	RefreshToken   string    `json:"-" db:"refresh_token"`
	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty" db:"token_expires_at"`
	IsActive       bool      `json:"is_active" db:"is_active"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// TokenValid reports whether the account carries a usable access token.
func (a *BrokerAccount) TokenValid(now time.Time) bool {
	if a.AccessToken == "" {
		return false
	}
	if a.TokenExpiresAt != nil && !a.TokenExpiresAt.After(now) {
		return false
	}
	return true
}

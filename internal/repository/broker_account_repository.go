package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/devanshjainms/exitengine/internal/models"
)

// ErrBrokerAccountNotFound is returned when a broker account lookup by ID
// matches no row.
var ErrBrokerAccountNotFound = errors.New("repository: broker account not found")

// BrokerAccountRepository persists BrokerAccount rows. APIKey, APISecret,
// AccessToken and RefreshToken are stored as the cryptoutil-encrypted
// ciphertext the caller hands in — this repository never sees plaintext
// credentials.
type BrokerAccountRepository struct {
	db *sql.DB
}

// NewBrokerAccountRepository builds a BrokerAccountRepository over db.
func NewBrokerAccountRepository(db *sql.DB) *BrokerAccountRepository {
	return &BrokerAccountRepository{db: db}
}

// GetByUserAndBroker satisfies broker.AccountStore for the Broker Client
// Factory. Returns nil, nil (not an error) when the user has never linked
// brokerID.
func (r *BrokerAccountRepository) GetByUserAndBroker(ctx context.Context, userID int64, brokerID string) (*models.BrokerAccount, error) {
	const query = `
		SELECT id, user_id, broker_id, api_key, api_secret, access_token, refresh_token,
		       token_expires_at, is_active, created_at, updated_at
		FROM broker_accounts
		WHERE user_id = $1 AND broker_id = $2`

	acct, err := scanBrokerAccount(r.db.QueryRowContext(ctx, query, userID, brokerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return acct, nil
}

// ListByUser returns every broker account linked by userID, for the
// account management API.
func (r *BrokerAccountRepository) ListByUser(ctx context.Context, userID int64) ([]*models.BrokerAccount, error) {
	const query = `
		SELECT id, user_id, broker_id, api_key, api_secret, access_token, refresh_token,
		       token_expires_at, is_active, created_at, updated_at
		FROM broker_accounts
		WHERE user_id = $1`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.BrokerAccount
	for rows.Next() {
		acct, err := scanBrokerAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, acct)
	}
	return out, rows.Err()
}

// Upsert inserts or replaces the (userID, brokerID) account, used by the
// broker-account link handler to persist freshly submitted credentials.
func (r *BrokerAccountRepository) Upsert(ctx context.Context, acct *models.BrokerAccount) error {
	const query = `
		INSERT INTO broker_accounts (user_id, broker_id, api_key, api_secret, access_token, refresh_token, token_expires_at, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		ON CONFLICT (user_id, broker_id) DO UPDATE SET
			api_key = EXCLUDED.api_key,
			api_secret = EXCLUDED.api_secret,
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_expires_at = EXCLUDED.token_expires_at,
			is_active = EXCLUDED.is_active,
			updated_at = now()`

	_, err := r.db.ExecContext(ctx, query,
		acct.UserID, acct.BrokerID, acct.APIKey, acct.APISecret, acct.AccessToken, acct.RefreshToken,
		acct.TokenExpiresAt, acct.IsActive,
	)
	return err
}

// Deactivate flips is_active to false for (userID, brokerID), used when a
// user unlinks a broker. Does not delete the row, preserving history.
func (r *BrokerAccountRepository) Deactivate(ctx context.Context, userID int64, brokerID string) error {
	const query = `UPDATE broker_accounts SET is_active = false, updated_at = now() WHERE user_id = $1 AND broker_id = $2`
	res, err := r.db.ExecContext(ctx, query, userID, brokerID)
	if err != nil {
		return err
	}
	return requireRowAffected(res, ErrBrokerAccountNotFound)
}

func scanBrokerAccount(row rowScanner) (*models.BrokerAccount, error) {
	acct := &models.BrokerAccount{}
	err := row.Scan(
		&acct.ID, &acct.UserID, &acct.BrokerID, &acct.APIKey, &acct.APISecret, &acct.AccessToken, &acct.RefreshToken,
		&acct.TokenExpiresAt, &acct.IsActive, &acct.CreatedAt, &acct.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return acct, nil
}

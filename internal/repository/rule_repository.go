package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/devanshjainms/exitengine/internal/models"
)

// ErrRuleNotFound is returned when a rule lookup by ID matches no row.
var ErrRuleNotFound = errors.New("repository: rule not found")

// RuleRepository persists ExitRule rows. TakeProfit, StopLoss and
// TimeConditions are stored as JSONB columns rather than flattened into
// scalar columns, since they're read back wholesale and never queried on
// individually.
type RuleRepository struct {
	db *sql.DB
}

// NewRuleRepository builds a RuleRepository over db.
func NewRuleRepository(db *sql.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

// ListEnabled returns userID's enabled rules, satisfying rules.Store for
// the Rules Matcher's refresh loop. Ordering is arbitrary; the matcher
// sorts by Priority itself.
func (r *RuleRepository) ListEnabled(ctx context.Context, userID int64) ([]*models.ExitRule, error) {
	const query = `
		SELECT id, user_id, name, enabled, symbol_pattern, exchange, apply_to,
		       take_profit, stop_loss, time_conditions, priority
		FROM exit_rules
		WHERE user_id = $1 AND enabled = true`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.ExitRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

// ListByUser returns every rule owned by userID, enabled or not, for the
// rules management API.
func (r *RuleRepository) ListByUser(ctx context.Context, userID int64) ([]*models.ExitRule, error) {
	const query = `
		SELECT id, user_id, name, enabled, symbol_pattern, exchange, apply_to,
		       take_profit, stop_loss, time_conditions, priority
		FROM exit_rules
		WHERE user_id = $1
		ORDER BY priority ASC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.ExitRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

// GetByID returns userID's rule identified by id, or ErrRuleNotFound.
func (r *RuleRepository) GetByID(ctx context.Context, userID int64, id string) (*models.ExitRule, error) {
	const query = `
		SELECT id, user_id, name, enabled, symbol_pattern, exchange, apply_to,
		       take_profit, stop_loss, time_conditions, priority
		FROM exit_rules
		WHERE id = $1 AND user_id = $2`

	row := r.db.QueryRowContext(ctx, query, id, userID)
	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRuleNotFound
	}
	if err != nil {
		return nil, err
	}
	return rule, nil
}

// Create inserts rule for userID and returns the generated ID.
func (r *RuleRepository) Create(ctx context.Context, userID int64, rule *models.ExitRule) (string, error) {
	tp, err := json.Marshal(rule.TakeProfit)
	if err != nil {
		return "", fmt.Errorf("repository: marshal take_profit: %w", err)
	}
	sl, err := json.Marshal(rule.StopLoss)
	if err != nil {
		return "", fmt.Errorf("repository: marshal stop_loss: %w", err)
	}
	tc, err := json.Marshal(rule.TimeConditions)
	if err != nil {
		return "", fmt.Errorf("repository: marshal time_conditions: %w", err)
	}

	const query = `
		INSERT INTO exit_rules (user_id, name, enabled, symbol_pattern, exchange, apply_to, take_profit, stop_loss, time_conditions, priority)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	var id string
	err = r.db.QueryRowContext(ctx, query,
		userID, rule.Name, rule.Enabled, rule.SymbolPattern, rule.Exchange, rule.ApplyTo,
		tp, sl, tc, rule.Priority,
	).Scan(&id)
	return id, err
}

// Update overwrites userID's rule identified by id. Returns ErrRuleNotFound
// if no row matched (wrong owner, or the rule doesn't exist).
func (r *RuleRepository) Update(ctx context.Context, userID int64, id string, rule *models.ExitRule) error {
	tp, err := json.Marshal(rule.TakeProfit)
	if err != nil {
		return fmt.Errorf("repository: marshal take_profit: %w", err)
	}
	sl, err := json.Marshal(rule.StopLoss)
	if err != nil {
		return fmt.Errorf("repository: marshal stop_loss: %w", err)
	}
	tc, err := json.Marshal(rule.TimeConditions)
	if err != nil {
		return fmt.Errorf("repository: marshal time_conditions: %w", err)
	}

	const query = `
		UPDATE exit_rules
		SET name = $1, enabled = $2, symbol_pattern = $3, exchange = $4, apply_to = $5,
		    take_profit = $6, stop_loss = $7, time_conditions = $8, priority = $9
		WHERE id = $10 AND user_id = $11`

	res, err := r.db.ExecContext(ctx, query,
		rule.Name, rule.Enabled, rule.SymbolPattern, rule.Exchange, rule.ApplyTo,
		tp, sl, tc, rule.Priority, id, userID,
	)
	if err != nil {
		return err
	}
	return requireRowAffected(res, ErrRuleNotFound)
}

// Delete removes userID's rule identified by id.
func (r *RuleRepository) Delete(ctx context.Context, userID int64, id string) error {
	const query = `DELETE FROM exit_rules WHERE id = $1 AND user_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return err
	}
	return requireRowAffected(res, ErrRuleNotFound)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRule(row rowScanner) (*models.ExitRule, error) {
	var rule models.ExitRule
	var ownerID int64
	var tp, sl, tc []byte
	err := row.Scan(
		&rule.ID, &ownerID, &rule.Name, &rule.Enabled, &rule.SymbolPattern, &rule.Exchange, &rule.ApplyTo,
		&tp, &sl, &tc, &rule.Priority,
	)
	if err != nil {
		return nil, err
	}
	if len(tp) > 0 {
		if err := json.Unmarshal(tp, &rule.TakeProfit); err != nil {
			return nil, fmt.Errorf("repository: unmarshal take_profit: %w", err)
		}
	}
	if len(sl) > 0 {
		if err := json.Unmarshal(sl, &rule.StopLoss); err != nil {
			return nil, fmt.Errorf("repository: unmarshal stop_loss: %w", err)
		}
	}
	if len(tc) > 0 {
		if err := json.Unmarshal(tc, &rule.TimeConditions); err != nil {
			return nil, fmt.Errorf("repository: unmarshal time_conditions: %w", err)
		}
	}
	return &rule, nil
}

func requireRowAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

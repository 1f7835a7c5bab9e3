package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/devanshjainms/exitengine/internal/models"
)

// TradeLogRepository persists TradeLog rows, the durable record of every
// exit attempt the Exit Executor makes, independent of the Event Bus
// notification fan-out.
type TradeLogRepository struct {
	db *sql.DB
}

// NewTradeLogRepository builds a TradeLogRepository over db.
func NewTradeLogRepository(db *sql.DB) *TradeLogRepository {
	return &TradeLogRepository{db: db}
}

// LogTrade satisfies executor.TradeLogWriter, inserting one terminal
// exit-attempt record.
func (r *TradeLogRepository) LogTrade(ctx context.Context, entry *models.TradeLog) error {
	const query = `
		INSERT INTO trade_logs (user_id, symbol, exchange, side, quantity, price, order_id, order_type,
		                        trigger_type, trigger_price, status, reject_reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	return r.db.QueryRowContext(ctx, query,
		entry.UserID, entry.Symbol, entry.Exchange, entry.Side, entry.Quantity, entry.Price,
		entry.OrderID, entry.OrderType, entry.TriggerType, entry.TriggerPrice, entry.Status,
		entry.RejectReason, entry.CreatedAt,
	).Scan(&entry.ID)
}

// DeleteOlderThan satisfies engine.TradeLogPruner, removing every row whose
// created_at predates cutoff. Returns the number of rows removed.
func (r *TradeLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM trade_logs WHERE created_at < $1`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListByUser returns userID's most recent trade log rows, newest first,
// capped at limit (0 means the repository's own default of 100).
func (r *TradeLogRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*models.TradeLog, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `
		SELECT id, user_id, symbol, exchange, side, quantity, price, order_id, order_type,
		       trigger_type, trigger_price, status, reject_reason, created_at
		FROM trade_logs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.TradeLog
	for rows.Next() {
		entry := &models.TradeLog{}
		var orderID, rejectReason sql.NullString
		var triggerType sql.NullString
		var triggerPrice sql.NullFloat64
		err := rows.Scan(
			&entry.ID, &entry.UserID, &entry.Symbol, &entry.Exchange, &entry.Side, &entry.Quantity, &entry.Price,
			&orderID, &entry.OrderType, &triggerType, &triggerPrice, &entry.Status, &rejectReason, &entry.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		entry.OrderID = orderID.String
		entry.RejectReason = rejectReason.String
		entry.TriggerType = models.TriggerType(triggerType.String)
		entry.TriggerPrice = triggerPrice.Float64
		out = append(out, entry)
	}
	return out, rows.Err()
}

package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/maltedev/dampfi-automation/internal/models"
	"github.com/shopspring/decimal"
)

// DefaultOrderHistoryLimit is how many recent orders are returned per user.
const DefaultOrderHistoryLimit = 10

type OrderRepository struct {
	db querier
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) WithTx(tx *sql.Tx) *OrderRepository {
	return &OrderRepository{db: tx}
}

func (r *OrderRepository) Create(ctx context.Context, o *models.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("failed to encode items: %w", err)
	}

	var confirmation any
	if o.Confirmation != nil {
		data, err := json.Marshal(o.Confirmation)
		if err != nil {
			return fmt.Errorf("failed to encode confirmation: %w", err)
		}
		confirmation = data
	}

	query := `
		INSERT INTO orders (user_id, total_price, items, status, confirmation_data)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, timestamp`

	err = r.db.QueryRowContext(ctx, query,
		o.UserID, nullDecimal(o.TotalPrice), items, o.Status, confirmation,
	).Scan(&o.ID, &o.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

// ListByUser returns the newest orders of a user first. A non-positive limit uses the default.
func (r *OrderRepository) ListByUser(ctx context.Context, userID, limit int) ([]*models.Order, error) {
	if limit <= 0 {
		limit = DefaultOrderHistoryLimit
	}

	query := `
		SELECT id, user_id, timestamp, total_price, items, status, confirmation_data
		FROM orders
		WHERE user_id = $1
		ORDER BY timestamp DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]*models.Order, 0)
	for rows.Next() {
		var (
			o            models.Order
			total        decimal.NullDecimal
			items        []byte
			confirmation []byte
		)
		if err := rows.Scan(&o.ID, &o.UserID, &o.Timestamp, &total, &items, &o.Status, &confirmation); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		if total.Valid {
			o.TotalPrice = &total.Decimal
		}
		if err := json.Unmarshal(items, &o.Items); err != nil {
			return nil, fmt.Errorf("failed to decode items of order %d: %w", o.ID, err)
		}
		if len(confirmation) > 0 {
			o.Confirmation = &models.Confirmation{}
			if err := json.Unmarshal(confirmation, o.Confirmation); err != nil {
				return nil, fmt.Errorf("failed to decode confirmation of order %d: %w", o.ID, err)
			}
		}
		orders = append(orders, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return orders, nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"perpguard/internal/domain"
)

// OrderRepositoryImpl implements the OrderRepository interface
type OrderRepositoryImpl struct {
	db *pgxpool.Pool
}

// NewOrderRepository creates a new OrderRepository
func NewOrderRepository(db *pgxpool.Pool) domain.OrderRepository {
	return &OrderRepositoryImpl{db: db}
}

const orderColumns = `
	id, decision_id, position_id, symbol, side, type, size, price,
	stop_price, status, filled_size, avg_price, fail_reason,
	created_at, updated_at
`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	o := &domain.Order{}
	err := row.Scan(
		&o.ID,
		&o.DecisionID,
		&o.PositionID,
		&o.Symbol,
		&o.Side,
		&o.Type,
		&o.Size,
		&o.Price,
		&o.StopPrice,
		&o.Status,
		&o.FilledSize,
		&o.AvgPrice,
		&o.FailReason,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// Save creates a new order
func (r *OrderRepositoryImpl) Save(ctx context.Context, order *domain.Order) error {
	query := `
		INSERT INTO orders (
			id, decision_id, position_id, symbol, side, type, size, price,
			stop_price, status, filled_size, avg_price, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)
	`

	_, err := r.db.Exec(ctx, query,
		order.ID,
		order.DecisionID,
		order.PositionID,
		order.Symbol,
		order.Side,
		order.Type,
		order.Size,
		order.Price,
		order.StopPrice,
		order.Status,
		order.FilledSize,
		order.AvgPrice,
		order.CreatedAt,
		order.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}

	return nil
}

// UpdateStatus applies a monotonic status transition together with the
// order's fill fields. Regressions from terminal states are refused here,
// not just at the call site.
func (r *OrderRepositoryImpl) UpdateStatus(ctx context.Context, order *domain.Order, status string, failReason *string) error {
	if !order.CanTransition(status) {
		return fmt.Errorf("illegal order status transition %s -> %s", order.Status, status)
	}

	query := `
		UPDATE orders
		SET status = $1, filled_size = $2, avg_price = $3, fail_reason = $4, updated_at = NOW()
		WHERE id = $5
	`

	if _, err := r.db.Exec(ctx, query, status, order.FilledSize, order.AvgPrice, failReason, order.ID); err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	order.Status = status
	order.FailReason = failReason
	order.UpdatedAt = time.Now()
	return nil
}

// GetByID retrieves an order by ID
func (r *OrderRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get order by ID: %w", err)
	}

	return order, nil
}

// GetRecent retrieves the most recent orders
func (r *OrderRepositoryImpl) GetRecent(ctx context.Context, limit int) ([]*domain.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, nil
}

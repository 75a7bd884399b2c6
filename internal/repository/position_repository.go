package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"perpguard/internal/domain"
)

// PositionRepositoryImpl implements the PositionRepository interface
type PositionRepositoryImpl struct {
	db *pgxpool.Pool
}

// NewPositionRepository creates a new PositionRepository
func NewPositionRepository(db *pgxpool.Pool) domain.PositionRepository {
	return &PositionRepositoryImpl{db: db}
}

const positionColumns = `
	id, decision_id, symbol, side, size, entry_price, current_price,
	leverage, margin_used, sl_price, tp_price, peak_price, peak_at,
	trailing_active, original_sl, realized_pnl, unrealized_pnl,
	status, close_reason, created_at, closed_at
`

func scanPosition(row pgx.Row) (*domain.Position, error) {
	p := &domain.Position{}
	err := row.Scan(
		&p.ID,
		&p.DecisionID,
		&p.Symbol,
		&p.Side,
		&p.Size,
		&p.EntryPrice,
		&p.CurrentPrice,
		&p.Leverage,
		&p.MarginUsed,
		&p.SLPrice,
		&p.TPPrice,
		&p.PeakPrice,
		&p.PeakAt,
		&p.TrailingActive,
		&p.OriginalSL,
		&p.RealizedPnL,
		&p.UnrealizedPnL,
		&p.Status,
		&p.CloseReason,
		&p.CreatedAt,
		&p.ClosedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Save creates a new position
func (r *PositionRepositoryImpl) Save(ctx context.Context, position *domain.Position) error {
	query := `
		INSERT INTO positions (
			id, decision_id, symbol, side, size, entry_price, current_price,
			leverage, margin_used, sl_price, tp_price, status, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
	`

	_, err := r.db.Exec(ctx, query,
		position.ID,
		position.DecisionID,
		position.Symbol,
		position.Side,
		position.Size,
		position.EntryPrice,
		position.CurrentPrice,
		position.Leverage,
		position.MarginUsed,
		position.SLPrice,
		position.TPPrice,
		position.Status,
		position.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save position: %w", err)
	}

	return nil
}

// GetByID retrieves a position by ID
func (r *PositionRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE id = $1`

	position, err := scanPosition(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get position by ID: %w", err)
	}

	return position, nil
}

// GetOpenPositions retrieves all open positions
func (r *PositionRepositoryImpl) GetOpenPositions(ctx context.Context) ([]*domain.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM positions
		WHERE status = 'OPEN'
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query open positions: %w", err)
	}
	defer rows.Close()

	var positions []*domain.Position
	for rows.Next() {
		position, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, position)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating positions: %w", err)
	}

	return positions, nil
}

// GetOpenBySymbol retrieves the open position for a symbol, or nil
func (r *PositionRepositoryImpl) GetOpenBySymbol(ctx context.Context, symbol string) (*domain.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM positions
		WHERE status = 'OPEN' AND symbol = $1
		LIMIT 1
	`

	position, err := scanPosition(r.db.QueryRow(ctx, query, symbol))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get open position for %s: %w", symbol, err)
	}

	return position, nil
}

// CountOpen returns the number of currently open positions
func (r *PositionRepositoryImpl) CountOpen(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM positions WHERE status = 'OPEN'`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count open positions: %w", err)
	}
	return count, nil
}

// Update persists mutable position fields
func (r *PositionRepositoryImpl) Update(ctx context.Context, position *domain.Position) error {
	query := `
		UPDATE positions
		SET current_price = $1,
		    sl_price = $2,
		    tp_price = $3,
		    peak_price = $4,
		    peak_at = $5,
		    trailing_active = $6,
		    original_sl = $7,
		    realized_pnl = $8,
		    unrealized_pnl = $9,
		    status = $10,
		    close_reason = $11,
		    closed_at = $12
		WHERE id = $13
	`

	_, err := r.db.Exec(ctx, query,
		position.CurrentPrice,
		position.SLPrice,
		position.TPPrice,
		position.PeakPrice,
		position.PeakAt,
		position.TrailingActive,
		position.OriginalSL,
		position.RealizedPnL,
		position.UnrealizedPnL,
		position.Status,
		position.CloseReason,
		position.ClosedAt,
		position.ID,
	)

	if err != nil {
		return fmt.Errorf("failed to update position: %w", err)
	}

	return nil
}

// GetRealizedPnLSince sums realized PnL of positions closed since the given time
func (r *PositionRepositoryImpl) GetRealizedPnLSince(ctx context.Context, since time.Time) (float64, error) {
	query := `
		SELECT COALESCE(SUM(realized_pnl), 0)
		FROM positions
		WHERE status = 'CLOSED' AND closed_at >= $1
	`

	var total float64
	if err := r.db.QueryRow(ctx, query, since).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum realized PnL: %w", err)
	}

	return total, nil
}

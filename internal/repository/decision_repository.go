package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"perpguard/internal/domain"
)

// DecisionRepositoryImpl implements the DecisionRepository interface
type DecisionRepositoryImpl struct {
	db *pgxpool.Pool
}

// NewDecisionRepository creates a new DecisionRepository
func NewDecisionRepository(db *pgxpool.Pool) domain.DecisionRepository {
	return &DecisionRepositoryImpl{db: db}
}

const decisionColumns = `
	id, cycle_id, symbol, operation, side, confidence, leverage, size,
	entry_price, sl_price, tp_price, reasoning, status, rejection_reason,
	volatility_level, next_interval_min, synthetic, created_at, resolved_at
`

func scanDecision(row pgx.Row) (*domain.TradingDecision, error) {
	d := &domain.TradingDecision{}
	err := row.Scan(
		&d.ID,
		&d.CycleID,
		&d.Symbol,
		&d.Operation,
		&d.Side,
		&d.Confidence,
		&d.Leverage,
		&d.Size,
		&d.EntryPrice,
		&d.SLPrice,
		&d.TPPrice,
		&d.Reasoning,
		&d.Status,
		&d.RejectionReason,
		&d.VolatilityLevel,
		&d.NextIntervalMin,
		&d.Synthetic,
		&d.CreatedAt,
		&d.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Save saves a new decision to the database
func (r *DecisionRepositoryImpl) Save(ctx context.Context, decision *domain.TradingDecision) error {
	query := `
		INSERT INTO trading_decisions (
			id, cycle_id, symbol, operation, side, confidence, leverage,
			size, entry_price, sl_price, tp_price, reasoning, status,
			volatility_level, next_interval_min, synthetic, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17
		)
	`

	_, err := r.db.Exec(ctx, query,
		decision.ID,
		decision.CycleID,
		decision.Symbol,
		decision.Operation,
		decision.Side,
		decision.Confidence,
		decision.Leverage,
		decision.Size,
		decision.EntryPrice,
		decision.SLPrice,
		decision.TPPrice,
		decision.Reasoning,
		decision.Status,
		decision.VolatilityLevel,
		decision.NextIntervalMin,
		decision.Synthetic,
		decision.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save decision: %w", err)
	}

	return nil
}

// Update persists status, rejection reason and sizing fields
func (r *DecisionRepositoryImpl) Update(ctx context.Context, decision *domain.TradingDecision) error {
	query := `
		UPDATE trading_decisions
		SET status = $1,
		    rejection_reason = $2,
		    size = $3,
		    leverage = $4,
		    entry_price = $5,
		    volatility_level = $6,
		    next_interval_min = $7,
		    resolved_at = $8
		WHERE id = $9
	`

	_, err := r.db.Exec(ctx, query,
		decision.Status,
		decision.RejectionReason,
		decision.Size,
		decision.Leverage,
		decision.EntryPrice,
		decision.VolatilityLevel,
		decision.NextIntervalMin,
		decision.ResolvedAt,
		decision.ID,
	)

	if err != nil {
		return fmt.Errorf("failed to update decision: %w", err)
	}

	return nil
}

// GetByID retrieves a decision by its ID
func (r *DecisionRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*domain.TradingDecision, error) {
	query := `SELECT ` + decisionColumns + ` FROM trading_decisions WHERE id = $1`

	decision, err := scanDecision(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get decision by ID: %w", err)
	}

	return decision, nil
}

// GetRecent retrieves the most recent decisions
func (r *DecisionRepositoryImpl) GetRecent(ctx context.Context, limit int) ([]*domain.TradingDecision, error) {
	query := `
		SELECT ` + decisionColumns + `
		FROM trading_decisions
		ORDER BY created_at DESC
		LIMIT $1
	`

	return r.queryDecisions(ctx, query, limit)
}

// GetBySymbol retrieves decisions for a specific symbol
func (r *DecisionRepositoryImpl) GetBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.TradingDecision, error) {
	query := `
		SELECT ` + decisionColumns + `
		FROM trading_decisions
		WHERE symbol = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	return r.queryDecisions(ctx, query, symbol, limit)
}

func (r *DecisionRepositoryImpl) queryDecisions(ctx context.Context, query string, args ...interface{}) ([]*domain.TradingDecision, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions: %w", err)
	}
	defer rows.Close()

	var decisions []*domain.TradingDecision
	for rows.Next() {
		decision, err := scanDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		decisions = append(decisions, decision)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating decisions: %w", err)
	}

	return decisions, nil
}

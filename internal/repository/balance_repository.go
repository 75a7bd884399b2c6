package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"perpguard/internal/domain"
)

// BalanceRepositoryImpl implements the append-only balance ledger
type BalanceRepositoryImpl struct {
	db *pgxpool.Pool
}

// NewBalanceRepository creates a new BalanceRepository
func NewBalanceRepository(db *pgxpool.Pool) domain.BalanceRepository {
	return &BalanceRepositoryImpl{db: db}
}

const balanceColumns = `
	id, balance, prev_balance, delta, event_type, expected_pnl,
	unexplained, recorded_at
`

func scanBalance(row pgx.Row) (*domain.AccountBalance, error) {
	b := &domain.AccountBalance{}
	err := row.Scan(
		&b.ID,
		&b.Balance,
		&b.PrevBalance,
		&b.Delta,
		&b.EventType,
		&b.ExpectedPnL,
		&b.Unexplained,
		&b.RecordedAt,
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Append records a new ledger entry. There is no update path; the ledger
// is append-only.
func (r *BalanceRepositoryImpl) Append(ctx context.Context, entry *domain.AccountBalance) error {
	query := `
		INSERT INTO account_balances (
			id, balance, prev_balance, delta, event_type, expected_pnl,
			unexplained, recorded_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
	`

	_, err := r.db.Exec(ctx, query,
		entry.ID,
		entry.Balance,
		entry.PrevBalance,
		entry.Delta,
		entry.EventType,
		entry.ExpectedPnL,
		entry.Unexplained,
		entry.RecordedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to append balance entry: %w", err)
	}

	return nil
}

// GetLatest retrieves the most recent ledger entry, or nil if none exists
func (r *BalanceRepositoryImpl) GetLatest(ctx context.Context) (*domain.AccountBalance, error) {
	query := `
		SELECT ` + balanceColumns + `
		FROM account_balances
		ORDER BY recorded_at DESC
		LIMIT 1
	`

	entry, err := scanBalance(r.db.QueryRow(ctx, query))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest balance entry: %w", err)
	}

	return entry, nil
}

// GetInitial retrieves the INITIAL baseline entry, or nil if none exists
func (r *BalanceRepositoryImpl) GetInitial(ctx context.Context) (*domain.AccountBalance, error) {
	query := `
		SELECT ` + balanceColumns + `
		FROM account_balances
		WHERE event_type = 'INITIAL'
		ORDER BY recorded_at ASC
		LIMIT 1
	`

	entry, err := scanBalance(r.db.QueryRow(ctx, query))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get initial balance entry: %w", err)
	}

	return entry, nil
}

// SumByEventType totals the unexplained components of entries with the
// given event type. For DEPOSIT and WITHDRAWAL rows this is the capital
// moved, excluding any trading PnL realized in the same sync window.
func (r *BalanceRepositoryImpl) SumByEventType(ctx context.Context, eventType string) (float64, error) {
	query := `
		SELECT COALESCE(SUM(unexplained), 0)
		FROM account_balances
		WHERE event_type = $1
	`

	var total float64
	if err := r.db.QueryRow(ctx, query, eventType).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum %s entries: %w", eventType, err)
	}

	return total, nil
}

// GetRecent retrieves the most recent ledger entries
func (r *BalanceRepositoryImpl) GetRecent(ctx context.Context, limit int) ([]*domain.AccountBalance, error) {
	query := `
		SELECT ` + balanceColumns + `
		FROM account_balances
		ORDER BY recorded_at DESC
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query balance entries: %w", err)
	}
	defer rows.Close()

	var entries []*domain.AccountBalance
	for rows.Next() {
		entry, err := scanBalance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan balance entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating balance entries: %w", err)
	}

	return entries, nil
}

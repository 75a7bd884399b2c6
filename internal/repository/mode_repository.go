package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"perpguard/internal/domain"
)

// ModeRepositoryImpl owns the singleton trading_mode row
type ModeRepositoryImpl struct {
	db *pgxpool.Pool
}

// NewModeRepository creates a new ModeRepository
func NewModeRepository(db *pgxpool.Pool) domain.ModeRepository {
	return &ModeRepositoryImpl{db: db}
}

// Get returns the current trading mode. A missing row means the system
// has never been switched; the default is ENABLED.
func (r *ModeRepositoryImpl) Get(ctx context.Context) (*domain.TradingMode, error) {
	mode := &domain.TradingMode{}
	err := r.db.QueryRow(ctx, `
		SELECT mode, changed_by, reason, changed_at
		FROM trading_mode
		WHERE singleton = TRUE
	`).Scan(&mode.Mode, &mode.ChangedBy, &mode.Reason, &mode.ChangedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &domain.TradingMode{
				Mode:      domain.ModeEnabled,
				ChangedBy: domain.ChangedBySystem,
				Reason:    "default",
				ChangedAt: time.Now(),
			}, nil
		}
		return nil, fmt.Errorf("failed to get trading mode: %w", err)
	}

	return mode, nil
}

// Switch atomically replaces the live mode record. The singleton column
// carries a unique constraint, so concurrent switches serialize on the
// row and the last write wins with a consistent record.
func (r *ModeRepositoryImpl) Switch(ctx context.Context, mode, changedBy, reason string) error {
	if !domain.ValidMode(mode) {
		return fmt.Errorf("invalid trading mode: %s", mode)
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO trading_mode (singleton, mode, changed_by, reason, changed_at)
		VALUES (TRUE, $1, $2, $3, NOW())
		ON CONFLICT (singleton) DO UPDATE SET
			mode = EXCLUDED.mode,
			changed_by = EXCLUDED.changed_by,
			reason = EXCLUDED.reason,
			changed_at = EXCLUDED.changed_at
	`, mode, changedBy, reason)

	if err != nil {
		return fmt.Errorf("failed to switch trading mode: %w", err)
	}

	return nil
}

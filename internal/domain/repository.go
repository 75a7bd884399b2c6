package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PositionRepository defines the interface for position persistence
type PositionRepository interface {
	// Save creates a new position
	Save(ctx context.Context, position *Position) error

	// GetByID retrieves a position by ID
	GetByID(ctx context.Context, id uuid.UUID) (*Position, error)

	// GetOpenPositions retrieves all open positions
	GetOpenPositions(ctx context.Context) ([]*Position, error)

	// GetOpenBySymbol retrieves the open position for a symbol, if any
	GetOpenBySymbol(ctx context.Context, symbol string) (*Position, error)

	// CountOpen returns the number of currently open positions
	CountOpen(ctx context.Context) (int, error)

	// Update persists mutable position fields (price marks, trailing
	// state, close fields)
	Update(ctx context.Context, position *Position) error

	// GetRealizedPnLSince sums realized PnL of positions closed since the
	// given time
	GetRealizedPnLSince(ctx context.Context, since time.Time) (float64, error)
}

// DecisionRepository defines the interface for trading decision persistence
type DecisionRepository interface {
	// Save saves a new decision
	Save(ctx context.Context, decision *TradingDecision) error

	// Update persists status, rejection reason and sizing fields
	Update(ctx context.Context, decision *TradingDecision) error

	// GetByID retrieves a decision by ID
	GetByID(ctx context.Context, id uuid.UUID) (*TradingDecision, error)

	// GetRecent retrieves the most recent decisions
	GetRecent(ctx context.Context, limit int) ([]*TradingDecision, error)

	// GetBySymbol retrieves decisions for a specific symbol
	GetBySymbol(ctx context.Context, symbol string, limit int) ([]*TradingDecision, error)
}

// OrderRepository defines the interface for order persistence
type OrderRepository interface {
	// Save creates a new order
	Save(ctx context.Context, order *Order) error

	// UpdateStatus applies a monotonic status transition along with the
	// order's fill fields, and mirrors it on the passed order.
	// Implementations must refuse regressions from terminal states.
	UpdateStatus(ctx context.Context, order *Order, status string, failReason *string) error

	// GetByID retrieves an order by ID
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)

	// GetRecent retrieves the most recent orders
	GetRecent(ctx context.Context, limit int) ([]*Order, error)
}

// BalanceRepository defines the interface for the append-only balance ledger
type BalanceRepository interface {
	// Append records a new ledger entry. Entries are immutable.
	Append(ctx context.Context, entry *AccountBalance) error

	// GetLatest retrieves the most recent ledger entry, or nil if none
	GetLatest(ctx context.Context) (*AccountBalance, error)

	// GetInitial retrieves the INITIAL baseline entry, or nil if none
	GetInitial(ctx context.Context) (*AccountBalance, error)

	// SumByEventType totals the unexplained components of entries with
	// the given event type
	SumByEventType(ctx context.Context, eventType string) (float64, error)

	// GetRecent retrieves the most recent ledger entries
	GetRecent(ctx context.Context, limit int) ([]*AccountBalance, error)
}

// ModeRepository owns the singleton trading mode record
type ModeRepository interface {
	// Get returns the current trading mode (default ENABLED if unset)
	Get(ctx context.Context) (*TradingMode, error)

	// Switch atomically replaces the live mode record
	Switch(ctx context.Context, mode, changedBy, reason string) error
}

// ExecutionLogRepository persists audit entries
type ExecutionLogRepository interface {
	Save(ctx context.Context, entry *ExecutionLog) error
	GetByRef(ctx context.Context, refKind string, refID uuid.UUID, limit int) ([]*ExecutionLog, error)
}

// SettingsRepository handles key/value system settings (active risk profile)
type SettingsRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// OperatorRepository defines the interface for operator account lookups
type OperatorRepository interface {
	Create(ctx context.Context, op *Operator) error
	GetByUsername(ctx context.Context, username string) (*Operator, error)
}

package domain

import "context"

// ReasoningAgent is the external decision generator, consumed as a black
// box that returns one structured decision per symbol.
type ReasoningAgent interface {
	// DecideAll requests decisions for the asset universe given the
	// current macro strategy. Blocking; may fail with rate-limit, API or
	// configuration errors.
	DecideAll(ctx context.Context, macroStrategy string) ([]*TradingDecision, error)
}

// OrderExecutor executes an approved decision against the exchange,
// writing the fill outcome onto the caller's submitted order. Unsupported
// write paths return ErrWriteNotSupported.
type OrderExecutor interface {
	Execute(ctx context.Context, decision *TradingDecision, order *Order) error
}

// ExchangeClient is the minimal exchange read surface the core consumes
type ExchangeClient interface {
	// AllMids returns current mid prices keyed by symbol
	AllMids(ctx context.Context) (map[string]float64, error)

	// UserState returns the account state (balance, margin) for an address
	UserState(ctx context.Context, address string) (*AccountState, error)
}

// AccountState is the exchange-reported account snapshot
type AccountState struct {
	AccountValue     float64 `json:"account_value"`
	AvailableMargin  float64 `json:"available_margin"`
	TotalMarginUsed  float64 `json:"total_margin_used"`
	WithdrawableUSDC float64 `json:"withdrawable_usdc"`
}

// AccountManager answers affordability and exposure queries for the
// risk validator.
type AccountManager interface {
	AccountValue(ctx context.Context) (float64, error)
	HasOpenPosition(ctx context.Context, symbol string) (bool, error)
	CanTrade(ctx context.Context, marginRequired float64) (bool, error)
}

// ReadinessResult is the verdict of the pre-cycle readiness gate
type ReadinessResult struct {
	Ready   bool     `json:"ready"`
	Missing []string `json:"missing,omitempty"`
}

// ReadinessChecker gates the cycle on required inputs being fresh
type ReadinessChecker interface {
	Check(ctx context.Context) (*ReadinessResult, error)
}

// IndicatorSource exposes the technical indicator values the core
// consumes as plain numbers (computed elsewhere).
type IndicatorSource interface {
	// RSI returns the current RSI reading for a symbol (0-100)
	RSI(ctx context.Context, symbol string) (float64, error)

	// ATR returns the current average true range for a symbol
	ATR(ctx context.Context, symbol string) (float64, error)
}

// MacroStrategyProvider supplies the macro strategy consumed by the agent
type MacroStrategyProvider interface {
	// Current returns the macro strategy text and whether it is stale
	Current(ctx context.Context) (strategy string, stale bool, err error)

	// Refresh synchronously regenerates the macro strategy
	Refresh(ctx context.Context) (string, error)
}

// NotificationService pushes operator-facing alerts (mode flips,
// circuit-breaker trips, monitor closes). Implementations silently
// no-op when unconfigured.
type NotificationService interface {
	SendAlert(title, body string) error
}

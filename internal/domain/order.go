package domain

import (
	"time"

	"github.com/google/uuid"
)

// Order represents an exchange order produced by executing a decision
type Order struct {
	ID         uuid.UUID  `json:"id"`
	DecisionID *uuid.UUID `json:"decision_id,omitempty"`
	PositionID *uuid.UUID `json:"position_id,omitempty"`
	Symbol     string     `json:"symbol"`
	Side       string     `json:"side"`
	Type       string     `json:"type"`
	Size       float64    `json:"size"`
	Price      *float64   `json:"price,omitempty"`      // Required for LIMIT and STOP_LIMIT
	StopPrice  *float64   `json:"stop_price,omitempty"` // Required for STOP_LIMIT
	Status     string     `json:"status"`
	FilledSize float64    `json:"filled_size"`
	AvgPrice   *float64   `json:"avg_price,omitempty"`
	FailReason *string    `json:"fail_reason,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// NewSubmittedOrder builds the market order row for a decision about to
// be handed to the executor. It starts SUBMITTED; the caller transitions
// it to FILLED or FAILED once the engine answers.
func NewSubmittedOrder(decision *TradingDecision) *Order {
	now := time.Now()
	return &Order{
		ID:         uuid.New(),
		DecisionID: &decision.ID,
		Symbol:     decision.Symbol,
		Side:       decision.Side,
		Type:       OrderTypeMarket,
		Size:       decision.Size,
		Status:     OrderSubmitted,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// OrderType constants
const (
	OrderTypeMarket    = "MARKET"
	OrderTypeLimit     = "LIMIT"
	OrderTypeStopLimit = "STOP_LIMIT"
)

// OrderStatus constants
const (
	OrderPending         = "PENDING"
	OrderSubmitted       = "SUBMITTED"
	OrderFilled          = "FILLED"
	OrderPartiallyFilled = "PARTIALLY_FILLED"
	OrderCancelled       = "CANCELLED"
	OrderFailed          = "FAILED"
)

// orderStatusRank orders the lifecycle so that transitions never regress.
// FILLED, CANCELLED and FAILED are terminal.
var orderStatusRank = map[string]int{
	OrderPending:         0,
	OrderSubmitted:       1,
	OrderPartiallyFilled: 2,
	OrderFilled:          3,
	OrderCancelled:       3,
	OrderFailed:          3,
}

// IsTerminal reports whether the order status admits no further transition
func (o *Order) IsTerminal() bool {
	switch o.Status {
	case OrderFilled, OrderCancelled, OrderFailed:
		return true
	}
	return false
}

// CanTransition reports whether moving the order to the target status is a
// legal (monotonic) lifecycle transition.
func (o *Order) CanTransition(target string) bool {
	from, ok := orderStatusRank[o.Status]
	if !ok {
		return false
	}
	to, ok := orderStatusRank[target]
	if !ok {
		return false
	}
	if o.IsTerminal() {
		return false
	}
	return to > from
}

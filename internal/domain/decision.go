package domain

import (
	"time"

	"github.com/google/uuid"
)

// TradingDecision is one proposed action for one symbol in one cycle.
// Decisions come either from the reasoning agent or are synthesized by the
// stop monitors (Synthetic=true, bypassing the agent entirely).
type TradingDecision struct {
	ID              uuid.UUID  `json:"id"`
	CycleID         *uuid.UUID `json:"cycle_id,omitempty"`
	Symbol          string     `json:"symbol"`
	Operation       string     `json:"operation"`
	Side            string     `json:"side"`
	Confidence      float64    `json:"confidence"` // [0,1]
	Leverage        float64    `json:"leverage"`
	Size            float64    `json:"size"`
	EntryPrice      *float64   `json:"entry_price,omitempty"`
	SLPrice         *float64   `json:"sl_price,omitempty"`
	TPPrice         *float64   `json:"tp_price,omitempty"`
	Reasoning       string     `json:"reasoning"`
	Status          string     `json:"status"`
	RejectionReason *string    `json:"rejection_reason,omitempty"`
	VolatilityLevel string     `json:"volatility_level,omitempty"`
	NextIntervalMin int        `json:"next_interval_min,omitempty"`
	Synthetic       bool       `json:"synthetic"`
	CreatedAt       time.Time  `json:"created_at"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
}

// DecisionOperation constants
const (
	OperationOpen  = "OPEN"
	OperationClose = "CLOSE"
	OperationHold  = "HOLD"
)

// DecisionStatus constants. EXECUTED, FAILED and REJECTED are terminal.
const (
	DecisionPending  = "PENDING"
	DecisionApproved = "APPROVED"
	DecisionRejected = "REJECTED"
	DecisionExecuted = "EXECUTED"
	DecisionFailed   = "FAILED"
)

// IsActionable reports whether the decision asks for an executable action
func (d *TradingDecision) IsActionable() bool {
	return d.Operation == OperationOpen || d.Operation == OperationClose
}

// Reject marks the decision terminally rejected with a reason.
// Rejections are expected control flow, not errors; they are never retried
// within the cycle.
func (d *TradingDecision) Reject(reason string) {
	now := time.Now()
	d.Status = DecisionRejected
	d.RejectionReason = &reason
	d.ResolvedAt = &now
}

// MarkExecuted moves the decision to its terminal EXECUTED state
func (d *TradingDecision) MarkExecuted() {
	now := time.Now()
	d.Status = DecisionExecuted
	d.ResolvedAt = &now
}

// MarkFailed moves the decision to its terminal FAILED state
func (d *TradingDecision) MarkFailed(reason string) {
	now := time.Now()
	d.Status = DecisionFailed
	d.RejectionReason = &reason
	d.ResolvedAt = &now
}

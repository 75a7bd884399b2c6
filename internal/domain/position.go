package domain

import (
	"time"

	"github.com/google/uuid"
)

// Position represents a leveraged perp-futures position
type Position struct {
	ID             uuid.UUID  `json:"id"`
	DecisionID     *uuid.UUID `json:"decision_id,omitempty"`
	Symbol         string     `json:"symbol"`
	Side           string     `json:"side"`
	Size           float64    `json:"size"` // Position size in base asset (e.g., BTC, ETH)
	EntryPrice     float64    `json:"entry_price"`
	CurrentPrice   float64    `json:"current_price"`
	Leverage       float64    `json:"leverage"`
	MarginUsed     float64    `json:"margin_used"`
	SLPrice        *float64   `json:"sl_price,omitempty"`
	TPPrice        *float64   `json:"tp_price,omitempty"`
	PeakPrice      *float64   `json:"peak_price,omitempty"`
	PeakAt         *time.Time `json:"peak_at,omitempty"`
	TrailingActive bool       `json:"trailing_active"`
	OriginalSL     *float64   `json:"original_sl,omitempty"` // SL before the trailing stop took over
	RealizedPnL    *float64   `json:"realized_pnl,omitempty"`
	UnrealizedPnL  float64    `json:"unrealized_pnl"`
	Status         string     `json:"status"`
	CloseReason    *string    `json:"close_reason,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"` // Set iff Status is CLOSED
}

// PositionSide constants
const (
	SideLong  = "LONG"
	SideShort = "SHORT"
)

// PositionStatus constants
const (
	PositionOpen    = "OPEN"
	PositionClosing = "CLOSING"
	PositionClosed  = "CLOSED"
)

// CloseReason constants (what terminated the position)
const (
	CloseReasonStopLoss   = "STOP_LOSS"
	CloseReasonTakeProfit = "TAKE_PROFIT"
	CloseReasonManual     = "MANUAL"
	CloseReasonSignal     = "SIGNAL"
	CloseReasonLiquidated = "LIQUIDATED"
)

// IsLong checks if the position is a LONG position
func (p *Position) IsLong() bool {
	return p.Side == SideLong
}

// NotionalValue returns size x price, total exposure ignoring leverage
func (p *Position) NotionalValue() float64 {
	return p.Size * p.CurrentPrice
}

// GrossPnL calculates the unrealized PnL at the given price
func (p *Position) GrossPnL(currentPrice float64) float64 {
	if p.IsLong() {
		return (currentPrice - p.EntryPrice) * p.Size
	}
	// Short
	return (p.EntryPrice - currentPrice) * p.Size
}

// PnLPercent calculates PnL relative to the margin actually used.
// Futures convention: PnL % = (PnL / Initial Margin) x 100 where
// Initial Margin = (Size x Entry) / Leverage.
func (p *Position) PnLPercent(currentPrice float64) float64 {
	if p.EntryPrice == 0 || p.Size == 0 {
		return 0
	}

	leverage := p.Leverage
	if leverage < 1 {
		leverage = 1
	}

	pnl := p.GrossPnL(currentPrice)
	initialMargin := (p.Size * p.EntryPrice) / leverage
	if initialMargin == 0 {
		return 0
	}

	return (pnl / initialMargin) * 100
}

// HasProtection reports whether the position carries at least one of SL/TP.
// Positions without any protection are skipped (and counted) by the monitors.
func (p *Position) HasProtection() bool {
	return p.SLPrice != nil || p.TPPrice != nil
}

// CheckSLTP checks whether the stop-loss or take-profit is hit at the
// given price. Stop-loss is evaluated before take-profit for both sides.
func (p *Position) CheckSLTP(currentPrice float64) (shouldClose bool, closeReason string) {
	if p.IsLong() {
		if p.SLPrice != nil && currentPrice <= *p.SLPrice {
			return true, CloseReasonStopLoss
		}
		if p.TPPrice != nil && currentPrice >= *p.TPPrice {
			return true, CloseReasonTakeProfit
		}
	} else {
		if p.SLPrice != nil && currentPrice >= *p.SLPrice {
			return true, CloseReasonStopLoss
		}
		if p.TPPrice != nil && currentPrice <= *p.TPPrice {
			return true, CloseReasonTakeProfit
		}
	}
	return false, ""
}

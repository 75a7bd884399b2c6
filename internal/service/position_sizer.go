package service

import (
	"math"

	"perpguard/internal/domain"
)

// SizingResult is the outcome of one position sizing calculation
type SizingResult struct {
	Size        float64 `json:"size"`
	RiskAmount  float64 `json:"risk_amount"`
	RiskPerUnit float64 `json:"risk_per_unit"`
	Capped      bool    `json:"capped"`
}

// PositionSizer converts a risk budget and stop distance into an order
// size. The calculation is pure; the caller supplies the account value.
type PositionSizer struct{}

// NewPositionSizer creates a new PositionSizer
func NewPositionSizer() *PositionSizer {
	return &PositionSizer{}
}

// Size computes the bounded position size for an entry. A nil stop-loss
// or a zero stop distance disables sizing: the open cannot be risk-bounded
// and ErrCannotSize is returned.
func (s *PositionSizer) Size(entryPrice float64, slPrice *float64, accountValue float64, params domain.RiskParams) (*SizingResult, error) {
	if slPrice == nil {
		return nil, domain.ErrCannotSize
	}

	riskPerUnit := math.Abs(entryPrice - *slPrice)
	if riskPerUnit == 0 {
		return nil, domain.ErrCannotSize
	}

	maxRiskAmount := accountValue * params.MaxRiskPerTrade
	rawSize := maxRiskAmount / riskPerUnit

	result := &SizingResult{
		Size:        rawSize,
		RiskAmount:  maxRiskAmount,
		RiskPerUnit: riskPerUnit,
	}

	if rawSize > params.MaxPositionSize {
		result.Size = params.MaxPositionSize
		result.RiskAmount = result.Size * riskPerUnit
		result.Capped = true
	}

	return result, nil
}

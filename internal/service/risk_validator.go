package service

import (
	"context"
	"fmt"
	"log"
	"math"

	"perpguard/internal/domain"
)

// ValidationResult is the verdict of the risk pipeline for one decision.
// A rejection is expected control flow, not an error.
type ValidationResult struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason,omitempty"`
}

func rejected(format string, args ...interface{}) ValidationResult {
	return ValidationResult{Approved: false, Reason: fmt.Sprintf(format, args...)}
}

var approved = ValidationResult{Approved: true}

// RiskValidator is the stateless multi-rule pipeline applied to one
// proposed decision. Rules run in order and short-circuit on the first
// failure.
type RiskValidator struct {
	positionRepo domain.PositionRepository
	account      domain.AccountManager

	maxOpenPositions  int
	enforceRiskReward bool
}

// NewRiskValidator creates a new RiskValidator
func NewRiskValidator(positionRepo domain.PositionRepository, account domain.AccountManager, maxOpenPositions int, enforceRiskReward bool) *RiskValidator {
	return &RiskValidator{
		positionRepo:      positionRepo,
		account:           account,
		maxOpenPositions:  maxOpenPositions,
		enforceRiskReward: enforceRiskReward,
	}
}

// Validate runs the pipeline for one decision at the given entry price
func (v *RiskValidator) Validate(ctx context.Context, decision *domain.TradingDecision, entryPrice float64, params domain.RiskParams) (ValidationResult, error) {
	// 1. HOLD is not an executable operation.
	if decision.Operation == domain.OperationHold {
		return rejected("hold operations are not executable"), nil
	}

	// 2. Confidence floor.
	if decision.Confidence < params.MinConfidence {
		return rejected("confidence %.2f below minimum %.2f", decision.Confidence, params.MinConfidence), nil
	}

	// 3. Leverage ceiling. A decision without explicit leverage uses the
	// profile maximum.
	leverage := decision.Leverage
	if leverage <= 0 {
		leverage = params.MaxLeverage
	}
	if leverage > params.MaxLeverage {
		return rejected("leverage %.0fx exceeds maximum %.0fx", leverage, params.MaxLeverage), nil
	}

	// 4. Open position cap.
	openCount, err := v.positionRepo.CountOpen(ctx)
	if err != nil {
		return ValidationResult{}, fmt.Errorf("failed to count open positions: %w", err)
	}
	if openCount >= v.maxOpenPositions {
		return rejected("open position limit reached (%d/%d)", openCount, v.maxOpenPositions), nil
	}

	switch decision.Operation {
	case domain.OperationOpen:
		return v.validateOpen(ctx, decision, entryPrice, leverage, params)
	case domain.OperationClose:
		return v.validateClose(ctx, decision)
	}

	return rejected("unknown operation: %s", decision.Operation), nil
}

func (v *RiskValidator) validateOpen(ctx context.Context, decision *domain.TradingDecision, entryPrice, leverage float64, params domain.RiskParams) (ValidationResult, error) {
	// 5. One position per symbol, and the margin must be affordable.
	hasOpen, err := v.account.HasOpenPosition(ctx, decision.Symbol)
	if err != nil {
		return ValidationResult{}, fmt.Errorf("failed to check open position for %s: %w", decision.Symbol, err)
	}
	if hasOpen {
		return rejected("position already open for %s", decision.Symbol), nil
	}

	if decision.Size > 0 && entryPrice > 0 && leverage > 0 {
		marginRequired := decision.Size * entryPrice / leverage
		canTrade, err := v.account.CanTrade(ctx, marginRequired)
		if err != nil {
			return ValidationResult{}, fmt.Errorf("failed to check margin for %s: %w", decision.Symbol, err)
		}
		if !canTrade {
			return rejected("insufficient margin for %s (required %.2f)", decision.Symbol, marginRequired), nil
		}
	}

	// 6. Risk/reward floor, only when both SL and TP are present.
	if decision.SLPrice != nil && decision.TPPrice != nil {
		riskDist := math.Abs(entryPrice - *decision.SLPrice)
		rewardDist := math.Abs(*decision.TPPrice - entryPrice)
		if riskDist > 0 {
			ratio := rewardDist / riskDist
			if ratio < params.MinRiskReward {
				if v.enforceRiskReward {
					return rejected("risk/reward %.2f below minimum %.2f", ratio, params.MinRiskReward), nil
				}
				log.Printf("[WARN] RiskValidator: %s risk/reward %.2f below minimum %.2f (enforcement disabled, approving)",
					decision.Symbol, ratio, params.MinRiskReward)
			}
		}
	}

	return approved, nil
}

func (v *RiskValidator) validateClose(ctx context.Context, decision *domain.TradingDecision) (ValidationResult, error) {
	// 7. Closing requires something to close.
	position, err := v.positionRepo.GetOpenBySymbol(ctx, decision.Symbol)
	if err != nil {
		return ValidationResult{}, fmt.Errorf("failed to look up open position for %s: %w", decision.Symbol, err)
	}
	if position == nil {
		return rejected("no open position for %s", decision.Symbol), nil
	}

	return approved, nil
}

// CheckEntryRSI is the final code-level entry backstop, independent of the
// reasoning agent's own judgement: opening long into an overbought market
// or short into an oversold one is rejected.
func CheckEntryRSI(decision *domain.TradingDecision, rsi float64, params domain.RiskParams) ValidationResult {
	if decision.Operation != domain.OperationOpen {
		return approved
	}

	if decision.Side == domain.SideLong && rsi > params.RSIOverbought {
		return rejected("RSI %.1f is overbought (> %.1f), refusing long entry", rsi, params.RSIOverbought)
	}
	if decision.Side == domain.SideShort && rsi < params.RSIOversold {
		return rejected("RSI %.1f is oversold (< %.1f), refusing short entry", rsi, params.RSIOversold)
	}

	return approved
}

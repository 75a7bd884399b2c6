package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perpguard/internal/domain"
)

func openDecision(symbol string, confidence float64) *domain.TradingDecision {
	return &domain.TradingDecision{
		ID:         uuid.New(),
		Symbol:     symbol,
		Operation:  domain.OperationOpen,
		Side:       domain.SideLong,
		Confidence: confidence,
		Status:     domain.DecisionPending,
	}
}

func TestValidatorRejectsHold(t *testing.T) {
	v := NewRiskValidator(&fakePositionRepo{}, &fakeAccountManager{canTrade: true}, 3, true)

	d := openDecision("BTC", 0.9)
	d.Operation = domain.OperationHold

	result, err := v.Validate(context.Background(), d, 100000, moderateParams())
	require.NoError(t, err)
	assert.False(t, result.Approved)
	assert.Contains(t, result.Reason, "hold")
}

func TestValidatorConfidenceFloor(t *testing.T) {
	v := NewRiskValidator(&fakePositionRepo{}, &fakeAccountManager{canTrade: true}, 3, true)

	result, err := v.Validate(context.Background(), openDecision("BTC", 0.5), 100000, moderateParams())
	require.NoError(t, err)
	assert.False(t, result.Approved)
	assert.Contains(t, result.Reason, "confidence")
}

func TestValidatorLeverageCeiling(t *testing.T) {
	v := NewRiskValidator(&fakePositionRepo{}, &fakeAccountManager{canTrade: true}, 3, true)

	d := openDecision("BTC", 0.9)
	d.Leverage = 25

	result, err := v.Validate(context.Background(), d, 100000, moderateParams())
	require.NoError(t, err)
	assert.False(t, result.Approved)
	assert.Contains(t, result.Reason, "leverage")
}

func TestValidatorOpenPositionCap(t *testing.T) {
	positions := &fakePositionRepo{positions: []*domain.Position{
		{ID: uuid.New(), Symbol: "ETH", Status: domain.PositionOpen},
		{ID: uuid.New(), Symbol: "SOL", Status: domain.PositionOpen},
	}}
	v := NewRiskValidator(positions, &fakeAccountManager{canTrade: true}, 2, true)

	result, err := v.Validate(context.Background(), openDecision("BTC", 0.9), 100000, moderateParams())
	require.NoError(t, err)
	assert.False(t, result.Approved)
	assert.Contains(t, result.Reason, "limit")
}

func TestValidatorRejectsDuplicateSymbol(t *testing.T) {
	v := NewRiskValidator(&fakePositionRepo{}, &fakeAccountManager{hasOpen: true, canTrade: true}, 3, true)

	result, err := v.Validate(context.Background(), openDecision("BTC", 0.9), 100000, moderateParams())
	require.NoError(t, err)
	assert.False(t, result.Approved)
	assert.Contains(t, result.Reason, "already open")
}

func TestValidatorMarginCheck(t *testing.T) {
	account := &fakeAccountManager{canTrade: false}
	v := NewRiskValidator(&fakePositionRepo{}, account, 3, true)

	d := openDecision("BTC", 0.9)
	d.Size = 0.02
	d.Leverage = 10

	result, err := v.Validate(context.Background(), d, 100000, moderateParams())
	require.NoError(t, err)
	assert.False(t, result.Approved)
	assert.Contains(t, result.Reason, "margin")
	assert.InDelta(t, 200, account.canTradeAt, 1e-9, "margin = size x price / leverage")
}

func TestValidatorRiskRewardFloor(t *testing.T) {
	d := openDecision("BTC", 0.9)
	d.SLPrice = floatPtr(95000)  // risk 5000
	d.TPPrice = floatPtr(104000) // reward 4000, ratio 0.8 < 1.5

	v := NewRiskValidator(&fakePositionRepo{}, &fakeAccountManager{canTrade: true}, 3, true)
	result, err := v.Validate(context.Background(), d, 100000, moderateParams())
	require.NoError(t, err)
	assert.False(t, result.Approved)
	assert.Contains(t, result.Reason, "risk/reward")

	// With enforcement disabled the same decision passes with a warning.
	lenient := NewRiskValidator(&fakePositionRepo{}, &fakeAccountManager{canTrade: true}, 3, false)
	result, err = lenient.Validate(context.Background(), d, 100000, moderateParams())
	require.NoError(t, err)
	assert.True(t, result.Approved)
}

func TestValidatorApprovesGoodOpen(t *testing.T) {
	d := openDecision("BTC", 0.9)
	d.SLPrice = floatPtr(95000)
	d.TPPrice = floatPtr(110000)

	v := NewRiskValidator(&fakePositionRepo{}, &fakeAccountManager{canTrade: true}, 3, true)
	result, err := v.Validate(context.Background(), d, 100000, moderateParams())
	require.NoError(t, err)
	assert.True(t, result.Approved)
}

func TestValidatorCloseNeedsOpenPosition(t *testing.T) {
	v := NewRiskValidator(&fakePositionRepo{}, &fakeAccountManager{canTrade: true}, 3, true)

	d := openDecision("BTC", 0.9)
	d.Operation = domain.OperationClose

	result, err := v.Validate(context.Background(), d, 100000, moderateParams())
	require.NoError(t, err)
	assert.False(t, result.Approved)
	assert.Contains(t, result.Reason, "no open position")
}

func TestCheckEntryRSI(t *testing.T) {
	params := moderateParams() // overbought 70, oversold 30

	long := openDecision("BTC", 0.9)
	result := CheckEntryRSI(long, 75, params)
	assert.False(t, result.Approved)
	assert.Contains(t, result.Reason, "overbought")

	result = CheckEntryRSI(long, 50, params)
	assert.True(t, result.Approved)

	short := openDecision("BTC", 0.9)
	short.Side = domain.SideShort
	result = CheckEntryRSI(short, 25, params)
	assert.False(t, result.Approved)
	assert.Contains(t, result.Reason, "oversold")

	result = CheckEntryRSI(short, 50, params)
	assert.True(t, result.Approved)

	// The backstop only guards entries.
	closeDecision := openDecision("BTC", 0.9)
	closeDecision.Operation = domain.OperationClose
	result = CheckEntryRSI(closeDecision, 99, params)
	assert.True(t, result.Approved)
}

package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perpguard/internal/domain"
)

func newTestReconciler(balance float64, positions *fakePositionRepo, ledger *fakeBalanceRepo) *BalanceReconciler {
	exchange := &fakeExchange{state: &domain.AccountState{AccountValue: balance}}
	return NewBalanceReconciler(ledger, positions, exchange, "0xabc", 0.01, 1.0)
}

func seedLedger(ledger *fakeBalanceRepo, balance float64) {
	ledger.entries = append(ledger.entries, &domain.AccountBalance{
		ID:         uuid.New(),
		Balance:    balance,
		EventType:  domain.BalanceEventInitial,
		RecordedAt: time.Now().Add(-time.Hour),
	})
}

func TestReconcilerRecordsInitialBaseline(t *testing.T) {
	ledger := &fakeBalanceRepo{}
	r := newTestReconciler(10000, &fakePositionRepo{}, ledger)

	entry, err := r.Sync(context.Background())
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, domain.BalanceEventInitial, entry.EventType)
	assert.InDelta(t, 10000, entry.Balance, 1e-9)
}

func TestReconcilerSkipsNoiseFloor(t *testing.T) {
	ledger := &fakeBalanceRepo{}
	seedLedger(ledger, 10000)
	r := newTestReconciler(10000.005, &fakePositionRepo{}, ledger)

	entry, err := r.Sync(context.Background())
	require.NoError(t, err)
	assert.Nil(t, entry, "sub-threshold delta appends nothing")
	assert.Len(t, ledger.entries, 1)
}

func TestReconcilerClassifiesSync(t *testing.T) {
	ledger := &fakeBalanceRepo{}
	seedLedger(ledger, 10000)

	// +50 delta with 49.5 explained by realized PnL leaves 0.5
	// unexplained, inside the 1.0 threshold.
	r := newTestReconciler(10050, &fakePositionRepo{realizedPnL: 49.5}, ledger)

	entry, err := r.Sync(context.Background())
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, domain.BalanceEventSync, entry.EventType)
	assert.InDelta(t, 50, entry.Delta, 1e-9)
	assert.InDelta(t, 0.5, entry.Unexplained, 1e-9)
}

func TestReconcilerClassifiesDeposit(t *testing.T) {
	ledger := &fakeBalanceRepo{}
	seedLedger(ledger, 10000)

	// +500 delta with only +10 of realized PnL: 490 unexplained inflow.
	r := newTestReconciler(10500, &fakePositionRepo{realizedPnL: 10}, ledger)

	entry, err := r.Sync(context.Background())
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, domain.BalanceEventDeposit, entry.EventType)
	assert.InDelta(t, 490, entry.Unexplained, 1e-9)
}

func TestReconcilerClassifiesWithdrawal(t *testing.T) {
	ledger := &fakeBalanceRepo{}
	seedLedger(ledger, 10000)

	// -300 delta with no trading activity: unexplained outflow.
	r := newTestReconciler(9700, &fakePositionRepo{}, ledger)

	entry, err := r.Sync(context.Background())
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, domain.BalanceEventWithdrawal, entry.EventType)
	assert.InDelta(t, -300, entry.Delta, 1e-9)
}

func TestCalculatedPnLExcludesCapitalMovements(t *testing.T) {
	ledger := &fakeBalanceRepo{}
	now := time.Now()
	ledger.entries = []*domain.AccountBalance{
		{Balance: 10000, EventType: domain.BalanceEventInitial, RecordedAt: now.Add(-3 * time.Hour)},
		{Balance: 10500, Delta: 500, Unexplained: 500, EventType: domain.BalanceEventDeposit, RecordedAt: now.Add(-2 * time.Hour)},
		{Balance: 10300, Delta: -200, Unexplained: -200, EventType: domain.BalanceEventWithdrawal, RecordedAt: now.Add(-time.Hour)},
		{Balance: 10400, Delta: 100, ExpectedPnL: 100, EventType: domain.BalanceEventSync, RecordedAt: now},
	}

	r := newTestReconciler(10400, &fakePositionRepo{}, ledger)
	pnl, err := r.CalculatedPnL(context.Background())
	require.NoError(t, err)

	// 10400 - 10000 - 500 deposit + 200 withdrawn back = 100 traded.
	assert.InDelta(t, 100, pnl, 1e-9)
}

func TestCalculatedPnLKeepsTradingPnLFromDepositWindow(t *testing.T) {
	ledger := &fakeBalanceRepo{}
	seedLedger(ledger, 10000)

	// One window containing both a 490 deposit and +10 of realized PnL.
	positions := &fakePositionRepo{realizedPnL: 10}
	r := newTestReconciler(10500, positions, ledger)

	entry, err := r.Sync(context.Background())
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, domain.BalanceEventDeposit, entry.EventType)
	assert.InDelta(t, 500, entry.Delta, 1e-9)
	assert.InDelta(t, 490, entry.Unexplained, 1e-9)

	// Only the 490 capital inflow is excluded; the 10 traded in the
	// same window stays in the figure.
	pnl, err := r.CalculatedPnL(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 10, pnl, 1e-9)
}

func TestCalculatedPnLWithoutBaseline(t *testing.T) {
	r := newTestReconciler(10000, &fakePositionRepo{}, &fakeBalanceRepo{})
	pnl, err := r.CalculatedPnL(context.Background())
	require.NoError(t, err)
	assert.Zero(t, pnl)
}

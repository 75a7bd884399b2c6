package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"perpguard/internal/domain"
)

// BalanceReconciler classifies balance deltas so that trading PnL stays
// separated from external deposits and withdrawals the exchange does not
// report explicitly.
type BalanceReconciler struct {
	balanceRepo  domain.BalanceRepository
	positionRepo domain.PositionRepository
	exchange     domain.ExchangeClient
	address      string

	minChangeThreshold float64 // noise floor below which deltas are ignored
	depositThreshold   float64 // unexplained delta beyond this is a capital movement

	running sync.Mutex
}

// NewBalanceReconciler creates a new BalanceReconciler
func NewBalanceReconciler(
	balanceRepo domain.BalanceRepository,
	positionRepo domain.PositionRepository,
	exchange domain.ExchangeClient,
	address string,
	minChangeThreshold, depositThreshold float64,
) *BalanceReconciler {
	return &BalanceReconciler{
		balanceRepo:        balanceRepo,
		positionRepo:       positionRepo,
		exchange:           exchange,
		address:            address,
		minChangeThreshold: minChangeThreshold,
		depositThreshold:   depositThreshold,
	}
}

// Sync fetches the current exchange balance and appends a classified
// ledger entry. Returns the entry, or nil when the delta is below the
// noise floor.
func (r *BalanceReconciler) Sync(ctx context.Context) (*domain.AccountBalance, error) {
	if !r.running.TryLock() {
		log.Println("[BALANCE] Previous sync still running, skipping tick")
		return nil, nil
	}
	defer r.running.Unlock()

	state, err := r.exchange.UserState(ctx, r.address)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch account state: %w", err)
	}
	current := state.AccountValue

	previous, err := r.balanceRepo.GetLatest(ctx)
	if err != nil {
		return nil, err
	}

	// First sync ever: record the baseline.
	if previous == nil {
		entry := &domain.AccountBalance{
			ID:         uuid.New(),
			Balance:    current,
			EventType:  domain.BalanceEventInitial,
			RecordedAt: time.Now(),
		}
		if err := r.balanceRepo.Append(ctx, entry); err != nil {
			return nil, err
		}
		log.Printf("[BALANCE] Initial baseline recorded: %.2f", current)
		return entry, nil
	}

	delta := current - previous.Balance
	if math.Abs(delta) < r.minChangeThreshold {
		return nil, nil
	}

	expectedPnL, err := r.positionRepo.GetRealizedPnLSince(ctx, previous.RecordedAt)
	if err != nil {
		return nil, err
	}

	entry := &domain.AccountBalance{
		ID:          uuid.New(),
		Balance:     current,
		PrevBalance: previous.Balance,
		Delta:       delta,
		ExpectedPnL: expectedPnL,
		Unexplained: delta - expectedPnL,
		EventType:   classifyDelta(delta-expectedPnL, r.depositThreshold),
		RecordedAt:  time.Now(),
	}

	if err := r.balanceRepo.Append(ctx, entry); err != nil {
		return nil, err
	}

	log.Printf("[BALANCE] %s: delta %.2f (expected PnL %.2f, unexplained %.2f)",
		entry.EventType, delta, expectedPnL, entry.Unexplained)

	return entry, nil
}

// classifyDelta separates trading PnL from external capital movements:
// an unexplained remainder inside the threshold is ordinary sync drift,
// beyond it the sign decides deposit vs withdrawal.
func classifyDelta(unexplained, threshold float64) string {
	if math.Abs(unexplained) < threshold {
		return domain.BalanceEventSync
	}
	if unexplained > 0 {
		return domain.BalanceEventDeposit
	}
	return domain.BalanceEventWithdrawal
}

// CalculatedPnL isolates trading performance from capital movements:
// current - initial - deposits + withdrawals. The capital sums use each
// entry's unexplained component, not its full window delta, because a
// DEPOSIT or WITHDRAWAL window can also contain realized trading PnL
// that must stay in the figure. Withdrawal components are stored signed
// (negative), so subtracting their sum adds the withdrawn magnitude back.
func (r *BalanceReconciler) CalculatedPnL(ctx context.Context) (float64, error) {
	initial, err := r.balanceRepo.GetInitial(ctx)
	if err != nil {
		return 0, err
	}
	if initial == nil {
		return 0, nil
	}

	latest, err := r.balanceRepo.GetLatest(ctx)
	if err != nil {
		return 0, err
	}

	deposits, err := r.balanceRepo.SumByEventType(ctx, domain.BalanceEventDeposit)
	if err != nil {
		return 0, err
	}
	withdrawals, err := r.balanceRepo.SumByEventType(ctx, domain.BalanceEventWithdrawal)
	if err != nil {
		return 0, err
	}

	return latest.Balance - initial.Balance - deposits - withdrawals, nil
}

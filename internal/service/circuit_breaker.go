package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"perpguard/internal/domain"
	"perpguard/internal/utils"
)

const (
	counterDailyLoss  = "daily_loss" // suffixed with the calendar date
	counterConsecLoss = "consecutive_losses"
)

// CircuitBreaker is the loss-tracking state machine guarding the account.
// Its only externally visible effect is a TradingMode switch through the
// shared ModeGate: the dashboard shows one consistent status and a human
// can override the breaker by switching modes directly.
type CircuitBreaker struct {
	gate     *ModeGate
	counters CounterStore
	account  domain.AccountManager

	maxDailyLossPct      float64
	maxConsecutiveLosses int

	// Clock for the day-keyed accumulator, swappable in tests.
	now func() time.Time
}

// NewCircuitBreaker creates a CircuitBreaker with the given limits
func NewCircuitBreaker(gate *ModeGate, counters CounterStore, account domain.AccountManager, maxDailyLossPct float64, maxConsecutiveLosses int) *CircuitBreaker {
	return &CircuitBreaker{
		gate:                 gate,
		counters:             counters,
		account:              account,
		maxDailyLossPct:      maxDailyLossPct,
		maxConsecutiveLosses: maxConsecutiveLosses,
		now:                  time.Now,
	}
}

func dailyLossKey(t time.Time) string {
	return counterDailyLoss + ":" + utils.DayKey(t)
}

// RecordLoss adds a realized loss (positive magnitude) to the same-day
// accumulator and increments the consecutive-loss counter. The day key
// means the accumulator resets naturally at local midnight.
func (cb *CircuitBreaker) RecordLoss(amount float64) {
	if amount < 0 {
		amount = -amount
	}
	cb.counters.Add(dailyLossKey(cb.now()), amount)
	cb.counters.Add(counterConsecLoss, 1)
}

// RecordWin resets the consecutive-loss counter. The daily loss
// accumulator is deliberately untouched: one win does not un-lose money.
func (cb *CircuitBreaker) RecordWin() {
	cb.counters.Reset(counterConsecLoss)
}

// DailyLoss returns today's accumulated realized loss
func (cb *CircuitBreaker) DailyLoss() float64 {
	return cb.counters.Get(dailyLossKey(cb.now()))
}

// ConsecutiveLosses returns the current consecutive-loss count
func (cb *CircuitBreaker) ConsecutiveLosses() int {
	return int(cb.counters.Get(counterConsecLoss))
}

// CheckAndTrip evaluates both trip conditions once. It only acts when the
// current mode is ENABLED: it never overrides a manual EXIT_ONLY or
// BLOCKED, and it never re-trips while already tripped.
func (cb *CircuitBreaker) CheckAndTrip(ctx context.Context) (tripped bool, err error) {
	mode, err := cb.gate.Current(ctx)
	if err != nil {
		return false, err
	}
	if mode.Mode != domain.ModeEnabled {
		return false, nil
	}

	consecutive := cb.ConsecutiveLosses()
	if consecutive >= cb.maxConsecutiveLosses {
		reason := fmt.Sprintf("%d consecutive losing trades", consecutive)
		return cb.trip(ctx, reason)
	}

	accountValue, err := cb.account.AccountValue(ctx)
	if err != nil {
		// Transient account failure: skip this tick, the next one retries.
		log.Printf("[WARN] CircuitBreaker: account value unavailable: %v", err)
		return false, nil
	}
	if accountValue <= 0 {
		return false, nil
	}

	dailyLossPct := cb.DailyLoss() / accountValue
	if dailyLossPct >= cb.maxDailyLossPct {
		reason := fmt.Sprintf("Daily loss exceeded %.1f%%", cb.maxDailyLossPct*100)
		return cb.trip(ctx, reason)
	}

	return false, nil
}

// trip switches to EXIT_ONLY only if the mode is still ENABLED. The
// compare-and-swap guards against an operator switch landing between
// CheckAndTrip's mode read and this commit.
func (cb *CircuitBreaker) trip(ctx context.Context, reason string) (bool, error) {
	swapped, err := cb.gate.SwitchFrom(ctx, domain.ModeEnabled, domain.ModeExitOnly, domain.ChangedByCircuitBreaker, reason)
	if err != nil {
		return false, err
	}
	if !swapped {
		log.Printf("[BREAKER] Trip superseded by a concurrent mode switch: %s", reason)
		return false, nil
	}
	log.Printf("[BREAKER] Tripped: %s", reason)
	return true, nil
}

// Triggered reports whether the current EXIT_ONLY mode was set by the
// breaker itself. A user-initiated EXIT_ONLY does not count.
func (cb *CircuitBreaker) Triggered(ctx context.Context) (bool, error) {
	mode, err := cb.gate.Current(ctx)
	if err != nil {
		return false, err
	}
	return mode.Mode == domain.ModeExitOnly && mode.ChangedBy == domain.ChangedByCircuitBreaker, nil
}

// Reset clears both counters and force-switches the mode back to ENABLED
func (cb *CircuitBreaker) Reset(ctx context.Context) error {
	cb.counters.Reset(dailyLossKey(cb.now()))
	cb.counters.Reset(counterConsecLoss)
	return cb.gate.Switch(ctx, domain.ModeEnabled, domain.ChangedBySystem, "circuit breaker reset")
}

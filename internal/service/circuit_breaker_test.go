package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perpguard/internal/domain"
)

func newTestBreaker(account *fakeAccountManager) (*CircuitBreaker, *ModeGate, *fakeModeRepo) {
	repo := newFakeModeRepo()
	gate := NewModeGate(repo, nil)
	breaker := NewCircuitBreaker(gate, NewMemoryCounterStore(), account, 0.05, 3)
	return breaker, gate, repo
}

func TestBreakerTripsOnConsecutiveLosses(t *testing.T) {
	ctx := context.Background()
	breaker, gate, _ := newTestBreaker(&fakeAccountManager{value: 10000})

	breaker.RecordLoss(10)
	breaker.RecordLoss(10)

	tripped, err := breaker.CheckAndTrip(ctx)
	require.NoError(t, err)
	assert.False(t, tripped, "two losses must not trip a three-loss breaker")

	breaker.RecordLoss(10)
	tripped, err = breaker.CheckAndTrip(ctx)
	require.NoError(t, err)
	assert.True(t, tripped)

	mode, err := gate.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.ModeExitOnly, mode.Mode)
	assert.Equal(t, domain.ChangedByCircuitBreaker, mode.ChangedBy)

	triggered, err := breaker.Triggered(ctx)
	require.NoError(t, err)
	assert.True(t, triggered)
}

func TestBreakerTripsOnDailyLoss(t *testing.T) {
	ctx := context.Background()
	breaker, gate, _ := newTestBreaker(&fakeAccountManager{value: 10000})

	// 600 lost on a 10000 account crosses the 5% limit. A win between
	// the losses keeps the consecutive counter below its own limit.
	breaker.RecordLoss(300)
	breaker.RecordWin()
	breaker.RecordLoss(300)

	assert.Equal(t, 1, breaker.ConsecutiveLosses())
	assert.InDelta(t, 600, breaker.DailyLoss(), 1e-9)

	tripped, err := breaker.CheckAndTrip(ctx)
	require.NoError(t, err)
	assert.True(t, tripped)

	mode, err := gate.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.ModeExitOnly, mode.Mode)
}

func TestBreakerWinResetsConsecutiveOnly(t *testing.T) {
	breaker, _, _ := newTestBreaker(&fakeAccountManager{value: 10000})

	breaker.RecordLoss(100)
	breaker.RecordLoss(100)
	breaker.RecordWin()

	assert.Equal(t, 0, breaker.ConsecutiveLosses())
	assert.InDelta(t, 200, breaker.DailyLoss(), 1e-9, "a win does not un-lose money")
}

func TestBreakerNeverOverridesManualMode(t *testing.T) {
	ctx := context.Background()
	breaker, gate, _ := newTestBreaker(&fakeAccountManager{value: 10000})

	// Operator already moved the system to EXIT_ONLY by hand.
	require.NoError(t, gate.Switch(ctx, domain.ModeExitOnly, domain.ChangedByUser, "manual wind-down"))

	breaker.RecordLoss(100)
	breaker.RecordLoss(100)
	breaker.RecordLoss(100)

	tripped, err := breaker.CheckAndTrip(ctx)
	require.NoError(t, err)
	assert.False(t, tripped)

	mode, err := gate.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.ChangedByUser, mode.ChangedBy, "manual attribution must survive")

	triggered, err := breaker.Triggered(ctx)
	require.NoError(t, err)
	assert.False(t, triggered, "a manual EXIT_ONLY is not a breaker trip")
}

func TestBreakerSkipsTickOnAccountFailure(t *testing.T) {
	ctx := context.Background()
	breaker, gate, _ := newTestBreaker(&fakeAccountManager{valueErr: assert.AnError})

	breaker.RecordLoss(600)

	tripped, err := breaker.CheckAndTrip(ctx)
	require.NoError(t, err)
	assert.False(t, tripped, "transient account failure skips the tick")

	mode, err := gate.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.ModeEnabled, mode.Mode)
}

func TestBreakerReset(t *testing.T) {
	ctx := context.Background()
	breaker, gate, _ := newTestBreaker(&fakeAccountManager{value: 10000})

	breaker.RecordLoss(100)
	breaker.RecordLoss(100)
	breaker.RecordLoss(100)
	_, err := breaker.CheckAndTrip(ctx)
	require.NoError(t, err)

	require.NoError(t, breaker.Reset(ctx))

	assert.Equal(t, 0, breaker.ConsecutiveLosses())
	assert.Zero(t, breaker.DailyLoss())

	mode, err := gate.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.ModeEnabled, mode.Mode)
}

func TestBreakerTripLosesRaceToManualSwitch(t *testing.T) {
	ctx := context.Background()

	// The operator's BLOCKED switch lands between the breaker's mode
	// read and its trip. The account fetch sits in that window, so the
	// hook plants the switch exactly there.
	var breaker *CircuitBreaker
	var gate *ModeGate
	account := &fakeAccountManager{value: 10000, onValue: func() {
		require.NoError(t, gate.Switch(ctx, domain.ModeBlocked, domain.ChangedByUser, "maintenance"))
	}}
	breaker, gate, _ = newTestBreaker(account)

	breaker.RecordLoss(600) // 6% of the account, past the daily limit

	tripped, err := breaker.CheckAndTrip(ctx)
	require.NoError(t, err)
	assert.False(t, tripped, "a superseded trip must not report as tripped")

	mode, err := gate.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.ModeBlocked, mode.Mode)
	assert.Equal(t, domain.ChangedByUser, mode.ChangedBy)
}

func TestBreakerDailyLossRollsOverAtMidnight(t *testing.T) {
	ctx := context.Background()
	breaker, gate, _ := newTestBreaker(&fakeAccountManager{value: 10000})

	day1 := time.Date(2026, 8, 29, 18, 0, 0, 0, time.Local)
	breaker.now = func() time.Time { return day1 }

	breaker.RecordLoss(300)
	breaker.RecordWin()
	breaker.RecordLoss(300)
	assert.InDelta(t, 600, breaker.DailyLoss(), 1e-9)

	// Next calendar day: the accumulator reads zero and the 6% lost
	// yesterday no longer trips anything.
	breaker.now = func() time.Time { return day1.Add(24 * time.Hour) }
	assert.Zero(t, breaker.DailyLoss())

	tripped, err := breaker.CheckAndTrip(ctx)
	require.NoError(t, err)
	assert.False(t, tripped)

	mode, err := gate.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.ModeEnabled, mode.Mode)
}

package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perpguard/internal/domain"
)

func newTrailingFixture(positions ...*domain.Position) (*TrailingStopMonitor, *fakePositionRepo, *fakeSettingsRepo) {
	repo := &fakePositionRepo{positions: positions}
	settings := newFakeSettingsRepo()
	profiles := NewProfileManager(settings, func(string) domain.RiskParams { return moderateParams() }, domain.ProfileModerate)
	monitor := NewTrailingStopMonitor(repo, &fakeLogRepo{}, &fakeExchange{}, profiles)
	return monitor, repo, settings
}

func longPosition(entry float64, sl *float64) *domain.Position {
	return &domain.Position{
		ID:         uuid.New(),
		Symbol:     "BTC",
		Side:       domain.SideLong,
		Size:       0.1,
		EntryPrice: entry,
		Leverage:   10,
		SLPrice:    sl,
		Status:     domain.PositionOpen,
	}
}

func TestTrailingActivatesAtThreshold(t *testing.T) {
	monitor, _, _ := newTrailingFixture()
	params := moderateParams() // activate at +5% margin-relative PnL

	pos := longPosition(100000, floatPtr(95000))

	// 10x leverage means +0.5% price move is +5% on margin.
	activated, moved, dirty := monitor.updatePosition(pos, 100500, params)
	assert.True(t, activated)
	assert.True(t, moved)
	assert.True(t, dirty)
	assert.True(t, pos.TrailingActive)
	require.NotNil(t, pos.OriginalSL)
	assert.InDelta(t, 95000, *pos.OriginalSL, 1e-9, "pre-trailing stop is remembered")
	assert.InDelta(t, 100500*0.98, *pos.SLPrice, 1e-6)
}

func TestTrailingBelowThresholdOnlyTracksPeak(t *testing.T) {
	monitor, _, _ := newTrailingFixture()
	pos := longPosition(100000, floatPtr(95000))

	activated, moved, dirty := monitor.updatePosition(pos, 100100, moderateParams())
	assert.False(t, activated)
	assert.False(t, moved)
	assert.True(t, dirty, "the new peak still needs persisting")
	assert.False(t, pos.TrailingActive)
	assert.InDelta(t, 95000, *pos.SLPrice, 1e-9, "stop untouched before activation")
}

func TestTrailingStopNeverRetreats(t *testing.T) {
	monitor, _, _ := newTrailingFixture()
	params := moderateParams()
	pos := longPosition(100000, floatPtr(95000))

	// Activate and ratchet up on a strong move.
	_, _, _ = monitor.updatePosition(pos, 102000, params)
	require.True(t, pos.TrailingActive)
	highStop := *pos.SLPrice
	assert.InDelta(t, 102000*0.98, highStop, 1e-6)

	// Price falls back. Peak and stop must both hold.
	_, moved, dirty := monitor.updatePosition(pos, 100600, params)
	assert.False(t, moved)
	assert.False(t, dirty)
	assert.InDelta(t, 102000, *pos.PeakPrice, 1e-9, "peak never retreats")
	assert.InDelta(t, highStop, *pos.SLPrice, 1e-9, "stop never retreats")

	// A new high ratchets the stop further up.
	_, moved, _ = monitor.updatePosition(pos, 103000, params)
	assert.True(t, moved)
	assert.Greater(t, *pos.SLPrice, highStop)
}

func TestTrailingShortTightensDownwards(t *testing.T) {
	monitor, _, _ := newTrailingFixture()
	params := moderateParams()

	pos := &domain.Position{
		ID:         uuid.New(),
		Symbol:     "ETH",
		Side:       domain.SideShort,
		Size:       1,
		EntryPrice: 4000,
		Leverage:   10,
		SLPrice:    floatPtr(4200),
		Status:     domain.PositionOpen,
	}

	// -1% price move is +10% on margin for a short.
	activated, moved, _ := monitor.updatePosition(pos, 3960, params)
	assert.True(t, activated)
	assert.True(t, moved)
	assert.InDelta(t, 3960*1.02, *pos.SLPrice, 1e-6)

	// Price bouncing up must not loosen the stop.
	prevStop := *pos.SLPrice
	_, moved, dirty := monitor.updatePosition(pos, 3990, params)
	assert.False(t, moved)
	assert.False(t, dirty)
	assert.InDelta(t, prevStop, *pos.SLPrice, 1e-9)
}

func TestTrailingScanSkipsWhenProfileDisablesIt(t *testing.T) {
	repo := &fakePositionRepo{positions: []*domain.Position{longPosition(100000, floatPtr(95000))}}
	settings := newFakeSettingsRepo()
	fearless := domain.RiskParams{Name: domain.ProfileFearless, TrailingEnabled: false}
	profiles := NewProfileManager(settings, func(string) domain.RiskParams { return fearless }, domain.ProfileFearless)
	monitor := NewTrailingStopMonitor(repo, &fakeLogRepo{}, &fakeExchange{mids: map[string]float64{"BTC": 105000}}, profiles)

	result, err := monitor.Scan(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Checked)
	assert.Empty(t, repo.updated)
}

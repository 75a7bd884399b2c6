package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr(v float64) *float64 { return &v }

func TestCheckSLTP(t *testing.T) {
	tests := []struct {
		name       string
		side       string
		sl, tp     *float64
		price      float64
		wantClose  bool
		wantReason string
	}{
		{"long hits stop at exact level", SideLong, ptr(95000), ptr(110000), 95000, true, CloseReasonStopLoss},
		{"long below stop", SideLong, ptr(95000), ptr(110000), 94000, true, CloseReasonStopLoss},
		{"long hits take-profit", SideLong, ptr(95000), ptr(110000), 110000, true, CloseReasonTakeProfit},
		{"long in range", SideLong, ptr(95000), ptr(110000), 100000, false, ""},
		{"short hits stop", SideShort, ptr(105000), ptr(90000), 106000, true, CloseReasonStopLoss},
		{"short hits take-profit", SideShort, ptr(105000), ptr(90000), 89000, true, CloseReasonTakeProfit},
		{"short in range", SideShort, ptr(105000), ptr(90000), 100000, false, ""},
		{"no protection no close", SideLong, nil, nil, 1, false, ""},
		{"stop only", SideLong, ptr(95000), nil, 94000, true, CloseReasonStopLoss},
		{"take-profit only", SideLong, nil, ptr(110000), 111000, true, CloseReasonTakeProfit},
		// Inverted levels where one price satisfies both: stop wins.
		{"stop beats take-profit long", SideLong, ptr(105000), ptr(104000), 104500, true, CloseReasonStopLoss},
		{"stop beats take-profit short", SideShort, ptr(3900), ptr(3950), 3925, true, CloseReasonStopLoss},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Position{Side: tt.side, SLPrice: tt.sl, TPPrice: tt.tp, EntryPrice: 100000, Size: 1}
			gotClose, gotReason := p.CheckSLTP(tt.price)
			assert.Equal(t, tt.wantClose, gotClose)
			assert.Equal(t, tt.wantReason, gotReason)
		})
	}
}

func TestPnLPercentIsMarginRelative(t *testing.T) {
	p := &Position{
		Side:       SideLong,
		Size:       0.1,
		EntryPrice: 100000,
		Leverage:   10,
	}

	// +1% price move at 10x is +10% on margin.
	assert.InDelta(t, 10, p.PnLPercent(101000), 1e-9)
	assert.InDelta(t, -10, p.PnLPercent(99000), 1e-9)

	short := &Position{Side: SideShort, Size: 0.1, EntryPrice: 100000, Leverage: 10}
	assert.InDelta(t, 10, short.PnLPercent(99000), 1e-9)
}

func TestPnLPercentDegenerateInputs(t *testing.T) {
	assert.Zero(t, (&Position{Side: SideLong}).PnLPercent(100))

	// Leverage below 1 is treated as 1.
	p := &Position{Side: SideLong, Size: 1, EntryPrice: 100, Leverage: 0}
	assert.InDelta(t, 1, p.PnLPercent(101), 1e-9)
}

func TestHasProtection(t *testing.T) {
	assert.False(t, (&Position{}).HasProtection())
	assert.True(t, (&Position{SLPrice: ptr(1)}).HasProtection())
	assert.True(t, (&Position{TPPrice: ptr(1)}).HasProtection())
}

func TestGrossPnL(t *testing.T) {
	long := &Position{Side: SideLong, Size: 2, EntryPrice: 100}
	assert.InDelta(t, 20, long.GrossPnL(110), 1e-9)

	short := &Position{Side: SideShort, Size: 2, EntryPrice: 100}
	assert.InDelta(t, 20, short.GrossPnL(90), 1e-9)
}

package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderTransitionsAreMonotonic(t *testing.T) {
	o := &Order{Status: OrderPending}
	assert.True(t, o.CanTransition(OrderSubmitted))
	assert.True(t, o.CanTransition(OrderFilled))

	o.Status = OrderSubmitted
	assert.False(t, o.CanTransition(OrderPending), "no going back")
	assert.True(t, o.CanTransition(OrderPartiallyFilled))
	assert.True(t, o.CanTransition(OrderCancelled))

	o.Status = OrderFilled
	assert.True(t, o.IsTerminal())
	assert.False(t, o.CanTransition(OrderCancelled), "terminal states admit nothing")

	o.Status = OrderFailed
	assert.True(t, o.IsTerminal())
	assert.False(t, o.CanTransition(OrderFilled))
}

func TestModePermissions(t *testing.T) {
	enabled := &TradingMode{Mode: ModeEnabled}
	assert.True(t, enabled.CanOpen())
	assert.True(t, enabled.CanClose())

	exitOnly := &TradingMode{Mode: ModeExitOnly}
	assert.False(t, exitOnly.CanOpen())
	assert.True(t, exitOnly.CanClose())

	blocked := &TradingMode{Mode: ModeBlocked}
	assert.False(t, blocked.CanOpen())
	assert.False(t, blocked.CanClose())
}

func TestValidMode(t *testing.T) {
	assert.True(t, ValidMode(ModeEnabled))
	assert.True(t, ValidMode(ModeExitOnly))
	assert.True(t, ValidMode(ModeBlocked))
	assert.False(t, ValidMode("PAUSED"))
	assert.False(t, ValidMode(""))
}

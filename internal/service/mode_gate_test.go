package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perpguard/internal/domain"
)

func TestModeGatePermissionMatrix(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		mode     string
		canOpen  bool
		canClose bool
	}{
		{domain.ModeEnabled, true, true},
		{domain.ModeExitOnly, false, true},
		{domain.ModeBlocked, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			gate := NewModeGate(newFakeModeRepo(), nil)
			require.NoError(t, gate.Switch(ctx, tt.mode, domain.ChangedByUser, "test"))

			canOpen, err := gate.CanOpen(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.canOpen, canOpen)

			canClose, err := gate.CanClose(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.canClose, canClose)
		})
	}
}

func TestModeGateRejectsInvalidMode(t *testing.T) {
	gate := NewModeGate(newFakeModeRepo(), nil)
	err := gate.Switch(context.Background(), "PAUSED", domain.ChangedByUser, "typo")
	assert.Error(t, err)
}

func TestModeGateSwitchVisibleImmediately(t *testing.T) {
	ctx := context.Background()
	repo := newFakeModeRepo()
	gate := NewModeGate(repo, nil)

	canOpen, err := gate.CanOpen(ctx)
	require.NoError(t, err)
	require.True(t, canOpen)

	require.NoError(t, gate.Switch(ctx, domain.ModeBlocked, domain.ChangedByUser, "halt"))

	canOpen, err = gate.CanOpen(ctx)
	require.NoError(t, err)
	assert.False(t, canOpen, "a switch must be visible to the very next check")
}

func TestModeGateCachesReads(t *testing.T) {
	ctx := context.Background()
	repo := newFakeModeRepo()
	gate := NewModeGate(repo, nil)

	_, err := gate.Current(ctx)
	require.NoError(t, err)
	_, err = gate.Current(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, repo.getCalls, "repeat reads serve the cache")
}

func TestModeGateSwitchFromIsConditional(t *testing.T) {
	ctx := context.Background()
	repo := newFakeModeRepo()
	gate := NewModeGate(repo, nil)

	// Expectation no longer holds: the swap is refused and the standing
	// mode survives.
	require.NoError(t, gate.Switch(ctx, domain.ModeBlocked, domain.ChangedByUser, "maintenance"))
	swapped, err := gate.SwitchFrom(ctx, domain.ModeEnabled, domain.ModeExitOnly, domain.ChangedByCircuitBreaker, "daily loss")
	require.NoError(t, err)
	assert.False(t, swapped)

	mode, err := gate.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.ModeBlocked, mode.Mode)
	assert.Equal(t, domain.ChangedByUser, mode.ChangedBy)

	// Matching expectation swaps normally.
	require.NoError(t, gate.Switch(ctx, domain.ModeEnabled, domain.ChangedByUser, "back online"))
	swapped, err = gate.SwitchFrom(ctx, domain.ModeEnabled, domain.ModeExitOnly, domain.ChangedByCircuitBreaker, "daily loss")
	require.NoError(t, err)
	assert.True(t, swapped)

	mode, err = gate.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.ModeExitOnly, mode.Mode)
	assert.Equal(t, domain.ChangedByCircuitBreaker, mode.ChangedBy)
}

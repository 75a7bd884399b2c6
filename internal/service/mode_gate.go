package service

import (
	"context"
	"fmt"
	"log"
	"sync"

	"perpguard/internal/domain"
)

// ModeGate holds the trading mode and answers permission queries. It is
// the sole effect channel for both the circuit breaker and the operator
// API, so a trip and a manual switch share identical semantics.
//
// Reads go through a write-through cache under a mutex: a mode switch is
// visible to the very next permission check, never eventually.
type ModeGate struct {
	repo  domain.ModeRepository
	notif domain.NotificationService

	mu     sync.Mutex
	cached *domain.TradingMode
}

// NewModeGate creates a ModeGate backed by the given repository
func NewModeGate(repo domain.ModeRepository, notif domain.NotificationService) *ModeGate {
	return &ModeGate{repo: repo, notif: notif}
}

// Current returns the live trading mode record
func (g *ModeGate) Current(ctx context.Context) (*domain.TradingMode, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.currentLocked(ctx)
}

func (g *ModeGate) currentLocked(ctx context.Context) (*domain.TradingMode, error) {
	if g.cached != nil {
		return g.cached, nil
	}

	mode, err := g.repo.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load trading mode: %w", err)
	}
	g.cached = mode
	return mode, nil
}

// CanOpen reports whether new positions may currently be opened
func (g *ModeGate) CanOpen(ctx context.Context) (bool, error) {
	mode, err := g.Current(ctx)
	if err != nil {
		return false, err
	}
	return mode.CanOpen(), nil
}

// CanClose reports whether positions may currently be closed
func (g *ModeGate) CanClose(ctx context.Context) (bool, error) {
	mode, err := g.Current(ctx)
	if err != nil {
		return false, err
	}
	return mode.CanClose(), nil
}

// Switch validates and persists a mode change, updates the cache in the
// same critical section, and notifies observers. Takes effect immediately.
func (g *ModeGate) Switch(ctx context.Context, mode, changedBy, reason string) error {
	if !domain.ValidMode(mode) {
		return fmt.Errorf("invalid trading mode: %s", mode)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.switchLocked(ctx, mode, changedBy, reason)
}

// SwitchFrom is the compare-and-swap variant of Switch: the change is
// applied only if the mode still equals expected inside the critical
// section. The circuit breaker trips through this so it can never clobber
// a manual switch that landed between its check and its trip.
func (g *ModeGate) SwitchFrom(ctx context.Context, expected, mode, changedBy, reason string) (bool, error) {
	if !domain.ValidMode(mode) {
		return false, fmt.Errorf("invalid trading mode: %s", mode)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	current, err := g.currentLocked(ctx)
	if err != nil {
		return false, err
	}
	if current.Mode != expected {
		return false, nil
	}
	if err := g.switchLocked(ctx, mode, changedBy, reason); err != nil {
		return false, err
	}
	return true, nil
}

func (g *ModeGate) switchLocked(ctx context.Context, mode, changedBy, reason string) error {
	if err := g.repo.Switch(ctx, mode, changedBy, reason); err != nil {
		return err
	}

	updated, err := g.repo.Get(ctx)
	if err != nil {
		// The write succeeded; drop the cache so the next read refetches.
		g.cached = nil
		return fmt.Errorf("failed to reload trading mode: %w", err)
	}
	g.cached = updated

	log.Printf("[MODE] Switched to %s by %s: %s", mode, changedBy, reason)

	if g.notif != nil {
		if err := g.notif.SendAlert("Trading mode changed",
			fmt.Sprintf("Mode: %s\nChanged by: %s\nReason: %s", mode, changedBy, reason)); err != nil {
			log.Printf("[WARN] Failed to send mode change alert: %v", err)
		}
	}

	return nil
}

package service

import (
	"context"
	"fmt"
	"log"
	"sync"

	"perpguard/internal/domain"
)

// ProfileManager holds the active risk profile selection. The parameter
// bundles themselves are configuration; only the selection is persisted.
//
// Unlike mode switches, profile switches take effect on the next cycle:
// Current is snapshotted once per cycle/scan by the callers.
type ProfileManager struct {
	settings  domain.SettingsRepository
	paramsFor func(name string) domain.RiskParams

	mu     sync.Mutex
	active string
}

// NewProfileManager creates a ProfileManager. paramsFor maps a profile
// name to its parameter bundle (wired from configs).
func NewProfileManager(settings domain.SettingsRepository, paramsFor func(string) domain.RiskParams, defaultProfile string) *ProfileManager {
	if !domain.ValidProfile(defaultProfile) {
		defaultProfile = domain.ProfileModerate
	}
	return &ProfileManager{
		settings:  settings,
		paramsFor: paramsFor,
		active:    defaultProfile,
	}
}

// Load restores the persisted selection on startup
func (m *ProfileManager) Load(ctx context.Context) {
	value, err := m.settings.Get(ctx, "risk_profile")
	if err != nil || !domain.ValidProfile(value) {
		return
	}
	m.mu.Lock()
	m.active = value
	m.mu.Unlock()
}

// Current returns the parameter bundle of the active profile
func (m *ProfileManager) Current() domain.RiskParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paramsFor(m.active)
}

// ActiveName returns the active profile name
func (m *ProfileManager) ActiveName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Switch selects a new profile and persists the selection. Running
// cycles keep the snapshot they started with.
func (m *ProfileManager) Switch(ctx context.Context, name, changedBy string) error {
	if !domain.ValidProfile(name) {
		return fmt.Errorf("invalid risk profile: %s", name)
	}

	if err := m.settings.Set(ctx, "risk_profile", name); err != nil {
		return err
	}

	m.mu.Lock()
	m.active = name
	m.mu.Unlock()

	log.Printf("[PROFILE] Switched to %s by %s", name, changedBy)
	return nil
}

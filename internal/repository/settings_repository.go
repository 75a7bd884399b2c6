package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"perpguard/internal/domain"
)

// SettingsRepositoryImpl handles key/value system settings
type SettingsRepositoryImpl struct {
	db *pgxpool.Pool
}

// NewSettingsRepository creates a new SettingsRepository
func NewSettingsRepository(db *pgxpool.Pool) domain.SettingsRepository {
	return &SettingsRepositoryImpl{db: db}
}

// Get retrieves a setting value by key
func (r *SettingsRepositoryImpl) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRow(ctx, `
		SELECT value FROM system_settings WHERE key = $1
	`, key).Scan(&value)

	if err != nil {
		return "", fmt.Errorf("setting not found: %s", key)
	}

	return value, nil
}

// Set updates or creates a setting
func (r *SettingsRepositoryImpl) Set(ctx context.Context, key, value string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO system_settings (key, value, updated_at)
		VALUES ($1, $2, CURRENT_TIMESTAMP)
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = CURRENT_TIMESTAMP
	`, key, value)

	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}

	return nil
}

// Risk profile setting key
const KeyRiskProfile = "risk_profile"

// GetRiskProfile retrieves the active risk profile name, defaulting to
// MODERATE when unset.
func GetRiskProfile(ctx context.Context, r domain.SettingsRepository) (string, error) {
	value, err := r.Get(ctx, KeyRiskProfile)
	if err != nil {
		return domain.ProfileModerate, nil
	}
	if !domain.ValidProfile(value) {
		return domain.ProfileModerate, nil
	}
	return value, nil
}

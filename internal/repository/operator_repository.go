package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"perpguard/internal/domain"
)

// OperatorRepositoryImpl implements the OperatorRepository interface
type OperatorRepositoryImpl struct {
	db *pgxpool.Pool
}

// NewOperatorRepository creates a new OperatorRepository
func NewOperatorRepository(db *pgxpool.Pool) domain.OperatorRepository {
	return &OperatorRepositoryImpl{db: db}
}

// Create creates a new operator account
func (r *OperatorRepositoryImpl) Create(ctx context.Context, op *domain.Operator) error {
	query := `
		INSERT INTO operators (id, username, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.Exec(ctx, query, op.ID, op.Username, op.PasswordHash, op.Role, op.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create operator: %w", err)
	}

	return nil
}

// GetByUsername retrieves an operator by username
func (r *OperatorRepositoryImpl) GetByUsername(ctx context.Context, username string) (*domain.Operator, error) {
	op := &domain.Operator{}
	err := r.db.QueryRow(ctx, `
		SELECT id, username, password_hash, role, created_at
		FROM operators
		WHERE username = $1
	`, username).Scan(&op.ID, &op.Username, &op.PasswordHash, &op.Role, &op.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("operator not found: %w", err)
	}

	return op, nil
}

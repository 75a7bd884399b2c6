package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"perpguard/internal/domain"
)

// ExecutionLogRepositoryImpl persists audit entries
type ExecutionLogRepositoryImpl struct {
	db *pgxpool.Pool
}

// NewExecutionLogRepository creates a new ExecutionLogRepository
func NewExecutionLogRepository(db *pgxpool.Pool) domain.ExecutionLogRepository {
	return &ExecutionLogRepositoryImpl{db: db}
}

// Save persists an audit entry
func (r *ExecutionLogRepositoryImpl) Save(ctx context.Context, entry *domain.ExecutionLog) error {
	query := `
		INSERT INTO execution_logs (id, ref_kind, ref_id, action, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Exec(ctx, query,
		entry.ID,
		entry.RefKind,
		entry.RefID,
		entry.Action,
		entry.Detail,
		entry.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save execution log: %w", err)
	}

	return nil
}

// GetByRef retrieves audit entries for one referenced row
func (r *ExecutionLogRepositoryImpl) GetByRef(ctx context.Context, refKind string, refID uuid.UUID, limit int) ([]*domain.ExecutionLog, error) {
	query := `
		SELECT id, ref_kind, ref_id, action, detail, created_at
		FROM execution_logs
		WHERE ref_kind = $1 AND ref_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`

	rows, err := r.db.Query(ctx, query, refKind, refID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query execution logs: %w", err)
	}
	defer rows.Close()

	var entries []*domain.ExecutionLog
	for rows.Next() {
		entry := &domain.ExecutionLog{}
		if err := rows.Scan(&entry.ID, &entry.RefKind, &entry.RefID, &entry.Action, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan execution log: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating execution logs: %w", err)
	}

	return entries, nil
}

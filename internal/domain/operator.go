package domain

import (
	"time"

	"github.com/google/uuid"
)

// Operator is a human account allowed to drive the control API
type Operator struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // Never expose the hash in JSON
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Operator roles
const (
	RoleAdmin    = "ADMIN"
	RoleObserver = "OBSERVER"
)

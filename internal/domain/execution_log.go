package domain

import (
	"time"

	"github.com/google/uuid"
)

// ExecutionLog is an audit entry attached to an order, position or
// decision via a tagged (kind, id) reference.
type ExecutionLog struct {
	ID        uuid.UUID `json:"id"`
	RefKind   string    `json:"ref_kind"`
	RefID     uuid.UUID `json:"ref_id"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}

// ExecutionLog reference kinds
const (
	RefKindOrder    = "ORDER"
	RefKindPosition = "POSITION"
	RefKindDecision = "DECISION"
)

package domain

import (
	"time"

	"github.com/google/uuid"
)

// AccountBalance is one entry of the append-only balance ledger.
// Rows are never mutated after creation; ordering by RecordedAt defines
// the ledger sequence.
type AccountBalance struct {
	ID          uuid.UUID `json:"id"`
	Balance     float64   `json:"balance"`
	PrevBalance float64   `json:"prev_balance"`
	Delta       float64   `json:"delta"`
	EventType   string    `json:"event_type"`
	ExpectedPnL float64   `json:"expected_pnl"`
	Unexplained float64   `json:"unexplained"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// BalanceEventType constants
const (
	BalanceEventInitial    = "INITIAL"
	BalanceEventSync       = "SYNC"
	BalanceEventDeposit    = "DEPOSIT"
	BalanceEventWithdrawal = "WITHDRAWAL"
	BalanceEventAdjustment = "ADJUSTMENT"
)

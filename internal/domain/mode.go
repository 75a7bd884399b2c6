package domain

import "time"

// TradingMode is the single capital-preservation switch shared by the
// circuit breaker and the operator API. Exactly one live record exists;
// it is mutated only through ModeRepository.Switch.
type TradingMode struct {
	Mode      string    `json:"mode"`
	ChangedBy string    `json:"changed_by"`
	Reason    string    `json:"reason"`
	ChangedAt time.Time `json:"changed_at"`
}

// Mode constants
const (
	ModeEnabled  = "ENABLED"   // open + close allowed
	ModeExitOnly = "EXIT_ONLY" // close only
	ModeBlocked  = "BLOCKED"   // neither
)

// ChangedBy constants
const (
	ChangedByUser           = "USER"
	ChangedBySystem         = "SYSTEM"
	ChangedByCircuitBreaker = "CIRCUIT_BREAKER"
)

// ValidMode reports whether the given string names a known trading mode
func ValidMode(mode string) bool {
	switch mode {
	case ModeEnabled, ModeExitOnly, ModeBlocked:
		return true
	}
	return false
}

// CanOpen reports whether new positions may be opened in this mode
func (m *TradingMode) CanOpen() bool {
	return m.Mode == ModeEnabled
}

// CanClose reports whether positions may be closed in this mode
func (m *TradingMode) CanClose() bool {
	return m.Mode == ModeEnabled || m.Mode == ModeExitOnly
}

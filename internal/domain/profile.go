package domain

// RiskProfile names
const (
	ProfileCautious = "CAUTIOUS"
	ProfileModerate = "MODERATE"
	ProfileFearless = "FEARLESS"
)

// RiskParams is the parameter bundle selected by the active risk profile.
// Read by the position sizer, the risk validator and the stop monitors.
type RiskParams struct {
	Name             string  `json:"name"`
	RSIOverbought    float64 `json:"rsi_overbought"`
	RSIOversold      float64 `json:"rsi_oversold"`
	MaxLeverage      float64 `json:"max_leverage"`
	MaxPositionSize  float64 `json:"max_position_size"` // Cap in base asset units
	MaxRiskPerTrade  float64 `json:"max_risk_per_trade"` // Fraction of account value
	MinConfidence    float64 `json:"min_confidence"`
	MinRiskReward    float64 `json:"min_risk_reward"`
	TrailingEnabled  bool    `json:"trailing_enabled"`
	TrailingActivate float64 `json:"trailing_activate"` // Unrealized PnL % that arms the trail
	TrailingDistance float64 `json:"trailing_distance"` // Fraction of peak price
}

// ValidProfile reports whether the given string names a known risk profile
func ValidProfile(name string) bool {
	switch name {
	case ProfileCautious, ProfileModerate, ProfileFearless:
		return true
	}
	return false
}

package domain

// VolatilityLevel constants
const (
	VolatilityVeryHigh = "VERY_HIGH"
	VolatilityHigh     = "HIGH"
	VolatilityMedium   = "MEDIUM"
	VolatilityLow      = "LOW"
)

// VolatilityAssessment is the scheduling verdict for one symbol (or the
// aggregate across the asset universe).
type VolatilityAssessment struct {
	Symbol          string  `json:"symbol,omitempty"`
	Level           string  `json:"level"`
	IntervalMinutes int     `json:"interval_minutes"`
	ATRValue        float64 `json:"atr_value"`
	ATRPercent      float64 `json:"atr_percent"`
}

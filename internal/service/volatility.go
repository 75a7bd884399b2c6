package service

import (
	"time"

	"perpguard/internal/domain"
)

// Interval bounds in minutes; every schedule is clamped into this range.
const (
	MinCycleMinutes = 3
	MaxCycleMinutes = 25
)

// DefaultAssessment is used when price or ATR is unavailable: the cycle
// keeps running at a medium cadence instead of failing.
const (
	DefaultVolatilityLevel = domain.VolatilityMedium
	DefaultIntervalMinutes = 12
)

// VolatilityScheduler converts ATR measurements into cycle intervals
type VolatilityScheduler struct{}

// NewVolatilityScheduler creates a new VolatilityScheduler
func NewVolatilityScheduler() *VolatilityScheduler {
	return &VolatilityScheduler{}
}

// Classify maps an ATR reading for one symbol onto a volatility level and
// scheduling interval. Thresholds are inclusive on the lower edge: an ATR
// of exactly 3% of price classifies as VERY_HIGH.
func (s *VolatilityScheduler) Classify(symbol string, atr, price float64) domain.VolatilityAssessment {
	if price <= 0 || atr <= 0 {
		return domain.VolatilityAssessment{
			Symbol:          symbol,
			Level:           DefaultVolatilityLevel,
			IntervalMinutes: DefaultIntervalMinutes,
		}
	}

	atrPct := atr / price

	assessment := domain.VolatilityAssessment{
		Symbol:     symbol,
		ATRValue:   atr,
		ATRPercent: atrPct,
	}

	switch {
	case atrPct >= 0.03:
		assessment.Level = domain.VolatilityVeryHigh
		assessment.IntervalMinutes = 3
	case atrPct >= 0.02:
		assessment.Level = domain.VolatilityHigh
		assessment.IntervalMinutes = 6
	case atrPct >= 0.01:
		assessment.Level = domain.VolatilityMedium
		assessment.IntervalMinutes = 12
	default:
		assessment.Level = domain.VolatilityLow
		assessment.IntervalMinutes = 25
	}

	return assessment
}

// Aggregate picks the scheduling verdict across symbols: the smallest
// interval wins, so the most volatile symbol dominates scheduling.
// Individual assessments stay attached to their decisions for audit.
// An empty input yields the default assessment.
func (s *VolatilityScheduler) Aggregate(assessments []domain.VolatilityAssessment) domain.VolatilityAssessment {
	if len(assessments) == 0 {
		return domain.VolatilityAssessment{
			Level:           DefaultVolatilityLevel,
			IntervalMinutes: DefaultIntervalMinutes,
		}
	}

	best := assessments[0]
	for _, a := range assessments[1:] {
		if a.IntervalMinutes < best.IntervalMinutes {
			best = a
		}
	}

	best.Symbol = "" // aggregate verdict is not symbol-specific
	return best
}

// ClampInterval bounds an interval to [MinCycleMinutes, MaxCycleMinutes]
func ClampInterval(minutes int) int {
	if minutes < MinCycleMinutes {
		return MinCycleMinutes
	}
	if minutes > MaxCycleMinutes {
		return MaxCycleMinutes
	}
	return minutes
}

// ForecastRefreshDelay returns how long to wait before refreshing the
// forecasts so they are fresh one minute before the next cycle. A zero
// duration means the refresh should be skipped.
func ForecastRefreshDelay(intervalMinutes int) time.Duration {
	lead := intervalMinutes - 1
	if lead <= 0 {
		return 0
	}
	return time.Duration(lead) * time.Minute
}

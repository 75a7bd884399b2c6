package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"perpguard/internal/domain"
)

// TrailingResult summarizes one trailing-stop pass
type TrailingResult struct {
	Checked   int
	Activated int
	Moved     int
}

// TrailingStopMonitor ratchets stop-losses behind the peak price of
// profitable positions. The stop only ever moves in the profit-protecting
// direction: up for longs, down for shorts. A candidate that would loosen
// the stop is discarded.
type TrailingStopMonitor struct {
	positionRepo domain.PositionRepository
	logRepo      domain.ExecutionLogRepository
	exchange     domain.ExchangeClient
	profiles     *ProfileManager

	running sync.Mutex
}

// NewTrailingStopMonitor creates a new TrailingStopMonitor
func NewTrailingStopMonitor(
	positionRepo domain.PositionRepository,
	logRepo domain.ExecutionLogRepository,
	exchange domain.ExchangeClient,
	profiles *ProfileManager,
) *TrailingStopMonitor {
	return &TrailingStopMonitor{
		positionRepo: positionRepo,
		logRepo:      logRepo,
		exchange:     exchange,
		profiles:     profiles,
	}
}

// Scan performs one trailing-stop pass over all open positions. The pass
// is skipped entirely when the active profile disables trailing stops.
func (m *TrailingStopMonitor) Scan(ctx context.Context) (TrailingResult, error) {
	if !m.running.TryLock() {
		log.Println("[TRAIL] Previous trailing scan still running, skipping tick")
		return TrailingResult{}, nil
	}
	defer m.running.Unlock()

	var result TrailingResult

	params := m.profiles.Current()
	if !params.TrailingEnabled {
		return result, nil
	}

	positions, err := m.positionRepo.GetOpenPositions(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to get open positions: %w", err)
	}
	if len(positions) == 0 {
		return result, nil
	}

	prices, err := m.exchange.AllMids(ctx)
	if err != nil {
		log.Printf("[WARN] TrailingStopMonitor: failed to fetch prices: %v", err)
		return result, nil
	}

	for _, pos := range positions {
		currentPrice, ok := prices[pos.Symbol]
		if !ok || currentPrice <= 0 {
			continue
		}

		result.Checked++

		activated, moved, dirty := m.updatePosition(pos, currentPrice, params)
		if !dirty {
			continue
		}

		if err := m.positionRepo.Update(ctx, pos); err != nil {
			log.Printf("[WARN] TrailingStopMonitor: failed to update %s: %v", pos.Symbol, err)
			continue
		}

		if activated {
			result.Activated++
			m.audit(ctx, pos, "TRAILING_ACTIVATED",
				fmt.Sprintf("trailing stop armed at %.4f (peak %.4f)", currentPrice, *pos.PeakPrice))
		}
		if moved {
			result.Moved++
			m.audit(ctx, pos, "TRAILING_MOVED",
				fmt.Sprintf("stop moved to %.4f (peak %.4f)", *pos.SLPrice, *pos.PeakPrice))
		}
	}

	return result, nil
}

// updatePosition tracks the favorable price extreme and ratchets the stop
func (m *TrailingStopMonitor) updatePosition(pos *domain.Position, currentPrice float64, params domain.RiskParams) (activated, moved, dirty bool) {
	now := time.Now()

	// Track the favorable extreme: highest price for longs, lowest for
	// shorts. The peak never retreats.
	if pos.PeakPrice == nil {
		peak := currentPrice
		pos.PeakPrice = &peak
		pos.PeakAt = &now
		dirty = true
	} else if pos.IsLong() && currentPrice > *pos.PeakPrice {
		*pos.PeakPrice = currentPrice
		pos.PeakAt = &now
		dirty = true
	} else if !pos.IsLong() && currentPrice < *pos.PeakPrice {
		*pos.PeakPrice = currentPrice
		pos.PeakAt = &now
		dirty = true
	}

	// Arm the trail once unrealized PnL crosses the activation threshold,
	// remembering the pre-trailing stop for audit.
	if !pos.TrailingActive {
		if pos.PnLPercent(currentPrice) >= params.TrailingActivate {
			pos.TrailingActive = true
			if pos.SLPrice != nil && pos.OriginalSL == nil {
				original := *pos.SLPrice
				pos.OriginalSL = &original
			}
			activated = true
			dirty = true
		} else {
			return false, false, dirty
		}
	}

	// Candidate stop trails the peak by the profile distance.
	var candidate float64
	if pos.IsLong() {
		candidate = *pos.PeakPrice * (1 - params.TrailingDistance)
	} else {
		candidate = *pos.PeakPrice * (1 + params.TrailingDistance)
	}

	// Monotonicity: only tighten. For longs the stop may only rise, for
	// shorts only fall.
	if pos.SLPrice == nil {
		pos.SLPrice = &candidate
		return activated, true, true
	}
	if pos.IsLong() && candidate > *pos.SLPrice {
		*pos.SLPrice = candidate
		return activated, true, true
	}
	if !pos.IsLong() && candidate < *pos.SLPrice {
		*pos.SLPrice = candidate
		return activated, true, true
	}

	return activated, false, dirty
}

func (m *TrailingStopMonitor) audit(ctx context.Context, pos *domain.Position, action, detail string) {
	entry := &domain.ExecutionLog{
		ID:        uuid.New(),
		RefKind:   domain.RefKindPosition,
		RefID:     pos.ID,
		Action:    action,
		Detail:    detail,
		CreatedAt: time.Now(),
	}
	if err := m.logRepo.Save(ctx, entry); err != nil {
		log.Printf("[WARN] TrailingStopMonitor: failed to save audit log: %v", err)
	}
}

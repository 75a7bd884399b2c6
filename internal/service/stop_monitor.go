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

// ScanResult summarizes one stop-loss monitoring pass
type ScanResult struct {
	Checked int
	Skipped int // no price, or neither SL nor TP set
	Closed  int
}

// StopLossMonitor scans every open position on a fixed short cadence and
// synthesizes close decisions when a stop-loss or take-profit is crossed.
// These closes bypass the reasoning agent entirely.
type StopLossMonitor struct {
	positionRepo domain.PositionRepository
	decisionRepo domain.DecisionRepository
	orderRepo    domain.OrderRepository
	logRepo      domain.ExecutionLogRepository
	exchange     domain.ExchangeClient
	executor     domain.OrderExecutor
	breaker      *CircuitBreaker
	notif        domain.NotificationService

	// One scan at a time; an overlapping tick is skipped, not queued.
	running sync.Mutex
}

// NewStopLossMonitor creates a new StopLossMonitor
func NewStopLossMonitor(
	positionRepo domain.PositionRepository,
	decisionRepo domain.DecisionRepository,
	orderRepo domain.OrderRepository,
	logRepo domain.ExecutionLogRepository,
	exchange domain.ExchangeClient,
	executor domain.OrderExecutor,
	breaker *CircuitBreaker,
	notif domain.NotificationService,
) *StopLossMonitor {
	return &StopLossMonitor{
		positionRepo: positionRepo,
		decisionRepo: decisionRepo,
		orderRepo:    orderRepo,
		logRepo:      logRepo,
		exchange:     exchange,
		executor:     executor,
		breaker:      breaker,
		notif:        notif,
	}
}

// Scan performs one monitoring pass over all open positions
func (m *StopLossMonitor) Scan(ctx context.Context) (ScanResult, error) {
	if !m.running.TryLock() {
		log.Println("[MONITOR] Previous stop-loss scan still running, skipping tick")
		return ScanResult{}, nil
	}
	defer m.running.Unlock()

	var result ScanResult

	positions, err := m.positionRepo.GetOpenPositions(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to get open positions: %w", err)
	}
	if len(positions) == 0 {
		return result, nil
	}

	// One batch call for all symbols; a failed fetch skips the pass
	// rather than erroring, the next tick retries.
	prices, err := m.exchange.AllMids(ctx)
	if err != nil {
		log.Printf("[WARN] StopLossMonitor: failed to fetch prices: %v", err)
		return result, nil
	}

	for _, pos := range positions {
		currentPrice, ok := prices[pos.Symbol]
		if !ok || currentPrice <= 0 {
			result.Skipped++
			continue
		}
		if !pos.HasProtection() {
			result.Skipped++
			continue
		}

		result.Checked++

		// Mark to market on every tick.
		pos.CurrentPrice = currentPrice
		pos.UnrealizedPnL = pos.GrossPnL(currentPrice)

		shouldClose, closeReason := pos.CheckSLTP(currentPrice)
		if !shouldClose {
			if err := m.positionRepo.Update(ctx, pos); err != nil {
				log.Printf("[WARN] StopLossMonitor: failed to mark %s: %v", pos.Symbol, err)
			}
			continue
		}

		if err := m.closePosition(ctx, pos, currentPrice, closeReason); err != nil {
			log.Printf("[ERR] StopLossMonitor: failed to close %s: %v", pos.Symbol, err)
			continue
		}
		result.Closed++
	}

	if result.Closed > 0 {
		log.Printf("[MONITOR] Closed %d position(s), checked %d, skipped %d",
			result.Closed, result.Checked, result.Skipped)
	}

	return result, nil
}

// closePosition synthesizes and executes a close decision, then marks the
// position closed and records the outcome with the circuit breaker.
func (m *StopLossMonitor) closePosition(ctx context.Context, pos *domain.Position, exitPrice float64, closeReason string) error {
	trigger := "stop-loss"
	if closeReason == domain.CloseReasonTakeProfit {
		trigger = "take-profit"
	}

	decision := &domain.TradingDecision{
		ID:         uuid.New(),
		Symbol:     pos.Symbol,
		Operation:  domain.OperationClose,
		Side:       pos.Side,
		Confidence: 1.0,
		Size:       pos.Size,
		Reasoning: fmt.Sprintf("Automatic close: %s triggered for %s %s at %.4f (entry %.4f)",
			trigger, pos.Symbol, pos.Side, exitPrice, pos.EntryPrice),
		Status:    domain.DecisionApproved,
		Synthetic: true,
		CreatedAt: time.Now(),
	}

	if err := m.decisionRepo.Save(ctx, decision); err != nil {
		return fmt.Errorf("failed to save synthetic decision: %w", err)
	}

	order := domain.NewSubmittedOrder(decision)
	if err := m.orderRepo.Save(ctx, order); err != nil {
		log.Printf("[WARN] StopLossMonitor: failed to save order for %s: %v", pos.Symbol, err)
	}

	if err := m.executor.Execute(ctx, decision, order); err != nil {
		reason := err.Error()
		if uerr := m.orderRepo.UpdateStatus(ctx, order, domain.OrderFailed, &reason); uerr != nil {
			log.Printf("[WARN] StopLossMonitor: failed to mark order failed: %v", uerr)
		}
		decision.MarkFailed(reason)
		if uerr := m.decisionRepo.Update(ctx, decision); uerr != nil {
			log.Printf("[WARN] StopLossMonitor: failed to mark decision failed: %v", uerr)
		}
		return fmt.Errorf("execution failed: %w", err)
	}

	if err := m.orderRepo.UpdateStatus(ctx, order, domain.OrderFilled, nil); err != nil {
		log.Printf("[WARN] StopLossMonitor: failed to mark order filled: %v", err)
	}

	decision.MarkExecuted()
	if err := m.decisionRepo.Update(ctx, decision); err != nil {
		log.Printf("[WARN] StopLossMonitor: failed to mark decision executed: %v", err)
	}

	// Prefer the actual fill price when the exchange reports one.
	if order.AvgPrice != nil && *order.AvgPrice > 0 {
		exitPrice = *order.AvgPrice
	}

	realized := pos.GrossPnL(exitPrice)
	now := time.Now()
	pos.CurrentPrice = exitPrice
	pos.RealizedPnL = &realized
	pos.UnrealizedPnL = 0
	pos.Status = domain.PositionClosed
	pos.CloseReason = &closeReason
	pos.ClosedAt = &now

	if err := m.positionRepo.Update(ctx, pos); err != nil {
		return fmt.Errorf("failed to persist close: %w", err)
	}

	// The breaker observes every realized outcome.
	if m.breaker != nil {
		if realized < 0 {
			m.breaker.RecordLoss(-realized)
		} else {
			m.breaker.RecordWin()
		}
	}

	entry := &domain.ExecutionLog{
		ID:      uuid.New(),
		RefKind: domain.RefKindPosition,
		RefID:   pos.ID,
		Action:  closeReason,
		Detail: fmt.Sprintf("%s %s closed at %.4f, realized PnL %.4f",
			pos.Symbol, pos.Side, exitPrice, realized),
		CreatedAt: now,
	}
	if err := m.logRepo.Save(ctx, entry); err != nil {
		log.Printf("[WARN] StopLossMonitor: failed to save audit log: %v", err)
	}

	log.Printf("[MONITOR] Closed %s via %s @ %.4f (PnL %.4f)", pos.Symbol, closeReason, exitPrice, realized)

	if m.notif != nil {
		if err := m.notif.SendAlert(fmt.Sprintf("%s closed (%s)", pos.Symbol, closeReason),
			fmt.Sprintf("Exit %.4f, realized PnL %.4f", exitPrice, realized)); err != nil {
			log.Printf("[WARN] StopLossMonitor: failed to send alert: %v", err)
		}
	}

	return nil
}

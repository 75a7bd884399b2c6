package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"perpguard/internal/domain"
	"perpguard/internal/service"
)

// CycleReport summarizes one trading cycle for logging and scheduling
type CycleReport struct {
	CycleID         uuid.UUID
	Decisions       int
	Approved        int
	Rejected        int
	Executed        int
	Failed          int
	NextIntervalMin int
	Volatility      domain.VolatilityAssessment
}

// CycleOrchestrator sequences one trading cycle: reconcile, gate, ask the
// reasoning agent, validate, size, execute. It never schedules itself;
// the scheduler owns the timer and always reschedules, even when a cycle
// fails (see infra.CycleScheduler).
type CycleOrchestrator struct {
	gate       *service.ModeGate
	profiles   *service.ProfileManager
	validator  *service.RiskValidator
	sizer      *service.PositionSizer
	volatility *service.VolatilityScheduler
	reconciler *service.BalanceReconciler
	breaker    *service.CircuitBreaker

	agent      domain.ReasoningAgent
	executor   domain.OrderExecutor
	exchange   domain.ExchangeClient
	account    domain.AccountManager
	indicators domain.IndicatorSource
	macro      domain.MacroStrategyProvider
	readiness  domain.ReadinessChecker

	decisionRepo domain.DecisionRepository
	positionRepo domain.PositionRepository
	orderRepo    domain.OrderRepository
	logRepo      domain.ExecutionLogRepository

	symbols            []string
	defaultIntervalMin int

	// A new cycle must not start while a prior one is still executing.
	running sync.Mutex
}

// CycleOrchestratorDeps bundles the orchestrator's collaborators
type CycleOrchestratorDeps struct {
	Gate       *service.ModeGate
	Profiles   *service.ProfileManager
	Validator  *service.RiskValidator
	Sizer      *service.PositionSizer
	Volatility *service.VolatilityScheduler
	Reconciler *service.BalanceReconciler
	Breaker    *service.CircuitBreaker

	Agent      domain.ReasoningAgent
	Executor   domain.OrderExecutor
	Exchange   domain.ExchangeClient
	Account    domain.AccountManager
	Indicators domain.IndicatorSource
	Macro      domain.MacroStrategyProvider
	Readiness  domain.ReadinessChecker

	DecisionRepo domain.DecisionRepository
	PositionRepo domain.PositionRepository
	OrderRepo    domain.OrderRepository
	LogRepo      domain.ExecutionLogRepository

	Symbols            []string
	DefaultIntervalMin int
}

// NewCycleOrchestrator creates a new CycleOrchestrator
func NewCycleOrchestrator(deps CycleOrchestratorDeps) *CycleOrchestrator {
	return &CycleOrchestrator{
		gate:               deps.Gate,
		profiles:           deps.Profiles,
		validator:          deps.Validator,
		sizer:              deps.Sizer,
		volatility:         deps.Volatility,
		reconciler:         deps.Reconciler,
		breaker:            deps.Breaker,
		agent:              deps.Agent,
		executor:           deps.Executor,
		exchange:           deps.Exchange,
		account:            deps.Account,
		indicators:         deps.Indicators,
		macro:              deps.Macro,
		readiness:          deps.Readiness,
		decisionRepo:       deps.DecisionRepo,
		positionRepo:       deps.PositionRepo,
		orderRepo:          deps.OrderRepo,
		logRepo:            deps.LogRepo,
		symbols:            deps.Symbols,
		defaultIntervalMin: deps.DefaultIntervalMin,
	}
}

// RunCycle executes one full trading cycle. The returned report always
// carries a usable NextIntervalMin, even when the cycle aborted early.
func (o *CycleOrchestrator) RunCycle(ctx context.Context) (*CycleReport, error) {
	if !o.running.TryLock() {
		log.Println("[CYCLE] Previous cycle still running, skipping")
		return &CycleReport{NextIntervalMin: o.defaultIntervalMin}, nil
	}
	defer o.running.Unlock()

	cycleID := uuid.New()
	report := &CycleReport{
		CycleID:         cycleID,
		NextIntervalMin: o.defaultIntervalMin,
	}

	log.Printf("[CYCLE] === Starting trading cycle %s ===", cycleID)
	startTime := time.Now()
	defer func() {
		log.Printf("[CYCLE] === Cycle complete in %.1fs: %d decisions, %d executed, %d rejected, next in %dm ===",
			time.Since(startTime).Seconds(), report.Decisions, report.Executed, report.Rejected, report.NextIntervalMin)
	}()

	// Snapshot the profile once; a profile switch mid-cycle waits for the
	// next cycle.
	params := o.profiles.Current()

	// (a) A BLOCKED system trades nothing at all.
	mode, err := o.gate.Current(ctx)
	if err != nil {
		return report, err
	}
	if mode.Mode == domain.ModeBlocked {
		log.Println("[CYCLE] Trading mode is BLOCKED, skipping cycle")
		return report, nil
	}

	// (b) Reconcile balance. Failures are logged, never fatal.
	if _, err := o.reconciler.Sync(ctx); err != nil {
		log.Printf("[WARN] Cycle: balance reconciliation failed: %v", err)
	}

	// Batch price fetch used for scheduling and entry prices alike.
	prices, err := o.exchange.AllMids(ctx)
	if err != nil {
		log.Printf("[WARN] Cycle: failed to fetch prices: %v", err)
		prices = map[string]float64{}
	}

	// The next interval comes from measured volatility regardless of how
	// the rest of the cycle goes.
	perSymbol := o.assessVolatility(ctx, prices)
	aggregate := o.volatility.Aggregate(perSymbol)
	report.Volatility = aggregate
	report.NextIntervalMin = service.ClampInterval(aggregate.IntervalMinutes)

	// (c) A stale macro strategy is refreshed synchronously before asking
	// for decisions.
	strategy, stale, err := o.macro.Current(ctx)
	if err != nil || stale {
		refreshed, rerr := o.macro.Refresh(ctx)
		if rerr != nil {
			log.Printf("[WARN] Cycle: macro strategy refresh failed: %v", rerr)
		} else {
			strategy = refreshed
		}
	}

	// (d) Abort rather than trade on incomplete context.
	ready, err := o.readiness.Check(ctx)
	if err != nil {
		return report, fmt.Errorf("readiness check failed: %w", err)
	}
	if !ready.Ready {
		log.Printf("[CYCLE] Not ready, missing: %v", ready.Missing)
		return report, nil
	}

	// (e) One decision per symbol from the reasoning agent. Agent
	// failures become rejected HOLD decisions, not cycle errors.
	decisions, err := o.agent.DecideAll(ctx, strategy)
	if err != nil {
		log.Printf("[WARN] Cycle: reasoning agent failed: %v", err)
		decisions = o.holdAll(fmt.Sprintf("reasoning agent unavailable: %v", err))
	}
	report.Decisions = len(decisions)

	volBySymbol := make(map[string]domain.VolatilityAssessment, len(perSymbol))
	for _, a := range perSymbol {
		volBySymbol[a.Symbol] = a
	}

	// (f) Validate, filter and size each decision.
	var approvedDecisions []*domain.TradingDecision
	for _, decision := range decisions {
		decision.CycleID = &cycleID
		if a, ok := volBySymbol[decision.Symbol]; ok {
			decision.VolatilityLevel = a.Level
			decision.NextIntervalMin = report.NextIntervalMin
		}

		o.screenDecision(ctx, decision, prices, params)

		if err := o.decisionRepo.Save(ctx, decision); err != nil {
			log.Printf("[ERR] Cycle: failed to save decision for %s: %v", decision.Symbol, err)
			continue
		}

		switch decision.Status {
		case domain.DecisionApproved:
			report.Approved++
			approvedDecisions = append(approvedDecisions, decision)
		case domain.DecisionRejected:
			report.Rejected++
		}
	}

	// (g) Execute the approved batch; one failure never aborts the rest.
	for _, decision := range approvedDecisions {
		if err := o.executeDecision(ctx, decision); err != nil {
			log.Printf("[ERR] Cycle: execution failed for %s: %v", decision.Symbol, err)
			report.Failed++
			continue
		}
		report.Executed++
	}

	return report, nil
}

// assessVolatility classifies each symbol's ATR; symbols without data get
// the default assessment rather than failing.
func (o *CycleOrchestrator) assessVolatility(ctx context.Context, prices map[string]float64) []domain.VolatilityAssessment {
	assessments := make([]domain.VolatilityAssessment, 0, len(o.symbols))
	for _, symbol := range o.symbols {
		atr, err := o.indicators.ATR(ctx, symbol)
		if err != nil {
			log.Printf("[WARN] Cycle: ATR unavailable for %s: %v", symbol, err)
			atr = 0
		}
		assessments = append(assessments, o.volatility.Classify(symbol, atr, prices[symbol]))
	}
	return assessments
}

// holdAll produces one rejected HOLD decision per symbol, used when the
// reasoning agent is unavailable.
func (o *CycleOrchestrator) holdAll(reason string) []*domain.TradingDecision {
	decisions := make([]*domain.TradingDecision, 0, len(o.symbols))
	for _, symbol := range o.symbols {
		d := &domain.TradingDecision{
			ID:        uuid.New(),
			Symbol:    symbol,
			Operation: domain.OperationHold,
			Status:    domain.DecisionPending,
			Reasoning: reason,
			CreatedAt: time.Now(),
		}
		d.Reject(reason)
		decisions = append(decisions, d)
	}
	return decisions
}

// screenDecision runs mode permissions, the risk pipeline, the RSI entry
// backstop and sizing for one decision, mutating its status in place.
func (o *CycleOrchestrator) screenDecision(ctx context.Context, decision *domain.TradingDecision, prices map[string]float64, params domain.RiskParams) {
	if decision.Status != domain.DecisionPending {
		return
	}

	if !decision.IsActionable() {
		decision.Reject("hold operations are not executable")
		return
	}

	// Mode permissions are re-checked per decision: the circuit breaker
	// may have tripped since the cycle started.
	switch decision.Operation {
	case domain.OperationOpen:
		canOpen, err := o.gate.CanOpen(ctx)
		if err != nil {
			decision.Reject(fmt.Sprintf("mode check failed: %v", err))
			return
		}
		if !canOpen {
			decision.Reject("trading mode forbids opening positions")
			return
		}
	case domain.OperationClose:
		canClose, err := o.gate.CanClose(ctx)
		if err != nil {
			decision.Reject(fmt.Sprintf("mode check failed: %v", err))
			return
		}
		if !canClose {
			decision.Reject("trading mode forbids closing positions")
			return
		}
	}

	entryPrice, ok := prices[decision.Symbol]
	if !ok || entryPrice <= 0 {
		decision.Reject(fmt.Sprintf("no market price for %s", decision.Symbol))
		return
	}
	decision.EntryPrice = &entryPrice

	verdict, err := o.validator.Validate(ctx, decision, entryPrice, params)
	if err != nil {
		decision.Reject(fmt.Sprintf("validation error: %v", err))
		return
	}
	if !verdict.Approved {
		decision.Reject(verdict.Reason)
		return
	}

	// RSI backstop, independent of the agent's own judgement. An
	// indicator outage skips the filter instead of blocking the trade.
	if decision.Operation == domain.OperationOpen {
		rsi, err := o.indicators.RSI(ctx, decision.Symbol)
		if err != nil {
			log.Printf("[WARN] Cycle: RSI unavailable for %s: %v", decision.Symbol, err)
		} else if verdict := service.CheckEntryRSI(decision, rsi, params); !verdict.Approved {
			decision.Reject(verdict.Reason)
			return
		}

		accountValue, err := o.account.AccountValue(ctx)
		if err != nil {
			decision.Reject(fmt.Sprintf("account value unavailable: %v", err))
			return
		}

		sizing, err := o.sizer.Size(entryPrice, decision.SLPrice, accountValue, params)
		if err != nil {
			if errors.Is(err, domain.ErrCannotSize) {
				decision.Reject("cannot size position without a stop-loss")
				return
			}
			decision.Reject(fmt.Sprintf("sizing failed: %v", err))
			return
		}
		decision.Size = sizing.Size
		if decision.Leverage <= 0 {
			decision.Leverage = params.MaxLeverage
		}
		if sizing.Capped {
			log.Printf("[CYCLE] %s size capped at %.4f (risk %.2f)", decision.Symbol, sizing.Size, sizing.RiskAmount)
		}
	}

	decision.Status = domain.DecisionApproved
}

// executeDecision runs one approved decision through the order executor
// and applies the resulting position change. The order row is written
// SUBMITTED before the engine call, then transitioned to FILLED or
// FAILED, so the audit trail covers engine rejections too.
func (o *CycleOrchestrator) executeDecision(ctx context.Context, decision *domain.TradingDecision) error {
	order := domain.NewSubmittedOrder(decision)
	if err := o.orderRepo.Save(ctx, order); err != nil {
		log.Printf("[WARN] Cycle: failed to save order for %s: %v", decision.Symbol, err)
	}

	if err := o.executor.Execute(ctx, decision, order); err != nil {
		reason := err.Error()
		if errors.Is(err, domain.ErrWriteNotSupported) {
			reason = "exchange write path not supported"
		}
		if uerr := o.orderRepo.UpdateStatus(ctx, order, domain.OrderFailed, &reason); uerr != nil {
			log.Printf("[WARN] Cycle: failed to mark order failed: %v", uerr)
		}
		decision.MarkFailed(reason)
		if uerr := o.decisionRepo.Update(ctx, decision); uerr != nil {
			log.Printf("[WARN] Cycle: failed to mark decision failed: %v", uerr)
		}
		return err
	}

	if err := o.orderRepo.UpdateStatus(ctx, order, domain.OrderFilled, nil); err != nil {
		log.Printf("[WARN] Cycle: failed to mark order filled: %v", err)
	}

	switch decision.Operation {
	case domain.OperationOpen:
		if err := o.openPosition(ctx, decision, order); err != nil {
			return err
		}
	case domain.OperationClose:
		if err := o.closePosition(ctx, decision, order); err != nil {
			return err
		}
	}

	decision.MarkExecuted()
	return o.decisionRepo.Update(ctx, decision)
}

func (o *CycleOrchestrator) openPosition(ctx context.Context, decision *domain.TradingDecision, order *domain.Order) error {
	entryPrice := 0.0
	if decision.EntryPrice != nil {
		entryPrice = *decision.EntryPrice
	}
	if order.AvgPrice != nil && *order.AvgPrice > 0 {
		entryPrice = *order.AvgPrice
	}

	leverage := decision.Leverage
	if leverage < 1 {
		leverage = 1
	}

	position := &domain.Position{
		ID:           uuid.New(),
		DecisionID:   &decision.ID,
		Symbol:       decision.Symbol,
		Side:         decision.Side,
		Size:         decision.Size,
		EntryPrice:   entryPrice,
		CurrentPrice: entryPrice,
		Leverage:     leverage,
		MarginUsed:   decision.Size * entryPrice / leverage,
		SLPrice:      decision.SLPrice,
		TPPrice:      decision.TPPrice,
		Status:       domain.PositionOpen,
		CreatedAt:    time.Now(),
	}

	if err := o.positionRepo.Save(ctx, position); err != nil {
		return fmt.Errorf("failed to save position: %w", err)
	}

	o.audit(ctx, domain.RefKindPosition, position.ID, "OPENED",
		fmt.Sprintf("%s %s size %.4f @ %.4f (%.0fx)", position.Symbol, position.Side, position.Size, entryPrice, leverage))

	return nil
}

func (o *CycleOrchestrator) closePosition(ctx context.Context, decision *domain.TradingDecision, order *domain.Order) error {
	position, err := o.positionRepo.GetOpenBySymbol(ctx, decision.Symbol)
	if err != nil {
		return err
	}
	if position == nil {
		return fmt.Errorf("no open position for %s", decision.Symbol)
	}

	exitPrice := position.CurrentPrice
	if decision.EntryPrice != nil && *decision.EntryPrice > 0 {
		exitPrice = *decision.EntryPrice
	}
	if order.AvgPrice != nil && *order.AvgPrice > 0 {
		exitPrice = *order.AvgPrice
	}

	realized := position.GrossPnL(exitPrice)
	now := time.Now()
	closeReason := domain.CloseReasonSignal
	position.CurrentPrice = exitPrice
	position.RealizedPnL = &realized
	position.UnrealizedPnL = 0
	position.Status = domain.PositionClosed
	position.CloseReason = &closeReason
	position.ClosedAt = &now

	if err := o.positionRepo.Update(ctx, position); err != nil {
		return fmt.Errorf("failed to persist close: %w", err)
	}

	if o.breaker != nil {
		if realized < 0 {
			o.breaker.RecordLoss(-realized)
		} else {
			o.breaker.RecordWin()
		}
	}

	o.audit(ctx, domain.RefKindPosition, position.ID, closeReason,
		fmt.Sprintf("%s %s closed at %.4f, realized PnL %.4f", position.Symbol, position.Side, exitPrice, realized))

	return nil
}

func (o *CycleOrchestrator) audit(ctx context.Context, refKind string, refID uuid.UUID, action, detail string) {
	entry := &domain.ExecutionLog{
		ID:        uuid.New(),
		RefKind:   refKind,
		RefID:     refID,
		Action:    action,
		Detail:    detail,
		CreatedAt: time.Now(),
	}
	if err := o.logRepo.Save(ctx, entry); err != nil {
		log.Printf("[WARN] Cycle: failed to save audit log: %v", err)
	}
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"perpguard/internal/domain"
)

// In-memory fakes shared across the service tests.

type fakeModeRepo struct {
	mode     *domain.TradingMode
	getCalls int
}

func newFakeModeRepo() *fakeModeRepo {
	return &fakeModeRepo{
		mode: &domain.TradingMode{
			Mode:      domain.ModeEnabled,
			ChangedBy: domain.ChangedBySystem,
			Reason:    "initial",
			ChangedAt: time.Now(),
		},
	}
}

func (r *fakeModeRepo) Get(ctx context.Context) (*domain.TradingMode, error) {
	r.getCalls++
	copied := *r.mode
	return &copied, nil
}

func (r *fakeModeRepo) Switch(ctx context.Context, mode, changedBy, reason string) error {
	r.mode = &domain.TradingMode{
		Mode:      mode,
		ChangedBy: changedBy,
		Reason:    reason,
		ChangedAt: time.Now(),
	}
	return nil
}

type fakeAccountManager struct {
	value      float64
	valueErr   error
	hasOpen    bool
	canTrade   bool
	canTradeAt float64 // records the margin passed to CanTrade
	onValue    func()  // runs before AccountValue answers
}

func (a *fakeAccountManager) AccountValue(ctx context.Context) (float64, error) {
	if a.onValue != nil {
		a.onValue()
	}
	return a.value, a.valueErr
}

func (a *fakeAccountManager) HasOpenPosition(ctx context.Context, symbol string) (bool, error) {
	return a.hasOpen, nil
}

func (a *fakeAccountManager) CanTrade(ctx context.Context, marginRequired float64) (bool, error) {
	a.canTradeAt = marginRequired
	return a.canTrade, nil
}

type fakePositionRepo struct {
	positions   []*domain.Position
	realizedPnL float64
	updated     []*domain.Position
}

func (r *fakePositionRepo) Save(ctx context.Context, position *domain.Position) error {
	r.positions = append(r.positions, position)
	return nil
}

func (r *fakePositionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Position, error) {
	for _, p := range r.positions {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, nil
}

func (r *fakePositionRepo) GetOpenPositions(ctx context.Context) ([]*domain.Position, error) {
	var open []*domain.Position
	for _, p := range r.positions {
		if p.Status == domain.PositionOpen {
			open = append(open, p)
		}
	}
	return open, nil
}

func (r *fakePositionRepo) GetOpenBySymbol(ctx context.Context, symbol string) (*domain.Position, error) {
	for _, p := range r.positions {
		if p.Symbol == symbol && p.Status == domain.PositionOpen {
			return p, nil
		}
	}
	return nil, nil
}

func (r *fakePositionRepo) CountOpen(ctx context.Context) (int, error) {
	open, _ := r.GetOpenPositions(ctx)
	return len(open), nil
}

func (r *fakePositionRepo) Update(ctx context.Context, position *domain.Position) error {
	r.updated = append(r.updated, position)
	return nil
}

func (r *fakePositionRepo) GetRealizedPnLSince(ctx context.Context, since time.Time) (float64, error) {
	return r.realizedPnL, nil
}

type fakeBalanceRepo struct {
	entries []*domain.AccountBalance
}

func (r *fakeBalanceRepo) Append(ctx context.Context, entry *domain.AccountBalance) error {
	r.entries = append(r.entries, entry)
	return nil
}

func (r *fakeBalanceRepo) GetLatest(ctx context.Context) (*domain.AccountBalance, error) {
	if len(r.entries) == 0 {
		return nil, nil
	}
	return r.entries[len(r.entries)-1], nil
}

func (r *fakeBalanceRepo) GetInitial(ctx context.Context) (*domain.AccountBalance, error) {
	for _, e := range r.entries {
		if e.EventType == domain.BalanceEventInitial {
			return e, nil
		}
	}
	return nil, nil
}

func (r *fakeBalanceRepo) SumByEventType(ctx context.Context, eventType string) (float64, error) {
	var sum float64
	for _, e := range r.entries {
		if e.EventType == eventType {
			sum += e.Unexplained
		}
	}
	return sum, nil
}

func (r *fakeBalanceRepo) GetRecent(ctx context.Context, limit int) ([]*domain.AccountBalance, error) {
	return r.entries, nil
}

type fakeExchange struct {
	mids    map[string]float64
	midsErr error
	state   *domain.AccountState
}

func (e *fakeExchange) AllMids(ctx context.Context) (map[string]float64, error) {
	return e.mids, e.midsErr
}

func (e *fakeExchange) UserState(ctx context.Context, address string) (*domain.AccountState, error) {
	return e.state, nil
}

type fakeDecisionRepo struct {
	saved []*domain.TradingDecision
}

func (r *fakeDecisionRepo) Save(ctx context.Context, decision *domain.TradingDecision) error {
	r.saved = append(r.saved, decision)
	return nil
}

func (r *fakeDecisionRepo) Update(ctx context.Context, decision *domain.TradingDecision) error {
	return nil
}

func (r *fakeDecisionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.TradingDecision, error) {
	return nil, nil
}

func (r *fakeDecisionRepo) GetRecent(ctx context.Context, limit int) ([]*domain.TradingDecision, error) {
	return r.saved, nil
}

func (r *fakeDecisionRepo) GetBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.TradingDecision, error) {
	return nil, nil
}

type fakeLogRepo struct {
	entries []*domain.ExecutionLog
}

func (r *fakeLogRepo) Save(ctx context.Context, entry *domain.ExecutionLog) error {
	r.entries = append(r.entries, entry)
	return nil
}

func (r *fakeLogRepo) GetByRef(ctx context.Context, refKind string, refID uuid.UUID, limit int) ([]*domain.ExecutionLog, error) {
	return r.entries, nil
}

type fakeExecutor struct {
	executed []*domain.TradingDecision
	fillAt   *float64
	err      error
}

func (e *fakeExecutor) Execute(ctx context.Context, decision *domain.TradingDecision, order *domain.Order) error {
	if e.err != nil {
		return e.err
	}
	e.executed = append(e.executed, decision)
	order.FilledSize = decision.Size
	order.AvgPrice = e.fillAt
	return nil
}

type fakeOrderRepo struct {
	saved       []*domain.Order
	transitions []string
}

func (r *fakeOrderRepo) Save(ctx context.Context, order *domain.Order) error {
	r.saved = append(r.saved, order)
	return nil
}

func (r *fakeOrderRepo) UpdateStatus(ctx context.Context, order *domain.Order, status string, failReason *string) error {
	if !order.CanTransition(status) {
		return fmt.Errorf("illegal order status transition %s -> %s", order.Status, status)
	}
	order.Status = status
	order.FailReason = failReason
	r.transitions = append(r.transitions, status)
	return nil
}

func (r *fakeOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	for _, o := range r.saved {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, nil
}

func (r *fakeOrderRepo) GetRecent(ctx context.Context, limit int) ([]*domain.Order, error) {
	return r.saved, nil
}

type fakeSettingsRepo struct {
	values map[string]string
}

func newFakeSettingsRepo() *fakeSettingsRepo {
	return &fakeSettingsRepo{values: make(map[string]string)}
}

func (r *fakeSettingsRepo) Get(ctx context.Context, key string) (string, error) {
	return r.values[key], nil
}

func (r *fakeSettingsRepo) Set(ctx context.Context, key, value string) error {
	r.values[key] = value
	return nil
}

func floatPtr(v float64) *float64 { return &v }

func moderateParams() domain.RiskParams {
	return domain.RiskParams{
		Name:             domain.ProfileModerate,
		RSIOverbought:    70,
		RSIOversold:      30,
		MaxLeverage:      10,
		MaxPositionSize:  0.05,
		MaxRiskPerTrade:  0.01,
		MinConfidence:    0.7,
		MinRiskReward:    1.5,
		TrailingEnabled:  true,
		TrailingActivate: 5.0,
		TrailingDistance: 0.02,
	}
}

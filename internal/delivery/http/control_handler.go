package http

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"perpguard/internal/domain"
	"perpguard/internal/infra"
	"perpguard/internal/middleware"
	"perpguard/internal/service"
)

// ControlHandler exposes the operator control surface: trading mode,
// risk profile, circuit breaker and read-only listings.
type ControlHandler struct {
	gate       *service.ModeGate
	breaker    *service.CircuitBreaker
	profiles   *service.ProfileManager
	reconciler *service.BalanceReconciler
	scheduler  *infra.CycleScheduler

	decisionRepo domain.DecisionRepository
	positionRepo domain.PositionRepository
	balanceRepo  domain.BalanceRepository
	logRepo      domain.ExecutionLogRepository
}

// NewControlHandler creates a new ControlHandler
func NewControlHandler(
	gate *service.ModeGate,
	breaker *service.CircuitBreaker,
	profiles *service.ProfileManager,
	reconciler *service.BalanceReconciler,
	scheduler *infra.CycleScheduler,
	decisionRepo domain.DecisionRepository,
	positionRepo domain.PositionRepository,
	balanceRepo domain.BalanceRepository,
	logRepo domain.ExecutionLogRepository,
) *ControlHandler {
	return &ControlHandler{
		gate:         gate,
		breaker:      breaker,
		profiles:     profiles,
		reconciler:   reconciler,
		scheduler:    scheduler,
		decisionRepo: decisionRepo,
		positionRepo: positionRepo,
		balanceRepo:  balanceRepo,
		logRepo:      logRepo,
	}
}

// GetMode returns the current trading mode
// GET /api/control/mode
func (h *ControlHandler) GetMode(c echo.Context) error {
	mode, err := h.gate.Current(c.Request().Context())
	if err != nil {
		return InternalServerErrorResponse(c, "Failed to load trading mode", err)
	}
	return SuccessResponse(c, mode)
}

// SwitchModeRequest represents the mode switch payload
type SwitchModeRequest struct {
	Mode   string `json:"mode" validate:"required"`
	Reason string `json:"reason"`
}

// SwitchMode switches the trading mode manually
// POST /api/control/mode
func (h *ControlHandler) SwitchMode(c echo.Context) error {
	var req SwitchModeRequest
	if err := c.Bind(&req); err != nil {
		return BadRequestResponse(c, "Invalid request payload")
	}
	if !domain.ValidMode(req.Mode) {
		return BadRequestResponse(c, "Mode must be ENABLED, EXIT_ONLY or BLOCKED")
	}
	if req.Reason == "" {
		req.Reason = "manual switch"
	}

	if err := h.gate.Switch(c.Request().Context(), req.Mode, domain.ChangedByUser, req.Reason); err != nil {
		return InternalServerErrorResponse(c, "Failed to switch mode", err)
	}

	mode, err := h.gate.Current(c.Request().Context())
	if err != nil {
		return InternalServerErrorResponse(c, "Failed to reload mode", err)
	}
	return SuccessMessageResponse(c, "Trading mode updated", mode)
}

// GetBreaker reports the circuit breaker state
// GET /api/control/breaker
func (h *ControlHandler) GetBreaker(c echo.Context) error {
	triggered, err := h.breaker.Triggered(c.Request().Context())
	if err != nil {
		return InternalServerErrorResponse(c, "Failed to check breaker", err)
	}
	return SuccessResponse(c, map[string]interface{}{
		"triggered":          triggered,
		"daily_loss":         h.breaker.DailyLoss(),
		"consecutive_losses": h.breaker.ConsecutiveLosses(),
	})
}

// ResetBreaker clears the breaker counters and re-enables trading
// POST /api/control/breaker/reset
func (h *ControlHandler) ResetBreaker(c echo.Context) error {
	if err := h.breaker.Reset(c.Request().Context()); err != nil {
		return InternalServerErrorResponse(c, "Failed to reset breaker", err)
	}
	return SuccessMessageResponse(c, "Circuit breaker reset", nil)
}

// GetProfile returns the active risk profile
// GET /api/control/profile
func (h *ControlHandler) GetProfile(c echo.Context) error {
	return SuccessResponse(c, map[string]interface{}{
		"active": h.profiles.ActiveName(),
		"params": h.profiles.Current(),
	})
}

// SwitchProfileRequest represents the profile switch payload
type SwitchProfileRequest struct {
	Profile string `json:"profile" validate:"required"`
}

// SwitchProfile switches the active risk profile. The new profile takes
// effect from the next cycle's snapshot.
// POST /api/control/profile
func (h *ControlHandler) SwitchProfile(c echo.Context) error {
	var req SwitchProfileRequest
	if err := c.Bind(&req); err != nil {
		return BadRequestResponse(c, "Invalid request payload")
	}
	if !domain.ValidProfile(req.Profile) {
		return BadRequestResponse(c, "Profile must be CAUTIOUS, MODERATE or FEARLESS")
	}

	changedBy := "operator"
	if operatorID, err := middleware.GetOperatorID(c); err == nil {
		changedBy = "operator " + operatorID.String()
	}

	if err := h.profiles.Switch(c.Request().Context(), req.Profile, changedBy); err != nil {
		return InternalServerErrorResponse(c, "Failed to switch profile", err)
	}
	return SuccessMessageResponse(c, "Risk profile updated", map[string]string{"active": req.Profile})
}

// TriggerCycle runs one trading cycle out of band
// POST /api/control/cycle
func (h *ControlHandler) TriggerCycle(c echo.Context) error {
	report, err := h.scheduler.TriggerNow(c.Request().Context())
	if err != nil {
		return InternalServerErrorResponse(c, "Cycle failed", err)
	}
	return SuccessMessageResponse(c, "Cycle complete", report)
}

// GetDecisions lists recent trading decisions, optionally for one symbol
// GET /api/control/decisions?symbol=BTC&limit=50
func (h *ControlHandler) GetDecisions(c echo.Context) error {
	ctx := c.Request().Context()
	limit := queryLimit(c, 50)

	var (
		decisions []*domain.TradingDecision
		err       error
	)
	if symbol := c.QueryParam("symbol"); symbol != "" {
		decisions, err = h.decisionRepo.GetBySymbol(ctx, symbol, limit)
	} else {
		decisions, err = h.decisionRepo.GetRecent(ctx, limit)
	}
	if err != nil {
		return InternalServerErrorResponse(c, "Failed to load decisions", err)
	}
	return SuccessResponse(c, decisions)
}

// GetAuditLog lists the audit trail attached to one decision, order or
// position.
// GET /api/control/logs?kind=POSITION&id=<uuid>
func (h *ControlHandler) GetAuditLog(c echo.Context) error {
	kind := c.QueryParam("kind")
	switch kind {
	case domain.RefKindDecision, domain.RefKindOrder, domain.RefKindPosition:
	default:
		return BadRequestResponse(c, "kind must be DECISION, ORDER or POSITION")
	}

	id, err := uuid.Parse(c.QueryParam("id"))
	if err != nil {
		return BadRequestResponse(c, "Invalid id")
	}

	entries, err := h.logRepo.GetByRef(c.Request().Context(), kind, id, queryLimit(c, 50))
	if err != nil {
		return InternalServerErrorResponse(c, "Failed to load audit log", err)
	}
	return SuccessResponse(c, entries)
}

// GetPositions lists open positions
// GET /api/control/positions
func (h *ControlHandler) GetPositions(c echo.Context) error {
	positions, err := h.positionRepo.GetOpenPositions(c.Request().Context())
	if err != nil {
		return InternalServerErrorResponse(c, "Failed to load positions", err)
	}
	return SuccessResponse(c, positions)
}

// GetBalance returns the latest ledger entry, recent history and the
// deposit-adjusted PnL.
// GET /api/control/balance
func (h *ControlHandler) GetBalance(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	latest, err := h.balanceRepo.GetLatest(ctx)
	if err != nil {
		return InternalServerErrorResponse(c, "Failed to load balance", err)
	}
	history, err := h.balanceRepo.GetRecent(ctx, queryLimit(c, 20))
	if err != nil {
		return InternalServerErrorResponse(c, "Failed to load balance history", err)
	}

	pnl, err := h.reconciler.CalculatedPnL(ctx)
	if err != nil {
		// PnL needs an INITIAL baseline; report the ledger anyway
		pnl = 0
	}

	return SuccessResponse(c, map[string]interface{}{
		"latest":         latest,
		"history":        history,
		"calculated_pnl": pnl,
	})
}

func queryLimit(c echo.Context, def int) int {
	raw := c.QueryParam("limit")
	if raw == "" {
		return def
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 || limit > 500 {
		return def
	}
	return limit
}

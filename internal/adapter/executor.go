package adapter

import (
	"context"
	"fmt"
	"log"

	"perpguard/internal/domain"
)

// ExecutionBridge executes approved decisions through the execution
// engine's write endpoints. A deployment without an execution URL runs
// read-only: every write returns ErrWriteNotSupported and callers decide
// how to degrade.
type ExecutionBridge struct {
	bridge  *AgentBridge
	enabled bool
}

// NewExecutionBridge creates a new ExecutionBridge. Pass enabled=false
// for observe-only deployments.
func NewExecutionBridge(bridge *AgentBridge, enabled bool) *ExecutionBridge {
	if !enabled {
		log.Println("[EXEC] Execution disabled, running read-only")
	}
	return &ExecutionBridge{bridge: bridge, enabled: enabled}
}

// executionResult is the engine's report of a placed order
type executionResult struct {
	Success    bool     `json:"success"`
	OrderID    string   `json:"order_id"`
	FilledSize float64  `json:"filled_size"`
	AvgPrice   *float64 `json:"avg_price"`
	Error      string   `json:"error"`
}

// Execute places the order an approved decision asks for, writing the
// engine's fill outcome onto the caller's submitted order.
func (e *ExecutionBridge) Execute(ctx context.Context, decision *domain.TradingDecision, order *domain.Order) error {
	if !e.enabled {
		return domain.ErrWriteNotSupported
	}

	var (
		result executionResult
		err    error
	)
	switch decision.Operation {
	case domain.OperationOpen:
		err = e.bridge.post(ctx, "/execute/entry", map[string]interface{}{
			"symbol":   decision.Symbol,
			"side":     decision.Side,
			"size":     decision.Size,
			"leverage": decision.Leverage,
			"sl_price": decision.SLPrice,
			"tp_price": decision.TPPrice,
		}, &result)
	case domain.OperationClose:
		err = e.bridge.post(ctx, "/execute/close", map[string]interface{}{
			"symbol": decision.Symbol,
			"side":   decision.Side,
		}, &result)
	default:
		return domain.ErrWriteNotSupported
	}
	if err != nil {
		return &domain.APIError{Op: "execute " + decision.Operation, Err: err}
	}
	if !result.Success {
		return &domain.APIError{Op: "execute " + decision.Operation, Err: fmt.Errorf("engine rejected order: %s", result.Error)}
	}

	order.FilledSize = result.FilledSize
	if order.FilledSize == 0 {
		order.FilledSize = decision.Size
	}
	order.AvgPrice = result.AvgPrice

	log.Printf("[EXEC] %s %s %s size %.4f filled", decision.Operation, decision.Side, decision.Symbol, order.FilledSize)
	return nil
}

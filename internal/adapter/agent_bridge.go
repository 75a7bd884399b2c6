package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"perpguard/internal/domain"
)

// macroStrategyTTL is how long a fetched macro strategy stays fresh
const macroStrategyTTL = 4 * time.Hour

// AgentBridge talks to the external reasoning engine over HTTP. It covers
// three read surfaces of the engine: trading decisions, the macro
// strategy and indicator snapshots.
type AgentBridge struct {
	baseURL    string
	symbols    []string
	httpClient *http.Client

	mu          sync.Mutex
	strategy    string
	refreshedAt time.Time
}

// NewAgentBridge creates a new reasoning engine bridge
func NewAgentBridge(baseURL string, symbols []string) *AgentBridge {
	return &AgentBridge{
		baseURL: baseURL,
		symbols: symbols,
		httpClient: &http.Client{
			Timeout: 120 * time.Second, // LLM reasoning can take time
		},
	}
}

// decideRequest is the request body for the decisions endpoint
type decideRequest struct {
	Symbols       []string `json:"symbols"`
	MacroStrategy string   `json:"macro_strategy,omitempty"`
}

// agentDecision is one raw decision as the engine reports it
type agentDecision struct {
	Symbol     string   `json:"symbol"`
	Operation  string   `json:"operation"`
	Side       string   `json:"side"`
	Confidence float64  `json:"confidence"`
	Leverage   float64  `json:"leverage"`
	Size       float64  `json:"size"`
	SLPrice    *float64 `json:"sl_price"`
	TPPrice    *float64 `json:"tp_price"`
	Reasoning  string   `json:"reasoning"`
}

type decideResponse struct {
	Decisions            []agentDecision `json:"decisions"`
	ExecutionTimeSeconds float64         `json:"execution_time_seconds"`
}

// DecideAll requests one decision per symbol from the reasoning engine
func (b *AgentBridge) DecideAll(ctx context.Context, macroStrategy string) ([]*domain.TradingDecision, error) {
	reqBody := decideRequest{
		Symbols:       b.symbols,
		MacroStrategy: macroStrategy,
	}

	var resp decideResponse
	if err := b.post(ctx, "/decide", reqBody, &resp); err != nil {
		return nil, &domain.APIError{Op: "decide", Err: err}
	}

	now := time.Now()
	decisions := make([]*domain.TradingDecision, 0, len(resp.Decisions))
	for _, raw := range resp.Decisions {
		decisions = append(decisions, &domain.TradingDecision{
			ID:         uuid.New(),
			Symbol:     raw.Symbol,
			Operation:  raw.Operation,
			Side:       raw.Side,
			Confidence: raw.Confidence,
			Leverage:   raw.Leverage,
			Size:       raw.Size,
			SLPrice:    raw.SLPrice,
			TPPrice:    raw.TPPrice,
			Reasoning:  raw.Reasoning,
			Status:     domain.DecisionPending,
			CreatedAt:  now,
		})
	}

	log.Printf("[AGENT] Received %d decisions in %.1fs", len(decisions), resp.ExecutionTimeSeconds)
	return decisions, nil
}

// Current returns the cached macro strategy and whether it has gone stale
func (b *AgentBridge) Current(ctx context.Context) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.strategy == "" {
		return "", true, nil
	}
	return b.strategy, time.Since(b.refreshedAt) > macroStrategyTTL, nil
}

// Refresh regenerates the macro strategy synchronously
func (b *AgentBridge) Refresh(ctx context.Context) (string, error) {
	var resp struct {
		Strategy    string `json:"strategy"`
		GeneratedAt string `json:"generated_at"`
	}
	if err := b.post(ctx, "/strategy/refresh", struct{}{}, &resp); err != nil {
		return "", &domain.APIError{Op: "strategy refresh", Err: err}
	}

	b.mu.Lock()
	b.strategy = resp.Strategy
	b.refreshedAt = time.Now()
	b.mu.Unlock()

	log.Println("[AGENT] Macro strategy refreshed")
	return resp.Strategy, nil
}

// RSI returns the engine's current RSI reading for a symbol
func (b *AgentBridge) RSI(ctx context.Context, symbol string) (float64, error) {
	snap, err := b.indicators(ctx, symbol)
	if err != nil {
		return 0, err
	}
	return snap.RSI, nil
}

// ATR returns the engine's current average true range for a symbol
func (b *AgentBridge) ATR(ctx context.Context, symbol string) (float64, error) {
	snap, err := b.indicators(ctx, symbol)
	if err != nil {
		return 0, err
	}
	return snap.ATR, nil
}

type indicatorSnapshot struct {
	Symbol string  `json:"symbol"`
	RSI    float64 `json:"rsi"`
	ATR    float64 `json:"atr"`
}

func (b *AgentBridge) indicators(ctx context.Context, symbol string) (*indicatorSnapshot, error) {
	endpoint := fmt.Sprintf("%s/indicators?symbol=%s", b.baseURL, url.QueryEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create indicators request: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, &domain.APIError{Op: "indicators", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &domain.APIError{Op: "indicators", Err: fmt.Errorf("status=%d, body=%s", resp.StatusCode, string(body))}
	}

	var snap indicatorSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode indicators response: %w", err)
	}
	return &snap, nil
}

// HealthCheck checks if the reasoning engine is reachable
func (b *AgentBridge) HealthCheck(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/health", b.baseURL)
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to check reasoning engine health: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("reasoning engine is unhealthy: status=%d", resp.StatusCode)
	}
	return nil
}

func (b *AgentBridge) post(ctx context.Context, path string, body, out interface{}) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", b.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call reasoning engine: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("reasoning engine returned error: status=%d, body=%s", resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

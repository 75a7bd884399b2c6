package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"perpguard/internal/domain"
)

// HyperliquidClient implements the exchange read surface against the
// Hyperliquid info endpoint. All queries go through a single POST /info
// with a typed request body; numeric fields arrive as strings.
type HyperliquidClient struct {
	baseURL    string
	address    string
	httpClient *http.Client
}

// NewHyperliquidClient creates a new Hyperliquid read-only client
func NewHyperliquidClient(baseURL, address string) *HyperliquidClient {
	return &HyperliquidClient{
		baseURL: baseURL,
		address: address,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Address returns the configured account address
func (c *HyperliquidClient) Address() string {
	return c.address
}

// AllMids returns current mid prices keyed by symbol
func (c *HyperliquidClient) AllMids(ctx context.Context) (map[string]float64, error) {
	var raw map[string]string
	if err := c.info(ctx, map[string]interface{}{"type": "allMids"}, &raw); err != nil {
		return nil, &domain.APIError{Op: "allMids", Err: err}
	}

	mids := make(map[string]float64, len(raw))
	for symbol, s := range raw {
		price, err := strconv.ParseFloat(s, 64)
		if err != nil {
			continue // internal markets report non-numeric entries
		}
		mids[symbol] = price
	}
	return mids, nil
}

// clearinghouseState mirrors the relevant slice of the exchange response
type clearinghouseState struct {
	MarginSummary struct {
		AccountValue    string `json:"accountValue"`
		TotalMarginUsed string `json:"totalMarginUsed"`
	} `json:"marginSummary"`
	Withdrawable string `json:"withdrawable"`
}

// UserState returns the account state (balance, margin) for an address
func (c *HyperliquidClient) UserState(ctx context.Context, address string) (*domain.AccountState, error) {
	if address == "" {
		address = c.address
	}
	if address == "" {
		return nil, &domain.ConfigError{Component: "exchange", Detail: "account address not configured"}
	}

	var raw clearinghouseState
	body := map[string]interface{}{"type": "clearinghouseState", "user": address}
	if err := c.info(ctx, body, &raw); err != nil {
		return nil, &domain.APIError{Op: "userState", Err: err}
	}

	accountValue, err := strconv.ParseFloat(raw.MarginSummary.AccountValue, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse account value %q: %w", raw.MarginSummary.AccountValue, err)
	}
	marginUsed, err := strconv.ParseFloat(raw.MarginSummary.TotalMarginUsed, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse margin used %q: %w", raw.MarginSummary.TotalMarginUsed, err)
	}
	withdrawable, err := strconv.ParseFloat(raw.Withdrawable, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse withdrawable %q: %w", raw.Withdrawable, err)
	}

	return &domain.AccountState{
		AccountValue:     accountValue,
		AvailableMargin:  accountValue - marginUsed,
		TotalMarginUsed:  marginUsed,
		WithdrawableUSDC: withdrawable,
	}, nil
}

func (c *HyperliquidClient) info(ctx context.Context, body interface{}, out interface{}) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal info request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/info", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create info request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call exchange: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("exchange returned error: status=%d, body=%s", resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode exchange response: %w", err)
	}
	return nil
}

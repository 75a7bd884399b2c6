package service

import (
	"context"
	"fmt"

	"perpguard/internal/domain"
)

// ExchangeAccountManager answers account queries from the exchange state
// plus the local position book.
type ExchangeAccountManager struct {
	exchange     domain.ExchangeClient
	positionRepo domain.PositionRepository
	address      string
}

// NewExchangeAccountManager creates a new ExchangeAccountManager
func NewExchangeAccountManager(exchange domain.ExchangeClient, positionRepo domain.PositionRepository, address string) *ExchangeAccountManager {
	return &ExchangeAccountManager{
		exchange:     exchange,
		positionRepo: positionRepo,
		address:      address,
	}
}

// AccountValue returns the exchange-reported account value
func (m *ExchangeAccountManager) AccountValue(ctx context.Context) (float64, error) {
	state, err := m.exchange.UserState(ctx, m.address)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch account state: %w", err)
	}
	return state.AccountValue, nil
}

// HasOpenPosition reports whether an open position exists for the symbol
func (m *ExchangeAccountManager) HasOpenPosition(ctx context.Context, symbol string) (bool, error) {
	position, err := m.positionRepo.GetOpenBySymbol(ctx, symbol)
	if err != nil {
		return false, err
	}
	return position != nil, nil
}

// CanTrade reports whether the available margin covers the requirement
func (m *ExchangeAccountManager) CanTrade(ctx context.Context, marginRequired float64) (bool, error) {
	state, err := m.exchange.UserState(ctx, m.address)
	if err != nil {
		return false, fmt.Errorf("failed to fetch account state: %w", err)
	}
	return state.AvailableMargin >= marginRequired, nil
}

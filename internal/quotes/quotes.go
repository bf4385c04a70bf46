// Package quotes provides stock price lookup with optional caching.
package quotes

import (
	"context"
	"strings"
	"sync"

	"github.com/xtrntr/stocksim/internal/models"

	"github.com/shopspring/decimal"
)

// Provider resolves a ticker symbol to its current price.
// An unknown symbol is reported as models.ErrSymbolNotFound.
type Provider interface {
	Lookup(ctx context.Context, symbol string) (models.Quote, error)
}

// Static serves prices from a fixed in-memory table. Used by the seeder and
// in tests.
type Static struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
}

// NewStatic creates a static provider with the given price table
func NewStatic(prices map[string]decimal.Decimal) *Static {
	table := make(map[string]decimal.Decimal, len(prices))
	for symbol, price := range prices {
		table[strings.ToUpper(symbol)] = price
	}
	return &Static{prices: table}
}

// SetPrice sets or replaces the price for a symbol
func (s *Static) SetPrice(symbol string, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[strings.ToUpper(symbol)] = price
}

// Lookup returns the fixed price for a symbol
func (s *Static) Lookup(_ context.Context, symbol string) (models.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	symbol = strings.ToUpper(symbol)
	price, ok := s.prices[symbol]
	if !ok {
		return models.Quote{}, models.ErrSymbolNotFound
	}
	return models.Quote{Symbol: symbol, Price: price}, nil
}

package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/xtrntr/stocksim/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Client fetches quotes from an external quote API over HTTP.
// The API contract is GET {base}/quote?symbol=X returning
// {"symbol": "...", "price": ...}; 404 means the symbol is unknown.
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new quote API client
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log.With().Str("client", "quote-api").Logger(),
	}
}

// Lookup fetches the current price for a symbol
func (c *Client) Lookup(ctx context.Context, symbol string) (models.Quote, error) {
	reqURL := fmt.Sprintf("%s/quote?symbol=%s", c.baseURL, url.QueryEscape(symbol))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return models.Quote{}, fmt.Errorf("failed to build quote request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return models.Quote{}, fmt.Errorf("quote API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		c.log.Debug().Str("symbol", symbol).Msg("Symbol not found")
		return models.Quote{}, models.ErrSymbolNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return models.Quote{}, fmt.Errorf("quote API returned status %d", resp.StatusCode)
	}

	var result struct {
		Symbol string          `json:"symbol"`
		Price  decimal.Decimal `json:"price"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return models.Quote{}, fmt.Errorf("failed to parse quote response: %w", err)
	}
	if !result.Price.IsPositive() {
		return models.Quote{}, fmt.Errorf("quote API returned non-positive price for %q", symbol)
	}

	quote := models.Quote{
		Symbol: strings.ToUpper(result.Symbol),
		Price:  result.Price,
	}
	c.log.Debug().Str("symbol", quote.Symbol).Str("price", quote.Price.String()).Msg("Fetched quote")
	return quote, nil
}

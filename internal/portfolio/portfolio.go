// Package portfolio implements ledger-based portfolio accounting: trade
// validation and commit, holdings aggregation, valuation and history
// pagination. Holdings are always recomputed from the append-only ledger,
// never cached.
package portfolio

import (
	"context"
	"errors"
	"strings"

	"github.com/xtrntr/stocksim/internal/db"
	"github.com/xtrntr/stocksim/internal/models"
	"github.com/xtrntr/stocksim/internal/quotes"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PageSize is the fixed number of transactions per history page.
const PageSize = 10

// View is a user's full portfolio: current holdings valued at live prices,
// cash, and the grand total of both.
type View struct {
	Holdings []models.Holding `json:"holdings"`
	Cash     decimal.Decimal  `json:"cash"`
	Total    decimal.Decimal  `json:"total"`
}

// HistoryPage is one page of a user's transaction history, newest first.
type HistoryPage struct {
	Transactions []models.Transaction `json:"transactions"`
	Page         int                  `json:"page"`
	TotalPages   int                  `json:"total_pages"`
}

// Service coordinates trade validation and commit against the ledger store
// and the quote provider.
type Service struct {
	db     *db.DB
	quotes quotes.Provider
	log    zerolog.Logger
}

// NewService creates a new portfolio service
func NewService(database *db.DB, provider quotes.Provider, log zerolog.Logger) *Service {
	return &Service{
		db:     database,
		quotes: provider,
		log:    log.With().Str("component", "portfolio").Logger(),
	}
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Quote resolves the current price for a symbol
func (s *Service) Quote(ctx context.Context, symbol string) (models.Quote, error) {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return models.Quote{}, models.NewValidationError("symbol is required")
	}
	return s.quotes.Lookup(ctx, symbol)
}

// Buy executes a market buy: resolve the price, then atomically check cash,
// append the ledger entry and debit the cost. A conflicting concurrent commit
// is retried once; nothing was persisted on the failed attempt.
func (s *Service) Buy(ctx context.Context, userID int, symbol string, shares int64) (*models.Transaction, error) {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return nil, models.NewValidationError("symbol is required")
	}
	if shares <= 0 {
		return nil, models.NewValidationError("shares must be a positive integer")
	}

	quote, err := s.quotes.Lookup(ctx, symbol)
	if err != nil {
		return nil, err
	}

	txn, err := s.db.ExecuteBuy(ctx, userID, symbol, shares, quote.Price)
	if errors.Is(err, models.ErrConflict) {
		s.log.Warn().Int("user_id", userID).Str("symbol", symbol).Msg("Buy commit conflicted, retrying")
		txn, err = s.db.ExecuteBuy(ctx, userID, symbol, shares, quote.Price)
	}
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int("user_id", userID).
		Str("symbol", symbol).
		Int64("shares", shares).
		Str("total", txn.Total.String()).
		Msg("Buy executed")
	return txn, nil
}

// Sell executes a market sell: check net holdings, resolve the price, then
// atomically re-check holdings, append the ledger entry and credit the
// proceeds. The early holdings check fails fast before the quote lookup; the
// authoritative check runs inside the commit transaction.
func (s *Service) Sell(ctx context.Context, userID int, symbol string, shares int64) (*models.Transaction, error) {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return nil, models.NewValidationError("symbol is required")
	}
	if shares <= 0 {
		return nil, models.NewValidationError("shares must be a positive integer")
	}

	held, err := s.db.HoldingShares(ctx, userID, symbol)
	if err != nil {
		return nil, err
	}
	if held < shares {
		return nil, models.ErrInsufficientShares
	}

	quote, err := s.quotes.Lookup(ctx, symbol)
	if err != nil {
		return nil, err
	}

	txn, err := s.db.ExecuteSell(ctx, userID, symbol, shares, quote.Price)
	if errors.Is(err, models.ErrConflict) {
		s.log.Warn().Int("user_id", userID).Str("symbol", symbol).Msg("Sell commit conflicted, retrying")
		txn, err = s.db.ExecuteSell(ctx, userID, symbol, shares, quote.Price)
	}
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int("user_id", userID).
		Str("symbol", symbol).
		Int64("shares", shares).
		Str("total", txn.Total.String()).
		Msg("Sell executed")
	return txn, nil
}

// Portfolio computes the user's current holdings from the ledger and values
// each at its live price. A symbol the provider no longer knows is kept with
// a zero price rather than failing the whole view.
func (s *Service) Portfolio(ctx context.Context, userID int) (*View, error) {
	user, err := s.db.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	holdings, err := s.db.Holdings(ctx, userID)
	if err != nil {
		return nil, err
	}

	total := user.Cash
	for i := range holdings {
		quote, err := s.quotes.Lookup(ctx, holdings[i].Symbol)
		if err != nil {
			if errors.Is(err, models.ErrSymbolNotFound) {
				s.log.Warn().Str("symbol", holdings[i].Symbol).Msg("Held symbol unknown to quote provider")
				continue
			}
			return nil, err
		}
		holdings[i].Price = quote.Price
		holdings[i].Value = quote.Price.Mul(decimal.NewFromInt(holdings[i].Shares))
		total = total.Add(holdings[i].Value)
	}

	if holdings == nil {
		holdings = []models.Holding{}
	}
	return &View{Holdings: holdings, Cash: user.Cash, Total: total}, nil
}

// History returns one page of the user's transaction history, newest first.
// Pages are 1-based and clamped to >= 1; a page past the end yields an empty
// list with the correct page count.
func (s *Service) History(ctx context.Context, userID, page int) (*HistoryPage, error) {
	if page < 1 {
		page = 1
	}

	count, err := s.db.CountTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	totalPages := (count + PageSize - 1) / PageSize

	txns, err := s.db.TransactionsPage(ctx, userID, PageSize, (page-1)*PageSize)
	if err != nil {
		return nil, err
	}
	if txns == nil {
		txns = []models.Transaction{}
	}

	return &HistoryPage{Transactions: txns, Page: page, TotalPages: totalPages}, nil
}

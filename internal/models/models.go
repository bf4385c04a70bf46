package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction type tags. The sign of a trade is carried by the tag,
// share counts are always stored positive.
const (
	TypeBuy  = "buy"
	TypeSell = "sell"
)

// User represents a registered user
type User struct {
	ID           int             `json:"id"`
	Username     string          `json:"username"`
	PasswordHash string          `json:"-"`
	Cash         decimal.Decimal `json:"cash"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Transaction is one immutable ledger entry. The ledger is append-only and is
// the sole source of truth for holdings; Total is fixed at execution time.
type Transaction struct {
	ID        int             `json:"id"`
	UserID    int             `json:"-"`
	Symbol    string          `json:"symbol"`
	Shares    int64           `json:"shares"`
	Price     decimal.Decimal `json:"price"`
	Type      string          `json:"type"` // "buy" or "sell"
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"created_at"`
}

// Quote is the current price for a symbol
type Quote struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
}

// Holding is the net share count for one symbol, valued at the current price.
// Derived by aggregating the ledger, never stored.
type Holding struct {
	Symbol string          `json:"symbol"`
	Shares int64           `json:"shares"`
	Price  decimal.Decimal `json:"price"`
	Value  decimal.Decimal `json:"value"`
}

package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/xtrntr/stocksim/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Postgres error codes worth translating into domain errors.
const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// NewDB initializes a new database connection pool
func NewDB(ctx context.Context, connString string) (*DB, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the database connection pool
func (db *DB) Close() {
	db.Pool.Close()
}

// translateError maps low-level Postgres failures onto domain errors.
// Serialization failures and deadlocks become ErrConflict: the transaction was
// rolled back, so callers may retry the whole operation.
func translateError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return models.ErrUserExists
		case pgSerializationFailure, pgDeadlockDetected:
			return models.ErrConflict
		}
	}
	return err
}

// CreateUser inserts a new user. Cash starts at the schema default.
func (db *DB) CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error) {
	user := &models.User{}
	err := db.Pool.QueryRow(ctx,
		"INSERT INTO users (username, password_hash) VALUES ($1, $2) RETURNING id, username, password_hash, cash, created_at",
		username, passwordHash).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Cash, &user.CreatedAt)
	if err != nil {
		if translated := translateError(err); errors.Is(translated, models.ErrUserExists) {
			return nil, models.ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetUserByUsername retrieves a user by username
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	user := &models.User{}
	err := db.Pool.QueryRow(ctx,
		"SELECT id, username, password_hash, cash, created_at FROM users WHERE username = $1",
		username).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Cash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetUserByID retrieves a user by ID
func (db *DB) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	user := &models.User{}
	err := db.Pool.QueryRow(ctx,
		"SELECT id, username, password_hash, cash, created_at FROM users WHERE id = $1",
		id).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Cash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// Holdings computes net shares per symbol by replaying the user's ledger.
// Symbols whose net count is zero are excluded entirely. Prices are left for
// the caller to fill in.
func (db *DB) Holdings(ctx context.Context, userID int) ([]models.Holding, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT symbol,
		       SUM(CASE WHEN type = 'buy' THEN shares ELSE -shares END) AS shares
		FROM transactions
		WHERE user_id = $1
		GROUP BY symbol
		HAVING SUM(CASE WHEN type = 'buy' THEN shares ELSE -shares END) > 0
		ORDER BY symbol ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get holdings: %w", err)
	}
	defer rows.Close()

	var holdings []models.Holding
	for rows.Next() {
		var h models.Holding
		if err := rows.Scan(&h.Symbol, &h.Shares); err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		holdings = append(holdings, h)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read holdings: %w", err)
	}
	return holdings, nil
}

// HoldingShares returns the net share count for one (user, symbol) pair.
// A symbol the user never traded counts as zero.
func (db *DB) HoldingShares(ctx context.Context, userID int, symbol string) (int64, error) {
	var shares int64
	err := db.Pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(CASE WHEN type = 'buy' THEN shares ELSE -shares END), 0)
		FROM transactions
		WHERE user_id = $1 AND symbol = $2
	`, userID, symbol).Scan(&shares)
	if err != nil {
		return 0, fmt.Errorf("failed to get holding shares: %w", err)
	}
	return shares, nil
}

// ExecuteBuy atomically checks the user's cash, appends a buy transaction and
// debits the cost. The user row is locked for the duration so concurrent
// trades by the same user serialize instead of validating against a stale
// balance. Any failure rolls the whole commit back.
func (db *DB) ExecuteBuy(ctx context.Context, userID int, symbol string, shares int64, price decimal.Decimal) (*models.Transaction, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var cash decimal.Decimal
	err = tx.QueryRow(ctx, "SELECT cash FROM users WHERE id = $1 FOR UPDATE", userID).Scan(&cash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to lock user: %w", translateError(err))
	}

	total := price.Mul(decimal.NewFromInt(shares))
	if total.GreaterThan(cash) {
		return nil, models.ErrInsufficientFunds
	}

	txn := &models.Transaction{}
	err = tx.QueryRow(ctx,
		"INSERT INTO transactions (user_id, symbol, shares, price, type, total) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, user_id, symbol, shares, price, type, total, created_at",
		userID, symbol, shares, price, models.TypeBuy, total).Scan(
		&txn.ID, &txn.UserID, &txn.Symbol, &txn.Shares, &txn.Price, &txn.Type, &txn.Total, &txn.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to record buy: %w", translateError(err))
	}

	if _, err := tx.Exec(ctx, "UPDATE users SET cash = cash - $1 WHERE id = $2", total, userID); err != nil {
		return nil, fmt.Errorf("failed to debit cash: %w", translateError(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit buy: %w", translateError(err))
	}
	return txn, nil
}

// ExecuteSell atomically re-checks the user's net holdings, appends a sell
// transaction and credits the proceeds. The shares column stays positive; the
// type tag carries the sign. Holdings are recomputed after the user row lock
// is taken, so a concurrent sell cannot pass validation on a stale count.
func (db *DB) ExecuteSell(ctx context.Context, userID int, symbol string, shares int64, price decimal.Decimal) (*models.Transaction, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var cash decimal.Decimal
	err = tx.QueryRow(ctx, "SELECT cash FROM users WHERE id = $1 FOR UPDATE", userID).Scan(&cash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to lock user: %w", translateError(err))
	}

	var held int64
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(CASE WHEN type = 'buy' THEN shares ELSE -shares END), 0)
		FROM transactions
		WHERE user_id = $1 AND symbol = $2
	`, userID, symbol).Scan(&held)
	if err != nil {
		return nil, fmt.Errorf("failed to check holdings: %w", translateError(err))
	}
	if held < shares {
		return nil, models.ErrInsufficientShares
	}

	total := price.Mul(decimal.NewFromInt(shares))

	txn := &models.Transaction{}
	err = tx.QueryRow(ctx,
		"INSERT INTO transactions (user_id, symbol, shares, price, type, total) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, user_id, symbol, shares, price, type, total, created_at",
		userID, symbol, shares, price, models.TypeSell, total).Scan(
		&txn.ID, &txn.UserID, &txn.Symbol, &txn.Shares, &txn.Price, &txn.Type, &txn.Total, &txn.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to record sell: %w", translateError(err))
	}

	if _, err := tx.Exec(ctx, "UPDATE users SET cash = cash + $1 WHERE id = $2", total, userID); err != nil {
		return nil, fmt.Errorf("failed to credit cash: %w", translateError(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit sell: %w", translateError(err))
	}
	return txn, nil
}

// CountTransactions returns the total number of ledger entries for a user
func (db *DB) CountTransactions(ctx context.Context, userID int) (int, error) {
	var count int
	err := db.Pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM transactions WHERE user_id = $1", userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

// TransactionsPage retrieves one page of a user's ledger, most recent first.
// The id tiebreak keeps ordering stable for entries committed in the same
// instant.
func (db *DB) TransactionsPage(ctx context.Context, userID, limit, offset int) ([]models.Transaction, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, user_id, symbol, shares, price, type, total, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions: %w", err)
	}
	defer rows.Close()

	var txns []models.Transaction
	for rows.Next() {
		var txn models.Transaction
		if err := rows.Scan(&txn.ID, &txn.UserID, &txn.Symbol, &txn.Shares, &txn.Price, &txn.Type, &txn.Total, &txn.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, txn)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transactions: %w", err)
	}
	return txns, nil
}

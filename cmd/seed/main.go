package main

import (
	"context"
	"fmt"
	"os"

	"github.com/xtrntr/stocksim/internal/config"
	"github.com/xtrntr/stocksim/internal/db"
	"github.com/xtrntr/stocksim/internal/portfolio"
	"github.com/xtrntr/stocksim/internal/quotes"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Seed the database with demo users and a few trades. Trades run through the
// real commit path against fixed demo prices, so the ledger and cash balances
// stay consistent.
func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	database, err := db.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	// Skip seeding if the ledger already has entries
	var count int
	if err := database.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM transactions").Scan(&count); err != nil {
		log.Fatal().Err(err).Msg("Failed to check transactions")
	}
	if count > 0 {
		fmt.Printf("Database already has %d transactions. No need to seed.\n", count)
		return
	}

	// bcrypt hash of "demo"
	const demoHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

	userIDs := make(map[string]int)
	for _, username := range []string{"trader1", "trader2"} {
		var id int
		err := database.Pool.QueryRow(ctx, "SELECT id FROM users WHERE username = $1", username).Scan(&id)
		if err != nil {
			user, err := database.CreateUser(ctx, username, demoHash)
			if err != nil {
				log.Fatal().Err(err).Str("username", username).Msg("Failed to create user")
			}
			id = user.ID
		}
		userIDs[username] = id
	}

	provider := quotes.NewStatic(map[string]decimal.Decimal{
		"AAPL": decimal.NewFromFloat(185.50),
		"GOOG": decimal.NewFromFloat(142.30),
		"MSFT": decimal.NewFromFloat(410.20),
		"NFLX": decimal.NewFromFloat(610.00),
	})
	svc := portfolio.NewService(database, provider, log)

	trades := []struct {
		username string
		action   string
		symbol   string
		shares   int64
	}{
		{"trader1", "buy", "AAPL", 10},
		{"trader1", "buy", "GOOG", 5},
		{"trader1", "sell", "AAPL", 3},
		{"trader2", "buy", "MSFT", 8},
		{"trader2", "buy", "NFLX", 2},
	}

	for _, trade := range trades {
		var err error
		if trade.action == "buy" {
			_, err = svc.Buy(ctx, userIDs[trade.username], trade.symbol, trade.shares)
		} else {
			_, err = svc.Sell(ctx, userIDs[trade.username], trade.symbol, trade.shares)
		}
		if err != nil {
			log.Fatal().Err(err).
				Str("username", trade.username).
				Str("symbol", trade.symbol).
				Msg("Failed to seed trade")
		}
	}

	fmt.Println("Seeded 2 users and 5 transactions.")
}

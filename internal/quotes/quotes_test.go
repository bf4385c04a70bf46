package quotes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/xtrntr/stocksim/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic_Lookup(t *testing.T) {
	provider := NewStatic(map[string]decimal.Decimal{
		"aapl": decimal.NewFromFloat(185.50),
	})

	// Symbols are case-normalized on both write and read
	quote, err := provider.Lookup(context.Background(), "AaPl")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", quote.Symbol)
	assert.True(t, quote.Price.Equal(decimal.NewFromFloat(185.50)))

	_, err = provider.Lookup(context.Background(), "ZZZ")
	assert.ErrorIs(t, err, models.ErrSymbolNotFound)

	provider.SetPrice("aapl", decimal.NewFromInt(200))
	quote, err = provider.Lookup(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.True(t, quote.Price.Equal(decimal.NewFromInt(200)))
}

func TestClient_Lookup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quote", r.URL.Path)
		switch r.URL.Query().Get("symbol") {
		case "AAPL":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"symbol": "AAPL", "price": 185.50}`))
		case "FREE":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"symbol": "FREE", "price": 0}`))
		case "BROKEN":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, zerolog.Nop())

	t.Run("Success", func(t *testing.T) {
		quote, err := client.Lookup(context.Background(), "AAPL")
		require.NoError(t, err)
		assert.Equal(t, "AAPL", quote.Symbol)
		assert.True(t, quote.Price.Equal(decimal.NewFromFloat(185.50)))
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := client.Lookup(context.Background(), "ZZZ")
		assert.ErrorIs(t, err, models.ErrSymbolNotFound)
	})

	t.Run("NonPositivePrice", func(t *testing.T) {
		_, err := client.Lookup(context.Background(), "FREE")
		assert.Error(t, err)
	})

	t.Run("ServerError", func(t *testing.T) {
		_, err := client.Lookup(context.Background(), "BROKEN")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, models.ErrSymbolNotFound)
	})
}

package discovery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/raykavin/coinsentry/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const marketsPayload = `[
	{
		"id": "dogeclone",
		"symbol": "dogc",
		"name": "Dogeclone",
		"current_price": 0.0021,
		"market_cap": 500000,
		"total_volume": 12000,
		"price_change_percentage_24h": 42.5
	},
	{
		"id": "stub",
		"symbol": "stub",
		"name": "Stub",
		"current_price": null,
		"market_cap": null,
		"total_volume": null,
		"price_change_percentage_24h": null
	}
]`

func TestCoinGecko_NewListings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/markets", r.URL.Path)

		query := r.URL.Query()
		assert.Equal(t, "usd", query.Get("vs_currency"))
		assert.Equal(t, "created_desc", query.Get("order"))
		assert.Equal(t, "meme-token", query.Get("category"))
		assert.Equal(t, "50", query.Get("per_page"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(marketsPayload))
	}))
	defer server.Close()

	client := NewCoinGecko(logger.Discard, WithBaseURL(server.URL))

	tokens, err := client.NewListings(context.Background())
	require.NoError(t, err)
	require.Len(t, tokens, 2)

	assert.Equal(t, "dogeclone", tokens[0].ID)
	assert.Equal(t, "DOGC", tokens[0].Symbol)
	require.NotNil(t, tokens[0].Price)
	assert.Equal(t, 0.0021, *tokens[0].Price)
	require.NotNil(t, tokens[0].MarketCap)
	assert.Equal(t, 500000.0, *tokens[0].MarketCap)

	// null market fields stay nil
	assert.Nil(t, tokens[1].Price)
	assert.Nil(t, tokens[1].MarketCap)
}

func TestCoinGecko_UpdatedPrices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "dogeclone,stub", r.URL.Query().Get("ids"))
		assert.Equal(t, "market_cap_desc", r.URL.Query().Get("order"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(marketsPayload))
	}))
	defer server.Close()

	client := NewCoinGecko(logger.Discard, WithBaseURL(server.URL))

	tokens, err := client.UpdatedPrices(context.Background(), []string{"dogeclone", "stub"})
	require.NoError(t, err)
	assert.Len(t, tokens, 2)
}

func TestCoinGecko_UpdatedPricesEmptyIDs(t *testing.T) {
	client := NewCoinGecko(logger.Discard)

	tokens, err := client.UpdatedPrices(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, tokens)
}

func TestCoinGecko_RetriesOnServerError(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewCoinGecko(logger.Discard, WithBaseURL(server.URL))

	_, err := client.NewListings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestCoinGecko_GivesUpAfterMaxAttempts(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewCoinGecko(logger.Discard, WithBaseURL(server.URL))

	_, err := client.NewListings(context.Background())
	require.Error(t, err)
	assert.Equal(t, maxAttempts, attempts)
}

package notification

import (
	"testing"
	"time"

	"github.com/raykavin/coinsentry/pkg/alert"
	"github.com/raykavin/coinsentry/pkg/core"
	"github.com/raykavin/coinsentry/pkg/logger"
	"github.com/raykavin/coinsentry/pkg/sniper"
	"github.com/raykavin/coinsentry/pkg/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func TestFormatPriceAlert(t *testing.T) {
	a, err := alert.New(1, "BTC/USDT", "binance", 50000, alert.ConditionAbove)
	require.NoError(t, err)

	msg := FormatPriceAlert(a, 51000)
	assert.Contains(t, msg, "BTC/USDT")
	assert.Contains(t, msg, "above")
	assert.Contains(t, msg, "50000")
	assert.Contains(t, msg, "51000")
}

func TestFormatSignal(t *testing.T) {
	s, err := strategy.New("cross btc", "BTC/USDT", "binance", strategy.TypeSMACrossover,
		strategy.Params{"short_period": 3, "long_period": 5, "timeframe": "1h"}, logger.Discard)
	require.NoError(t, err)

	msg := FormatSignal(s, core.SignalBuy)
	assert.Contains(t, msg, "BUY")
	assert.Contains(t, msg, "cross btc")
	assert.Contains(t, msg, "BTC/USDT")
}

func TestFormatSniperMatch(t *testing.T) {
	a := sniper.NewAlert(1, sniper.AlertConfig{AutoBuy: true, AutoBuyAmount: 50})
	token := sniper.NewToken(core.TokenInfo{
		ID: "dogeclone", Name: "Dogeclone", Symbol: "DOGC",
		Price: f(0.002), MarketCap: f(500000),
	}, time.Now())

	msg := FormatSniperMatch(a, *token)
	assert.Contains(t, msg, "Dogeclone")
	assert.Contains(t, msg, "Market cap: 500000")
	assert.Contains(t, msg, "Auto-buy: 50.00 USD")
}

func TestFormatTrending(t *testing.T) {
	assert.Equal(t, "No trending tokens yet.", FormatTrending(nil))

	tokens := []sniper.Token{
		*sniper.NewToken(core.TokenInfo{ID: "hot", Name: "Hot", Symbol: "HOT", Price: f(1.5), PriceChange24h: f(42.5)}, time.Now()),
		*sniper.NewToken(core.TokenInfo{ID: "warm", Name: "Warm", Symbol: "WARM"}, time.Now()),
	}

	msg := FormatTrending(tokens)
	assert.Contains(t, msg, "HOT")
	assert.Contains(t, msg, "+42.5")
	assert.Contains(t, msg, "WARM")
	// tokens without market data render placeholders
	assert.Contains(t, msg, "-")
}

func TestFormatNewListings(t *testing.T) {
	assert.Equal(t, "No new listings.", FormatNewListings(nil))

	created := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	tokens := []sniper.Token{
		*sniper.NewToken(core.TokenInfo{ID: "fresh", Name: "Fresh", Symbol: "FRSH", Chain: "ethereum"}, created),
	}

	msg := FormatNewListings(tokens)
	assert.Contains(t, msg, "FRSH")
	assert.Contains(t, msg, "ethereum")
	assert.Contains(t, msg, "2024-06-01")
}

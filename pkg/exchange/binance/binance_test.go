package binance

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/adshao/go-binance/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatPair(t *testing.T) {
	assert.Equal(t, "BTCUSDT", formatPair("BTC/USDT"))
	assert.Equal(t, "BTCUSDT", formatPair("btc/usdt"))
	assert.Equal(t, "ETHBTC", formatPair("ETHBTC"))
}

func TestConvertKlineToCandle(t *testing.T) {
	kline := binance.Kline{
		OpenTime: 1717243200000,
		Open:     "100.5",
		Close:    "101.25",
		High:     "102",
		Low:      "99.9",
		Volume:   "1500.75",
	}

	candle := convertKlineToCandle("BTC/USDT", kline)

	assert.Equal(t, "BTC/USDT", candle.Pair)
	assert.Equal(t, int64(1717243200), candle.Time.Unix())
	assert.Equal(t, 100.5, candle.Open)
	assert.Equal(t, 101.25, candle.Close)
	assert.Equal(t, 102.0, candle.High)
	assert.Equal(t, 99.9, candle.Low)
	assert.Equal(t, 1500.75, candle.Volume)
	assert.True(t, candle.Complete)
}

func newTestClient(url string) *Binance {
	client := binance.NewClient("", "")
	client.BaseURL = url
	return &Binance{client: client}
}

func TestLastQuote_EmptyKlinesIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "[]")
	}))
	defer srv.Close()

	b := newTestClient(srv.URL)

	_, err := b.LastQuote(context.Background(), "BTC/USDT")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no candle data")
}

func TestLastQuote_ReturnsLastCompleteClose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// two klines: the trailing one is still open and gets discarded
		fmt.Fprint(w, `[
			[1717243200000,"100.5","102","99.9","101.25","1500.75",1717243259999,"0",1,"0","0","0"],
			[1717243260000,"101.25","101.5","101","101.4","10",1717243319999,"0",1,"0","0","0"]
		]`)
	}))
	defer srv.Close()

	b := newTestClient(srv.URL)

	price, err := b.LastQuote(context.Background(), "BTC/USDT")
	require.NoError(t, err)
	assert.Equal(t, 101.25, price)
}

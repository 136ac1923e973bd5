// Package binance adapts the Binance spot REST API to the engine's
// Feeder and Broker interfaces.
package binance

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"

	"github.com/raykavin/coinsentry/pkg/core"
)

// Binance is a Binance spot market client
type Binance struct {
	client *binance.Client
}

// Option is a function that configures a Binance client
type Option func(*Binance)

// WithCredentials sets the API credentials for the client
func WithCredentials(key, secret string) Option {
	return func(b *Binance) {
		b.client = binance.NewClient(key, secret)
	}
}

// WithTestnet enables the Binance testnet
func WithTestnet() Option {
	return func(_ *Binance) {
		binance.UseTestnet = true
	}
}

// New creates a new Binance spot client and verifies connectivity
func New(ctx context.Context, options ...Option) (*Binance, error) {
	b := &Binance{
		client: binance.NewClient("", ""),
	}

	for _, option := range options {
		option(b)
	}

	// Test connection
	if err := b.client.NewPingService().Do(ctx); err != nil {
		return nil, fmt.Errorf("binance ping fail: %w", err)
	}

	return b, nil
}

// LastQuote returns the most recent price for a pair
func (b *Binance) LastQuote(ctx context.Context, pair string) (float64, error) {
	candles, err := b.CandlesByLimit(ctx, pair, "1m", 1)
	if err != nil {
		return 0, err
	}
	if len(candles) < 1 {
		return 0, fmt.Errorf("no candle data for %s", pair)
	}
	return candles[len(candles)-1].Close, nil
}

// CandlesByLimit gets the latest complete candles for a pair
func (b *Binance) CandlesByLimit(ctx context.Context, pair, period string, limit int) ([]core.Candle, error) {
	data, err := b.client.NewKlinesService().
		Symbol(formatPair(pair)).
		Interval(period).
		Limit(limit + 1). // +1 to discard the last incomplete candle
		Do(ctx)

	if err != nil {
		return nil, err
	}

	candles := make([]core.Candle, 0, len(data))
	for i, d := range data {
		// Skip the last candle as it's incomplete
		if i == len(data)-1 {
			break
		}
		candles = append(candles, convertKlineToCandle(pair, *d))
	}

	return candles, nil
}

// CreateOrderMarketQuote places a market order sized by quote currency
func (b *Binance) CreateOrderMarketQuote(ctx context.Context, side core.SideType, pair string, quote float64) error {
	_, err := b.client.NewCreateOrderService().
		Symbol(formatPair(pair)).
		Type(binance.OrderTypeMarket).
		Side(binance.SideType(side)).
		QuoteOrderQty(strconv.FormatFloat(quote, 'f', -1, 64)).
		NewOrderRespType(binance.NewOrderRespTypeFULL).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("binance market order for %s: %w", pair, err)
	}

	return nil
}

// formatPair converts "BTC/USDT" to the Binance symbol "BTCUSDT"
func formatPair(pair string) string {
	return strings.ToUpper(strings.ReplaceAll(pair, "/", ""))
}

// convertKlineToCandle converts a Binance kline to a core.Candle
func convertKlineToCandle(pair string, k binance.Kline) core.Candle {
	candle := core.Candle{
		Pair:     pair,
		Time:     time.Unix(0, k.OpenTime*int64(time.Millisecond)),
		Complete: true,
	}

	candle.Open, _ = strconv.ParseFloat(k.Open, 64)
	candle.Close, _ = strconv.ParseFloat(k.Close, 64)
	candle.High, _ = strconv.ParseFloat(k.High, 64)
	candle.Low, _ = strconv.ParseFloat(k.Low, 64)
	candle.Volume, _ = strconv.ParseFloat(k.Volume, 64)

	return candle
}

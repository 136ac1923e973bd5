package core

import (
	"context"
)

// SideType represents the direction of an order
type SideType string

const (
	SideTypeBuy  SideType = "BUY"
	SideTypeSell SideType = "SELL"
)

// Feeder provides market data for a trading pair
type Feeder interface {
	LastQuote(ctx context.Context, pair string) (float64, error)
	CandlesByLimit(ctx context.Context, pair, period string, limit int) ([]Candle, error)
}

// Broker places orders on an exchange. Order execution is fire-and-forget
// from the engine's perspective; only the submission error is reported.
type Broker interface {
	CreateOrderMarketQuote(ctx context.Context, side SideType, pair string, quote float64) error
}

// TokenSource discovers newly listed tokens and refreshes prices for
// tokens already being tracked.
type TokenSource interface {
	NewListings(ctx context.Context) ([]TokenInfo, error)
	UpdatedPrices(ctx context.Context, ids []string) ([]TokenInfo, error)
}

// Notifier delivers engine events to the user-facing channel
type Notifier interface {
	Notify(message string)
	OnError(err error)
}

// TokenInfo is a raw token record as returned by a discovery source.
// Optional fields are nil when the source did not report them.
type TokenInfo struct {
	ID             string
	Symbol         string
	Name           string
	Address        string
	Chain          string
	Price          *float64
	MarketCap      *float64
	Volume24h      *float64
	PriceChange24h *float64
}

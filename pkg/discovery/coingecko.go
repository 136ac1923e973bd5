// Package discovery implements token discovery sources for the sniper
// monitor.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jpillora/backoff"

	"github.com/raykavin/coinsentry/pkg/core"
	"github.com/raykavin/coinsentry/pkg/logger"
)

const (
	defaultBaseURL = "https://api.coingecko.com/api/v3"
	maxAttempts    = 3
	pageSize       = 50
)

// CoinGecko fetches meme-token listings and price refreshes from the
// CoinGecko markets API. Requests are retried with exponential backoff.
type CoinGecko struct {
	client  *http.Client
	baseURL string
	log     logger.Logger
}

type Option func(*CoinGecko)

// WithBaseURL overrides the API endpoint
func WithBaseURL(baseURL string) Option {
	return func(c *CoinGecko) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient overrides the default HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *CoinGecko) {
		c.client = client
	}
}

func NewCoinGecko(log logger.Logger, options ...Option) *CoinGecko {
	c := &CoinGecko{
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: defaultBaseURL,
		log:     log,
	}

	for _, option := range options {
		option(c)
	}

	return c
}

// marketRecord is one row of the /coins/markets response. Numeric
// fields are null for tokens without market data.
type marketRecord struct {
	ID             string   `json:"id"`
	Symbol         string   `json:"symbol"`
	Name           string   `json:"name"`
	CurrentPrice   *float64 `json:"current_price"`
	MarketCap      *float64 `json:"market_cap"`
	TotalVolume    *float64 `json:"total_volume"`
	PriceChange24h *float64 `json:"price_change_percentage_24h"`
}

// NewListings returns the most recently listed meme tokens.
func (c *CoinGecko) NewListings(ctx context.Context) ([]core.TokenInfo, error) {
	params := url.Values{}
	params.Set("vs_currency", "usd")
	params.Set("order", "created_desc")
	params.Set("per_page", fmt.Sprint(pageSize))
	params.Set("page", "1")
	params.Set("sparkline", "false")
	params.Set("category", "meme-token")

	records, err := c.markets(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("coingecko new listings: %w", err)
	}

	return convertRecords(records), nil
}

// UpdatedPrices refreshes market data for the given token ids.
func (c *CoinGecko) UpdatedPrices(ctx context.Context, ids []string) ([]core.TokenInfo, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	params := url.Values{}
	params.Set("vs_currency", "usd")
	params.Set("ids", strings.Join(ids, ","))
	params.Set("order", "market_cap_desc")
	params.Set("per_page", fmt.Sprint(pageSize))
	params.Set("page", "1")
	params.Set("sparkline", "false")

	records, err := c.markets(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("coingecko price refresh: %w", err)
	}

	return convertRecords(records), nil
}

func (c *CoinGecko) markets(ctx context.Context, params url.Values) ([]marketRecord, error) {
	endpoint := c.baseURL + "/coins/markets?" + params.Encode()

	retry := &backoff.Backoff{
		Min:    500 * time.Millisecond,
		Max:    5 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retry.Duration()):
			}
		}

		records, err := c.fetch(ctx, endpoint)
		if err == nil {
			return records, nil
		}

		lastErr = err
		c.log.WithError(err).Warnf("coingecko request failed, attempt %d/%d", attempt+1, maxAttempts)
	}

	return nil, lastErr
}

func (c *CoinGecko) fetch(ctx context.Context, endpoint string) ([]marketRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var records []marketRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return records, nil
}

func convertRecords(records []marketRecord) []core.TokenInfo {
	tokens := make([]core.TokenInfo, 0, len(records))
	for _, r := range records {
		tokens = append(tokens, core.TokenInfo{
			ID:             r.ID,
			Symbol:         strings.ToUpper(r.Symbol),
			Name:           r.Name,
			Price:          r.CurrentPrice,
			MarketCap:      r.MarketCap,
			Volume24h:      r.TotalVolume,
			PriceChange24h: r.PriceChange24h,
		})
	}
	return tokens
}

package sniper

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/StudioSol/set"
)

// changeWindow is the lookback used by the price and volume change
// criteria.
const changeWindow = 5 * time.Minute

var defaultChains = []string{"ethereum", "bsc"}

// AlertConfig carries the optional matching criteria for a new alert.
// Nil thresholds are not evaluated.
type AlertConfig struct {
	MinPriceChange  *float64
	MinVolumeChange *float64
	MaxMarketCap    *float64
	Chains          []string
	Keywords        []string
	ExcludeKeywords []string
	AutoBuy         bool
	AutoBuyAmount   float64
}

// Alert matches tracked tokens against a user's criteria. A token id
// that triggered once is remembered and never matches again.
type Alert struct {
	ID              string
	Owner           int64
	MinPriceChange  *float64
	MinVolumeChange *float64
	MaxMarketCap    *float64
	Chains          *set.LinkedHashSetString
	Keywords        []string
	ExcludeKeywords []string
	AutoBuy         bool
	AutoBuyAmount   float64
	CreatedAt       time.Time

	triggered *set.LinkedHashSetString
}

func NewAlert(owner int64, cfg AlertConfig) *Alert {
	now := time.Now()

	chains := cfg.Chains
	if len(chains) == 0 {
		chains = defaultChains
	}

	chainSet := set.NewLinkedHashSetString()
	for _, c := range chains {
		chainSet.Add(strings.ToLower(c))
	}

	return &Alert{
		ID:              fmt.Sprintf("meme_sniper_%d_%d", owner, now.Unix()),
		Owner:           owner,
		MinPriceChange:  cfg.MinPriceChange,
		MinVolumeChange: cfg.MinVolumeChange,
		MaxMarketCap:    cfg.MaxMarketCap,
		Chains:          chainSet,
		Keywords:        cfg.Keywords,
		ExcludeKeywords: cfg.ExcludeKeywords,
		AutoBuy:         cfg.AutoBuy,
		AutoBuyAmount:   cfg.AutoBuyAmount,
		CreatedAt:       now,
		triggered:       set.NewLinkedHashSetString(),
	}
}

// MatchesToken evaluates the alert criteria against a token. All
// configured criteria must hold; a token that already triggered never
// matches again.
func (a *Alert) MatchesToken(t *Token, now time.Time) bool {
	if a.triggered.InArray(t.ID) {
		return false
	}

	if a.Chains.Length() > 0 && t.Chain != "" && !a.Chains.InArray(strings.ToLower(t.Chain)) {
		return false
	}

	if a.MaxMarketCap != nil && t.MarketCap != nil && *t.MarketCap > *a.MaxMarketCap {
		return false
	}

	tokenText := strings.ToLower(t.Name + " " + t.Symbol)

	if len(a.Keywords) > 0 && !containsAny(tokenText, a.Keywords) {
		return false
	}

	if len(a.ExcludeKeywords) > 0 && containsAny(tokenText, a.ExcludeKeywords) {
		return false
	}

	if a.MinPriceChange != nil {
		change, ok := t.PriceChange(changeWindow, now)
		if !ok || change < *a.MinPriceChange {
			return false
		}
	}

	if a.MinVolumeChange != nil {
		change, ok := t.VolumeChange(changeWindow, now)
		if !ok || change < *a.MinVolumeChange {
			return false
		}
	}

	return true
}

func (a *Alert) MarkTriggered(tokenID string) {
	a.triggered.Add(tokenID)
}

func (a *Alert) HasTriggered(tokenID string) bool {
	return a.triggered.InArray(tokenID)
}

func (a *Alert) TriggeredTokens() []string {
	out := make([]string, 0, a.triggered.Length())
	for id := range a.triggered.Iter() {
		out = append(out, id)
	}
	return out
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

type alertRecord struct {
	AlertID         string    `json:"alert_id"`
	UserID          int64     `json:"user_id"`
	MinPriceChange  *float64  `json:"min_price_change,omitempty"`
	MinVolumeChange *float64  `json:"min_volume_change,omitempty"`
	MaxMarketCap    *float64  `json:"max_market_cap,omitempty"`
	Chains          []string  `json:"chains"`
	Keywords        []string  `json:"keywords,omitempty"`
	ExcludeKeywords []string  `json:"exclude_keywords,omitempty"`
	AutoBuy         bool      `json:"auto_buy"`
	AutoBuyAmount   float64   `json:"auto_buy_amount,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	TriggeredTokens []string  `json:"triggered_tokens"`
}

func (a *Alert) MarshalJSON() ([]byte, error) {
	rec := alertRecord{
		AlertID:         a.ID,
		UserID:          a.Owner,
		MinPriceChange:  a.MinPriceChange,
		MinVolumeChange: a.MinVolumeChange,
		MaxMarketCap:    a.MaxMarketCap,
		Keywords:        a.Keywords,
		ExcludeKeywords: a.ExcludeKeywords,
		AutoBuy:         a.AutoBuy,
		AutoBuyAmount:   a.AutoBuyAmount,
		CreatedAt:       a.CreatedAt,
		TriggeredTokens: a.TriggeredTokens(),
	}

	for c := range a.Chains.Iter() {
		rec.Chains = append(rec.Chains, c)
	}

	return json.Marshal(rec)
}

func (a *Alert) UnmarshalJSON(data []byte) error {
	var rec alertRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}

	chains := set.NewLinkedHashSetString()
	for _, c := range rec.Chains {
		chains.Add(strings.ToLower(c))
	}

	triggered := set.NewLinkedHashSetString()
	triggered.Add(rec.TriggeredTokens...)

	*a = Alert{
		ID:              rec.AlertID,
		Owner:           rec.UserID,
		MinPriceChange:  rec.MinPriceChange,
		MinVolumeChange: rec.MinVolumeChange,
		MaxMarketCap:    rec.MaxMarketCap,
		Chains:          chains,
		Keywords:        rec.Keywords,
		ExcludeKeywords: rec.ExcludeKeywords,
		AutoBuy:         rec.AutoBuy,
		AutoBuyAmount:   rec.AutoBuyAmount,
		CreatedAt:       rec.CreatedAt,
		triggered:       triggered,
	}

	return nil
}

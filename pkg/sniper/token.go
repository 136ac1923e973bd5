// Package sniper tracks newly discovered tokens and matches them against
// user-defined criteria alerts.
package sniper

import (
	"encoding/json"
	"time"

	"github.com/raykavin/coinsentry/pkg/core"
)

// historyLimit bounds the per-token price and volume histories. The
// oldest entries are evicted first.
const historyLimit = 100

type PricePoint struct {
	Timestamp      time.Time
	Price          float64
	PriceChange24h *float64
}

type VolumePoint struct {
	Timestamp time.Time
	Volume    float64
}

// Token is a tracked token with its bounded observation history.
// Snapshot fields mirror the latest discovery record; optional fields
// stay nil until the source reports them.
type Token struct {
	ID             string
	Symbol         string
	Name           string
	Address        string
	Chain          string
	Price          *float64
	MarketCap      *float64
	Volume24h      *float64
	PriceChange24h *float64
	CreatedAt      time.Time
	LastUpdated    time.Time

	PriceHistory  []PricePoint
	VolumeHistory []VolumePoint
}

func NewToken(info core.TokenInfo, now time.Time) *Token {
	t := &Token{
		ID:          info.ID,
		Symbol:      info.Symbol,
		Name:        info.Name,
		Address:     info.Address,
		Chain:       info.Chain,
		CreatedAt:   now,
		LastUpdated: now,
	}
	t.UpdatePrice(info, now)
	return t
}

// UpdatePrice appends the reported price and volume to the histories and
// refreshes the snapshot fields. Fields absent from the record keep
// their previous values.
func (t *Token) UpdatePrice(info core.TokenInfo, now time.Time) {
	if info.Price != nil {
		t.PriceHistory = append(t.PriceHistory, PricePoint{
			Timestamp:      now,
			Price:          *info.Price,
			PriceChange24h: info.PriceChange24h,
		})
		if len(t.PriceHistory) > historyLimit {
			t.PriceHistory = t.PriceHistory[len(t.PriceHistory)-historyLimit:]
		}
		t.Price = info.Price
	}

	if info.Volume24h != nil {
		t.VolumeHistory = append(t.VolumeHistory, VolumePoint{
			Timestamp: now,
			Volume:    *info.Volume24h,
		})
		if len(t.VolumeHistory) > historyLimit {
			t.VolumeHistory = t.VolumeHistory[len(t.VolumeHistory)-historyLimit:]
		}
		t.Volume24h = info.Volume24h
	}

	if info.MarketCap != nil {
		t.MarketCap = info.MarketCap
	}
	if info.PriceChange24h != nil {
		t.PriceChange24h = info.PriceChange24h
	}

	t.LastUpdated = now
}

// snapshot returns a copy with its own history slices, safe to read
// after the monitor lock is released. The optional pointer fields are
// shared but never written through once published.
func (t *Token) snapshot() Token {
	out := *t
	out.PriceHistory = append([]PricePoint(nil), t.PriceHistory...)
	out.VolumeHistory = append([]VolumePoint(nil), t.VolumeHistory...)
	return out
}

// PriceChange returns the percentage change of the current price against
// the most recent history sample strictly older than now minus window.
// The second return is false when the history cannot answer: fewer than
// two samples, no sample outside the window, or a zero reference price.
func (t *Token) PriceChange(window time.Duration, now time.Time) (float64, bool) {
	if len(t.PriceHistory) < 2 || t.Price == nil {
		return 0, false
	}

	cutoff := now.Add(-window)

	var reference *PricePoint
	for i := range t.PriceHistory {
		if t.PriceHistory[i].Timestamp.Before(cutoff) {
			reference = &t.PriceHistory[i]
		}
	}

	if reference == nil || reference.Price == 0 {
		return 0, false
	}

	return (*t.Price - reference.Price) / reference.Price * 100, true
}

// VolumeChange is PriceChange over the volume history.
func (t *Token) VolumeChange(window time.Duration, now time.Time) (float64, bool) {
	if len(t.VolumeHistory) < 2 || t.Volume24h == nil {
		return 0, false
	}

	cutoff := now.Add(-window)

	var reference *VolumePoint
	for i := range t.VolumeHistory {
		if t.VolumeHistory[i].Timestamp.Before(cutoff) {
			reference = &t.VolumeHistory[i]
		}
	}

	if reference == nil || reference.Volume == 0 {
		return 0, false
	}

	return (*t.Volume24h - reference.Volume) / reference.Volume * 100, true
}

type pricePointRecord struct {
	Timestamp      time.Time `json:"timestamp"`
	Price          float64   `json:"price"`
	PriceChange24h *float64  `json:"price_change_24h,omitempty"`
}

type volumePointRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Volume    float64   `json:"volume"`
}

type tokenRecord struct {
	TokenID        string              `json:"token_id"`
	Symbol         string              `json:"symbol"`
	Name           string              `json:"name"`
	Address        string              `json:"address,omitempty"`
	Chain          string              `json:"chain,omitempty"`
	Price          *float64            `json:"price,omitempty"`
	MarketCap      *float64            `json:"market_cap,omitempty"`
	Volume24h      *float64            `json:"volume_24h,omitempty"`
	PriceChange24h *float64            `json:"price_change_24h,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	LastUpdated    time.Time           `json:"last_updated"`
	PriceHistory   []pricePointRecord  `json:"price_history"`
	VolumeHistory  []volumePointRecord `json:"volume_history"`
}

func (t *Token) MarshalJSON() ([]byte, error) {
	rec := tokenRecord{
		TokenID:        t.ID,
		Symbol:         t.Symbol,
		Name:           t.Name,
		Address:        t.Address,
		Chain:          t.Chain,
		Price:          t.Price,
		MarketCap:      t.MarketCap,
		Volume24h:      t.Volume24h,
		PriceChange24h: t.PriceChange24h,
		CreatedAt:      t.CreatedAt,
		LastUpdated:    t.LastUpdated,
	}

	for _, p := range t.PriceHistory {
		rec.PriceHistory = append(rec.PriceHistory, pricePointRecord(p))
	}
	for _, v := range t.VolumeHistory {
		rec.VolumeHistory = append(rec.VolumeHistory, volumePointRecord(v))
	}

	return json.Marshal(rec)
}

func (t *Token) UnmarshalJSON(data []byte) error {
	var rec tokenRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}

	*t = Token{
		ID:             rec.TokenID,
		Symbol:         rec.Symbol,
		Name:           rec.Name,
		Address:        rec.Address,
		Chain:          rec.Chain,
		Price:          rec.Price,
		MarketCap:      rec.MarketCap,
		Volume24h:      rec.Volume24h,
		PriceChange24h: rec.PriceChange24h,
		CreatedAt:      rec.CreatedAt,
		LastUpdated:    rec.LastUpdated,
	}

	for _, p := range rec.PriceHistory {
		t.PriceHistory = append(t.PriceHistory, PricePoint(p))
	}
	for _, v := range rec.VolumeHistory {
		t.VolumeHistory = append(t.VolumeHistory, VolumePoint(v))
	}

	return nil
}

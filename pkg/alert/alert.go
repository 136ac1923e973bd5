// Package alert implements price threshold alerts and the background
// registry that polls ticker prices and fires them.
package alert

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound         = errors.New("alert not found")
	ErrInvalidCondition = errors.New("condition must be above or below")
	ErrInvalidTarget    = errors.New("target price must be positive")
)

// Condition determines on which side of the target price an alert fires
type Condition string

const (
	ConditionAbove Condition = "above"
	ConditionBelow Condition = "below"
)

// Alert is a single price alert. All fields except Triggered are
// immutable after creation.
type Alert struct {
	ID          string
	Owner       int64
	Symbol      string
	Exchange    string
	TargetPrice float64
	Condition   Condition
	CreatedAt   time.Time
	Triggered   bool
}

// New creates a price alert for the given owner and trading pair.
// The id is derived from owner, pair, exchange and creation time.
func New(owner int64, symbol, exchange string, targetPrice float64, condition Condition) (*Alert, error) {
	condition = Condition(strings.ToLower(string(condition)))
	if condition != ConditionAbove && condition != ConditionBelow {
		return nil, ErrInvalidCondition
	}

	if targetPrice <= 0 {
		return nil, ErrInvalidTarget
	}

	now := time.Now()

	return &Alert{
		ID:          fmt.Sprintf("%d_%s_%s_%d", owner, symbol, exchange, now.Unix()),
		Owner:       owner,
		Symbol:      symbol,
		Exchange:    strings.ToLower(exchange),
		TargetPrice: targetPrice,
		Condition:   condition,
		CreatedAt:   now,
	}, nil
}

// IsTriggered reports whether the current price satisfies the alert condition
func (a *Alert) IsTriggered(currentPrice float64) bool {
	switch a.Condition {
	case ConditionAbove:
		return currentPrice >= a.TargetPrice
	case ConditionBelow:
		return currentPrice <= a.TargetPrice
	}
	return false
}

// record is the serialized form of an alert
type record struct {
	ID          string  `json:"alert_id"`
	Owner       int64   `json:"user_id"`
	Symbol      string  `json:"symbol"`
	Exchange    string  `json:"exchange"`
	TargetPrice float64 `json:"target_price"`
	Condition   string  `json:"condition"`
	CreatedAt   string  `json:"created_at"`
	Triggered   bool    `json:"triggered"`
}

// MarshalJSON implements json.Marshaler with RFC3339 timestamps
func (a *Alert) MarshalJSON() ([]byte, error) {
	return json.Marshal(record{
		ID:          a.ID,
		Owner:       a.Owner,
		Symbol:      a.Symbol,
		Exchange:    a.Exchange,
		TargetPrice: a.TargetPrice,
		Condition:   string(a.Condition),
		CreatedAt:   a.CreatedAt.Format(time.RFC3339Nano),
		Triggered:   a.Triggered,
	})
}

// UnmarshalJSON implements json.Unmarshaler
func (a *Alert) UnmarshalJSON(data []byte) error {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}

	createdAt, err := time.Parse(time.RFC3339Nano, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("invalid created_at: %w", err)
	}

	*a = Alert{
		ID:          rec.ID,
		Owner:       rec.Owner,
		Symbol:      rec.Symbol,
		Exchange:    rec.Exchange,
		TargetPrice: rec.TargetPrice,
		Condition:   Condition(rec.Condition),
		CreatedAt:   createdAt,
		Triggered:   rec.Triggered,
	}

	return nil
}

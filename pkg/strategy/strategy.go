// Package strategy implements indicator-based trading strategies and the
// manager that executes them against an exchange feed.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/raykavin/coinsentry/pkg/core"
	"github.com/raykavin/coinsentry/pkg/indicator"
	"github.com/raykavin/coinsentry/pkg/logger"
)

var (
	ErrNotFound         = errors.New("strategy not found")
	ErrAlreadyExists    = errors.New("strategy already exists")
	ErrUnknownType      = errors.New("unknown strategy type")
	ErrMissingParam     = errors.New("missing required parameter")
	ErrInvalidName      = errors.New("invalid strategy name")
	errInsufficientData = errors.New("insufficient candle data")
)

type Type string

const (
	TypeSMACrossover   Type = "sma_crossover"
	TypeEMACrossover   Type = "ema_crossover"
	TypeRSI            Type = "rsi"
	TypeBollingerBands Type = "bollinger_bands"
)

// AnalyzeFunc evaluates one strategy variant over a candle window. It
// returns errInsufficientData when the window is too short to decide.
type AnalyzeFunc func(s *Strategy, candles []core.Candle) (core.Signal, error)

var analyzers = map[Type]AnalyzeFunc{
	TypeSMACrossover:   analyzeSMACrossover,
	TypeEMACrossover:   analyzeEMACrossover,
	TypeRSI:            analyzeRSI,
	TypeBollingerBands: analyzeBollingerBands,
}

var requiredParams = map[Type][]string{
	TypeSMACrossover:   {"short_period", "long_period", "timeframe"},
	TypeEMACrossover:   {"short_period", "long_period", "timeframe"},
	TypeRSI:            {"period", "timeframe"},
	TypeBollingerBands: {"period", "std_dev", "timeframe"},
}

// RegisterAnalyzer adds a strategy variant. Built-in types cannot be
// replaced.
func RegisterAnalyzer(typ Type, required []string, fn AnalyzeFunc) error {
	if _, ok := analyzers[typ]; ok {
		return fmt.Errorf("%w: %s already registered", ErrAlreadyExists, typ)
	}
	analyzers[typ] = fn
	requiredParams[typ] = required
	return nil
}

// Params holds the per-type strategy configuration. Values survive a
// JSON round trip, so numeric lookups accept both int and float64.
type Params map[string]any

func (p Params) Int(key string) (int, bool) {
	switch v := p[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

func (p Params) Float(key string) (float64, bool) {
	switch v := p[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func (p Params) String(key string) (string, bool) {
	v, ok := p[key].(string)
	return v, ok
}

type Strategy struct {
	Name     string
	Symbol   string
	Exchange string
	Type     Type
	Params   Params

	mu         sync.Mutex
	lastSignal core.Signal
	lastUpdate time.Time

	log logger.Logger
}

// LastSignal returns the signal from the most recent complete evaluation.
func (s *Strategy) LastSignal() core.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSignal
}

// LastUpdate returns the time of the most recent complete evaluation,
// zero when the strategy has never been evaluated.
func (s *Strategy) LastUpdate() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUpdate
}

// restore seeds the evaluation state from a persisted record.
func (s *Strategy) restore(signal core.Signal, updated time.Time) {
	s.mu.Lock()
	s.lastSignal = signal
	s.lastUpdate = updated
	s.mu.Unlock()
}

func New(name, symbol, exchange string, typ Type, params Params, log logger.Logger) (*Strategy, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrInvalidName
	}

	required, ok := requiredParams[typ]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, typ)
	}

	if params == nil {
		params = Params{}
	}

	for _, key := range required {
		if _, ok := params[key]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingParam, key)
		}
	}

	if typ == TypeRSI {
		if _, ok := params["overbought"]; !ok {
			params["overbought"] = 70.0
		}
		if _, ok := params["oversold"]; !ok {
			params["oversold"] = 30.0
		}
	}

	return &Strategy{
		Name:     name,
		Symbol:   symbol,
		Exchange: strings.ToLower(exchange),
		Type:     typ,
		Params:   params,
		log:      log,
	}, nil
}

// Analyze fetches candles and evaluates the strategy. Fetch failures and
// short candle windows degrade to a HOLD signal; LastSignal and
// LastUpdate only move on a complete evaluation.
func (s *Strategy) Analyze(ctx context.Context, feeder core.Feeder) core.Signal {
	fn, ok := analyzers[s.Type]
	if !ok {
		s.log.WithField("strategy", s.Name).Warnf("no analyzer for type %s", s.Type)
		return core.SignalHold
	}

	timeframe, _ := s.Params.String("timeframe")
	candles, err := feeder.CandlesByLimit(ctx, s.Symbol, timeframe, s.candleLimit())
	if err != nil {
		s.log.WithError(err).WithField("strategy", s.Name).Warn("candle fetch failed")
		return core.SignalHold
	}

	signal, err := fn(s, candles)
	if err != nil {
		s.log.WithError(err).WithField("strategy", s.Name).Warn("analysis degraded to hold")
		return core.SignalHold
	}

	s.mu.Lock()
	s.lastSignal = signal
	s.lastUpdate = time.Now()
	s.mu.Unlock()
	return signal
}

// candleLimit is the fetch size: the longest lookback the variant needs
// plus headroom for the crossover comparison points.
func (s *Strategy) candleLimit() int {
	switch s.Type {
	case TypeSMACrossover, TypeEMACrossover:
		long, _ := s.Params.Int("long_period")
		return long + 10
	default:
		period, _ := s.Params.Int("period")
		return period + 10
	}
}

func analyzeSMACrossover(s *Strategy, candles []core.Candle) (core.Signal, error) {
	return analyzeCrossover(s, candles, indicator.SMA)
}

func analyzeEMACrossover(s *Strategy, candles []core.Candle) (core.Signal, error) {
	return analyzeCrossover(s, candles, indicator.EMA)
}

func analyzeCrossover(s *Strategy, candles []core.Candle, compute func([]float64, int) []float64) (core.Signal, error) {
	short, _ := s.Params.Int("short_period")
	long, _ := s.Params.Int("long_period")

	if len(candles) < long+2 {
		return core.SignalHold, fmt.Errorf("%w: have %d candles, need %d", errInsufficientData, len(candles), long+2)
	}

	closes := closePrices(candles)
	shortSeries := core.Series[float64](compute(closes, short))
	longSeries := core.Series[float64](compute(closes, long))

	switch {
	case shortSeries.Crossover(longSeries):
		return core.SignalBuy, nil
	case shortSeries.Crossunder(longSeries):
		return core.SignalSell, nil
	}
	return core.SignalHold, nil
}

func analyzeRSI(s *Strategy, candles []core.Candle) (core.Signal, error) {
	period, _ := s.Params.Int("period")

	if len(candles) < period+1 {
		return core.SignalHold, fmt.Errorf("%w: have %d candles, need %d", errInsufficientData, len(candles), period+1)
	}

	values := indicator.RSI(closePrices(candles), period)
	if len(values) == 0 {
		return core.SignalHold, errInsufficientData
	}

	overbought, _ := s.Params.Float("overbought")
	oversold, _ := s.Params.Float("oversold")

	current := values[len(values)-1]
	switch {
	case current <= oversold:
		return core.SignalBuy, nil
	case current >= overbought:
		return core.SignalSell, nil
	}
	return core.SignalHold, nil
}

func analyzeBollingerBands(s *Strategy, candles []core.Candle) (core.Signal, error) {
	period, _ := s.Params.Int("period")
	stdDev, _ := s.Params.Float("std_dev")

	if len(candles) < period {
		return core.SignalHold, fmt.Errorf("%w: have %d candles, need %d", errInsufficientData, len(candles), period)
	}

	closes := closePrices(candles)
	_, upper, lower := indicator.BollingerBands(closes, period, stdDev)
	if len(upper) == 0 {
		return core.SignalHold, errInsufficientData
	}

	price := closes[len(closes)-1]
	switch {
	case price <= lower[len(lower)-1]:
		return core.SignalBuy, nil
	case price >= upper[len(upper)-1]:
		return core.SignalSell, nil
	}
	return core.SignalHold, nil
}

func closePrices(candles []core.Candle) []float64 {
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	return closes
}

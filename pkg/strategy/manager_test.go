package strategy

import (
	"context"
	"sync"
	"testing"

	"github.com/raykavin/coinsentry/pkg/core"
	"github.com/raykavin/coinsentry/pkg/logger"
	"github.com/raykavin/coinsentry/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCrossStrategy(t *testing.T, name string) *Strategy {
	t.Helper()
	s, err := New(name, "BTC/USDT", "binance", TypeSMACrossover,
		Params{"short_period": 3, "long_period": 5, "timeframe": "1h"}, logger.Discard)
	require.NoError(t, err)
	return s
}

func TestManager_CRUD(t *testing.T) {
	m := NewManager(nil, nil, logger.Discard)

	s := newCrossStrategy(t, "cross btc")
	require.NoError(t, m.Add(s))
	require.ErrorIs(t, m.Add(s), ErrAlreadyExists)

	got, err := m.Get("cross btc")
	require.NoError(t, err)
	assert.Equal(t, s, got)

	assert.Len(t, m.List(), 1)

	require.NoError(t, m.Remove("cross btc"))
	require.ErrorIs(t, m.Remove("cross btc"), ErrNotFound)

	_, err = m.Get("cross btc")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestManager_StrategiesForSymbol(t *testing.T) {
	m := NewManager(nil, nil, logger.Discard)

	require.NoError(t, m.Add(newCrossStrategy(t, "a")))
	require.NoError(t, m.Add(newCrossStrategy(t, "b")))

	eth, err := New("c", "ETH/USDT", "binance", TypeRSI,
		Params{"period": 14, "timeframe": "1h"}, logger.Discard)
	require.NoError(t, err)
	require.NoError(t, m.Add(eth))

	assert.Len(t, m.StrategiesForSymbol("BTC/USDT", "Binance"), 2)
	assert.Len(t, m.StrategiesForSymbol("ETH/USDT", "binance"), 1)
	assert.Empty(t, m.StrategiesForSymbol("SOL/USDT", "binance"))
}

func TestManager_ExecuteInvokesCallbackOnSignal(t *testing.T) {
	// jump on the final candle so the crossover fires
	feeder := &stubFeeder{candles: candlesFromCloses([]float64{10, 10, 10, 10, 10, 10, 10, 12})}
	resolve := func(string) (core.Feeder, error) { return feeder, nil }

	var calls []core.Signal
	m := NewManager(resolve, func(_ *Strategy, signal core.Signal) {
		calls = append(calls, signal)
	}, logger.Discard)

	require.NoError(t, m.Add(newCrossStrategy(t, "cross btc")))

	signal, err := m.Execute(context.Background(), "cross btc")
	require.NoError(t, err)
	assert.Equal(t, core.SignalBuy, signal)
	assert.Equal(t, []core.Signal{core.SignalBuy}, calls)
}

func TestManager_ExecuteSkipsCallbackOnHold(t *testing.T) {
	feeder := &stubFeeder{candles: candlesFromCloses([]float64{10, 10, 10, 10, 10, 10, 10, 10})}
	resolve := func(string) (core.Feeder, error) { return feeder, nil }

	calls := 0
	m := NewManager(resolve, func(*Strategy, core.Signal) { calls++ }, logger.Discard)

	require.NoError(t, m.Add(newCrossStrategy(t, "cross btc")))

	signal, err := m.Execute(context.Background(), "cross btc")
	require.NoError(t, err)
	assert.Equal(t, core.SignalHold, signal)
	assert.Zero(t, calls)
}

func TestManager_ExecuteUnknownStrategy(t *testing.T) {
	m := NewManager(nil, nil, logger.Discard)

	_, err := m.Execute(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestManager_SaveLoadRoundTrip(t *testing.T) {
	store, err := storage.FromMemory()
	require.NoError(t, err)
	defer store.Close()

	m := NewManager(nil, nil, logger.Discard)

	s := newCrossStrategy(t, "cross btc")
	require.NoError(t, m.Add(s))

	feeder := &stubFeeder{candles: candlesFromCloses([]float64{10, 10, 10, 10, 10, 10, 10, 12})}
	s.Analyze(context.Background(), feeder)
	require.Equal(t, core.SignalBuy, s.LastSignal())

	require.True(t, m.Save(store))

	loaded := NewManager(nil, nil, logger.Discard)
	require.True(t, loaded.Load(store))

	got, err := loaded.Get("cross btc")
	require.NoError(t, err)

	assert.Equal(t, s.Symbol, got.Symbol)
	assert.Equal(t, s.Type, got.Type)
	assert.Equal(t, core.SignalBuy, got.LastSignal())
	assert.WithinDuration(t, s.LastUpdate(), got.LastUpdate(), 0)

	// numeric params survive the JSON round trip
	short, ok := got.Params.Int("short_period")
	require.True(t, ok)
	assert.Equal(t, 3, short)

	timeframe, ok := got.Params.String("timeframe")
	require.True(t, ok)
	assert.Equal(t, "1h", timeframe)
}

func TestManager_SaveConcurrentWithAnalyze(t *testing.T) {
	store, err := storage.FromMemory()
	require.NoError(t, err)
	defer store.Close()

	m := NewManager(nil, nil, logger.Discard)

	s := newCrossStrategy(t, "cross btc")
	require.NoError(t, m.Add(s))

	feeder := &stubFeeder{candles: candlesFromCloses([]float64{10, 10, 10, 10, 10, 10, 10, 12})}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			s.Analyze(context.Background(), feeder)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			assert.True(t, m.Save(store))
		}
	}()
	wg.Wait()

	assert.Equal(t, core.SignalBuy, s.LastSignal())
}

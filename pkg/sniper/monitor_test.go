package sniper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/raykavin/coinsentry/pkg/core"
	"github.com/raykavin/coinsentry/pkg/logger"
	"github.com/raykavin/coinsentry/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource serves scripted listings and price updates
type fakeSource struct {
	listings    []core.TokenInfo
	listingsErr error
	updates     map[string]core.TokenInfo
	updatesErr  error
	batches     [][]string
}

func (f *fakeSource) NewListings(_ context.Context) ([]core.TokenInfo, error) {
	return f.listings, f.listingsErr
}

func (f *fakeSource) UpdatedPrices(_ context.Context, ids []string) ([]core.TokenInfo, error) {
	f.batches = append(f.batches, ids)
	if f.updatesErr != nil {
		return nil, f.updatesErr
	}
	var out []core.TokenInfo
	for _, id := range ids {
		if info, ok := f.updates[id]; ok {
			out = append(out, info)
		}
	}
	return out, nil
}

func TestMonitor_CycleIngestsAndTriggers(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	source := &fakeSource{
		listings: []core.TokenInfo{
			{ID: "dogeclone", Name: "Dogeclone", Symbol: "DOGC", Chain: "ethereum", Price: f(1), MarketCap: f(500_000)},
			{ID: "bigcap", Name: "Dogewhale", Symbol: "DOGW", Chain: "ethereum", Price: f(2), MarketCap: f(2_000_000)},
			{ID: ""}, // records without an id are dropped
		},
	}

	var notified []string
	var bought []float64

	m := NewMonitor(source,
		func(_ *Alert, token Token) { notified = append(notified, token.ID) },
		func(_ *Alert, _ Token, amount float64) { bought = append(bought, amount) },
		time.Minute, logger.Discard)
	m.now = func() time.Time { return now }

	m.AddAlert(NewAlert(1, AlertConfig{
		MaxMarketCap:  f(1_000_000),
		Keywords:      []string{"doge"},
		AutoBuy:       true,
		AutoBuyAmount: 50,
	}))

	m.cycle(context.Background())

	_, tracked := m.Token("dogeclone")
	assert.True(t, tracked)
	_, tracked = m.Token("bigcap")
	assert.True(t, tracked)

	require.Equal(t, []string{"dogeclone"}, notified)
	require.Equal(t, []float64{50}, bought)

	// already-triggered tokens stay quiet on the next cycle
	m.cycle(context.Background())
	assert.Len(t, notified, 1)
	assert.Len(t, bought, 1)
}

func TestMonitor_CycleSurvivesSourceFailure(t *testing.T) {
	source := &fakeSource{listingsErr: errors.New("rate limited")}

	m := NewMonitor(source, nil, nil, time.Minute, logger.Discard)
	m.cycle(context.Background())

	assert.Empty(t, m.Trending(10))
}

func TestMonitor_RefreshBatchesIDs(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	var listings []core.TokenInfo
	for i := 0; i < 120; i++ {
		listings = append(listings, core.TokenInfo{
			ID:   string(rune('a'+i/26)) + string(rune('a'+i%26)),
			Name: "Token", Price: f(1),
		})
	}

	source := &fakeSource{listings: listings}
	m := NewMonitor(source, nil, nil, time.Minute, logger.Discard)
	m.now = func() time.Time { return now }

	m.cycle(context.Background()) // ingest only, nothing tracked yet
	source.batches = nil

	m.cycle(context.Background())
	require.Len(t, source.batches, 3)
	assert.Len(t, source.batches[0], 50)
	assert.Len(t, source.batches[1], 50)
	assert.Len(t, source.batches[2], 20)
}

func TestMonitor_AlertCRUD(t *testing.T) {
	m := NewMonitor(&fakeSource{}, nil, nil, time.Minute, logger.Discard)

	alert := NewAlert(9, AlertConfig{})
	m.AddAlert(alert)

	got, err := m.GetAlert(alert.ID)
	require.NoError(t, err)
	assert.Equal(t, alert, got)

	assert.Len(t, m.AlertsForOwner(9), 1)
	assert.Empty(t, m.AlertsForOwner(10))

	require.NoError(t, m.RemoveAlert(alert.ID))
	require.ErrorIs(t, m.RemoveAlert(alert.ID), ErrAlertNotFound)
}

func TestMonitor_Trending(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	source := &fakeSource{listings: []core.TokenInfo{
		{ID: "hot", Name: "Hot", Price: f(1), PriceChange24h: f(90)},
		{ID: "warm", Name: "Warm", Price: f(1), PriceChange24h: f(40)},
		{ID: "cold", Name: "Cold", Price: f(1), PriceChange24h: f(-20)},
	}}

	m := NewMonitor(source, nil, nil, time.Minute, logger.Discard)
	m.now = func() time.Time { return now }
	m.cycle(context.Background())

	trending := m.Trending(2)
	require.Len(t, trending, 2)
	assert.Equal(t, "hot", trending[0].ID)
	assert.Equal(t, "warm", trending[1].ID)
}

func TestMonitor_NewListings(t *testing.T) {
	now := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

	m := NewMonitor(&fakeSource{}, nil, nil, time.Minute, logger.Discard)
	m.now = func() time.Time { return now }

	m.tokens["old"] = NewToken(core.TokenInfo{ID: "old", Name: "Old"}, now.AddDate(0, 0, -30))
	m.tokens["fresh"] = NewToken(core.TokenInfo{ID: "fresh", Name: "Fresh"}, now.AddDate(0, 0, -1))
	m.tokens["newest"] = NewToken(core.TokenInfo{ID: "newest", Name: "Newest"}, now)

	listings := m.NewListings(7, 10)
	require.Len(t, listings, 2)
	assert.Equal(t, "newest", listings[0].ID)
	assert.Equal(t, "fresh", listings[1].ID)
}

func TestMonitor_Search(t *testing.T) {
	now := time.Now()

	m := NewMonitor(&fakeSource{}, nil, nil, time.Minute, logger.Discard)
	m.tokens["doge"] = NewToken(core.TokenInfo{ID: "doge", Name: "Dogecoin", Symbol: "DOGE", MarketCap: f(100)}, now)
	m.tokens["dogeclone"] = NewToken(core.TokenInfo{ID: "dogeclone", Name: "Dogeclone", Symbol: "DOGC", MarketCap: f(900)}, now)
	m.tokens["pepe"] = NewToken(core.TokenInfo{ID: "pepe", Name: "Pepe", Symbol: "PEPE", MarketCap: f(500)}, now)

	results := m.Search("DOGE", 10)
	require.Len(t, results, 2)
	assert.Equal(t, "dogeclone", results[0].ID)
	assert.Equal(t, "doge", results[1].ID)

	assert.Empty(t, m.Search("shiba", 10))
}

func TestMonitor_ViewsReturnCopies(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	m := NewMonitor(&fakeSource{}, nil, nil, time.Minute, logger.Discard)
	m.now = func() time.Time { return now }
	m.tokens["doge"] = NewToken(core.TokenInfo{ID: "doge", Name: "Dogecoin", Symbol: "DOGE", Price: f(1)}, now)

	view := m.Trending(1)
	require.Len(t, view, 1)
	require.Len(t, view[0].PriceHistory, 1)

	// a later refresh must not show through an already-returned view
	m.tokens["doge"].UpdatePrice(core.TokenInfo{ID: "doge", Price: f(3)}, now.Add(time.Minute))

	assert.Equal(t, 1.0, *view[0].Price)
	assert.Len(t, view[0].PriceHistory, 1)

	got, ok := m.Token("doge")
	require.True(t, ok)
	assert.Equal(t, 3.0, *got.Price)
	assert.Len(t, got.PriceHistory, 2)
}

func TestMonitor_SaveLoadRoundTrip(t *testing.T) {
	tokensStore, err := storage.FromMemory()
	require.NoError(t, err)
	defer tokensStore.Close()

	alertsStore, err := storage.FromMemory()
	require.NoError(t, err)
	defer alertsStore.Close()

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	m := NewMonitor(&fakeSource{}, nil, nil, time.Minute, logger.Discard)
	m.now = func() time.Time { return now }

	token := NewToken(core.TokenInfo{ID: "pepe", Name: "Pepe", Symbol: "PEPE", Price: f(1)}, now)
	token.UpdatePrice(core.TokenInfo{ID: "pepe", Price: f(2)}, now.Add(time.Minute))
	m.tokens["pepe"] = token

	alert := NewAlert(3, AlertConfig{Keywords: []string{"pepe"}})
	alert.MarkTriggered("pepe")
	m.AddAlert(alert)

	require.True(t, m.Save(tokensStore, alertsStore))

	loaded := NewMonitor(&fakeSource{}, nil, nil, time.Minute, logger.Discard)
	require.True(t, loaded.Load(tokensStore, alertsStore))

	gotToken, ok := loaded.Token("pepe")
	require.True(t, ok)
	require.Len(t, gotToken.PriceHistory, 2)
	assert.Equal(t, 2.0, *gotToken.Price)

	gotAlert, err := loaded.GetAlert(alert.ID)
	require.NoError(t, err)
	assert.True(t, gotAlert.HasTriggered("pepe"))
	assert.Equal(t, alert.Keywords, gotAlert.Keywords)
}

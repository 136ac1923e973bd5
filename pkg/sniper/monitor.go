package sniper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/raykavin/coinsentry/pkg/core"
	"github.com/raykavin/coinsentry/pkg/logger"
	"github.com/raykavin/coinsentry/pkg/storage"
	"github.com/samber/lo"
)

var ErrAlertNotFound = errors.New("sniper alert not found")

const (
	// refreshBatchSize bounds the ids sent per price refresh request
	refreshBatchSize = 50
	stopGracePeriod  = 5 * time.Second
)

// NotifyFunc receives every (alert, token) match. The token is a copy
// taken at match time.
type NotifyFunc func(alert *Alert, token Token)

// BuyFunc places the auto-buy order for a matched token.
type BuyFunc func(alert *Alert, token Token, quoteAmount float64)

// Monitor tracks discovered tokens and evaluates sniper alerts against
// them on a fixed interval.
type Monitor struct {
	mu     sync.Mutex
	tokens map[string]*Token
	alerts map[string]*Alert

	source        core.TokenSource
	notify        NotifyFunc
	buy           BuyFunc
	checkInterval time.Duration
	log           logger.Logger
	now           func() time.Time

	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewMonitor(source core.TokenSource, notify NotifyFunc, buy BuyFunc,
	checkInterval time.Duration, log logger.Logger) *Monitor {
	return &Monitor{
		tokens:        make(map[string]*Token),
		alerts:        make(map[string]*Alert),
		source:        source,
		notify:        notify,
		buy:           buy,
		checkInterval: checkInterval,
		log:           log,
		now:           time.Now,
	}
}

func (m *Monitor) AddAlert(alert *Alert) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.alerts[alert.ID] = alert
	m.log.WithFields(map[string]any{
		"alert": alert.ID,
		"owner": alert.Owner,
	}).Info("sniper alert added")
}

func (m *Monitor) RemoveAlert(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.alerts[id]; !ok {
		return fmt.Errorf("%w: %s", ErrAlertNotFound, id)
	}
	delete(m.alerts, id)
	return nil
}

func (m *Monitor) GetAlert(id string) (*Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	alert, ok := m.alerts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAlertNotFound, id)
	}
	return alert, nil
}

func (m *Monitor) AlertsForOwner(owner int64) []*Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Alert
	for _, alert := range m.alerts {
		if alert.Owner == owner {
			out = append(out, alert)
		}
	}
	return out
}

// Token returns a copy of the tracked token with the given id.
func (m *Monitor) Token(id string) (Token, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tokens[id]
	if !ok {
		return Token{}, false
	}
	return t.snapshot(), true
}

func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	m.running = true

	go m.monitor(ctx)
	m.log.Info("sniper monitoring started")
}

func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel := m.cancel
	done := m.done
	m.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(stopGracePeriod):
		m.log.Warn("sniper monitor did not stop within grace period")
	}
	m.log.Info("sniper monitoring stopped")
}

func (m *Monitor) monitor(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	for {
		m.cycle(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// cycle runs one discovery pass: refresh known tokens, ingest new
// listings, then evaluate alerts.
func (m *Monitor) cycle(ctx context.Context) {
	m.refreshTokens(ctx)
	m.ingestListings(ctx)
	m.checkAlerts()
}

func (m *Monitor) ingestListings(ctx context.Context) {
	listings, err := m.source.NewListings(ctx)
	if err != nil {
		m.log.WithError(err).Warn("new listings fetch failed")
		return
	}

	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, info := range listings {
		if info.ID == "" {
			continue
		}
		if _, ok := m.tokens[info.ID]; ok {
			continue
		}
		token := NewToken(info, now)
		m.tokens[info.ID] = token
		m.log.Infof("tracking new token %s (%s)", token.Name, token.Symbol)
	}
}

func (m *Monitor) refreshTokens(ctx context.Context) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.tokens))
	for id := range m.tokens {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	if len(ids) == 0 {
		return
	}
	sort.Strings(ids)

	now := m.now()

	for _, batch := range lo.Chunk(ids, refreshBatchSize) {
		updates, err := m.source.UpdatedPrices(ctx, batch)
		if err != nil {
			m.log.WithError(err).Warn("token price refresh failed")
			continue
		}

		m.mu.Lock()
		for _, info := range updates {
			if token, ok := m.tokens[info.ID]; ok {
				token.UpdatePrice(info, now)
			}
		}
		m.mu.Unlock()
	}
}

func (m *Monitor) checkAlerts() {
	now := m.now()

	type match struct {
		alert *Alert
		token Token
	}

	m.mu.Lock()
	var matches []match
	for _, alert := range m.alerts {
		for id, token := range m.tokens {
			if alert.MatchesToken(token, now) {
				alert.MarkTriggered(id)
				matches = append(matches, match{alert, token.snapshot()})
			}
		}
	}
	m.mu.Unlock()

	for _, hit := range matches {
		m.log.WithFields(map[string]any{
			"alert": hit.alert.ID,
			"token": hit.token.Symbol,
		}).Info("sniper alert triggered")

		if m.notify != nil {
			m.notify(hit.alert, hit.token)
		}

		if hit.alert.AutoBuy && hit.alert.AutoBuyAmount > 0 && m.buy != nil {
			m.buy(hit.alert, hit.token, hit.alert.AutoBuyAmount)
		}
	}
}

// Trending ranks tokens by a weighted blend of short and daily momentum.
// The returned tokens are copies.
func (m *Monitor) Trending(limit int) []Token {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	type scored struct {
		token *Token
		score float64
	}

	ranked := make([]scored, 0, len(m.tokens))
	for _, token := range m.tokens {
		var daily float64
		if token.PriceChange24h != nil {
			daily = *token.PriceChange24h
		}
		hourly, _ := token.PriceChange(time.Hour, now)
		volume, _ := token.VolumeChange(time.Hour, now)

		ranked = append(ranked, scored{
			token: token,
			score: hourly*0.4 + daily*0.3 + volume*0.3,
		})
	}

	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	return lo.Map(lo.Slice(ranked, 0, limit), func(s scored, _ int) Token { return s.token.snapshot() })
}

// NewListings returns copies of tokens first seen within the given
// number of days, newest first.
func (m *Monitor) NewListings(days, limit int) []Token {
	cutoff := m.now().AddDate(0, 0, -days)

	m.mu.Lock()
	defer m.mu.Unlock()

	recent := lo.Filter(lo.Values(m.tokens), func(t *Token, _ int) bool {
		return !t.CreatedAt.Before(cutoff)
	})

	sort.Slice(recent, func(i, j int) bool { return recent[i].CreatedAt.After(recent[j].CreatedAt) })

	return lo.Map(lo.Slice(recent, 0, limit), func(t *Token, _ int) Token { return t.snapshot() })
}

// Search matches tokens by name or symbol substring, highest market cap
// first. The returned tokens are copies.
func (m *Monitor) Search(query string, limit int) []Token {
	query = strings.ToLower(query)

	m.mu.Lock()
	defer m.mu.Unlock()

	matched := lo.Filter(lo.Values(m.tokens), func(t *Token, _ int) bool {
		return strings.Contains(strings.ToLower(t.Name), query) ||
			strings.Contains(strings.ToLower(t.Symbol), query)
	})

	marketCap := func(t *Token) float64 {
		if t.MarketCap == nil {
			return 0
		}
		return *t.MarketCap
	}
	sort.Slice(matched, func(i, j int) bool { return marketCap(matched[i]) > marketCap(matched[j]) })

	return lo.Map(lo.Slice(matched, 0, limit), func(t *Token, _ int) Token { return t.snapshot() })
}

// Save writes tokens and alerts to their stores. In-memory state stays
// authoritative on failure.
func (m *Monitor) Save(tokens, alerts storage.Store) bool {
	m.mu.Lock()

	tokenRecords := make(map[string]json.RawMessage, len(m.tokens))
	for id, token := range m.tokens {
		data, err := json.Marshal(token)
		if err != nil {
			m.mu.Unlock()
			m.log.WithError(err).Error("token serialization failed")
			return false
		}
		tokenRecords[id] = data
	}

	alertRecords := make(map[string]json.RawMessage, len(m.alerts))
	for id, alert := range m.alerts {
		data, err := json.Marshal(alert)
		if err != nil {
			m.mu.Unlock()
			m.log.WithError(err).Error("sniper alert serialization failed")
			return false
		}
		alertRecords[id] = data
	}
	m.mu.Unlock()

	if err := tokens.Replace(tokenRecords); err != nil {
		m.log.WithError(err).Error("token save failed")
		return false
	}
	if err := alerts.Replace(alertRecords); err != nil {
		m.log.WithError(err).Error("sniper alert save failed")
		return false
	}
	return true
}

func (m *Monitor) Load(tokens, alerts storage.Store) bool {
	tokenRecords, err := tokens.All()
	if err != nil {
		m.log.WithError(err).Error("token load failed")
		return false
	}

	alertRecords, err := alerts.All()
	if err != nil {
		m.log.WithError(err).Error("sniper alert load failed")
		return false
	}

	loadedTokens := make(map[string]*Token, len(tokenRecords))
	for id, data := range tokenRecords {
		var token Token
		if err := json.Unmarshal(data, &token); err != nil {
			m.log.WithError(err).Error("token deserialization failed")
			return false
		}
		loadedTokens[id] = &token
	}

	loadedAlerts := make(map[string]*Alert, len(alertRecords))
	for id, data := range alertRecords {
		var alert Alert
		if err := json.Unmarshal(data, &alert); err != nil {
			m.log.WithError(err).Error("sniper alert deserialization failed")
			return false
		}
		loadedAlerts[id] = &alert
	}

	m.mu.Lock()
	m.tokens = loadedTokens
	m.alerts = loadedAlerts
	m.mu.Unlock()

	m.log.Infof("loaded %d tokens and %d sniper alerts", len(loadedTokens), len(loadedAlerts))
	return true
}

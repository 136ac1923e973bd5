package alert

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/raykavin/coinsentry/pkg/core"
	"github.com/raykavin/coinsentry/pkg/logger"
	"github.com/raykavin/coinsentry/pkg/storage"
)

// stopGracePeriod bounds how long Stop waits for the polling loop to exit
const stopGracePeriod = 5 * time.Second

// Resolver returns the market data feeder for a named exchange
type Resolver func(exchange string) (core.Feeder, error)

// NotifyFunc is invoked once for each alert that fires, with the price
// that triggered it
type NotifyFunc func(alert *Alert, price float64)

// Registry holds price alerts and polls ticker prices in the background
type Registry struct {
	mu            sync.Mutex
	alerts        map[string]*Alert
	resolve       Resolver
	notify        NotifyFunc
	checkInterval time.Duration
	log           logger.Logger

	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewRegistry creates a price alert registry. The resolver and notify
// callback decouple the registry from exchange clients and presentation.
func NewRegistry(resolve Resolver, notify NotifyFunc, checkInterval time.Duration, log logger.Logger) *Registry {
	return &Registry{
		alerts:        make(map[string]*Alert),
		resolve:       resolve,
		notify:        notify,
		checkInterval: checkInterval,
		log:           log,
	}
}

// Add registers a new price alert
func (r *Registry) Add(alert *Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.alerts[alert.ID] = alert
	r.log.Infof("added price alert %s for %s on %s", alert.ID, alert.Symbol, alert.Exchange)
}

// Remove deletes a price alert by id
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.alerts[id]; !ok {
		return ErrNotFound
	}

	delete(r.alerts, id)
	r.log.Infof("removed price alert %s", id)
	return nil
}

// Get returns a specific alert by id
func (r *Registry) Get(id string) (*Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	alert, ok := r.alerts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return alert, nil
}

// ForOwner returns all alerts belonging to an owner
func (r *Registry) ForOwner(owner int64) []*Alert {
	r.mu.Lock()
	defer r.mu.Unlock()

	alerts := make([]*Alert, 0)
	for _, alert := range r.alerts {
		if alert.Owner == owner {
			alerts = append(alerts, alert)
		}
	}
	return alerts
}

// Len returns the number of registered alerts
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.alerts)
}

// Start launches the background price monitoring loop.
// Calling Start on a running registry is a no-op.
func (r *Registry) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.running = true
	r.cancel = cancel
	r.done = make(chan struct{})

	go r.monitor(ctx)
	r.log.Info("price alert monitoring started")
}

// Stop terminates the monitoring loop and waits for it to exit,
// bounded by a grace period. Stop is idempotent.
func (r *Registry) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(stopGracePeriod):
		r.log.Warn("price alert monitor did not stop within grace period")
	}

	r.log.Info("price alert monitoring stopped")
}

// monitor runs the poll-sleep loop until the context is cancelled
func (r *Registry) monitor(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.checkAlerts(ctx)
		}
	}
}

type pairKey struct {
	exchange string
	symbol   string
}

// checkAlerts evaluates all pending alerts against current prices.
// Alerts are grouped by (exchange, symbol) so that each distinct pair
// costs at most one price fetch per cycle.
func (r *Registry) checkAlerts(ctx context.Context) {
	groups := make(map[pairKey][]*Alert)

	r.mu.Lock()
	for _, alert := range r.alerts {
		if alert.Triggered {
			continue
		}
		key := pairKey{exchange: alert.Exchange, symbol: alert.Symbol}
		groups[key] = append(groups[key], alert)
	}
	r.mu.Unlock()

	for key, alerts := range groups {
		feeder, err := r.resolve(key.exchange)
		if err != nil {
			r.log.WithError(err).Warnf("unknown exchange %s for %s alerts", key.exchange, key.symbol)
			continue
		}

		// network call happens with the registry lock released
		price, err := feeder.LastQuote(ctx, key.symbol)
		if err != nil {
			r.log.WithError(err).Warnf("failed to fetch price for %s on %s", key.symbol, key.exchange)
			continue
		}

		if price <= 0 {
			r.log.Warnf("invalid price %f for %s on %s", price, key.symbol, key.exchange)
			continue
		}

		triggered := make([]*Alert, 0)
		r.mu.Lock()
		for _, alert := range alerts {
			if !alert.Triggered && alert.IsTriggered(price) {
				alert.Triggered = true
				triggered = append(triggered, alert)
			}
		}
		r.mu.Unlock()

		for _, alert := range triggered {
			r.log.Infof("alert %s triggered: %s is %s %f", alert.ID, key.symbol, alert.Condition, alert.TargetPrice)
			r.notify(alert, price)
		}
	}
}

// Save persists all alerts to the store, replacing its content.
// Returns false on failure; in-memory state is unaffected either way.
func (r *Registry) Save(store storage.Store) bool {
	r.mu.Lock()
	records := make(map[string]json.RawMessage, len(r.alerts))
	for id, alert := range r.alerts {
		data, err := json.Marshal(alert)
		if err != nil {
			r.mu.Unlock()
			r.log.WithError(err).Errorf("failed to serialize alert %s", id)
			return false
		}
		records[id] = data
	}
	r.mu.Unlock()

	if err := store.Replace(records); err != nil {
		r.log.WithError(err).Error("failed to save alerts")
		return false
	}

	r.log.Infof("saved %d alerts", len(records))
	return true
}

// Load replaces all alerts with the store's content.
// Returns false on failure, leaving the registry unchanged.
func (r *Registry) Load(store storage.Store) bool {
	records, err := store.All()
	if err != nil {
		r.log.WithError(err).Error("failed to load alerts")
		return false
	}

	alerts := make(map[string]*Alert, len(records))
	for id, data := range records {
		alert := new(Alert)
		if err := json.Unmarshal(data, alert); err != nil {
			r.log.WithError(err).Errorf("failed to parse alert %s", id)
			return false
		}
		alerts[id] = alert
	}

	r.mu.Lock()
	r.alerts = alerts
	r.mu.Unlock()

	r.log.Infof("loaded %d alerts", len(alerts))
	return true
}

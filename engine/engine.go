// Package engine wires the alert registry, strategy manager, sniper
// monitor and scheduler into one market monitoring service.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/raykavin/coinsentry/internal/config"
	"github.com/raykavin/coinsentry/pkg/alert"
	"github.com/raykavin/coinsentry/pkg/core"
	"github.com/raykavin/coinsentry/pkg/logger"
	"github.com/raykavin/coinsentry/pkg/notification"
	"github.com/raykavin/coinsentry/pkg/scheduler"
	"github.com/raykavin/coinsentry/pkg/sniper"
	"github.com/raykavin/coinsentry/pkg/storage"
	"github.com/raykavin/coinsentry/pkg/strategy"
)

var ErrUnknownExchange = errors.New("unknown exchange")

// digestTaskID names the recurring trending digest task
const digestTaskID = "trending_digest"

// autoBuyQuote is the quote asset used for sniper auto-buy orders
const autoBuyQuote = "USDT"

// Stores holds one durable store per registry
type Stores struct {
	Alerts       storage.Store
	Strategies   storage.Store
	Tokens       storage.Store
	SniperAlerts storage.Store
}

// Dependencies carries the collaborators injected into the engine
type Dependencies struct {
	Feeders  map[string]core.Feeder
	Broker   core.Broker
	Source   core.TokenSource
	Notifier core.Notifier
	Stores   Stores
	Config   config.EngineConfig
	Log      logger.Logger
}

// Engine owns the three monitors and the scheduler that drives
// periodic strategy execution.
type Engine struct {
	alerts     *alert.Registry
	strategies *strategy.Manager
	sniper     *sniper.Monitor
	scheduler  *scheduler.Scheduler

	broker   core.Broker
	notifier core.Notifier
	stores   Stores
	log      logger.Logger
}

func New(deps Dependencies) (*Engine, error) {
	if deps.Notifier == nil {
		return nil, errors.New("notifier is required")
	}
	if deps.Source == nil {
		return nil, errors.New("token source is required")
	}

	e := &Engine{
		broker:   deps.Broker,
		notifier: deps.Notifier,
		stores:   deps.Stores,
		log:      deps.Log,
	}

	resolve := func(exchange string) (core.Feeder, error) {
		feeder, ok := deps.Feeders[strings.ToLower(exchange)]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownExchange, exchange)
		}
		return feeder, nil
	}

	e.alerts = alert.NewRegistry(resolve, e.onAlertTriggered,
		deps.Config.AlertCheckInterval, deps.Log.WithField("component", "alerts"))

	e.strategies = strategy.NewManager(resolve, e.onSignal,
		deps.Log.WithField("component", "strategies"))

	e.sniper = sniper.NewMonitor(deps.Source, e.onSniperMatch, e.onAutoBuy,
		deps.Config.SniperCheckInterval, deps.Log.WithField("component", "sniper"))

	e.scheduler = scheduler.NewScheduler(deps.Log.WithField("component", "scheduler"))

	if deps.Config.DigestInterval != "" {
		if err := e.scheduler.Schedule(digestTaskID, deps.Config.DigestInterval, e.sendTrendingDigest); err != nil {
			return nil, fmt.Errorf("schedule trending digest: %w", err)
		}
	}

	return e, nil
}

// Start loads the registries from their stores and starts all monitors
func (e *Engine) Start() {
	if !e.alerts.Load(e.stores.Alerts) {
		e.log.Warn("price alerts could not be loaded, starting empty")
	}
	if !e.strategies.Load(e.stores.Strategies) {
		e.log.Warn("strategies could not be loaded, starting empty")
	}
	if !e.sniper.Load(e.stores.Tokens, e.stores.SniperAlerts) {
		e.log.Warn("sniper state could not be loaded, starting empty")
	}

	e.alerts.Start()
	e.sniper.Start()
	e.scheduler.Start()

	e.log.Info("engine started")
}

// Stop stops all monitors and saves the registries
func (e *Engine) Stop() {
	e.scheduler.Stop()
	e.sniper.Stop()
	e.alerts.Stop()

	e.saveAlerts()
	e.saveStrategies()
	e.saveSniper()

	e.log.Info("engine stopped")
}

// AddAlert registers a price alert and persists the registry
func (e *Engine) AddAlert(owner int64, symbol, exchange string, targetPrice float64, condition alert.Condition) (*alert.Alert, error) {
	a, err := alert.New(owner, symbol, exchange, targetPrice, condition)
	if err != nil {
		return nil, err
	}

	e.alerts.Add(a)
	e.saveAlerts()
	return a, nil
}

func (e *Engine) RemoveAlert(id string) error {
	if err := e.alerts.Remove(id); err != nil {
		return err
	}
	e.saveAlerts()
	return nil
}

func (e *Engine) AlertsForOwner(owner int64) []*alert.Alert {
	return e.alerts.ForOwner(owner)
}

// AddStrategy registers a strategy and persists the registry
func (e *Engine) AddStrategy(name, symbol, exchange string, typ strategy.Type, params strategy.Params) (*strategy.Strategy, error) {
	s, err := strategy.New(name, symbol, exchange, typ, params, e.log.WithField("strategy", name))
	if err != nil {
		return nil, err
	}

	if err := e.strategies.Add(s); err != nil {
		return nil, err
	}
	e.saveStrategies()
	return s, nil
}

// RemoveStrategy drops a strategy and any scheduled executions of it
func (e *Engine) RemoveStrategy(name string) error {
	if err := e.strategies.Remove(name); err != nil {
		return err
	}

	// a strategy without scheduled runs is fine
	_ = e.scheduler.Cancel(name)

	e.saveStrategies()
	return nil
}

func (e *Engine) Strategies() []*strategy.Strategy {
	return e.strategies.List()
}

func (e *Engine) StrategiesForSymbol(symbol, exchange string) []*strategy.Strategy {
	return e.strategies.StrategiesForSymbol(symbol, exchange)
}

// ExecuteStrategy runs one strategy immediately
func (e *Engine) ExecuteStrategy(ctx context.Context, name string) (core.Signal, error) {
	signal, err := e.strategies.Execute(ctx, name)
	if err != nil {
		return signal, err
	}
	e.saveStrategies()
	return signal, nil
}

// WatchStrategy schedules recurring execution of a strategy
func (e *Engine) WatchStrategy(name, interval string) error {
	if _, err := e.strategies.Get(name); err != nil {
		return err
	}

	return e.scheduler.Schedule(name, interval, func() {
		if _, err := e.strategies.Execute(context.Background(), name); err != nil {
			e.log.WithError(err).WithField("strategy", name).Warn("scheduled execution failed")
		} else {
			e.saveStrategies()
		}
	})
}

// UnwatchStrategy cancels the scheduled executions of a strategy
func (e *Engine) UnwatchStrategy(name string) error {
	return e.scheduler.Cancel(name)
}

func (e *Engine) ScheduledTasks() []scheduler.Task {
	return e.scheduler.Tasks()
}

// AddSniperAlert registers a sniper alert and persists the registry
func (e *Engine) AddSniperAlert(owner int64, cfg sniper.AlertConfig) *sniper.Alert {
	a := sniper.NewAlert(owner, cfg)
	e.sniper.AddAlert(a)
	e.saveSniper()
	return a
}

func (e *Engine) RemoveSniperAlert(id string) error {
	if err := e.sniper.RemoveAlert(id); err != nil {
		return err
	}
	e.saveSniper()
	return nil
}

func (e *Engine) SniperAlertsForOwner(owner int64) []*sniper.Alert {
	return e.sniper.AlertsForOwner(owner)
}

func (e *Engine) TrendingTokens(limit int) []sniper.Token {
	return e.sniper.Trending(limit)
}

func (e *Engine) NewTokenListings(days, limit int) []sniper.Token {
	return e.sniper.NewListings(days, limit)
}

func (e *Engine) SearchTokens(query string, limit int) []sniper.Token {
	return e.sniper.Search(query, limit)
}

func (e *Engine) onAlertTriggered(a *alert.Alert, price float64) {
	e.notifier.Notify(notification.FormatPriceAlert(a, price))
	e.saveAlerts()
}

func (e *Engine) onSignal(s *strategy.Strategy, signal core.Signal) {
	e.notifier.Notify(notification.FormatSignal(s, signal))
}

func (e *Engine) onSniperMatch(a *sniper.Alert, t sniper.Token) {
	e.notifier.Notify(notification.FormatSniperMatch(a, t))
	e.saveSniper()
}

func (e *Engine) onAutoBuy(a *sniper.Alert, t sniper.Token, quoteAmount float64) {
	if e.broker == nil {
		e.log.Warn("auto-buy requested but no broker is configured")
		return
	}

	pair := strings.ToUpper(t.Symbol) + "/" + autoBuyQuote
	if err := e.broker.CreateOrderMarketQuote(context.Background(), core.SideTypeBuy, pair, quoteAmount); err != nil {
		e.notifier.OnError(fmt.Errorf("auto-buy %s for alert %s: %w", pair, a.ID, err))
		return
	}

	e.notifier.Notify(fmt.Sprintf("💸 Auto-buy executed: %.2f %s of %s", quoteAmount, autoBuyQuote, t.Symbol))
}

func (e *Engine) sendTrendingDigest() {
	e.notifier.Notify(notification.FormatTrending(e.sniper.Trending(10)))
}

func (e *Engine) saveAlerts() {
	if !e.alerts.Save(e.stores.Alerts) {
		e.log.Error("price alert save failed")
	}
}

func (e *Engine) saveStrategies() {
	if !e.strategies.Save(e.stores.Strategies) {
		e.log.Error("strategy save failed")
	}
}

func (e *Engine) saveSniper() {
	if !e.sniper.Save(e.stores.Tokens, e.stores.SniperAlerts) {
		e.log.Error("sniper state save failed")
	}
}

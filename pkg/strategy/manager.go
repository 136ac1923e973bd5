package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/raykavin/coinsentry/pkg/core"
	"github.com/raykavin/coinsentry/pkg/logger"
	"github.com/raykavin/coinsentry/pkg/storage"
)

// Resolver maps an exchange name to its candle feed.
type Resolver func(exchange string) (core.Feeder, error)

// SignalCallback receives every non-HOLD signal produced by Execute.
type SignalCallback func(s *Strategy, signal core.Signal)

type Manager struct {
	mu         sync.Mutex
	strategies map[string]*Strategy

	resolve  Resolver
	callback SignalCallback
	log      logger.Logger
}

func NewManager(resolve Resolver, callback SignalCallback, log logger.Logger) *Manager {
	return &Manager{
		strategies: make(map[string]*Strategy),
		resolve:    resolve,
		callback:   callback,
		log:        log,
	}
}

func (m *Manager) Add(s *Strategy) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.strategies[s.Name]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, s.Name)
	}

	m.strategies[s.Name] = s
	m.log.WithFields(map[string]any{
		"strategy": s.Name,
		"type":     string(s.Type),
		"symbol":   s.Symbol,
	}).Info("strategy added")

	return nil
}

func (m *Manager) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.strategies[name]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	delete(m.strategies, name)
	return nil
}

func (m *Manager) Get(name string) (*Strategy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.strategies[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return s, nil
}

func (m *Manager) List() []*Strategy {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Strategy, 0, len(m.strategies))
	for _, s := range m.strategies {
		out = append(out, s)
	}
	return out
}

// StrategiesForSymbol filters the registry by trading pair.
func (m *Manager) StrategiesForSymbol(symbol, exchange string) []*Strategy {
	m.mu.Lock()
	defer m.mu.Unlock()

	exchange = strings.ToLower(exchange)

	var out []*Strategy
	for _, s := range m.strategies {
		if s.Symbol == symbol && s.Exchange == exchange {
			out = append(out, s)
		}
	}
	return out
}

// Execute analyzes the named strategy and forwards non-HOLD signals to
// the callback. The feed call runs outside the registry lock.
func (m *Manager) Execute(ctx context.Context, name string) (core.Signal, error) {
	s, err := m.Get(name)
	if err != nil {
		return core.SignalHold, err
	}

	feeder, err := m.resolve(s.Exchange)
	if err != nil {
		return core.SignalHold, fmt.Errorf("resolve exchange %s: %w", s.Exchange, err)
	}

	signal := s.Analyze(ctx, feeder)
	if signal != core.SignalHold && m.callback != nil {
		m.callback(s, signal)
	}

	return signal, nil
}

type record struct {
	Name       string     `json:"name"`
	Symbol     string     `json:"symbol"`
	Exchange   string     `json:"exchange"`
	Type       Type       `json:"strategy_type"`
	Params     Params     `json:"params"`
	LastSignal string     `json:"last_signal,omitempty"`
	LastUpdate *time.Time `json:"last_update,omitempty"`
}

func (m *Manager) Save(store storage.Store) bool {
	m.mu.Lock()
	records := make(map[string]json.RawMessage, len(m.strategies))
	for name, s := range m.strategies {
		rec := record{
			Name:       s.Name,
			Symbol:     s.Symbol,
			Exchange:   s.Exchange,
			Type:       s.Type,
			Params:     s.Params,
			LastSignal: string(s.LastSignal()),
		}
		if updated := s.LastUpdate(); !updated.IsZero() {
			rec.LastUpdate = &updated
		}

		data, err := json.Marshal(rec)
		if err != nil {
			m.mu.Unlock()
			m.log.WithError(err).Error("strategy serialization failed")
			return false
		}
		records[name] = data
	}
	m.mu.Unlock()

	if err := store.Replace(records); err != nil {
		m.log.WithError(err).Error("strategy save failed")
		return false
	}
	return true
}

func (m *Manager) Load(store storage.Store) bool {
	records, err := store.All()
	if err != nil {
		m.log.WithError(err).Error("strategy load failed")
		return false
	}

	loaded := make(map[string]*Strategy, len(records))
	for name, data := range records {
		var rec record
		if err := json.Unmarshal(data, &rec); err != nil {
			m.log.WithError(err).Error("strategy deserialization failed")
			return false
		}

		s, err := New(rec.Name, rec.Symbol, rec.Exchange, rec.Type, rec.Params, m.log)
		if err != nil {
			m.log.WithError(err).WithField("strategy", rec.Name).Error("stored strategy rejected")
			return false
		}

		var updated time.Time
		if rec.LastUpdate != nil {
			updated = *rec.LastUpdate
		}
		s.restore(core.Signal(rec.LastSignal), updated)
		loaded[name] = s
	}

	m.mu.Lock()
	m.strategies = loaded
	m.mu.Unlock()

	m.log.Infof("loaded %d strategies", len(loaded))
	return true
}

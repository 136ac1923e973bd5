package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/raykavin/coinsentry/engine"
	"github.com/raykavin/coinsentry/internal/config"
	"github.com/raykavin/coinsentry/pkg/core"
	"github.com/raykavin/coinsentry/pkg/discovery"
	"github.com/raykavin/coinsentry/pkg/exchange/binance"
	"github.com/raykavin/coinsentry/pkg/logger"
	"github.com/raykavin/coinsentry/pkg/logger/zerolog"
	"github.com/raykavin/coinsentry/pkg/notification"
	"github.com/raykavin/coinsentry/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := zerolog.New(cfg.LogLevel, time.RFC3339, true, false)
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("coinsentry failed")
	}
}

func run(cfg *config.Config, log logger.Logger) error {
	ctx := context.Background()

	// Exchange client
	options := []binance.Option{
		binance.WithCredentials(cfg.Binance.APIKey, cfg.Binance.SecretKey),
	}
	if cfg.Binance.UseTestnet {
		options = append(options, binance.WithTestnet())
	}

	exchange, err := binance.New(ctx, options...)
	if err != nil {
		return err
	}

	// Notification channel
	var notifier core.Notifier
	if cfg.Telegram.Enabled {
		notifier, err = notification.NewTelegram(cfg.Telegram.Token, cfg.Telegram.Users)
		if err != nil {
			return err
		}
	} else {
		notifier = notification.NewLog(log)
	}

	stores, err := openStores(cfg.Storage)
	if err != nil {
		return err
	}

	e, err := engine.New(engine.Dependencies{
		Feeders:  map[string]core.Feeder{"binance": exchange},
		Broker:   exchange,
		Source:   discovery.NewCoinGecko(log.WithField("component", "discovery")),
		Notifier: notifier,
		Stores:   stores,
		Config:   cfg.Engine,
		Log:      log,
	})
	if err != nil {
		return err
	}

	e.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	e.Stop()
	return nil
}

func openStores(cfg config.StorageConfig) (engine.Stores, error) {
	open := func(path string) (storage.Store, error) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		return storage.FromFile(path)
	}

	var stores engine.Stores
	var err error

	if stores.Alerts, err = open(cfg.AlertsPath); err != nil {
		return stores, err
	}
	if stores.Strategies, err = open(cfg.StrategiesPath); err != nil {
		return stores, err
	}
	if stores.Tokens, err = open(cfg.TokensPath); err != nil {
		return stores, err
	}
	if stores.SniperAlerts, err = open(cfg.SniperAlertsPath); err != nil {
		return stores, err
	}

	return stores, nil
}

// Package config handles application configuration management using Viper
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
	str2duration "github.com/xhit/go-str2duration/v2"
)

// Defaults for check intervals and storage locations
const (
	DefaultAlertInterval  = "1m"
	DefaultSniperInterval = "1m"
	DefaultDigestInterval = "1d"
	DefaultStorageDir     = "./data"
)

// Config holds the application configuration
type Config struct {
	LogLevel string

	Binance  BinanceConfig
	Telegram TelegramConfig
	Engine   EngineConfig
	Storage  StorageConfig
}

// BinanceConfig holds Binance exchange configuration
type BinanceConfig struct {
	APIKey     string
	SecretKey  string
	UseTestnet bool
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	Enabled bool
	Token   string
	Users   []int64
}

// EngineConfig holds monitor check intervals
type EngineConfig struct {
	AlertCheckInterval  time.Duration
	SniperCheckInterval time.Duration
	DigestInterval      string
}

// StorageConfig holds the registry persistence file paths
type StorageConfig struct {
	AlertsPath       string
	StrategiesPath   string
	TokensPath       string
	SniperAlertsPath string
}

// Load reads the configuration from environment variables
func Load() (*Config, error) {
	viper.AutomaticEnv()

	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("BINANCE_USE_TESTNET", false)
	viper.SetDefault("TELEGRAM_ENABLED", false)
	viper.SetDefault("ALERT_CHECK_INTERVAL", DefaultAlertInterval)
	viper.SetDefault("SNIPER_CHECK_INTERVAL", DefaultSniperInterval)
	viper.SetDefault("TRENDING_DIGEST_INTERVAL", DefaultDigestInterval)
	viper.SetDefault("STORAGE_DIR", DefaultStorageDir)

	alertInterval, err := str2duration.ParseDuration(viper.GetString("ALERT_CHECK_INTERVAL"))
	if err != nil {
		return nil, fmt.Errorf("invalid ALERT_CHECK_INTERVAL: %w", err)
	}

	sniperInterval, err := str2duration.ParseDuration(viper.GetString("SNIPER_CHECK_INTERVAL"))
	if err != nil {
		return nil, fmt.Errorf("invalid SNIPER_CHECK_INTERVAL: %w", err)
	}

	storageDir := viper.GetString("STORAGE_DIR")

	config := &Config{
		LogLevel: viper.GetString("LOG_LEVEL"),
		Binance: BinanceConfig{
			APIKey:     viper.GetString("BINANCE_API_KEY"),
			SecretKey:  viper.GetString("BINANCE_SECRET_KEY"),
			UseTestnet: viper.GetBool("BINANCE_USE_TESTNET"),
		},
		Telegram: TelegramConfig{
			Enabled: viper.GetBool("TELEGRAM_ENABLED"),
			Token:   viper.GetString("TELEGRAM_TOKEN"),
			Users:   telegramUsers(),
		},
		Engine: EngineConfig{
			AlertCheckInterval:  alertInterval,
			SniperCheckInterval: sniperInterval,
			DigestInterval:      viper.GetString("TRENDING_DIGEST_INTERVAL"),
		},
		Storage: StorageConfig{
			AlertsPath:       storageDir + "/alerts.db",
			StrategiesPath:   storageDir + "/strategies.db",
			TokensPath:       storageDir + "/tokens.db",
			SniperAlertsPath: storageDir + "/sniper_alerts.db",
		},
	}

	if config.Telegram.Enabled && config.Telegram.Token == "" {
		return nil, fmt.Errorf("telegram is enabled but TELEGRAM_TOKEN is empty")
	}

	return config, nil
}

func telegramUsers() []int64 {
	var users []int64
	for _, id := range viper.GetIntSlice("TELEGRAM_USERS") {
		users = append(users, int64(id))
	}
	return users
}

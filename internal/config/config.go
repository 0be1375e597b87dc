// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Log      LogConfig      `mapstructure:"log"`
	Session  SessionConfig  `mapstructure:"session"`
	Referral ReferralConfig `mapstructure:"referral"`
	Games    GamesConfig    `mapstructure:"games"`
}

// ServerConfig holds HTTP listener configuration.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// AdminConfig holds admin user configuration.
type AdminConfig struct {
	IDs []int64 `mapstructure:"ids"`
}

// LogConfig controls the global zerolog logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "console" or "json"
}

// SessionConfig holds wager session engine settings.
type SessionConfig struct {
	InactivityTimeout time.Duration     `mapstructure:"inactivity_timeout"`
	CreditRetry       CreditRetryConfig `mapstructure:"credit_retry"`
}

// CreditRetryConfig bounds the exponential backoff used when a settlement
// credit fails. Retries never give up on their own.
type CreditRetryConfig struct {
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
}

// ReferralConfig holds referral commission configuration.
type ReferralConfig struct {
	Percent int64 `mapstructure:"percent"`
}

// GamesConfig holds game-specific configuration.
type GamesConfig struct {
	Mines MinesConfig `mapstructure:"mines"`
	Tower TowerConfig `mapstructure:"tower"`
}

// MinesConfig holds flat grid configuration. Bets are in minor units.
type MinesConfig struct {
	Size     int   `mapstructure:"size"`
	MinMines int   `mapstructure:"min_mines"`
	MaxMines int   `mapstructure:"max_mines"`
	MinBet   int64 `mapstructure:"min_bet"`
	MaxBet   int64 `mapstructure:"max_bet"`
}

// TowerConfig holds layered ladder configuration. Multipliers are keyed by
// the number of bombs per floor.
type TowerConfig struct {
	Floors      int                  `mapstructure:"floors"`
	Cells       int                  `mapstructure:"cells"`
	MinBet      int64                `mapstructure:"min_bet"`
	MaxBet      int64                `mapstructure:"max_bet"`
	Multipliers map[string][]float64 `mapstructure:"multipliers"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Tables converts the configured multiplier tables to bomb-count keys.
func (t *TowerConfig) Tables() (map[int][]float64, error) {
	tables := make(map[int][]float64, len(t.Multipliers))
	for key, table := range t.Multipliers {
		bombs, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("invalid tower multiplier key %q: %w", key, err)
		}
		tables[bombs] = table
	}
	return tables, nil
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// e.g., DATABASE_HOST, SESSION_INACTIVITY_TIMEOUT
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file is optional, env vars can provide everything
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// DefaultTowerMultipliers are the per-floor payout tables keyed by bombs per floor.
func DefaultTowerMultipliers() map[string][]float64 {
	return map[string][]float64{
		"1": {1.19, 1.42, 1.69, 2.01, 2.39, 2.85},
		"2": {1.45, 2.10, 3.04, 4.41, 6.39, 9.26},
		"3": {2.08, 4.33, 9.03, 18.80, 39.2, 81.7},
		"4": {4.15, 17.2, 71.5, 297.0, 1235.0, 5144.0},
	}
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "15s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "festery")
	v.SetDefault("database.name", "festery")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("session.inactivity_timeout", "5m")
	v.SetDefault("session.credit_retry.initial_interval", "200ms")
	v.SetDefault("session.credit_retry.max_interval", "30s")

	v.SetDefault("referral.percent", 2)

	v.SetDefault("games.mines.size", 5)
	v.SetDefault("games.mines.min_mines", 2)
	v.SetDefault("games.mines.max_mines", 24)
	v.SetDefault("games.mines.min_bet", 10)
	v.SetDefault("games.mines.max_bet", 1000000)

	v.SetDefault("games.tower.floors", 6)
	v.SetDefault("games.tower.cells", 5)
	v.SetDefault("games.tower.min_bet", 10)
	v.SetDefault("games.tower.max_bet", 1000000)
	v.SetDefault("games.tower.multipliers", DefaultTowerMultipliers())
}

// IsAdmin checks if a user ID is in the admin list.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Admin.IDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Package config loads runtime settings from YAML, .env, and the process
// environment, in that order of precedence (environment wins).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tradeforge/backtester/internal/backtest"
	"github.com/tradeforge/backtester/internal/strategy"
	"github.com/tradeforge/backtester/internal/tfutils"
)

type Config struct {
	WallexAPIKey string `yaml:"wallex_api_key"`
	DBConnStr    string `yaml:"db_conn_str"`
	LogLevel     string `yaml:"log_level"`

	Symbol    string `yaml:"symbol"`
	Timeframe string `yaml:"timeframe"`
	From      string `yaml:"from"`
	To        string `yaml:"to"`

	Strategy string         `yaml:"strategy"`
	Params   map[string]any `yaml:"params"`

	InitialCapital float64 `yaml:"initial_capital"`
	StopLoss       float64 `yaml:"stop_loss"`
	TakeProfit     float64 `yaml:"take_profit"`
	PositionSize   float64 `yaml:"position_size"`
	CommissionRate float64 `yaml:"commission_rate"`
	PeriodsPerYear float64 `yaml:"periods_per_year"`

	CacheEntries int           `yaml:"cache_entries"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`
	SweepWorkers int           `yaml:"sweep_workers"`
}

// Default returns the configuration used when nothing is specified.
func Default() Config {
	return Config{
		LogLevel:       "info",
		Symbol:         "BTC-USDT",
		Timeframe:      "1d",
		Strategy:       "ma_crossover",
		InitialCapital: 10000,
		StopLoss:       0.05,
		TakeProfit:     0.10,
		PositionSize:   1.0,
		CommissionRate: 0.001,
		CacheEntries:   10,
		CacheTTL:       15 * time.Minute,
		SweepWorkers:   4,
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// non-empty), then .env and process environment overrides for credentials.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file: %w", err)
		}
	}

	// .env is optional; absence is not an error.
	_ = godotenv.Load()

	if v := os.Getenv("WALLEX_API_KEY"); v != "" {
		cfg.WallexAPIKey = v
	}
	if v := os.Getenv("DB_CONN_STR"); v != "" {
		cfg.DBConnStr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	return cfg, nil
}

// RunConfig converts the settings into the engine's run configuration.
func (c Config) RunConfig() backtest.RunConfig {
	return backtest.RunConfig{
		Strategy:       c.Strategy,
		Params:         c.Params,
		InitialCapital: c.InitialCapital,
		StopLoss:       c.StopLoss,
		TakeProfit:     c.TakeProfit,
		PositionSize:   c.PositionSize,
		CommissionRate: c.CommissionRate,
		PeriodsPerYear: c.PeriodsPerYear,
	}
}

// Range parses the backtest window. An empty From defaults to two years ago,
// an empty To to now.
func (c Config) Range() (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from := now.AddDate(-2, 0, 0)
	to := now

	var err error
	if c.From != "" {
		from, err = time.Parse("2006-01-02", c.From)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: from date %q: %v", strategy.ErrInvalidParameter, c.From, err)
		}
	}
	if c.To != "" {
		to, err = time.Parse("2006-01-02", c.To)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: to date %q: %v", strategy.ErrInvalidParameter, c.To, err)
		}
	}
	if !from.Before(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: from %s is not before to %s",
			strategy.ErrInvalidParameter, from.Format("2006-01-02"), to.Format("2006-01-02"))
	}
	return from, to, nil
}

// Validate checks the settings eagerly so failures surface before any data
// is fetched.
func (c Config) Validate() error {
	if !tfutils.IsValidTimeframe(c.Timeframe) {
		return fmt.Errorf("%w: unsupported timeframe %q", strategy.ErrInvalidParameter, c.Timeframe)
	}
	if _, _, err := c.Range(); err != nil {
		return err
	}
	return c.RunConfig().Validate()
}

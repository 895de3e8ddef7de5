// Package config loads the bot settings from YAML and credentials from the environment.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/trendbot/internal/domain"
)

const (
	PlatformBinance     = "binance"
	PlatformBybit       = "bybit"
	PlatformHyperliquid = "hyperliquid"
	PlatformSimulate    = "simulate"
)

const (
	defaultPair                 = "BTC_USDT"
	defaultCandleInterval       = "1h"
	defaultShortWindow          = 5
	defaultLongWindow           = 10
	defaultPollInterval         = 20 * time.Second
	defaultCallTimeout          = 10 * time.Second
	defaultReadRetries          = 2
	defaultRiskFraction         = "0.02"
	defaultStopLossFraction     = "0.05"
	defaultMinOrderNotional     = "10"
	defaultSimulateQuoteBalance = "10000"
	defaultCertCache            = "certs"
)

// Config is the validated runtime configuration of one bot.
type Config struct {
	Platform       string
	Pair           domain.Pair
	CandleInterval string
	ShortWindow    int
	LongWindow     int
	// HistorySize is how many candles are requested per cycle.
	HistorySize       int
	PollInterval      time.Duration
	CallTimeout       time.Duration
	ReadRetries       int
	Risk              domain.RiskParameters
	StopLossFraction  decimal.Decimal
	HaltOnUnprotected bool

	LogLevel             string
	LedgerWALDir         string
	AlertWebhookURL      string
	DashboardAddr        string
	DashboardDomains     []string
	DashboardCertCache   string
	SimulateQuoteBalance decimal.Decimal
}

// ConfigTmp is the on-disk YAML shape. Money values are strings so they parse exactly.
type ConfigTmp struct {
	Platform             string        `yaml:"platform"`
	Pair                 string        `yaml:"pair"`
	CandleInterval       string        `yaml:"candle_interval,omitempty"`
	ShortWindow          int           `yaml:"short_window,omitempty"`
	LongWindow           int           `yaml:"long_window,omitempty"`
	HistorySize          int           `yaml:"history_size,omitempty"`
	PollInterval         time.Duration `yaml:"poll_interval,omitempty"`
	CallTimeout          time.Duration `yaml:"call_timeout,omitempty"`
	ReadRetries          *int          `yaml:"read_retries,omitempty"`
	RiskFraction         string        `yaml:"risk_fraction,omitempty"`
	StopLossFraction     string        `yaml:"stop_loss_fraction,omitempty"`
	MinOrderNotional     string        `yaml:"min_order_notional,omitempty"`
	HaltOnUnprotected    *bool         `yaml:"halt_on_unprotected,omitempty"`
	LogLevel             string        `yaml:"log_level,omitempty"`
	LedgerWALDir         string        `yaml:"ledger_wal_dir,omitempty"`
	AlertWebhookURL      string        `yaml:"alert_webhook_url,omitempty"`
	DashboardAddr        string        `yaml:"dashboard_addr,omitempty"`
	DashboardDomains     []string      `yaml:"dashboard_domains,omitempty"`
	DashboardCertCache   string        `yaml:"dashboard_cert_cache,omitempty"`
	SimulateQuoteBalance string        `yaml:"simulate_quote_balance,omitempty"`
}

// Load reads and validates a YAML config file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read config %s", path)
	}
	return Parse(data)
}

// Parse decodes YAML, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	var tmp ConfigTmp
	if err := yaml.Unmarshal(data, &tmp); err != nil {
		return Config{}, errors.Wrap(err, "decode yaml config")
	}
	return tmp.Config()
}

// Config converts the raw YAML values, filling defaults for anything omitted.
func (c ConfigTmp) Config() (Config, error) {
	pairStr := c.Pair
	if pairStr == "" {
		pairStr = defaultPair
	}
	pair, err := domain.ParsePair(pairStr)
	if err != nil {
		return Config{}, errors.Wrapf(err, "incorrect 'pair' param in yaml config: %s", c.Pair)
	}

	riskFraction, err := decimalOr(c.RiskFraction, defaultRiskFraction, "risk_fraction")
	if err != nil {
		return Config{}, err
	}
	stopLoss, err := decimalOr(c.StopLossFraction, defaultStopLossFraction, "stop_loss_fraction")
	if err != nil {
		return Config{}, err
	}
	minNotional, err := decimalOr(c.MinOrderNotional, defaultMinOrderNotional, "min_order_notional")
	if err != nil {
		return Config{}, err
	}
	simBalance, err := decimalOr(c.SimulateQuoteBalance, defaultSimulateQuoteBalance, "simulate_quote_balance")
	if err != nil {
		return Config{}, err
	}

	conf := Config{
		Platform:           strings.ToLower(strings.TrimSpace(c.Platform)),
		Pair:               pair,
		CandleInterval:     stringOr(c.CandleInterval, defaultCandleInterval),
		ShortWindow:        intOr(c.ShortWindow, defaultShortWindow),
		LongWindow:         intOr(c.LongWindow, defaultLongWindow),
		PollInterval:       durationOr(c.PollInterval, defaultPollInterval),
		CallTimeout:        durationOr(c.CallTimeout, defaultCallTimeout),
		ReadRetries:        defaultReadRetries,
		StopLossFraction:   stopLoss,
		HaltOnUnprotected:  true,
		LogLevel:           stringOr(c.LogLevel, "info"),
		LedgerWALDir:       c.LedgerWALDir,
		AlertWebhookURL:    c.AlertWebhookURL,
		DashboardAddr:      c.DashboardAddr,
		DashboardDomains:   c.DashboardDomains,
		DashboardCertCache: stringOr(c.DashboardCertCache, defaultCertCache),
		Risk: domain.RiskParameters{
			RiskFraction:     riskFraction,
			StopLossFraction: stopLoss,
			MinOrderNotional: minNotional,
		},
		SimulateQuoteBalance: simBalance,
	}
	// the full long window is the minimum the signal can use
	conf.HistorySize = intOr(c.HistorySize, conf.LongWindow)
	if c.ReadRetries != nil {
		conf.ReadRetries = *c.ReadRetries
	}
	if c.HaltOnUnprotected != nil {
		conf.HaltOnUnprotected = *c.HaltOnUnprotected
	}

	if err := conf.Validate(); err != nil {
		return Config{}, err
	}
	return conf, nil
}

// Validate checks ranges and cross-field constraints.
func (c Config) Validate() error {
	switch c.Platform {
	case PlatformBinance, PlatformBybit, PlatformHyperliquid, PlatformSimulate:
	case "":
		return errors.New("platform is required")
	default:
		return errors.Errorf("unsupported platform: %s", c.Platform)
	}
	if c.CandleInterval == "" {
		return errors.New("candle_interval is required")
	}
	if c.ShortWindow < 1 {
		return errors.Errorf("short_window must be >= 1, got %d", c.ShortWindow)
	}
	if c.LongWindow <= c.ShortWindow {
		return errors.Errorf("long_window (%d) must be greater than short_window (%d)", c.LongWindow, c.ShortWindow)
	}
	if c.HistorySize < c.LongWindow {
		return errors.Errorf("history_size (%d) must be >= long_window (%d)", c.HistorySize, c.LongWindow)
	}
	if c.PollInterval <= 0 {
		return errors.Errorf("poll_interval must be positive, got %s", c.PollInterval)
	}
	if c.CallTimeout <= 0 {
		return errors.Errorf("call_timeout must be positive, got %s", c.CallTimeout)
	}
	if c.ReadRetries < 0 {
		return errors.Errorf("read_retries must not be negative, got %d", c.ReadRetries)
	}
	if err := c.Risk.Validate(); err != nil {
		return err
	}
	if c.Platform == PlatformSimulate && c.SimulateQuoteBalance.IsNegative() {
		return errors.Errorf("simulate_quote_balance must not be negative, got %s", c.SimulateQuoteBalance)
	}
	return nil
}

// Tmp converts back to the YAML shape, e.g. for the setup wizard.
func (c Config) Tmp() ConfigTmp {
	retries := c.ReadRetries
	halt := c.HaltOnUnprotected
	return ConfigTmp{
		Platform:             c.Platform,
		Pair:                 c.Pair.String(),
		CandleInterval:       c.CandleInterval,
		ShortWindow:          c.ShortWindow,
		LongWindow:           c.LongWindow,
		HistorySize:          c.HistorySize,
		PollInterval:         c.PollInterval,
		CallTimeout:          c.CallTimeout,
		ReadRetries:          &retries,
		RiskFraction:         c.Risk.RiskFraction.String(),
		StopLossFraction:     c.StopLossFraction.String(),
		MinOrderNotional:     c.Risk.MinOrderNotional.String(),
		HaltOnUnprotected:    &halt,
		LogLevel:             c.LogLevel,
		LedgerWALDir:         c.LedgerWALDir,
		AlertWebhookURL:      c.AlertWebhookURL,
		DashboardAddr:        c.DashboardAddr,
		DashboardDomains:     c.DashboardDomains,
		DashboardCertCache:   c.DashboardCertCache,
		SimulateQuoteBalance: c.SimulateQuoteBalance.String(),
	}
}

func decimalOr(raw, def, name string) (decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		raw = def
	}
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "incorrect '%s' param in yaml config (must be a decimal)", name)
	}
	return d, nil
}

func stringOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func intOr(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func durationOr(v, def time.Duration) time.Duration {
	if v == 0 {
		return def
	}
	return v
}

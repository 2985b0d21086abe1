// Package config loads the bot configuration from a YAML file, with secrets
// taken from the environment (optionally seeded from a .env file).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"cryptosignal/internal/indicator"
	"cryptosignal/internal/model"
)

// Config holds all application configuration.
type Config struct {
	Debug       bool   `yaml:"debug"`
	LogLevel    string `yaml:"log_level"`
	MetricsAddr string `yaml:"metrics_addr"`
	GatewayAddr string `yaml:"gateway_addr"`
	ArchivePath string `yaml:"archive_path"` // sqlite candle archive

	Exchange ExchangeConfig `yaml:"exchange"`
	Paper    PaperConfig    `yaml:"paper"`
	Journal  JournalConfig  `yaml:"journal"`
	Redis    RedisConfig    `yaml:"redis"`
	Influx   InfluxConfig   `yaml:"influx"`
	Telegram TelegramConfig `yaml:"telegram"`
	Webhook  WebhookConfig  `yaml:"webhook"`

	Instruments []Instrument `yaml:"instruments"`
}

// ExchangeConfig selects paper or live execution on Binance.
type ExchangeConfig struct {
	Mode      string  `yaml:"mode"` // "paper" or "live"
	APIKey    string  `yaml:"api_key"`
	APISecret string  `yaml:"api_secret"`
	Testnet   bool    `yaml:"testnet"`
	MinBudget float64 `yaml:"min_budget"` // smallest quote amount worth a buy order
}

// PaperConfig configures the simulated account.
type PaperConfig struct {
	QuoteBalance float64 `yaml:"quote_balance"`
	SlippageBps  float64 `yaml:"slippage_bps"`
}

// JournalConfig selects where fills are recorded.
type JournalConfig struct {
	Type string `yaml:"type"` // "csv" or "sqlite"
	Dir  string `yaml:"dir"`  // csv: one transaction_<symbol>.csv per instrument
	Path string `yaml:"path"` // sqlite database file
}

// RedisConfig configures the state snapshot store. Empty Addr disables it.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// InfluxConfig configures the signal sink. Empty URL disables it.
type InfluxConfig struct {
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

// TelegramConfig configures chat notifications. Empty Token disables them.
type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

// WebhookConfig configures HTTP notifications. Empty URL disables them.
type WebhookConfig struct {
	URL string `yaml:"url"`
}

// Instrument is the per-market trading configuration.
type Instrument struct {
	Market       string        `yaml:"market"` // exchange id, e.g. "BTCUSDT"
	Symbol       string        `yaml:"symbol"` // "BASE/QUOTE", e.g. "BTC/USDT"
	Granularity  int           `yaml:"granularity"`
	PollInterval time.Duration `yaml:"poll_interval"`

	MaxLossPct         float64 `yaml:"maximum_loss_percentage"` // 0 disables stop-loss
	BuyPct             float64 `yaml:"buy_percentage"`
	SellPct            float64 `yaml:"sell_percentage"`
	MinProfitPct       float64 `yaml:"minimum_profit_percentage"`
	SellWithProfitOnly bool    `yaml:"sell_with_profit_only"`
	LimitBudget        float64 `yaml:"limit_budget"`

	Indicators []indicator.IndicatorConfig `yaml:"indicators"`
}

// Base returns the base asset of Symbol ("BTC" for "BTC/USDT").
func (i Instrument) Base() string {
	base, _, _ := strings.Cut(i.Symbol, "/")
	return base
}

// Quote returns the quote asset of Symbol ("USDT" for "BTC/USDT").
func (i Instrument) Quote() string {
	_, quote, _ := strings.Cut(i.Symbol, "/")
	return quote
}

// Load reads the YAML file at path, loads the given .env files (missing
// files are skipped), applies environment overrides and defaults, and
// validates the result.
func Load(path string, envFiles ...string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: env file %s: %w", f, err)
		}
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	c.Exchange.APIKey = getEnv("BINANCE_API_KEY", c.Exchange.APIKey)
	c.Exchange.APISecret = getEnv("BINANCE_API_SECRET", c.Exchange.APISecret)
	c.Telegram.Token = getEnv("TELEGRAM_TOKEN", c.Telegram.Token)
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Telegram.ChatID = id
		}
	}
	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Influx.Token = getEnv("INFLUX_TOKEN", c.Influx.Token)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = ":9090"
	}
	if c.Exchange.Mode == "" {
		c.Exchange.Mode = "paper"
	}
	if c.Exchange.MinBudget == 0 {
		c.Exchange.MinBudget = 10
	}
	if c.Paper.QuoteBalance == 0 {
		c.Paper.QuoteBalance = 1000
	}
	if c.Journal.Type == "" {
		c.Journal.Type = "csv"
	}
	if c.Journal.Dir == "" {
		c.Journal.Dir = "."
	}
	if c.Journal.Path == "" {
		c.Journal.Path = "data/trades.db"
	}
	for i := range c.Instruments {
		in := &c.Instruments[i]
		if in.Granularity == 0 {
			in.Granularity = 3600
		}
		if in.PollInterval == 0 {
			in.PollInterval = time.Minute
		}
		if in.BuyPct == 0 {
			in.BuyPct = 100
		}
		if in.SellPct == 0 {
			in.SellPct = 100
		}
	}
}

// Validate checks every instrument and the backend selections. All problems
// are reported together.
func (c *Config) Validate() error {
	var errs error
	if len(c.Instruments) == 0 {
		errs = multierr.Append(errs, errors.New("config: no instruments"))
	}
	switch c.Exchange.Mode {
	case "paper":
	case "live":
		if c.Exchange.APIKey == "" || c.Exchange.APISecret == "" {
			errs = multierr.Append(errs, errors.New("config: live mode needs BINANCE_API_KEY and BINANCE_API_SECRET"))
		}
	default:
		errs = multierr.Append(errs, fmt.Errorf("config: unknown exchange mode %q", c.Exchange.Mode))
	}
	if c.Journal.Type != "csv" && c.Journal.Type != "sqlite" {
		errs = multierr.Append(errs, fmt.Errorf("config: unknown journal type %q", c.Journal.Type))
	}

	seen := make(map[string]bool)
	for _, in := range c.Instruments {
		errs = multierr.Append(errs, in.validate())
		if seen[in.Market] {
			errs = multierr.Append(errs, fmt.Errorf("config: duplicate market %s", in.Market))
		}
		seen[in.Market] = true
	}
	return errs
}

func (i Instrument) validate() error {
	var errs error
	bad := func(format string, args ...any) {
		errs = multierr.Append(errs, fmt.Errorf("config: instrument %s: "+format, append([]any{i.Market}, args...)...))
	}
	if i.Market == "" {
		bad("empty market")
	}
	if i.Base() == "" || i.Quote() == "" {
		bad("symbol %q must be BASE/QUOTE", i.Symbol)
	}
	if !model.SupportedGranularity(i.Granularity) {
		bad("granularity %d not in %v", i.Granularity, model.Granularities)
	}
	if i.PollInterval <= 0 {
		bad("poll_interval must be positive")
	}
	if i.MaxLossPct < 0 || i.MaxLossPct >= 100 {
		bad("maximum_loss_percentage %v out of [0,100)", i.MaxLossPct)
	}
	if i.BuyPct <= 0 || i.BuyPct > 100 {
		bad("buy_percentage %v out of (0,100]", i.BuyPct)
	}
	if i.SellPct <= 0 || i.SellPct > 100 {
		bad("sell_percentage %v out of (0,100]", i.SellPct)
	}
	if i.MinProfitPct < 0 {
		bad("minimum_profit_percentage must not be negative")
	}
	if i.LimitBudget < 0 {
		bad("limit_budget must not be negative")
	}
	if err := indicator.ValidateConfigs(i.Indicators); err != nil {
		bad("%v", err)
	}
	return errs
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

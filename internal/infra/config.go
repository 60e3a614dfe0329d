package infra

import (
	"fmt"
	"os"

	"arbscope/internal/domain"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// FeedConfig describes one venue feed pushing normalized snapshots.
type FeedConfig struct {
	Venue string   `yaml:"venue"`
	WSURL string   `yaml:"ws_url"`
	Pairs []string `yaml:"pairs"`
}

// FeeConfig is the static, human-maintained fee entry for one venue.
type FeeConfig struct {
	Taker      decimal.Decimal            `yaml:"taker"`
	Maker      decimal.Decimal            `yaml:"maker"`
	Deposit    decimal.Decimal            `yaml:"deposit"`
	Withdrawal map[string]decimal.Decimal `yaml:"withdrawal"`
}

// AlertConfig declares a net-profit alert for a pair.
type AlertConfig struct {
	Pair         string          `yaml:"pair"`
	MinNetProfit decimal.Decimal `yaml:"min_net_profit"`
	Persistent   bool            `yaml:"persistent"`
}

// Config holds every application setting. It is loaded once at startup;
// fee schedules and policy constants are read-only afterwards.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Feeds []FeedConfig `yaml:"feeds"`

	Engine struct {
		StalenessMS    int             `yaml:"staleness_ms"`
		TargetNotional decimal.Decimal `yaml:"target_notional"`
		TopN           int             `yaml:"top_n"`
	} `yaml:"engine"`

	History struct {
		Dir             string `yaml:"dir"`
		BarsURL         string `yaml:"bars_url"`
		FetchTimeoutSec int    `yaml:"fetch_timeout_sec"`
		MaxRetries      int    `yaml:"max_retries"`
	} `yaml:"history"`

	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`

	Fees map[string]FeeConfig `yaml:"fees"`

	Alerts []AlertConfig `yaml:"alerts"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	for _, feed := range c.Feeds {
		if feed.Venue == "" {
			return fmt.Errorf("feed with empty venue name")
		}
		if !hasPrefix(feed.WSURL, "ws://") && !hasPrefix(feed.WSURL, "wss://") {
			return fmt.Errorf("invalid feed WS URL for %s: %s", feed.Venue, feed.WSURL)
		}
		if len(feed.Pairs) == 0 {
			return fmt.Errorf("feed %s has no pairs", feed.Venue)
		}
	}

	if c.Engine.StalenessMS <= 0 {
		return fmt.Errorf("staleness threshold must be positive")
	}
	if !c.Engine.TargetNotional.IsPositive() {
		return fmt.Errorf("target notional must be positive")
	}
	if c.Engine.TopN <= 0 {
		return fmt.Errorf("top_n must be positive")
	}

	if c.History.Dir == "" {
		return fmt.Errorf("history dir is required")
	}
	if c.History.MaxRetries <= 0 {
		return fmt.Errorf("history max_retries must be positive")
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage path is required")
	}

	one := decimal.NewFromInt(1)
	for venue, fee := range c.Fees {
		if fee.Taker.IsNegative() || fee.Taker.GreaterThan(one) {
			return fmt.Errorf("taker rate for %s out of [0,1]", venue)
		}
		if fee.Maker.IsNegative() || fee.Maker.GreaterThan(one) {
			return fmt.Errorf("maker rate for %s out of [0,1]", venue)
		}
	}

	return nil
}

// FeeSchedules converts the fee section into domain schedules.
func (c *Config) FeeSchedules() []domain.FeeSchedule {
	schedules := make([]domain.FeeSchedule, 0, len(c.Fees))
	for venue, fee := range c.Fees {
		withdrawal := make(map[string]decimal.Decimal, len(fee.Withdrawal))
		for asset, amount := range fee.Withdrawal {
			withdrawal[asset] = amount
		}
		schedules = append(schedules, domain.FeeSchedule{
			Venue:          venue,
			Taker:          fee.Taker,
			Maker:          fee.Maker,
			DepositFee:     fee.Deposit,
			WithdrawalFees: withdrawal,
		})
	}
	return schedules
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[0:len(prefix)] == prefix
}

// overrideWithEnv applies environment overrides for deploy-specific paths.
func overrideWithEnv(cfg *Config) {
	if dir := os.Getenv("ARBSCOPE_HISTORY_DIR"); dir != "" {
		cfg.History.Dir = dir
	}
	if path := os.Getenv("ARBSCOPE_DB_PATH"); path != "" {
		cfg.Storage.Path = path
	}
	if url := os.Getenv("ARBSCOPE_BARS_URL"); url != "" {
		cfg.History.BarsURL = url
	}
}

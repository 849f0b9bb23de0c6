// Package config defines the top-level configuration for the flash-loan bot
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by FLASHBOT_* environment variables.
type Config struct {
	Wallet   WalletConfig   `toml:"wallet"`
	Venues   []VenueConfig  `toml:"venues"`
	Relay    RelayConfig    `toml:"relay"`
	Scorer   ScorerConfig   `toml:"scorer"`
	Trading  TradingConfig  `toml:"trading"`
	Risk     RiskConfig     `toml:"risk"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Notify   NotifyConfig   `toml:"notify"`
	Server   ServerConfig   `toml:"server"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// WalletConfig holds the submitter key used to sign relay payloads.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// VenueConfig describes one liquidity venue.
//
// Kind selects the adapter: "router" quotes via the venue's REST quote API,
// "amm" prices a constant-product pool from streamed reserves.
type VenueConfig struct {
	Name    string  `toml:"name"`
	Kind    string  `toml:"kind"`
	BaseURL string  `toml:"base_url"`
	WsURL   string  `toml:"ws_url"`
	FeeBps  float64 `toml:"fee_bps"`
}

// RelayConfig holds the private relay endpoint, credentials, and slot-timing
// parameters for bundle submission.
type RelayConfig struct {
	BaseURL            string   `toml:"base_url"`
	ApiKey             string   `toml:"api_key"`
	ApiSecret          string   `toml:"api_secret"`
	TargetSlotOffset   int      `toml:"target_slot_offset"`
	InclusionWaitSlots int      `toml:"inclusion_wait_slots"`
	StatusTimeout      duration `toml:"status_timeout"`
	SlotInterval       duration `toml:"slot_interval"`
}

// ScorerConfig holds the external scoring service parameters. An empty URL
// disables the remote scorer; every signal then comes from the local
// fallback heuristic.
type ScorerConfig struct {
	URL              string   `toml:"url"`
	Timeout          duration `toml:"timeout"`
	VolatilityWindow int      `toml:"volatility_window"`
}

// TradingConfig holds the scan loop parameters.
type TradingConfig struct {
	Pairs             []string `toml:"pairs"`
	Asset             string   `toml:"asset"`
	MinTradeSize      float64  `toml:"min_trade_size"`
	MaxTradeSize      float64  `toml:"max_trade_size"`
	LadderSteps       int      `toml:"ladder_steps"`
	MinProfit         float64  `toml:"min_profit"`
	ProfitEpsilon     float64  `toml:"profit_epsilon"`
	QuoteTimeout      duration `toml:"quote_timeout"`
	ScanInterval      duration `toml:"scan_interval"`
	RefreshInterval   duration `toml:"refresh_interval"`
	OpportunityMaxAge duration `toml:"opportunity_max_age"`
	MaxQuoteAge       duration `toml:"max_quote_age"`
	MaxInFlight       int      `toml:"max_in_flight"`
	VenueRateLimit    int      `toml:"venue_rate_limit"` // requests/sec per venue, 0 disables
}

// RiskConfig holds the risk gate limits, in units of the borrowed asset
// unless stated otherwise.
type RiskConfig struct {
	MinProfit               float64  `toml:"min_profit"`
	MaxDailyLoss            float64  `toml:"max_daily_loss"`
	MaxTradeLoss            float64  `toml:"max_trade_loss"`
	MaxSlippageBps          float64  `toml:"max_slippage_bps"`
	MaxFee                  float64  `toml:"max_fee"`
	MaxLiquidityUtilization float64  `toml:"max_liquidity_utilization"`
	Cooldown                duration `toml:"cooldown"`
	MaxConsecutiveFailures  int      `toml:"max_consecutive_failures"`
	VolatilityCeiling       float64  `toml:"volatility_ceiling"`
	LiquidityFloor          float64  `toml:"liquidity_floor"`
	ApprovalThreshold       float64  `toml:"approval_threshold"`
	ConfidenceFloor         float64  `toml:"confidence_floor"`
	AutoResumeAfter         duration `toml:"auto_resume_after"` // 0 keeps pauses operator-only
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for report archival.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds the operator API parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	APIKey      string   `toml:"api_key"` // empty disables authentication
	CORSOrigins []string `toml:"cors_origins"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Venues: []VenueConfig{
			{Name: "jupiter", Kind: "router", BaseURL: "https://quote-api.jup.ag/v6", FeeBps: 0},
			{Name: "raydium", Kind: "amm", BaseURL: "https://api.raydium.io/v2", FeeBps: 25},
		},
		Relay: RelayConfig{
			BaseURL:            "https://relay.localhost:8443",
			TargetSlotOffset:   2,
			InclusionWaitSlots: 3,
			StatusTimeout:      duration{2 * time.Second},
			SlotInterval:       duration{400 * time.Millisecond},
		},
		Scorer: ScorerConfig{
			URL:              "",
			Timeout:          duration{5 * time.Second},
			VolatilityWindow: 60,
		},
		Trading: TradingConfig{
			Pairs:             []string{"SOL/USDC"},
			Asset:             "USDC",
			MinTradeSize:      100,
			MaxTradeSize:      10_000,
			LadderSteps:       5,
			MinProfit:         0.1,
			ProfitEpsilon:     0.01,
			QuoteTimeout:      duration{5 * time.Second},
			ScanInterval:      duration{2 * time.Second},
			RefreshInterval:   duration{1 * time.Second},
			OpportunityMaxAge: duration{10 * time.Second},
			MaxQuoteAge:       duration{30 * time.Second},
			MaxInFlight:       3,
			VenueRateLimit:    10,
		},
		Risk: RiskConfig{
			MinProfit:               0.1,
			MaxDailyLoss:            500,
			MaxTradeLoss:            50,
			MaxSlippageBps:          100,
			MaxFee:                  10,
			MaxLiquidityUtilization: 0.9,
			Cooldown:                duration{2 * time.Second},
			MaxConsecutiveFailures:  3,
			VolatilityCeiling:       0.05,
			LiquidityFloor:          10_000,
			ApprovalThreshold:       0.7,
			ConfidenceFloor:         0.3,
			AutoResumeAfter:         duration{0},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "flashbot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "flashbot-reports",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Notify: NotifyConfig{
			Events: []string{"paused", "resumed", "daily_summary", "error"},
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    8080,
		},
		Mode:     "trade",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"trade":   true,
	"scan":    true,
	"monitor": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, scan, monitor)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Wallet — a key source is required only when the bot actually submits.
	if strings.ToLower(c.Mode) == "trade" {
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for mode trade")
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
			errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
		}
	}

	// Venues
	if len(c.Venues) < 2 {
		errs = append(errs, fmt.Sprintf("venues: at least 2 venues are required for a round trip, got %d", len(c.Venues)))
	}
	seen := map[string]bool{}
	for i, v := range c.Venues {
		if v.Name == "" {
			errs = append(errs, fmt.Sprintf("venues[%d]: name must not be empty", i))
		}
		if seen[v.Name] {
			errs = append(errs, fmt.Sprintf("venues[%d]: duplicate name %q", i, v.Name))
		}
		seen[v.Name] = true
		switch v.Kind {
		case "router":
			if v.BaseURL == "" {
				errs = append(errs, fmt.Sprintf("venues[%d]: base_url is required for kind router", i))
			}
		case "amm":
			if v.BaseURL == "" {
				errs = append(errs, fmt.Sprintf("venues[%d]: base_url is required for kind amm", i))
			}
		default:
			errs = append(errs, fmt.Sprintf("venues[%d]: unknown kind %q (valid: router, amm)", i, v.Kind))
		}
		if v.FeeBps < 0 {
			errs = append(errs, fmt.Sprintf("venues[%d]: fee_bps must be >= 0", i))
		}
	}

	// Relay
	if c.Relay.BaseURL == "" {
		errs = append(errs, "relay: base_url must not be empty")
	}
	if c.Relay.TargetSlotOffset < 1 {
		errs = append(errs, "relay: target_slot_offset must be >= 1")
	}
	if c.Relay.InclusionWaitSlots < 1 {
		errs = append(errs, "relay: inclusion_wait_slots must be >= 1")
	}
	// Credentials must be set together or not at all.
	rk := c.Relay.ApiKey != ""
	rs := c.Relay.ApiSecret != ""
	if rk != rs {
		errs = append(errs, "relay: api_key and api_secret must be set together")
	}

	// Trading
	if len(c.Trading.Pairs) == 0 {
		errs = append(errs, "trading: at least one pair is required")
	}
	for i, p := range c.Trading.Pairs {
		if !strings.Contains(p, "/") {
			errs = append(errs, fmt.Sprintf("trading: pairs[%d] %q must be BASE/QUOTE", i, p))
		}
	}
	if c.Trading.Asset == "" {
		errs = append(errs, "trading: asset must not be empty")
	}
	if c.Trading.MinTradeSize <= 0 {
		errs = append(errs, "trading: min_trade_size must be > 0")
	}
	if c.Trading.MaxTradeSize < c.Trading.MinTradeSize {
		errs = append(errs, "trading: max_trade_size must be >= min_trade_size")
	}
	if c.Trading.LadderSteps < 2 {
		errs = append(errs, "trading: ladder_steps must be >= 2")
	}
	if c.Trading.MinProfit <= 0 {
		errs = append(errs, "trading: min_profit must be > 0")
	}
	if c.Trading.MaxInFlight < 1 {
		errs = append(errs, "trading: max_in_flight must be >= 1")
	}

	// Risk
	if c.Risk.MaxDailyLoss <= 0 {
		errs = append(errs, "risk: max_daily_loss must be > 0")
	}
	if c.Risk.MaxTradeLoss <= 0 {
		errs = append(errs, "risk: max_trade_loss must be > 0")
	}
	if c.Risk.ApprovalThreshold <= 0 || c.Risk.ApprovalThreshold > 1 {
		errs = append(errs, fmt.Sprintf("risk: approval_threshold must be in (0, 1], got %g", c.Risk.ApprovalThreshold))
	}
	if c.Risk.ConfidenceFloor < 0 || c.Risk.ConfidenceFloor > 1 {
		errs = append(errs, fmt.Sprintf("risk: confidence_floor must be in [0, 1], got %g", c.Risk.ConfidenceFloor))
	}
	if c.Risk.MaxLiquidityUtilization <= 0 || c.Risk.MaxLiquidityUtilization > 1 {
		errs = append(errs, fmt.Sprintf("risk: max_liquidity_utilization must be in (0, 1], got %g", c.Risk.MaxLiquidityUtilization))
	}
	if c.Risk.MaxConsecutiveFailures < 1 {
		errs = append(errs, "risk: max_consecutive_failures must be >= 1")
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Server
	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies FLASHBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known FLASHBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "FLASHBOT_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "FLASHBOT_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "FLASHBOT_WALLET_KEY_PASSWORD")

	// ── Relay ──
	setStr(&cfg.Relay.BaseURL, "FLASHBOT_RELAY_BASE_URL")
	setStr(&cfg.Relay.ApiKey, "FLASHBOT_RELAY_API_KEY")
	setStr(&cfg.Relay.ApiSecret, "FLASHBOT_RELAY_API_SECRET")
	setInt(&cfg.Relay.TargetSlotOffset, "FLASHBOT_RELAY_TARGET_SLOT_OFFSET")
	setInt(&cfg.Relay.InclusionWaitSlots, "FLASHBOT_RELAY_INCLUSION_WAIT_SLOTS")
	setDuration(&cfg.Relay.StatusTimeout, "FLASHBOT_RELAY_STATUS_TIMEOUT")
	setDuration(&cfg.Relay.SlotInterval, "FLASHBOT_RELAY_SLOT_INTERVAL")

	// ── Scorer ──
	setStr(&cfg.Scorer.URL, "FLASHBOT_SCORER_URL")
	setDuration(&cfg.Scorer.Timeout, "FLASHBOT_SCORER_TIMEOUT")
	setInt(&cfg.Scorer.VolatilityWindow, "FLASHBOT_SCORER_VOLATILITY_WINDOW")

	// ── Trading ──
	setStringSlice(&cfg.Trading.Pairs, "FLASHBOT_TRADING_PAIRS")
	setStr(&cfg.Trading.Asset, "FLASHBOT_TRADING_ASSET")
	setFloat64(&cfg.Trading.MinTradeSize, "FLASHBOT_TRADING_MIN_TRADE_SIZE")
	setFloat64(&cfg.Trading.MaxTradeSize, "FLASHBOT_TRADING_MAX_TRADE_SIZE")
	setInt(&cfg.Trading.LadderSteps, "FLASHBOT_TRADING_LADDER_STEPS")
	setFloat64(&cfg.Trading.MinProfit, "FLASHBOT_TRADING_MIN_PROFIT")
	setFloat64(&cfg.Trading.ProfitEpsilon, "FLASHBOT_TRADING_PROFIT_EPSILON")
	setDuration(&cfg.Trading.QuoteTimeout, "FLASHBOT_TRADING_QUOTE_TIMEOUT")
	setDuration(&cfg.Trading.ScanInterval, "FLASHBOT_TRADING_SCAN_INTERVAL")
	setDuration(&cfg.Trading.RefreshInterval, "FLASHBOT_TRADING_REFRESH_INTERVAL")
	setDuration(&cfg.Trading.OpportunityMaxAge, "FLASHBOT_TRADING_OPPORTUNITY_MAX_AGE")
	setDuration(&cfg.Trading.MaxQuoteAge, "FLASHBOT_TRADING_MAX_QUOTE_AGE")
	setInt(&cfg.Trading.MaxInFlight, "FLASHBOT_TRADING_MAX_IN_FLIGHT")
	setInt(&cfg.Trading.VenueRateLimit, "FLASHBOT_TRADING_VENUE_RATE_LIMIT")

	// ── Risk ──
	setFloat64(&cfg.Risk.MinProfit, "FLASHBOT_RISK_MIN_PROFIT")
	setFloat64(&cfg.Risk.MaxDailyLoss, "FLASHBOT_RISK_MAX_DAILY_LOSS")
	setFloat64(&cfg.Risk.MaxTradeLoss, "FLASHBOT_RISK_MAX_TRADE_LOSS")
	setFloat64(&cfg.Risk.MaxSlippageBps, "FLASHBOT_RISK_MAX_SLIPPAGE_BPS")
	setFloat64(&cfg.Risk.MaxFee, "FLASHBOT_RISK_MAX_FEE")
	setFloat64(&cfg.Risk.MaxLiquidityUtilization, "FLASHBOT_RISK_MAX_LIQUIDITY_UTILIZATION")
	setDuration(&cfg.Risk.Cooldown, "FLASHBOT_RISK_COOLDOWN")
	setInt(&cfg.Risk.MaxConsecutiveFailures, "FLASHBOT_RISK_MAX_CONSECUTIVE_FAILURES")
	setFloat64(&cfg.Risk.VolatilityCeiling, "FLASHBOT_RISK_VOLATILITY_CEILING")
	setFloat64(&cfg.Risk.LiquidityFloor, "FLASHBOT_RISK_LIQUIDITY_FLOOR")
	setFloat64(&cfg.Risk.ApprovalThreshold, "FLASHBOT_RISK_APPROVAL_THRESHOLD")
	setFloat64(&cfg.Risk.ConfidenceFloor, "FLASHBOT_RISK_CONFIDENCE_FLOOR")
	setDuration(&cfg.Risk.AutoResumeAfter, "FLASHBOT_RISK_AUTO_RESUME_AFTER")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "FLASHBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "FLASHBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "FLASHBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "FLASHBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "FLASHBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "FLASHBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "FLASHBOT_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "FLASHBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "FLASHBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "FLASHBOT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "FLASHBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "FLASHBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "FLASHBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "FLASHBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "FLASHBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "FLASHBOT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "FLASHBOT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "FLASHBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "FLASHBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "FLASHBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "FLASHBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "FLASHBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "FLASHBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "FLASHBOT_S3_FORCE_PATH_STYLE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "FLASHBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "FLASHBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "FLASHBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "FLASHBOT_NOTIFY_EVENTS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "FLASHBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "FLASHBOT_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "FLASHBOT_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "FLASHBOT_SERVER_CORS_ORIGINS")

	// ── Top-level ──
	setStr(&cfg.Mode, "FLASHBOT_MODE")
	setStr(&cfg.LogLevel, "FLASHBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}

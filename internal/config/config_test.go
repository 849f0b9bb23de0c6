package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flashbot.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultsValidateForScanMode(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "scan"
	require.NoError(t, cfg.Validate())
}

func TestDefaultsRequireWalletKeyForTradeMode(t *testing.T) {
	cfg := Defaults()
	require.Equal(t, "trade", cfg.Mode)

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "private_key or encrypted_key_path")

	cfg.Wallet.PrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	require.NoError(t, cfg.Validate())
}

func TestLoad_MergesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
mode = "scan"
log_level = "debug"

[trading]
pairs = ["SOL/USDC", "ETH/USDC"]
scan_interval = "500ms"
max_trade_size = 25000.0

[risk]
cooldown = "10s"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "scan", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"SOL/USDC", "ETH/USDC"}, cfg.Trading.Pairs)
	assert.Equal(t, 500*time.Millisecond, cfg.Trading.ScanInterval.Duration)
	assert.Equal(t, 25000.0, cfg.Trading.MaxTradeSize)
	assert.Equal(t, 10*time.Second, cfg.Risk.Cooldown.Duration)

	// untouched sections keep their defaults
	assert.Equal(t, "USDC", cfg.Trading.Asset)
	assert.Equal(t, 2, cfg.Relay.TargetSlotOffset)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoad_EnvOverridesWin(t *testing.T) {
	path := writeConfig(t, `
mode = "scan"

[redis]
addr = "redis-from-file:6379"
`)

	t.Setenv("FLASHBOT_MODE", "monitor")
	t.Setenv("FLASHBOT_REDIS_ADDR", "redis-from-env:6379")
	t.Setenv("FLASHBOT_TRADING_PAIRS", "SOL/USDC, BONK/USDC")
	t.Setenv("FLASHBOT_RISK_AUTO_RESUME_AFTER", "15m")
	t.Setenv("FLASHBOT_SERVER_ENABLED", "false")
	t.Setenv("FLASHBOT_TRADING_MAX_IN_FLIGHT", "7")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "monitor", cfg.Mode)
	assert.Equal(t, "redis-from-env:6379", cfg.Redis.Addr)
	assert.Equal(t, []string{"SOL/USDC", "BONK/USDC"}, cfg.Trading.Pairs)
	assert.Equal(t, 15*time.Minute, cfg.Risk.AutoResumeAfter.Duration)
	assert.False(t, cfg.Server.Enabled)
	assert.Equal(t, 7, cfg.Trading.MaxInFlight)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestLoad_BadDurationString(t *testing.T) {
	path := writeConfig(t, `
[trading]
scan_interval = "not-a-duration"
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "yolo"
	cfg.LogLevel = "loud"
	cfg.Venues = []VenueConfig{{Name: "solo", Kind: "router", BaseURL: "http://x"}}
	cfg.Trading.Pairs = []string{"SOLUSDC"}
	cfg.Relay.ApiKey = "key-without-secret"
	cfg.Risk.ApprovalThreshold = 1.5

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "unknown mode")
	assert.Contains(t, msg, "unknown log_level")
	assert.Contains(t, msg, "at least 2 venues")
	assert.Contains(t, msg, "must be BASE/QUOTE")
	assert.Contains(t, msg, "api_key and api_secret must be set together")
	assert.Contains(t, msg, "approval_threshold")
}

func TestValidate_VenueKinds(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "scan"
	cfg.Venues = []VenueConfig{
		{Name: "jupiter", Kind: "router", BaseURL: "http://x"},
		{Name: "raydium", Kind: "amm"}, // missing base_url
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_url is required for kind amm")

	cfg.Venues[1].Kind = "orderbook"
	cfg.Venues[1].BaseURL = "http://y"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown kind "orderbook"`)
}

func TestValidate_DuplicateVenueNames(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "scan"
	cfg.Venues = append(cfg.Venues, VenueConfig{Name: "jupiter", Kind: "router", BaseURL: "http://x"})
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate name "jupiter"`)
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Wallet.PrivateKey = "deadbeef"
	cfg.Relay.ApiSecret = "relay-secret"
	cfg.Postgres.Password = "pg-pass"
	cfg.Redis.Password = "redis-pass"
	cfg.S3.SecretKey = "s3-secret"
	cfg.Server.APIKey = "server-key"
	cfg.Notify.TelegramToken = "tg-token"

	red := RedactedConfig(&cfg)

	assert.Equal(t, "***", red.Wallet.PrivateKey)
	assert.Equal(t, "***", red.Relay.ApiSecret)
	assert.Equal(t, "***", red.Postgres.Password)
	assert.Equal(t, "***", red.Redis.Password)
	assert.Equal(t, "***", red.S3.SecretKey)
	assert.Equal(t, "***", red.Server.APIKey)
	assert.Equal(t, "***", red.Notify.TelegramToken)

	// the original is untouched
	assert.Equal(t, "deadbeef", cfg.Wallet.PrivateKey)

	// mutating a redacted slice must not leak back
	red.Trading.Pairs[0] = "HACK/HACK"
	assert.Equal(t, "SOL/USDC", cfg.Trading.Pairs[0])
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults_Validate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 0.1, cfg.Sniper.BuyAmountSol)
	assert.Equal(t, 15, cfg.Sniper.Slippage)
	assert.Equal(t, 100.0, cfg.Sniper.TakeProfit)
	assert.Equal(t, -50.0, cfg.Sniper.StopLoss)
	assert.Equal(t, 5*time.Second, cfg.PumpPortal.ReconnectBase.Duration)
	assert.Equal(t, 30*time.Second, cfg.PumpPortal.ReconnectCap.Duration)
	assert.False(t, cfg.Supabase.Enabled())
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "yolo"
	cfg.Sniper.BuyAmountSol = 0
	cfg.Sniper.StopLoss = 10
	cfg.Wallet.EncryptedKeyPath = "/tmp/key.json"

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "config validation failed")
	assert.Contains(t, msg, `unknown mode "yolo"`)
	assert.Contains(t, msg, "sniper: buy_amount_sol must be > 0")
	assert.Contains(t, msg, "sniper: stop_loss must be < 0")
	assert.Contains(t, msg, "wallet: key_password is required")
}

func TestValidate_ScoringTiers(t *testing.T) {
	cfg := Defaults()
	cfg.Scoring.LiquidityGood = 20000
	cfg.Scoring.SweetMax = 200000
	cfg.Scoring.AgeWeight = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "liquidity tiers must ascend")
	assert.Contains(t, err.Error(), "sweet_min <= sweet_max <= max_allowed")
	assert.Contains(t, err.Error(), "weights must be positive")
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "skull.toml")
	body := `
mode = "monitor"

[sniper]
buy_amount_sol = 0.25
monitor_interval = "5s"

[scoring]
min_liquidity = 2000.0
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	t.Setenv("SKULL_SNIPER_SLIPPAGE", "20")
	t.Setenv("SKULL_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "monitor", cfg.Mode)
	assert.Equal(t, 0.25, cfg.Sniper.BuyAmountSol)
	assert.Equal(t, 5*time.Second, cfg.Sniper.MonitorInterval.Duration)
	assert.Equal(t, 2000.0, cfg.Scoring.MinLiquidity)
	assert.Equal(t, 20, cfg.Sniper.Slippage)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	// untouched defaults survive
	assert.Equal(t, 50000.0, cfg.Scoring.MaxMcap)
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "wss://pumpportal.fun/api/data", cfg.PumpPortal.WsURL)
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Wallet.PrivateKey = "secret"
	cfg.Birdeye.ApiKey = "be-key"
	cfg.Server.CORSOrigins = []string{"x"}

	out := RedactedConfig(&cfg)
	assert.Equal(t, "***", out.Wallet.PrivateKey)
	assert.Equal(t, "***", out.Birdeye.ApiKey)
	assert.Equal(t, "", out.Wallet.KeyPassword)
	assert.Equal(t, "secret", cfg.Wallet.PrivateKey)

	out.Server.CORSOrigins[0] = "y"
	assert.Equal(t, "x", cfg.Server.CORSOrigins[0])
}

func TestRedactedConfig_URLs(t *testing.T) {
	cfg := Defaults()
	cfg.Solana.RPCURL = "https://mainnet.helius-rpc.com/?api-key=abc"
	cfg.Supabase.DSN = "postgres://postgres:pw@db.example.co:5432/postgres"
	cfg.Notify.DiscordWebhookURL = "https://discord.com/api/webhooks/1/token"

	out := RedactedConfig(&cfg)
	assert.Equal(t, "https://mainnet.helius-rpc.com/?***", out.Solana.RPCURL)
	assert.NotContains(t, out.Supabase.DSN, "pw")
	assert.Contains(t, out.Supabase.DSN, "@db.example.co:5432/postgres")
	assert.Equal(t, "***", out.Notify.DiscordWebhookURL)
	assert.Equal(t, "", out.ClickHouse.DSN)
}

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
// built-in defaults, applies SKULL_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned Config
// has NOT been validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known SKULL_* environment variables and
// overwrites the corresponding Config fields when a variable is set.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "SKULL_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.PrivateKey, "SOLANA_PRIVATE_KEY") // compatibility alias
	setStr(&cfg.Wallet.EncryptedKeyPath, "SKULL_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "SKULL_WALLET_KEY_PASSWORD")

	// ── PumpPortal ──
	setStr(&cfg.PumpPortal.WsURL, "SKULL_PUMPPORTAL_WS_URL")
	setStr(&cfg.PumpPortal.TradeURL, "SKULL_PUMPPORTAL_TRADE_URL")
	setStr(&cfg.PumpPortal.ClaimURL, "SKULL_PUMPPORTAL_CLAIM_URL")
	setStr(&cfg.PumpPortal.Pool, "SKULL_PUMPPORTAL_POOL")
	setFloat64(&cfg.PumpPortal.PriorityFee, "SKULL_PUMPPORTAL_PRIORITY_FEE")
	setDuration(&cfg.PumpPortal.ReconnectBase, "SKULL_PUMPPORTAL_RECONNECT_BASE")
	setDuration(&cfg.PumpPortal.ReconnectCap, "SKULL_PUMPPORTAL_RECONNECT_CAP")
	setInt(&cfg.PumpPortal.MaxRetries, "SKULL_PUMPPORTAL_MAX_RETRIES")
	setInt(&cfg.PumpPortal.SubscriptionCapacity, "SKULL_PUMPPORTAL_SUBSCRIPTION_CAPACITY")

	// ── Solana ──
	setStr(&cfg.Solana.RPCURL, "SKULL_SOLANA_RPC_URL")
	setStr(&cfg.Solana.RPCURL, "HELIUS_RPC_URL") // compatibility alias
	setDuration(&cfg.Solana.Timeout, "SKULL_SOLANA_TIMEOUT")
	setInt(&cfg.Solana.MaxRetries, "SKULL_SOLANA_MAX_RETRIES")

	// ── Birdeye ──
	setStr(&cfg.Birdeye.BaseURL, "SKULL_BIRDEYE_BASE_URL")
	setStr(&cfg.Birdeye.ApiKey, "SKULL_BIRDEYE_API_KEY")
	setStr(&cfg.Birdeye.ApiKey, "BIRDEYE_API_KEY") // compatibility alias
	setDuration(&cfg.Birdeye.Timeout, "SKULL_BIRDEYE_TIMEOUT")
	setDuration(&cfg.Birdeye.SolPriceTTL, "SKULL_BIRDEYE_SOL_PRICE_TTL")
	setInt(&cfg.Birdeye.RateLimit, "SKULL_BIRDEYE_RATE_LIMIT")
	setFloat64(&cfg.Birdeye.FallbackSolPrice, "SKULL_BIRDEYE_FALLBACK_SOL_PRICE")

	// ── Sniper ──
	setBool(&cfg.Sniper.Enabled, "SKULL_SNIPER_ENABLED")
	setFloat64(&cfg.Sniper.BuyAmountSol, "SKULL_SNIPER_BUY_AMOUNT_SOL")
	setInt(&cfg.Sniper.Slippage, "SKULL_SNIPER_SLIPPAGE")
	setFloat64(&cfg.Sniper.TakeProfit, "SKULL_SNIPER_TAKE_PROFIT")
	setFloat64(&cfg.Sniper.StopLoss, "SKULL_SNIPER_STOP_LOSS")
	setDuration(&cfg.Sniper.EnrichDelay, "SKULL_SNIPER_ENRICH_DELAY")
	setDuration(&cfg.Sniper.MonitorInterval, "SKULL_SNIPER_MONITOR_INTERVAL")
	setDuration(&cfg.Sniper.StatusInterval, "SKULL_SNIPER_STATUS_INTERVAL")
	setInt(&cfg.Sniper.MaxOpenPositions, "SKULL_SNIPER_MAX_OPEN_POSITIONS")
	setDuration(&cfg.Sniper.MintLockTTL, "SKULL_SNIPER_MINT_LOCK_TTL")
	setDuration(&cfg.Sniper.TradeTimeout, "SKULL_SNIPER_TRADE_TIMEOUT")

	// ── Scoring ──
	setFloat64(&cfg.Scoring.MinLiquidity, "SKULL_SCORING_MIN_LIQUIDITY")
	setFloat64(&cfg.Scoring.MaxMcap, "SKULL_SCORING_MAX_MCAP")
	setFloat64(&cfg.Scoring.SweetMin, "SKULL_SCORING_SWEET_MIN")
	setFloat64(&cfg.Scoring.SweetMax, "SKULL_SCORING_SWEET_MAX")
	setFloat64(&cfg.Scoring.MaxAllowed, "SKULL_SCORING_MAX_ALLOWED")

	// ── Supabase ──
	setStr(&cfg.Supabase.DSN, "SKULL_SUPABASE_DSN")
	setStr(&cfg.Supabase.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Supabase.Host, "SKULL_SUPABASE_HOST")
	setInt(&cfg.Supabase.Port, "SKULL_SUPABASE_PORT")
	setStr(&cfg.Supabase.Database, "SKULL_SUPABASE_DATABASE")
	setStr(&cfg.Supabase.User, "SKULL_SUPABASE_USER")
	setStr(&cfg.Supabase.Password, "SKULL_SUPABASE_PASSWORD")
	setStr(&cfg.Supabase.SSLMode, "SKULL_SUPABASE_SSL_MODE")
	setInt(&cfg.Supabase.PoolMaxConns, "SKULL_SUPABASE_POOL_MAX_CONNS")
	setInt(&cfg.Supabase.PoolMinConns, "SKULL_SUPABASE_POOL_MIN_CONNS")
	setBool(&cfg.Supabase.RunMigrations, "SKULL_SUPABASE_RUN_MIGRATIONS")
	setDuration(&cfg.Supabase.StatementTimeout, "SKULL_SUPABASE_STATEMENT_TIMEOUT")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "SKULL_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SKULL_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SKULL_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SKULL_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SKULL_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SKULL_REDIS_TLS_ENABLED")

	// ── ClickHouse ──
	setStr(&cfg.ClickHouse.DSN, "SKULL_CLICKHOUSE_DSN")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "SKULL_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "SKULL_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SKULL_S3_REGION")
	setStr(&cfg.S3.Bucket, "SKULL_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "SKULL_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SKULL_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "SKULL_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "SKULL_S3_FORCE_PATH_STYLE")
	setInt(&cfg.S3.ArchiveRetentionDays, "SKULL_S3_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.S3.ArchiveInterval, "SKULL_S3_ARCHIVE_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "SKULL_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "SKULL_SERVER_PORT")
	setInt(&cfg.Server.Port, "PORT") // compatibility alias
	setStringSlice(&cfg.Server.CORSOrigins, "SKULL_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.ApiKey, "SKULL_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimitRPS, "SKULL_SERVER_RATE_LIMIT_RPS")
	setInt(&cfg.Server.RateLimitBurst, "SKULL_SERVER_RATE_LIMIT_BURST")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SKULL_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SKULL_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SKULL_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "SKULL_NOTIFY_EVENTS")

	// ── Metrics ──
	setBool(&cfg.Metrics.Enabled, "SKULL_METRICS_ENABLED")

	// ── Top-level ──
	setStr(&cfg.Mode, "SKULL_MODE")
	setStr(&cfg.LogLevel, "SKULL_LOG_LEVEL")
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

// Package config defines the top-level configuration for the skull agent
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by SKULL_* environment variables.
type Config struct {
	Wallet     WalletConfig     `toml:"wallet"`
	PumpPortal PumpPortalConfig `toml:"pumpportal"`
	Solana     SolanaConfig     `toml:"solana"`
	Birdeye    BirdeyeConfig    `toml:"birdeye"`
	Sniper     SniperConfig     `toml:"sniper"`
	Scoring    ScoringConfig    `toml:"scoring"`
	Supabase   SupabaseConfig   `toml:"supabase"`
	Redis      RedisConfig      `toml:"redis"`
	ClickHouse ClickHouseConfig `toml:"clickhouse"`
	S3         S3Config         `toml:"s3"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Metrics    MetricsConfig    `toml:"metrics"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// WalletConfig holds the Solana signing key. PrivateKey accepts a JSON byte
// array, base58 or base64 encoding of the 64-byte secret key.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// HasKey reports whether any signing key source is configured.
func (w WalletConfig) HasKey() bool {
	return w.PrivateKey != "" || w.EncryptedKeyPath != ""
}

// PumpPortalConfig holds the market feed and trade builder endpoints.
type PumpPortalConfig struct {
	WsURL         string   `toml:"ws_url"`
	TradeURL      string   `toml:"trade_url"`
	ClaimURL      string   `toml:"claim_url"`
	Pool          string   `toml:"pool"`
	PriorityFee   float64  `toml:"priority_fee"`
	ReconnectBase duration `toml:"reconnect_base"`
	ReconnectCap  duration `toml:"reconnect_cap"`
	MaxRetries    int      `toml:"max_retries"`
	// SubscriptionCapacity bounds the set of tokens watched for trades.
	SubscriptionCapacity int `toml:"subscription_capacity"`
}

// SolanaConfig holds the RPC endpoint used for submission and balances.
type SolanaConfig struct {
	RPCURL     string   `toml:"rpc_url"`
	Timeout    duration `toml:"timeout"`
	MaxRetries int      `toml:"max_retries"`
}

// BirdeyeConfig holds the market data provider credentials.
type BirdeyeConfig struct {
	BaseURL     string   `toml:"base_url"`
	ApiKey      string   `toml:"api_key"`
	Timeout     duration `toml:"timeout"`
	SolPriceTTL duration `toml:"sol_price_ttl"`
	// RateLimit caps lookups per second when Redis is configured. Zero disables.
	RateLimit int `toml:"rate_limit"`
	// FallbackSolPrice is used when no SOL price was ever fetched.
	FallbackSolPrice float64 `toml:"fallback_sol_price"`
}

// SniperConfig holds entry and exit parameters for automatic trading.
type SniperConfig struct {
	Enabled          bool     `toml:"enabled"`
	BuyAmountSol     float64  `toml:"buy_amount_sol"`
	Slippage         int      `toml:"slippage"`
	TakeProfit       float64  `toml:"take_profit"`
	StopLoss         float64  `toml:"stop_loss"`
	EnrichDelay      duration `toml:"enrich_delay"`
	MonitorInterval  duration `toml:"monitor_interval"`
	StatusInterval   duration `toml:"status_interval"`
	MaxOpenPositions int      `toml:"max_open_positions"`
	MintLockTTL      duration `toml:"mint_lock_ttl"`
	TradeTimeout     duration `toml:"trade_timeout"`
}

// ScoringConfig holds scoring thresholds and weights. Liquidity and market
// cap figures are USD.
type ScoringConfig struct {
	// Hard gates.
	MinLiquidity float64 `toml:"min_liquidity"`
	MaxMcap      float64 `toml:"max_mcap"`

	LiquidityExcellent float64 `toml:"liquidity_excellent"`
	LiquidityGood      float64 `toml:"liquidity_good"`
	LiquidityMinimum   float64 `toml:"liquidity_minimum"`

	SweetMin   float64 `toml:"sweet_min"`
	SweetMax   float64 `toml:"sweet_max"`
	MaxAllowed float64 `toml:"max_allowed"`

	HoldersExcellent int64 `toml:"holders_excellent"`
	HoldersGood      int64 `toml:"holders_good"`
	HoldersMinimum   int64 `toml:"holders_minimum"`

	LiquidityWeight int `toml:"liquidity_weight"`
	MarketCapWeight int `toml:"market_cap_weight"`
	HoldersWeight   int `toml:"holders_weight"`
	AgeWeight       int `toml:"age_weight"`
}

// SupabaseConfig holds PostgreSQL / Supabase connection parameters. An empty
// DSN and Host selects the in-memory stores.
type SupabaseConfig struct {
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
	// StatementTimeout is sent as the session statement_timeout.
	StatementTimeout duration `toml:"statement_timeout"`
}

// Enabled reports whether a database is configured.
func (s SupabaseConfig) Enabled() bool {
	return strings.TrimSpace(s.DSN) != "" || s.Host != ""
}

// RedisConfig holds Redis connection parameters. An empty Addr disables Redis.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// ClickHouseConfig holds the analytics sink DSN. Empty disables the sink.
type ClickHouseConfig struct {
	DSN string `toml:"dsn"`
}

// S3Config holds S3-compatible object storage parameters used by the archiver.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	// Audit entries older than ArchiveRetentionDays are shipped to the bucket.
	ArchiveRetentionDays int      `toml:"archive_retention_days"`
	ArchiveInterval      duration `toml:"archive_interval"`
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

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// ApiKey protects mutating routes. Empty leaves them open.
	ApiKey         string `toml:"api_key"`
	RateLimitRPS   int    `toml:"rate_limit_rps"`
	RateLimitBurst int    `toml:"rate_limit_burst"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		PumpPortal: PumpPortalConfig{
			WsURL:                "wss://pumpportal.fun/api/data",
			TradeURL:             "https://pumpportal.fun/api/trade-local",
			ClaimURL:             "https://pumpportal.fun/api/claim-fees",
			Pool:                 "pump",
			PriorityFee:          0.001,
			ReconnectBase:        duration{5 * time.Second},
			ReconnectCap:         duration{30 * time.Second},
			MaxRetries:           10,
			SubscriptionCapacity: 100,
		},
		Solana: SolanaConfig{
			RPCURL:     "https://api.mainnet-beta.solana.com",
			Timeout:    duration{30 * time.Second},
			MaxRetries: 3,
		},
		Birdeye: BirdeyeConfig{
			BaseURL:          "https://public-api.birdeye.so",
			Timeout:          duration{10 * time.Second},
			SolPriceTTL:      duration{60 * time.Second},
			RateLimit:        10,
			FallbackSolPrice: 200,
		},
		Sniper: SniperConfig{
			Enabled:          false,
			BuyAmountSol:     0.1,
			Slippage:         15,
			TakeProfit:       100,
			StopLoss:         -50,
			EnrichDelay:      duration{2 * time.Second},
			MonitorInterval:  duration{15 * time.Second},
			StatusInterval:   duration{30 * time.Second},
			MaxOpenPositions: 5,
			MintLockTTL:      duration{2 * time.Minute},
			TradeTimeout:     duration{30 * time.Second},
		},
		Scoring: ScoringConfig{
			MinLiquidity:       1000,
			MaxMcap:            50000,
			LiquidityExcellent: 10000,
			LiquidityGood:      5000,
			LiquidityMinimum:   1000,
			SweetMin:           5000,
			SweetMax:           30000,
			MaxAllowed:         100000,
			HoldersExcellent:   100,
			HoldersGood:        50,
			HoldersMinimum:     10,
			LiquidityWeight:    25,
			MarketCapWeight:    25,
			HoldersWeight:      15,
			AgeWeight:          15,
		},
		Supabase: SupabaseConfig{
			Port:             5432,
			Database:         "postgres",
			User:             "postgres",
			SSLMode:          "disable",
			PoolMaxConns:     10,
			PoolMinConns:     2,
			RunMigrations:    true,
			StatementTimeout: duration{10 * time.Second},
		},
		Redis: RedisConfig{
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:             "http://localhost:9000",
			Region:               "us-east-1",
			Bucket:               "skull-archive",
			ForcePathStyle:       true,
			ArchiveRetentionDays: 30,
			ArchiveInterval:      duration{24 * time.Hour},
		},
		Server: ServerConfig{
			Enabled:        true,
			Port:           3001,
			CORSOrigins:    []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimitRPS:   20,
			RateLimitBurst: 40,
		},
		Notify: NotifyConfig{
			Events: []string{"snipe_success", "take_profit", "stop_loss", "error"},
		},
		Metrics:  MetricsConfig{Enabled: true},
		Mode:     "snipe",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"snipe":   true,
	"monitor": true,
	"server":  true,
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

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: snipe, monitor, server)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Wallet. A missing key is allowed: the gateway then refuses every trade.
	if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
	}

	if c.PumpPortal.WsURL == "" {
		errs = append(errs, "pumpportal: ws_url must not be empty")
	}
	if c.PumpPortal.TradeURL == "" {
		errs = append(errs, "pumpportal: trade_url must not be empty")
	}
	if c.PumpPortal.ReconnectBase.Duration <= 0 {
		errs = append(errs, "pumpportal: reconnect_base must be > 0")
	}
	if c.PumpPortal.ReconnectCap.Duration < c.PumpPortal.ReconnectBase.Duration {
		errs = append(errs, "pumpportal: reconnect_cap must be >= reconnect_base")
	}
	if c.PumpPortal.MaxRetries < 1 {
		errs = append(errs, "pumpportal: max_retries must be >= 1")
	}
	if c.PumpPortal.SubscriptionCapacity < 1 {
		errs = append(errs, "pumpportal: subscription_capacity must be >= 1")
	}

	if c.Solana.RPCURL == "" {
		errs = append(errs, "solana: rpc_url must not be empty")
	}

	if c.Birdeye.BaseURL == "" {
		errs = append(errs, "birdeye: base_url must not be empty")
	}
	if c.Birdeye.FallbackSolPrice <= 0 {
		errs = append(errs, "birdeye: fallback_sol_price must be > 0")
	}

	if c.Sniper.BuyAmountSol <= 0 {
		errs = append(errs, "sniper: buy_amount_sol must be > 0")
	}
	if c.Sniper.Slippage < 0 || c.Sniper.Slippage > 100 {
		errs = append(errs, fmt.Sprintf("sniper: slippage must be 0-100, got %d", c.Sniper.Slippage))
	}
	if c.Sniper.TakeProfit <= 0 {
		errs = append(errs, "sniper: take_profit must be > 0")
	}
	if c.Sniper.StopLoss >= 0 {
		errs = append(errs, "sniper: stop_loss must be < 0")
	}
	if c.Sniper.MonitorInterval.Duration <= 0 {
		errs = append(errs, "sniper: monitor_interval must be > 0")
	}
	if c.Sniper.StatusInterval.Duration <= 0 {
		errs = append(errs, "sniper: status_interval must be > 0")
	}
	if c.Sniper.MaxOpenPositions < 1 {
		errs = append(errs, "sniper: max_open_positions must be >= 1")
	}
	if c.Sniper.TradeTimeout.Duration <= 0 {
		errs = append(errs, "sniper: trade_timeout must be > 0")
	}

	errs = append(errs, c.Scoring.validate()...)

	if c.Supabase.Enabled() {
		if c.Supabase.PoolMaxConns < 1 {
			errs = append(errs, "supabase: pool_max_conns must be >= 1")
		}
		if c.Supabase.PoolMinConns > c.Supabase.PoolMaxConns {
			errs = append(errs, "supabase: pool_min_conns must not exceed pool_max_conns")
		}
		if c.Supabase.StatementTimeout.Duration < 0 {
			errs = append(errs, "supabase: statement_timeout must not be negative")
		}
	}

	if c.Redis.Addr != "" && c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.ArchiveRetentionDays < 1 {
			errs = append(errs, "s3: archive_retention_days must be >= 1")
		}
		if c.S3.ArchiveInterval.Duration <= 0 {
			errs = append(errs, "s3: archive_interval must be > 0")
		}
	}

	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if c.Notify.TelegramToken != "" && c.Notify.TelegramChatID == "" {
		errs = append(errs, "notify: telegram_chat_id is required when telegram_token is set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ConnString builds the PostgreSQL connection string from either the explicit DSN or
// the individual host fields.
func (s SupabaseConfig) ConnString() string {
	if strings.TrimSpace(s.DSN) != "" {
		return s.DSN
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		s.User, s.Password, s.Host, s.Port, s.Database, s.SSLMode)
}

func (s ScoringConfig) validate() []string {
	var errs []string
	if s.MinLiquidity < 0 {
		errs = append(errs, "scoring: min_liquidity must be >= 0")
	}
	if s.MaxMcap <= 0 {
		errs = append(errs, "scoring: max_mcap must be > 0")
	}
	if !(s.LiquidityMinimum < s.LiquidityGood && s.LiquidityGood < s.LiquidityExcellent) {
		errs = append(errs, "scoring: liquidity tiers must ascend (minimum < good < excellent)")
	}
	if !(s.HoldersMinimum < s.HoldersGood && s.HoldersGood < s.HoldersExcellent) {
		errs = append(errs, "scoring: holder tiers must ascend (minimum < good < excellent)")
	}
	if !(s.SweetMin <= s.SweetMax && s.SweetMax <= s.MaxAllowed) {
		errs = append(errs, "scoring: require sweet_min <= sweet_max <= max_allowed")
	}
	if s.LiquidityWeight <= 0 || s.MarketCapWeight <= 0 || s.HoldersWeight <= 0 || s.AgeWeight <= 0 {
		errs = append(errs, "scoring: weights must be positive")
	}
	return errs
}

package config

import (
	"net/url"
	"slices"
)

const redacted = "***"

// RedactedConfig returns a copy of cfg that is safe to log. Secrets are
// replaced by "***". Endpoint URLs keep scheme, host and path but lose
// their credentials and query, where RPC providers put the API key.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	for _, s := range []*string{
		&out.Wallet.PrivateKey,
		&out.Wallet.KeyPassword,
		&out.Birdeye.ApiKey,
		&out.Supabase.Password,
		&out.Redis.Password,
		&out.S3.AccessKey,
		&out.S3.SecretKey,
		&out.Server.ApiKey,
		&out.Notify.TelegramToken,
	} {
		redact(s)
	}

	for _, s := range []*string{
		&out.Solana.RPCURL,
		&out.Supabase.DSN,
		&out.ClickHouse.DSN,
		&out.Notify.DiscordWebhookURL,
	} {
		redactURL(s)
	}

	out.Notify.Events = slices.Clone(cfg.Notify.Events)
	out.Server.CORSOrigins = slices.Clone(cfg.Server.CORSOrigins)
	return out
}

func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}

// redactURL strips userinfo and query from a URL. Discord webhook tokens
// live in the path, so webhook URLs are replaced whole.
func redactURL(s *string) {
	if *s == "" {
		return
	}
	u, err := url.Parse(*s)
	if err != nil || u.Host == "" || u.Host == "discord.com" || u.Host == "discordapp.com" {
		*s = redacted
		return
	}
	if u.User != nil {
		u.User = url.User(redacted)
	}
	if u.RawQuery != "" {
		u.RawQuery = redacted
	}
	*s = u.String()
}

package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/vitorsaz/skull-agent/internal/blob/s3"
	"github.com/vitorsaz/skull-agent/internal/cache/local"
	"github.com/vitorsaz/skull-agent/internal/cache/redis"
	"github.com/vitorsaz/skull-agent/internal/config"
	"github.com/vitorsaz/skull-agent/internal/domain"
	"github.com/vitorsaz/skull-agent/internal/executor"
	"github.com/vitorsaz/skull-agent/internal/notify"
	"github.com/vitorsaz/skull-agent/internal/observability"
	"github.com/vitorsaz/skull-agent/internal/service"
	"github.com/vitorsaz/skull-agent/internal/store/clickhouse"
	"github.com/vitorsaz/skull-agent/internal/store/memory"
	"github.com/vitorsaz/skull-agent/internal/store/postgres"
)

// Dependencies bundles the infrastructure the application modes run on. It is
// constructed by Wire and torn down by the returned cleanup function.
// Optional pieces are nil when their backend is not configured.
type Dependencies struct {
	// Stores
	Stores service.Stores

	// Caches
	PriceCache  domain.PriceCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus
	// Dedup is set when LockManager is the in-process fallback.
	Dedup *executor.Dedup

	// Analytics
	ScoreHistory domain.ScoreHistoryStore
	PriceTicks   domain.PriceTickStore

	// Blob storage
	BlobWriter domain.BlobWriter
	Archiver   domain.Archiver

	// Notifications
	Notifier *notify.Notifier

	Metrics *observability.Metrics
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	if cfg.Metrics.Enabled {
		deps.Metrics = observability.NewMetrics("skull")
	}

	// --- PostgreSQL, or in-memory stores ---
	var (
		auditArchive domain.AuditArchiveStore
		closedSource s3blob.PositionSource
	)
	if cfg.Supabase.Enabled() {
		pgClient, err := postgres.New(ctx, postgres.ConfigFrom(cfg.Supabase))
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Supabase.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pg := pgClient.Stores()
		deps.Stores = service.Stores{
			Tokens:    pg.Tokens,
			Trades:    pg.Trades,
			Positions: pg.Positions,
			Audit:     pg.Audit,
			Status:    pg.Status,
		}
		auditArchive = pg.Audit
		closedSource = pg.Positions
	} else {
		logger.Warn("wire: no database configured, using in-memory stores")
		audit := memory.NewAuditStore()
		positions := memory.NewPositionStore()
		deps.Stores = service.Stores{
			Tokens:    memory.NewTokenStore(),
			Trades:    memory.NewTradeStore(),
			Positions: positions,
			Audit:     audit,
			Status:    memory.NewStatusStore(),
		}
		auditArchive = audit
		closedSource = positions
	}

	// --- Redis, or in-process fallbacks ---
	if cfg.Redis.Addr != "" {
		redisClient, err := redis.New(ctx, redis.ConfigFrom(cfg.Redis))
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.PriceCache = redis.NewPriceCache(redisClient, cfg.Birdeye.SolPriceTTL.Duration)
		deps.RateLimiter = redis.NewRateLimiter(redisClient, cfg.Birdeye.RateLimit, time.Second)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
	} else {
		deps.PriceCache = local.NewPriceCache(cfg.Birdeye.SolPriceTTL.Duration)
		deps.Dedup = executor.NewDedup()
		deps.LockManager = deps.Dedup
		deps.SignalBus = local.NewBus()
	}

	// --- ClickHouse analytics ---
	if cfg.ClickHouse.DSN != "" {
		chConn, err := clickhouse.NewConn(ctx, cfg.ClickHouse.DSN)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: clickhouse: %w", err)
		}
		closers = append(closers, func() { _ = chConn.Close() })

		if err := chConn.Migrate(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: clickhouse migrations: %w", err)
		}
		deps.ScoreHistory = clickhouse.NewScoreHistoryStore(chConn)
		deps.PriceTicks = clickhouse.NewPriceTickStore(chConn)
	}

	// --- S3 archive ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ConfigFrom(cfg.S3))
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		if err := s3Client.Health(ctx); err != nil {
			logger.Warn("wire: archive bucket unreachable, uploads will be retried",
				slog.String("error", err.Error()),
			)
		}
		writer := s3blob.NewWriter(s3Client)
		deps.BlobWriter = writer
		deps.Archiver = s3blob.NewArchiver(writer, auditArchive, closedSource)
	}

	// --- Notifications ---
	deps.Notifier = notify.FromConfig(cfg.Notify, logger)

	return deps, cleanup, nil
}

// Migrate applies the Postgres migrations and exits.
func Migrate(ctx context.Context, cfg *config.Config) error {
	if !cfg.Supabase.Enabled() {
		return fmt.Errorf("app: migrate: no database configured")
	}
	pgClient, err := postgres.New(ctx, postgres.ConfigFrom(cfg.Supabase))
	if err != nil {
		return fmt.Errorf("app: migrate: %w", err)
	}
	defer pgClient.Close()

	if err := pgClient.RunMigrations(ctx); err != nil {
		return fmt.Errorf("app: migrate: %w", err)
	}
	return nil
}

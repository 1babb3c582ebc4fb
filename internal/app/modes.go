package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vitorsaz/skull-agent/internal/crypto"
	"github.com/vitorsaz/skull-agent/internal/domain"
	"github.com/vitorsaz/skull-agent/internal/executor"
	"github.com/vitorsaz/skull-agent/internal/feed"
	"github.com/vitorsaz/skull-agent/internal/platform/birdeye"
	"github.com/vitorsaz/skull-agent/internal/platform/pumpportal"
	"github.com/vitorsaz/skull-agent/internal/platform/solana"
	"github.com/vitorsaz/skull-agent/internal/scoring"
	"github.com/vitorsaz/skull-agent/internal/server"
	"github.com/vitorsaz/skull-agent/internal/server/handler"
	"github.com/vitorsaz/skull-agent/internal/server/ws"
	"github.com/vitorsaz/skull-agent/internal/service"
)

const (
	tokenBookCapacity = 1000
	relayQueueSize    = 1024
	dedupCleanup      = time.Minute
)

// pipeline is the live trading loop: feed, coordinator, supervisor and
// status reporter.
type pipeline struct {
	rpc        *solana.HTTPClient
	feed       *feed.Manager
	relay      *feed.BusRelay
	coord      *service.Coordinator
	supervisor *service.Supervisor
	status     *service.StatusReporter
}

// SnipeMode runs the full pipeline with trade execution, plus the HTTP
// server and the archiver.
func (a *App) SnipeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting snipe mode",
		slog.Bool("sniper_enabled", a.cfg.Sniper.Enabled),
		slog.Float64("buy_amount_sol", a.cfg.Sniper.BuyAmountSol),
	)
	return a.runPipeline(ctx, deps, true)
}

// MonitorMode runs scoring and supervision with execution refused.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode, trades will not be executed")
	return a.runPipeline(ctx, deps, false)
}

// ServerMode serves the REST and websocket API over the stores only.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startBackground(ctx, g, deps)

	status := storedStatus{store: deps.Stores.Status}
	a.startHTTPServer(ctx, g, deps, status, nil, nil, func() any { return status.Current() })

	return g.Wait()
}

func (a *App) runPipeline(ctx context.Context, deps *Dependencies, execute bool) error {
	g, ctx := errgroup.WithContext(ctx)

	p := a.buildPipeline(ctx, deps, execute)

	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := p.rpc.GetHealth(healthCtx); err != nil {
		a.logger.WarnContext(ctx, "solana rpc unhealthy, balances and submissions may fail",
			slog.String("error", err.Error()),
		)
	}
	cancel()

	p.coord.Bind(ctx)
	g.Go(func() error {
		return p.coord.Run(ctx)
	})
	g.Go(func() error {
		return p.relay.Run(ctx)
	})
	g.Go(func() error {
		return p.status.Run(ctx)
	})
	g.Go(func() error {
		return p.supervisor.Run(ctx)
	})
	g.Go(func() error {
		return p.feed.Run(ctx)
	})

	a.startBackground(ctx, g, deps)

	connected := func() bool { return p.feed.State() == domain.ConnConnected }
	a.startHTTPServer(ctx, g, deps, p.status, connected, p.coord, func() any { return p.status.Current() })

	return g.Wait()
}

// buildPipeline constructs the trading components. With execute false, or
// without a usable key, the gateway refuses every trade.
func (a *App) buildPipeline(ctx context.Context, deps *Dependencies, execute bool) *pipeline {
	cfg := a.cfg

	rpc := solana.NewHTTPClient(cfg.Solana.RPCURL,
		solana.WithTimeout(cfg.Solana.Timeout.Duration),
		solana.WithMaxRetries(cfg.Solana.MaxRetries),
	)

	wallet, key := a.loadWallet(ctx)
	var signer executor.TxSigner
	if execute && key != nil {
		signer = key
	}
	gateway := executor.NewGateway(
		pumpportal.NewTradeClient(cfg.PumpPortal.TradeURL, cfg.PumpPortal.ClaimURL, cfg.PumpPortal.Pool, cfg.PumpPortal.PriorityFee),
		signer,
		rpc,
		cfg.Sniper.TradeTimeout.Duration,
		deps.Metrics,
		a.logger,
	)

	var limiter domain.RateLimiter
	if deps.RateLimiter != nil && cfg.Birdeye.RateLimit > 0 {
		limiter = deps.RateLimiter
	}
	market := service.NewMarketData(
		birdeye.NewClient(cfg.Birdeye.BaseURL, cfg.Birdeye.ApiKey, cfg.Birdeye.Timeout.Duration),
		deps.PriceCache,
		limiter,
		service.MarketDataConfig{FallbackSolPrice: cfg.Birdeye.FallbackSolPrice},
		deps.Metrics,
		a.logger,
	)

	book := service.NewTokenBook(tokenBookCapacity)
	stats := service.NewStats()
	journal := service.NewJournal(deps.Stores.Audit, deps.SignalBus, deps.Notifier, a.logger)

	var balances service.BalanceSource
	if wallet != "" {
		balances = rpc
	}
	status := service.NewStatusReporter(deps.Stores.Status, balances, wallet, stats,
		cfg.Sniper.StatusInterval.Duration, deps.Metrics, a.logger)

	coord := service.NewCoordinator(service.CoordinatorConfig{
		SniperEnabled:    execute && cfg.Sniper.Enabled,
		BuyAmountSol:     cfg.Sniper.BuyAmountSol,
		Slippage:         cfg.Sniper.Slippage,
		EnrichDelay:      cfg.Sniper.EnrichDelay.Duration,
		MaxOpenPositions: cfg.Sniper.MaxOpenPositions,
		MintLockTTL:      cfg.Sniper.MintLockTTL.Duration,
	}, service.CoordinatorDeps{
		Stores:    deps.Stores,
		Book:      book,
		Market:    market,
		Engine:    scoring.NewEngine(cfg.Scoring),
		Gateway:   gateway,
		Locks:     deps.LockManager,
		Journal:   journal,
		Stats:     stats,
		Analytics: deps.ScoreHistory,
		Status:    status,
		Metrics:   deps.Metrics,
	}, a.logger)
	status.SetSniperSource(coord.SniperEnabled)

	relay := feed.NewBusRelay(deps.SignalBus, relayQueueSize, a.logger)

	var accounts []string
	if wallet != "" {
		accounts = []string{wallet}
	}
	manager := feed.NewManager(feed.Config{
		URL:                  cfg.PumpPortal.WsURL,
		ReconnectBase:        cfg.PumpPortal.ReconnectBase.Duration,
		ReconnectCap:         cfg.PumpPortal.ReconnectCap.Duration,
		MaxRetries:           cfg.PumpPortal.MaxRetries,
		SubscriptionCapacity: cfg.PumpPortal.SubscriptionCapacity,
		AccountKeys:          accounts,
	}, feed.Observers{coord, relay}, a.logger, feed.WithMetrics(deps.Metrics))
	coord.SetFeed(manager)

	supervisor := service.NewSupervisor(service.SupervisorConfig{
		Interval:    cfg.Sniper.MonitorInterval.Duration,
		TakeProfit:  cfg.Sniper.TakeProfit,
		StopLoss:    cfg.Sniper.StopLoss,
		Slippage:    cfg.Sniper.Slippage,
		ExitLockTTL: cfg.Sniper.MintLockTTL.Duration,
	}, service.SupervisorDeps{
		Positions: deps.Stores.Positions,
		Prices:    market,
		Book:      book,
		Gateway:   gateway,
		Locks:     deps.LockManager,
		Journal:   journal,
		Stats:     stats,
		Ticks:     deps.PriceTicks,
		Metrics:   deps.Metrics,
	}, a.logger)

	return &pipeline{
		rpc:        rpc,
		feed:       manager,
		relay:      relay,
		coord:      coord,
		supervisor: supervisor,
		status:     status,
	}
}

// loadWallet resolves the signing key. A missing or unreadable key is not
// fatal: the agent runs in observer mode.
func (a *App) loadWallet(ctx context.Context) (string, *crypto.Signer) {
	if !a.cfg.Wallet.HasKey() {
		a.logger.WarnContext(ctx, "no signing key configured, running in observer mode")
		return "", nil
	}

	key, err := crypto.LoadKey(crypto.KeyConfig{
		RawPrivateKey:    a.cfg.Wallet.PrivateKey,
		EncryptedKeyPath: a.cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      a.cfg.Wallet.KeyPassword,
	})
	if err != nil {
		a.logger.WarnContext(ctx, "signing key unusable, running in observer mode",
			slog.String("error", err.Error()),
		)
		return "", nil
	}
	signer, err := crypto.NewSigner(key)
	if err != nil {
		a.logger.WarnContext(ctx, "signing key unusable, running in observer mode",
			slog.String("error", err.Error()),
		)
		return "", nil
	}

	a.logger.InfoContext(ctx, "wallet loaded", slog.String("wallet", signer.Address()))
	return signer.Address(), signer
}

// startBackground adds the maintenance loops every mode shares.
func (a *App) startBackground(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Dedup != nil {
		g.Go(func() error {
			deps.Dedup.RunCleanup(ctx, dedupCleanup)
			return nil
		})
	}

	if deps.Archiver != nil {
		job := service.NewArchiveJob(deps.Archiver, a.cfg.S3.ArchiveRetentionDays, a.logger)
		g.Go(func() error {
			return job.Run(ctx, a.cfg.S3.ArchiveInterval.Duration)
		})
	}
}

// startHTTPServer adds the API server and websocket hub to g when the server
// is enabled. ctl is nil when no pipeline runs in this process, which turns
// the control routes into 503s.
func (a *App) startHTTPServer(
	ctx context.Context,
	g *errgroup.Group,
	deps *Dependencies,
	status handler.StatusSource,
	connected func() bool,
	ctl handler.Controller,
	snapshot func() any,
) {
	if !a.cfg.Server.Enabled {
		return
	}

	hub := ws.NewHub(deps.SignalBus, snapshot, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(status, connected, a.logger),
		Status:    handler.NewStatusHandler(status, connected, deps.Stores.Positions, deps.Stores.Audit, a.logger),
		Tokens:    handler.NewTokenHandler(deps.Stores.Tokens, deps.Stores.Audit, a.logger),
		Positions: handler.NewPositionHandler(deps.Stores.Positions, a.logger),
		Control:   handler.NewControlHandler(ctl, a.logger),
	}
	if deps.Metrics != nil {
		handlers.Metrics = deps.Metrics.Handler()
	}

	srv := server.NewServer(server.ConfigFrom(a.cfg.Server), handlers, hub, deps.RateLimiter, a.logger)
	g.Go(func() error {
		return srv.Run(ctx)
	})
}

// storedStatus reads the status row written by a pipeline process.
type storedStatus struct {
	store domain.StatusStore
}

func (s storedStatus) Current() domain.SystemStatus {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	st, err := s.store.Get(ctx)
	if err != nil {
		return domain.SystemStatus{Status: domain.SystemOffline}
	}
	return st
}

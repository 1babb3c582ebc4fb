package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vitorsaz/skull-agent/internal/domain"
	"github.com/vitorsaz/skull-agent/internal/observability"
)

// BalanceSource reads a wallet's SOL balance. *solana.HTTPClient satisfies
// it.
type BalanceSource interface {
	GetBalance(ctx context.Context, address string) (float64, error)
}

// StatusReporter owns the single system status row. It refreshes the wallet
// balance and pushes the counters on a timer, and on every feed state
// change.
type StatusReporter struct {
	store    domain.StatusStore
	balances BalanceSource
	wallet   string
	stats    *Stats
	interval time.Duration
	metrics  *observability.Metrics
	logger   *slog.Logger

	mu      sync.Mutex
	state   string
	balance float64
	sniper  func() bool
}

// NewStatusReporter creates a StatusReporter. balances may be nil and wallet
// empty in observer mode.
func NewStatusReporter(
	store domain.StatusStore,
	balances BalanceSource,
	wallet string,
	stats *Stats,
	interval time.Duration,
	metrics *observability.Metrics,
	logger *slog.Logger,
) *StatusReporter {
	return &StatusReporter{
		store:    store,
		balances: balances,
		wallet:   wallet,
		stats:    stats,
		interval: interval,
		metrics:  metrics,
		logger:   logger.With(slog.String("component", "status")),
		state:    domain.SystemStarting,
		sniper:   func() bool { return false },
	}
}

// SetSniperSource tells the reporter where to read the sniper toggle.
func (r *StatusReporter) SetSniperSource(f func() bool) {
	r.mu.Lock()
	r.sniper = f
	r.mu.Unlock()
}

// Run pushes STARTING, then refreshes every interval. On shutdown it pushes
// OFFLINE.
func (r *StatusReporter) Run(ctx context.Context) error {
	r.Refresh(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.setState(domain.SystemOffline)
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			r.Push(shutdownCtx)
			cancel()
			return ctx.Err()
		case <-ticker.C:
			r.Refresh(ctx)
		}
	}
}

// Refresh re-reads the wallet balance and pushes the row.
func (r *StatusReporter) Refresh(ctx context.Context) {
	if r.wallet != "" && r.balances != nil {
		bal, err := r.balances.GetBalance(ctx, r.wallet)
		if err != nil {
			r.logger.WarnContext(ctx, "status: balance refresh failed",
				slog.String("error", err.Error()),
			)
		} else {
			r.mu.Lock()
			r.balance = bal
			r.mu.Unlock()
			r.metrics.SetBalance(bal)
		}
	}
	r.Push(ctx)
}

// FeedChanged moves the row to HUNTING or OFFLINE and pushes it.
func (r *StatusReporter) FeedChanged(ctx context.Context, connected bool) {
	if connected {
		r.setState(domain.SystemHunting)
	} else {
		r.setState(domain.SystemOffline)
	}
	r.Push(ctx)
}

// Push writes the current row.
func (r *StatusReporter) Push(ctx context.Context) {
	sctx, cancel := withStoreTimeout(ctx)
	defer cancel()
	if err := r.store.Upsert(sctx, r.Current()); err != nil {
		r.logger.WarnContext(ctx, "status: push failed", slog.String("error", err.Error()))
	}
}

// Current builds the row from the live counters.
func (r *StatusReporter) Current() domain.SystemStatus {
	snap := r.stats.Snapshot()

	r.mu.Lock()
	defer r.mu.Unlock()
	return domain.SystemStatus{
		Status:         r.state,
		WalletAddress:  r.wallet,
		BalanceSol:     r.balance,
		SniperEnabled:  r.sniper(),
		TokensScanned:  snap.TokensScanned,
		SnipesExecuted: snap.SnipesExecuted,
		Kills:          snap.Kills,
		Deaths:         snap.Deaths,
		TotalPnL:       snap.TotalPnL,
		UpdatedAt:      time.Now().UTC(),
	}
}

func (r *StatusReporter) setState(s string) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

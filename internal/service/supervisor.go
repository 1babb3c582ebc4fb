package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/vitorsaz/skull-agent/internal/domain"
	"github.com/vitorsaz/skull-agent/internal/observability"
)

// PriceSource returns the current USD price of a token, or zero when none
// is available.
type PriceSource interface {
	CurrentPrice(ctx context.Context, ca string, snap domain.TokenSnapshot, haveSnap bool) float64
}

// SupervisorConfig holds the exit policy. TakeProfit and StopLoss are
// percentages; StopLoss is negative. ExitLockTTL bounds the per-mint exit
// lock shared with manual dumps.
type SupervisorConfig struct {
	Interval    time.Duration
	TakeProfit  float64
	StopLoss    float64
	Slippage    int
	ExitLockTTL time.Duration
}

const defaultExitLockTTL = 2 * time.Minute

// exitLockKey serializes sells of one mint between the supervisor and
// manual dumps.
func exitLockKey(ca string) string { return "exit:" + ca }

// Supervisor polls open positions, refreshes their price and P&L, and sells
// everything when take-profit or stop-loss fires. A failed sell leaves the
// position open for the next tick. A sell whose close could not be persisted
// is remembered and only the close is retried.
type Supervisor struct {
	cfg       SupervisorConfig
	positions domain.PositionStore
	prices    PriceSource
	book      *TokenBook
	gateway   Gateway
	locks     domain.LockManager
	journal   *Journal
	stats     *Stats
	ticks     domain.PriceTickStore
	metrics   *observability.Metrics
	logger    *slog.Logger

	mu      sync.Mutex
	pending map[string]settledExit
}

// settledExit is a sell that went through on chain but whose position row
// is still open.
type settledExit struct {
	pos    domain.Position
	price  float64
	pnl    float64
	reason domain.ExitReason
	sig    string
}

// SupervisorDeps are the collaborators of a Supervisor. Locks, Ticks and
// Metrics are optional.
type SupervisorDeps struct {
	Positions domain.PositionStore
	Prices    PriceSource
	Book      *TokenBook
	Gateway   Gateway
	Locks     domain.LockManager
	Journal   *Journal
	Stats     *Stats
	Ticks     domain.PriceTickStore
	Metrics   *observability.Metrics
}

// NewSupervisor creates a Supervisor.
func NewSupervisor(cfg SupervisorConfig, deps SupervisorDeps, logger *slog.Logger) *Supervisor {
	if cfg.ExitLockTTL <= 0 {
		cfg.ExitLockTTL = defaultExitLockTTL
	}
	return &Supervisor{
		cfg:       cfg,
		positions: deps.Positions,
		prices:    deps.Prices,
		book:      deps.Book,
		gateway:   deps.Gateway,
		locks:     deps.Locks,
		journal:   deps.Journal,
		stats:     deps.Stats,
		ticks:     deps.Ticks,
		metrics:   deps.Metrics,
		logger:    logger.With(slog.String("component", "supervisor")),
		pending:   make(map[string]settledExit),
	}
}

// Run ticks every Interval until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "supervisor: started",
		slog.Duration("interval", s.cfg.Interval),
		slog.Float64("take_profit", s.cfg.TakeProfit),
		slog.Float64("stop_loss", s.cfg.StopLoss),
	)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick settles outstanding closes, then evaluates every open position once.
func (s *Supervisor) Tick(ctx context.Context) {
	s.settlePending(ctx)

	sctx, cancel := withStoreTimeout(ctx)
	open, err := s.positions.GetOpen(sctx)
	cancel()
	if err != nil {
		s.logger.WarnContext(ctx, "supervisor: list open positions failed",
			slog.String("error", err.Error()),
		)
		return
	}
	s.metrics.SupervisorTick(len(open))

	ticks := make([]domain.PriceTick, 0, len(open))
	for _, p := range open {
		if ctx.Err() != nil {
			return
		}
		if s.isPending(p.ID) {
			continue
		}
		if tick, ok := s.evaluate(ctx, p); ok {
			ticks = append(ticks, tick)
		}
	}

	if s.ticks != nil && len(ticks) > 0 {
		sctx, cancel := withStoreTimeout(ctx)
		defer cancel()
		if err := s.ticks.InsertTicks(sctx, ticks); err != nil {
			s.logger.WarnContext(ctx, "supervisor: analytics insert failed",
				slog.String("error", err.Error()),
			)
		}
	}
}

// evaluate refreshes one position and applies the exit rules. ok is false
// when the position was skipped.
func (s *Supervisor) evaluate(ctx context.Context, p domain.Position) (domain.PriceTick, bool) {
	snap, haveSnap := s.book.Get(p.ContractAddress)
	price := s.prices.CurrentPrice(ctx, p.ContractAddress, snap, haveSnap)
	if price <= 0 {
		return domain.PriceTick{}, false
	}
	pnl, ok := p.PnLPercentAt(price)
	if !ok {
		return domain.PriceTick{}, false
	}

	sctx, cancel := withStoreTimeout(ctx)
	err := s.positions.UpdatePrice(sctx, p.ID, price, pnl)
	cancel()
	if err != nil {
		if errors.Is(err, domain.ErrPositionClosed) {
			return domain.PriceTick{}, false
		}
		s.logger.WarnContext(ctx, "supervisor: update price failed",
			slog.String("position_id", p.ID),
			slog.String("error", err.Error()),
		)
	}
	tick := domain.PriceTick{
		PositionID:      p.ID,
		ContractAddress: p.ContractAddress,
		PriceUSD:        price,
		PnLPercent:      pnl,
		At:              time.Now().UTC(),
	}

	switch {
	case pnl >= s.cfg.TakeProfit:
		s.exit(ctx, p, price, pnl, domain.ExitReasonTakeProfit)
	case pnl <= s.cfg.StopLoss:
		s.exit(ctx, p, price, pnl, domain.ExitReasonStopLoss)
	}
	return tick, true
}

func (s *Supervisor) exit(ctx context.Context, p domain.Position, price, pnl float64, reason domain.ExitReason) {
	unlock, err := s.lockExit(ctx, p.ContractAddress)
	if err != nil {
		s.logger.InfoContext(ctx, "supervisor: exit deferred, mint is being sold elsewhere",
			slog.String("position_id", p.ID),
			slog.String("ca", p.ContractAddress),
			slog.String("error", err.Error()),
		)
		return
	}
	defer unlock()

	// A manual dump may have closed the row since GetOpen.
	if !s.stillOpen(ctx, p.ID) {
		return
	}

	res, err := s.gateway.Release(ctx, p.ContractAddress, domain.ReleaseAll, s.cfg.Slippage)
	if err != nil {
		s.metrics.Exit(string(reason), false)
		s.journal.Record(ctx, domain.ActionExitFailed, map[string]any{
			"ca":          p.ContractAddress,
			"symbol":      p.Symbol,
			"position_id": p.ID,
			"exit_reason": string(reason),
			"pnl_percent": pnl,
			"reason":      err.Error(),
		})
		return
	}
	s.metrics.Exit(string(reason), true)

	s.mu.Lock()
	s.pending[p.ID] = settledExit{pos: p, price: price, pnl: pnl, reason: reason, sig: res.Signature}
	s.mu.Unlock()
	s.settle(ctx, p.ID)
}

func (s *Supervisor) lockExit(ctx context.Context, ca string) (func(), error) {
	if s.locks == nil {
		return func() {}, nil
	}
	lctx, cancel := withStoreTimeout(ctx)
	defer cancel()
	return s.locks.Acquire(lctx, exitLockKey(ca), s.cfg.ExitLockTTL)
}

func (s *Supervisor) stillOpen(ctx context.Context, id string) bool {
	sctx, cancel := withStoreTimeout(ctx)
	defer cancel()
	p, err := s.positions.GetByID(sctx, id)
	if err != nil {
		s.logger.WarnContext(ctx, "supervisor: reload position failed",
			slog.String("position_id", id),
			slog.String("error", err.Error()),
		)
		return false
	}
	return p.IsOpen()
}

func (s *Supervisor) isPending(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[id]
	return ok
}

func (s *Supervisor) settlePending(ctx context.Context) {
	s.mu.Lock()
	ids := make([]string, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		s.settle(ctx, id)
	}
}

// settle persists the close of a sold position. Stats, audit and the live
// event are emitted once, when the close is stored.
func (s *Supervisor) settle(ctx context.Context, id string) {
	s.mu.Lock()
	e, ok := s.pending[id]
	s.mu.Unlock()
	if !ok {
		return
	}

	sctx, cancel := withStoreTimeout(ctx)
	err := s.positions.Close(sctx, id, e.reason, e.sig, e.pnl)
	cancel()
	if err != nil && !errors.Is(err, domain.ErrPositionClosed) {
		s.logger.ErrorContext(ctx, "supervisor: close position failed, retrying next tick",
			slog.String("position_id", id),
			slog.String("tx", e.sig),
			slog.String("error", err.Error()),
		)
		return
	}

	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
	if err != nil {
		s.logger.WarnContext(ctx, "supervisor: position already closed",
			slog.String("position_id", id),
			slog.String("tx", e.sig),
		)
		return
	}

	p := e.pos
	action := domain.ActionTakeProfit
	if e.reason == domain.ExitReasonTakeProfit {
		s.stats.Kill(e.pnl)
	} else {
		action = domain.ActionStopLoss
		s.stats.Death(e.pnl)
	}
	s.journal.Record(ctx, action, map[string]any{
		"ca":           p.ContractAddress,
		"symbol":       p.Symbol,
		"position_id":  p.ID,
		"pnl_percent":  e.pnl,
		"tx_signature": e.sig,
	})

	pnl := e.pnl
	closedAt := time.Now().UTC()
	p.Status = domain.PositionStatusClosed
	p.PnLPercent = &pnl
	p.CurrentPrice = e.price
	p.ExitReason = e.reason
	p.ExitSignature = e.sig
	p.ClosedAt = &closedAt
	s.journal.Position(ctx, p)

	s.logger.InfoContext(ctx, "supervisor: position closed",
		slog.String("position_id", p.ID),
		slog.String("ca", p.ContractAddress),
		slog.String("reason", string(e.reason)),
		slog.Float64("pnl_percent", e.pnl),
	)
}

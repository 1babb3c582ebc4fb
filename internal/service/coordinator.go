package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/vitorsaz/skull-agent/internal/domain"
	"github.com/vitorsaz/skull-agent/internal/observability"
	"github.com/vitorsaz/skull-agent/internal/scoring"
)

// Gateway executes trades. *executor.Gateway satisfies it.
type Gateway interface {
	HasKey() bool
	Wallet() string
	Acquire(ctx context.Context, mint string, sizeSol float64, slippage int) (domain.ExecutionResult, error)
	Release(ctx context.Context, mint string, amount domain.ReleaseAmount, slippage int) (domain.ExecutionResult, error)
	ClaimFees(ctx context.Context, mint string) (domain.ExecutionResult, error)
}

// Subscriber watches a token's trade stream. *feed.Manager satisfies it.
type Subscriber interface {
	Subscribe(addr string) error
}

// Stores groups the persistence collaborators.
type Stores struct {
	Tokens    domain.TokenStore
	Trades    domain.TradeStore
	Positions domain.PositionStore
	Audit     domain.AuditStore
	Status    domain.StatusStore
}

// CoordinatorConfig holds the acquisition policy.
type CoordinatorConfig struct {
	SniperEnabled    bool
	BuyAmountSol     float64
	Slippage         int
	EnrichDelay      time.Duration
	MaxOpenPositions int
	MintLockTTL      time.Duration
}

// ErrMaxPositions is returned when the open-position cap blocks a buy.
var ErrMaxPositions = errors.New("max open positions reached")

func snipeLockKey(ca string) string { return "snipe:" + ca }

// Coordinator reacts to feed events. Every created token is processed on
// its own goroutine: persist, wait for market data, enrich, score, and buy
// when approved and the sniper is on.
type Coordinator struct {
	cfg       CoordinatorConfig
	stores    Stores
	book      *TokenBook
	market    *MarketData
	engine    *scoring.Engine
	gateway   Gateway
	feed      Subscriber
	locks     domain.LockManager
	journal   *Journal
	stats     *Stats
	analytics domain.ScoreHistoryStore
	status    *StatusReporter
	metrics   *observability.Metrics
	logger    *slog.Logger

	enabled  atomic.Bool
	mu       sync.Mutex
	baseCtx  context.Context
	stopping bool
	wg       sync.WaitGroup
}

// CoordinatorDeps are the collaborators of a Coordinator. Analytics, Status
// and Metrics are optional.
type CoordinatorDeps struct {
	Stores    Stores
	Book      *TokenBook
	Market    *MarketData
	Engine    *scoring.Engine
	Gateway   Gateway
	Feed      Subscriber
	Locks     domain.LockManager
	Journal   *Journal
	Stats     *Stats
	Analytics domain.ScoreHistoryStore
	Status    *StatusReporter
	Metrics   *observability.Metrics
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(cfg CoordinatorConfig, deps CoordinatorDeps, logger *slog.Logger) *Coordinator {
	c := &Coordinator{
		cfg:       cfg,
		stores:    deps.Stores,
		book:      deps.Book,
		market:    deps.Market,
		engine:    deps.Engine,
		gateway:   deps.Gateway,
		feed:      deps.Feed,
		locks:     deps.Locks,
		journal:   deps.Journal,
		stats:     deps.Stats,
		analytics: deps.Analytics,
		status:    deps.Status,
		metrics:   deps.Metrics,
		logger:    logger.With(slog.String("component", "coordinator")),
		baseCtx:   context.Background(),
	}
	c.enabled.Store(cfg.SniperEnabled)
	return c
}

// Bind sets the context token processing runs on. Call it before the feed
// starts so early events are not processed on a background context.
func (c *Coordinator) Bind(ctx context.Context) {
	c.mu.Lock()
	c.baseCtx = ctx
	c.mu.Unlock()
}

// Run binds token processing to ctx and waits for in-flight tokens after
// ctx is cancelled. Events arriving after cancellation are dropped.
func (c *Coordinator) Run(ctx context.Context) error {
	c.Bind(ctx)

	<-ctx.Done()
	c.mu.Lock()
	c.stopping = true
	c.mu.Unlock()
	c.wg.Wait()
	return nil
}

// Wait blocks until every in-flight token has been processed.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

func (c *Coordinator) ctx() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.baseCtx
}

// spawn runs fn on the bound context. The WaitGroup is only grown under mu
// and never once Run has started waiting.
func (c *Coordinator) spawn(fn func(ctx context.Context)) {
	c.mu.Lock()
	ctx := c.baseCtx
	if c.stopping || ctx.Err() != nil {
		c.mu.Unlock()
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		fn(ctx)
	}()
}

// SetFeed attaches the trade-stream subscriber. The feed manager takes the
// coordinator as its observer, so it is built after the coordinator. Call it
// before the feed starts.
func (c *Coordinator) SetFeed(f Subscriber) {
	c.feed = f
}

// SniperEnabled reports whether automatic acquisition is on.
func (c *Coordinator) SniperEnabled() bool {
	return c.enabled.Load()
}

// ToggleSniper flips automatic acquisition and returns the new value.
func (c *Coordinator) ToggleSniper(ctx context.Context) bool {
	for {
		old := c.enabled.Load()
		if c.enabled.CompareAndSwap(old, !old) {
			c.journal.Record(ctx, domain.ActionSniperToggled, map[string]any{"enabled": !old})
			c.logger.InfoContext(ctx, "coordinator: sniper toggled", slog.Bool("enabled", !old))
			if c.status != nil {
				c.status.Push(ctx)
			}
			return !old
		}
	}
}

// OnTokenCreated implements feed.Observer.
func (c *Coordinator) OnTokenCreated(snap domain.TokenSnapshot) {
	c.book.Created(snap)
	c.stats.TokenScanned(snap.ContractAddress)
	c.metrics.TokenScanned()

	c.spawn(func(ctx context.Context) {
		c.processToken(ctx, snap)
	})
}

// OnTradeOccurred implements feed.Observer. Trades only refresh the live
// snapshot.
func (c *Coordinator) OnTradeOccurred(u domain.TradeUpdate) {
	c.book.ApplyTrade(u)
}

// OnConnectionStatusChanged implements feed.Observer.
func (c *Coordinator) OnConnectionStatusChanged(st domain.ConnectionStatus) {
	var action string
	detail := map[string]any{"attempt": st.Attempt}
	switch st.State {
	case domain.ConnConnected:
		action = domain.ActionFeedConnected
	case domain.ConnDisconnected:
		action = domain.ActionFeedDisconnected
		if st.Err != nil {
			detail["reason"] = st.Err.Error()
		}
		detail["retry_after"] = st.RetryAfter.String()
	default:
		return
	}

	c.spawn(func(ctx context.Context) {
		c.journal.Record(ctx, action, detail)
		if c.status != nil {
			c.status.FeedChanged(ctx, st.State == domain.ConnConnected)
		}
	})
}

func (c *Coordinator) processToken(ctx context.Context, snap domain.TokenSnapshot) {
	ca := snap.ContractAddress
	name := firstNonEmpty(snap.Name, "Unknown")
	symbol := firstNonEmpty(snap.Symbol, "???")

	sctx, cancel := withStoreTimeout(ctx)
	err := c.stores.Tokens.Upsert(sctx, domain.TokenRecord{
		ContractAddress: ca,
		Name:            name,
		Symbol:          symbol,
		MetadataURI:     snap.MetadataURI,
		Status:          domain.TokenStatusScanning,
		CreatedAt:       snap.CreatedAt,
	})
	cancel()
	if err != nil {
		c.logger.WarnContext(ctx, "coordinator: save token failed",
			slog.String("ca", ca),
			slog.String("error", err.Error()),
		)
	}
	c.journal.Record(ctx, domain.ActionDetected, map[string]any{"ca": ca, "name": name, "symbol": symbol})

	if c.cfg.EnrichDelay > 0 {
		t := time.NewTimer(c.cfg.EnrichDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}

	res, enr := c.evaluate(ctx, snap)
	c.recordVerdict(ctx, snap, res, enr)

	if !res.Approved {
		return
	}
	if !c.SniperEnabled() || !c.gateway.HasKey() {
		c.logger.DebugContext(ctx, "coordinator: approved but not executing",
			slog.String("ca", ca),
			slog.Bool("sniper_enabled", c.SniperEnabled()),
			slog.Bool("has_key", c.gateway.HasKey()),
		)
		return
	}
	if _, err := c.acquire(ctx, ca, enr, c.cfg.BuyAmountSol, false); err != nil {
		c.logger.InfoContext(ctx, "coordinator: snipe not executed",
			slog.String("ca", ca),
			slog.String("reason", err.Error()),
		)
	}
}

// evaluate enriches the live snapshot and scores it.
func (c *Coordinator) evaluate(ctx context.Context, snap domain.TokenSnapshot) (domain.ScoreResult, Enrichment) {
	start := time.Now()
	if live, ok := c.book.Get(snap.ContractAddress); ok {
		snap.MarketCapNative = live.MarketCapNative
		snap.LiquidityNative = live.LiquidityNative
	}

	enr, err := c.market.Enrich(ctx, snap)
	var res domain.ScoreResult
	if err != nil {
		res = scoring.Failed(snap.ContractAddress, err)
		enr.Name = firstNonEmpty(snap.Name, "Unknown")
		enr.Symbol = firstNonEmpty(snap.Symbol, "???")
	} else {
		res = c.engine.Score(scoring.Input{
			ContractAddress: snap.ContractAddress,
			LiquidityUSD:    enr.LiquidityUSD,
			MarketCapUSD:    enr.MarketCapUSD,
			Holders:         enr.Holders,
			PriceUSD:        enr.PriceUSD,
			CreatedAt:       snap.CreatedAt,
			Now:             time.Now(),
		})
	}
	c.metrics.Verdict(string(res.Verdict), time.Since(start).Seconds())
	return res, enr
}

func (c *Coordinator) recordVerdict(ctx context.Context, snap domain.TokenSnapshot, res domain.ScoreResult, enr Enrichment) {
	ca := snap.ContractAddress
	reason := strings.Join(res.Reasons, ", ")

	rec := domain.TokenRecord{
		ContractAddress: ca,
		Name:            enr.Name,
		Symbol:          enr.Symbol,
		MetadataURI:     snap.MetadataURI,
		MarketCapUSD:    enr.MarketCapUSD,
		LiquidityUSD:    enr.LiquidityUSD,
		PriceUSD:        enr.PriceUSD,
		Holders:         enr.Holders,
		Status:          domain.TokenStatusFromVerdict(res.Verdict),
		CreatedAt:       snap.CreatedAt,
	}
	score := res.Score
	rec.Score = &score
	if !res.Approved {
		rec.RejectReason = reason
	}
	sctx, cancel := withStoreTimeout(ctx)
	defer cancel()
	if err := c.stores.Tokens.Upsert(sctx, rec); err != nil {
		c.logger.WarnContext(ctx, "coordinator: save scored token failed",
			slog.String("ca", ca),
			slog.String("error", err.Error()),
		)
	}

	if c.analytics != nil {
		actx, cancel := withStoreTimeout(ctx)
		defer cancel()
		if err := c.analytics.InsertScore(actx, res, time.Now()); err != nil {
			c.logger.WarnContext(ctx, "coordinator: analytics insert failed",
				slog.String("ca", ca),
				slog.String("error", err.Error()),
			)
		}
	}

	action := domain.ActionRejected
	if res.Approved {
		action = domain.ActionApproved
	}
	c.journal.Record(ctx, action, map[string]any{
		"ca":            ca,
		"name":          enr.Name,
		"symbol":        enr.Symbol,
		"reason":        reason,
		"score":         res.Score,
		"verdict":       string(res.Verdict),
		"mcap":          enr.MarketCapUSD,
		"liquidity":     enr.LiquidityUSD,
		"risks":         res.Risks,
		"opportunities": res.Opportunities,
	})
	c.logger.InfoContext(ctx, "coordinator: token scored",
		slog.String("ca", ca),
		slog.String("symbol", enr.Symbol),
		slog.Int("score", res.Score),
		slog.String("verdict", string(res.Verdict)),
		slog.Bool("approved", res.Approved),
	)
}

// acquire runs one buy decision for ca: risk guard, mint lock, execution and
// bookkeeping. Each call executes at most one acquire. A decision blocked
// before execution is audited as SNIPE_SKIPPED.
func (c *Coordinator) acquire(ctx context.Context, ca string, enr Enrichment, sizeSol float64, manual bool) (domain.ExecutionResult, error) {
	detail := map[string]any{"ca": ca, "name": enr.Name, "symbol": enr.Symbol, "amount": sizeSol}
	if manual {
		detail["manual"] = true
	}
	skip := func(err error) (domain.ExecutionResult, error) {
		detail["reason"] = err.Error()
		c.journal.Record(ctx, domain.ActionSnipeSkipped, detail)
		return domain.ExecutionResult{}, err
	}

	if c.cfg.MaxOpenPositions > 0 && !manual {
		sctx, cancel := withStoreTimeout(ctx)
		open, err := c.stores.Positions.GetOpen(sctx)
		cancel()
		if err != nil {
			return skip(fmt.Errorf("coordinator: count open positions: %w", err))
		}
		if len(open) >= c.cfg.MaxOpenPositions {
			return skip(ErrMaxPositions)
		}
	}

	lctx, cancel := withStoreTimeout(ctx)
	unlock, err := c.locks.Acquire(lctx, snipeLockKey(ca), c.cfg.MintLockTTL)
	cancel()
	if err != nil {
		return skip(fmt.Errorf("coordinator: lock %s: %w", ca, err))
	}
	defer unlock()

	c.journal.Record(ctx, domain.ActionSniping, detail)

	res, err := c.gateway.Acquire(ctx, ca, sizeSol, c.cfg.Slippage)
	if err != nil {
		c.journal.Record(ctx, domain.ActionSnipeFailed, map[string]any{
			"ca": ca, "name": enr.Name, "symbol": enr.Symbol, "reason": err.Error(),
		})
		return domain.ExecutionResult{}, err
	}

	c.stats.SnipeExecuted()
	now := time.Now().UTC()

	sctx, cancel := withStoreTimeout(ctx)
	defer cancel()
	if err := c.stores.Trades.Insert(sctx, domain.Trade{
		ID:              uuid.NewString(),
		ContractAddress: ca,
		Side:            domain.TradeSideBuy,
		AmountNative:    sizeSol,
		PriceUSD:        enr.PriceUSD,
		Signature:       res.Signature,
		CreatedAt:       now,
	}); err != nil {
		c.logger.WarnContext(ctx, "coordinator: record trade failed",
			slog.String("ca", ca),
			slog.String("error", err.Error()),
		)
	}

	pos := domain.Position{
		ID:              uuid.NewString(),
		ContractAddress: ca,
		Symbol:          enr.Symbol,
		SizeNative:      sizeSol,
		EntryPrice:      enr.PriceUSD,
		CurrentPrice:    enr.PriceUSD,
		Status:          domain.PositionStatusOpen,
		EntrySignature:  res.Signature,
		OpenedAt:        now,
	}
	pctx, cancel := withStoreTimeout(ctx)
	defer cancel()
	if err := c.stores.Positions.Create(pctx, pos); err != nil {
		c.logger.ErrorContext(ctx, "coordinator: create position failed",
			slog.String("ca", ca),
			slog.String("tx", res.Signature),
			slog.String("error", err.Error()),
		)
	} else {
		c.journal.Position(ctx, pos)
	}
	tctx, cancel := withStoreTimeout(ctx)
	defer cancel()
	if err := c.stores.Tokens.SetStatus(tctx, ca, domain.TokenStatusSniped); err != nil && !errors.Is(err, domain.ErrNotFound) {
		c.logger.WarnContext(ctx, "coordinator: mark sniped failed",
			slog.String("ca", ca),
			slog.String("error", err.Error()),
		)
	}
	if c.feed != nil {
		if err := c.feed.Subscribe(ca); err != nil {
			c.logger.WarnContext(ctx, "coordinator: subscribe failed",
				slog.String("ca", ca),
				slog.String("error", err.Error()),
			)
		}
	}

	action := domain.ActionSnipeSuccess
	if manual {
		action = domain.ActionManualSnipe
	}
	c.journal.Record(ctx, action, map[string]any{
		"ca":           ca,
		"name":         enr.Name,
		"symbol":       enr.Symbol,
		"amount":       sizeSol,
		"price":        enr.PriceUSD,
		"position_id":  pos.ID,
		"tx_signature": res.Signature,
	})
	c.logger.InfoContext(ctx, "coordinator: snipe executed",
		slog.String("ca", ca),
		slog.Float64("amount_sol", sizeSol),
		slog.String("tx", res.Signature),
	)
	return res, nil
}

// Analyze enriches and scores ca without executing anything.
func (c *Coordinator) Analyze(ctx context.Context, ca string) (domain.ScoreResult, Enrichment) {
	snap, ok := c.book.Get(ca)
	if !ok {
		snap = domain.TokenSnapshot{ContractAddress: ca}
	}
	return c.evaluate(ctx, snap)
}

// ManualSnipe buys ca regardless of the sniper toggle and the position cap.
// A zero amount uses the configured buy size.
func (c *Coordinator) ManualSnipe(ctx context.Context, ca string, amountSol float64) (domain.ExecutionResult, error) {
	if !c.gateway.HasKey() {
		return domain.ExecutionResult{}, domain.ErrNoSigningKey
	}
	if amountSol <= 0 {
		amountSol = c.cfg.BuyAmountSol
	}
	snap, ok := c.book.Get(ca)
	if !ok {
		snap = domain.TokenSnapshot{ContractAddress: ca}
	}
	enr, err := c.market.Enrich(ctx, snap)
	if err != nil {
		c.logger.WarnContext(ctx, "coordinator: manual snipe without market data",
			slog.String("ca", ca),
			slog.String("error", err.Error()),
		)
		enr = Enrichment{Name: firstNonEmpty(snap.Name, "Unknown"), Symbol: firstNonEmpty(snap.Symbol, "???")}
	}
	return c.acquire(ctx, ca, enr, amountSol, true)
}

// ManualDump sells percent of the holding in ca. Selling everything closes
// the open positions on ca with exit reason manual. It shares the mint's
// exit lock with the supervisor and fails with domain.ErrLockHeld while a
// supervisor exit is in flight.
func (c *Coordinator) ManualDump(ctx context.Context, ca string, percent float64) (domain.ExecutionResult, error) {
	if !c.gateway.HasKey() {
		return domain.ExecutionResult{}, domain.ErrNoSigningKey
	}

	lctx, cancel := withStoreTimeout(ctx)
	unlock, err := c.locks.Acquire(lctx, exitLockKey(ca), c.cfg.MintLockTTL)
	cancel()
	if err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("coordinator: lock exit %s: %w", ca, err)
	}
	defer unlock()

	amount := domain.ReleasePercent(percent)
	res, err := c.gateway.Release(ctx, ca, amount, c.cfg.Slippage)
	if err != nil {
		c.journal.Record(ctx, domain.ActionExitFailed, map[string]any{
			"ca": ca, "reason": err.Error(), "manual": true,
		})
		return domain.ExecutionResult{}, err
	}

	sctx, cancel := withStoreTimeout(ctx)
	defer cancel()
	if err := c.stores.Trades.Insert(sctx, domain.Trade{
		ID:              uuid.NewString(),
		ContractAddress: ca,
		Side:            domain.TradeSideSell,
		Signature:       res.Signature,
		CreatedAt:       time.Now().UTC(),
	}); err != nil {
		c.logger.WarnContext(ctx, "coordinator: record trade failed",
			slog.String("ca", ca),
			slog.String("error", err.Error()),
		)
	}

	if amount == domain.ReleaseAll {
		c.closeManual(ctx, ca, res.Signature)
	}
	c.journal.Record(ctx, domain.ActionManualDump, map[string]any{
		"ca":           ca,
		"amount":       string(amount),
		"tx_signature": res.Signature,
	})
	return res, nil
}

func (c *Coordinator) closeManual(ctx context.Context, ca, sig string) {
	sctx, cancel := withStoreTimeout(ctx)
	defer cancel()
	open, err := c.stores.Positions.GetOpen(sctx)
	if err != nil {
		c.logger.WarnContext(ctx, "coordinator: list open positions failed", slog.String("error", err.Error()))
		return
	}
	for _, p := range open {
		if p.ContractAddress != ca {
			continue
		}
		var pnl float64
		if p.PnLPercent != nil {
			pnl = *p.PnLPercent
		}
		cctx, cancel := withStoreTimeout(ctx)
		err := c.stores.Positions.Close(cctx, p.ID, domain.ExitReasonManual, sig, pnl)
		cancel()
		if err != nil {
			c.logger.WarnContext(ctx, "coordinator: close position failed",
				slog.String("position_id", p.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// ClaimFees claims creator fees for ca. domain.ErrNoFees is returned as is.
func (c *Coordinator) ClaimFees(ctx context.Context, ca string) (domain.ExecutionResult, error) {
	res, err := c.gateway.ClaimFees(ctx, ca)
	if err != nil {
		return domain.ExecutionResult{}, err
	}
	c.journal.Record(ctx, domain.ActionClaimFees, map[string]any{"ca": ca, "tx_signature": res.Signature})
	return res, nil
}

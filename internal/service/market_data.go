package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vitorsaz/skull-agent/internal/domain"
	"github.com/vitorsaz/skull-agent/internal/observability"
	"github.com/vitorsaz/skull-agent/internal/platform/birdeye"
)

// pumpSupply is the fixed token supply of a pump.fun bonding curve token.
const pumpSupply = 1e9

const (
	solPriceKey    = "SOL"
	lookupLimitKey = "birdeye"
)

// MarketLookup is the market-data provider. *birdeye.Client satisfies it.
type MarketLookup interface {
	Metadata(ctx context.Context, ca string) (birdeye.Metadata, error)
	Market(ctx context.Context, ca string) (birdeye.Market, error)
	Price(ctx context.Context, address string) (float64, error)
}

// MarketDataConfig parameterizes MarketData.
type MarketDataConfig struct {
	// FallbackSolPrice is used when no SOL price was ever fetched.
	FallbackSolPrice float64
}

// Enrichment is a token's market picture in USD after combining the feed
// snapshot with the lookup.
type Enrichment struct {
	Name         string  `json:"name"`
	Symbol       string  `json:"symbol"`
	PriceUSD     float64 `json:"price"`
	MarketCapUSD float64 `json:"mcap"`
	LiquidityUSD float64 `json:"liquidity"`
	Holders      int64   `json:"holders"`
	SolPriceUSD  float64 `json:"sol_price"`
}

// MarketData resolves USD market figures for tokens. The SOL price goes
// through prices (which owns the TTL); when both the cache and the lookup
// miss, the last known price is used, then the configured fallback.
type MarketData struct {
	lookup  MarketLookup
	prices  domain.PriceCache
	limiter domain.RateLimiter
	cfg     MarketDataConfig
	metrics *observability.Metrics
	logger  *slog.Logger

	mu      sync.Mutex
	lastSol float64
}

// NewMarketData creates a MarketData. limiter may be nil.
func NewMarketData(
	lookup MarketLookup,
	prices domain.PriceCache,
	limiter domain.RateLimiter,
	cfg MarketDataConfig,
	metrics *observability.Metrics,
	logger *slog.Logger,
) *MarketData {
	if cfg.FallbackSolPrice <= 0 {
		cfg.FallbackSolPrice = 200
	}
	return &MarketData{
		lookup:  lookup,
		prices:  prices,
		limiter: limiter,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger.With(slog.String("component", "market_data")),
	}
}

// SolPrice returns the SOL/USD price. It never fails.
func (m *MarketData) SolPrice(ctx context.Context) float64 {
	if p, _, err := m.prices.GetPrice(ctx, solPriceKey); err == nil && p > 0 {
		return p
	}

	p, err := m.fetchPrice(ctx, birdeye.WrappedSOL)
	if err == nil {
		if cacheErr := m.prices.SetPrice(ctx, solPriceKey, p, time.Now()); cacheErr != nil {
			m.logger.WarnContext(ctx, "market_data: cache sol price failed",
				slog.String("error", cacheErr.Error()),
			)
		}
		m.mu.Lock()
		m.lastSol = p
		m.mu.Unlock()
		return p
	}

	m.logger.WarnContext(ctx, "market_data: sol price lookup failed",
		slog.String("error", err.Error()),
	)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastSol > 0 {
		return m.lastSol
	}
	return m.cfg.FallbackSolPrice
}

// Enrich combines snap with the lookup. Market cap prefers the feed's native
// figure converted at the SOL price and falls back to the lookup; liquidity
// prefers the lookup and falls back to the converted native figure. It fails
// only when both lookups fail and the feed carries no market figures.
func (m *MarketData) Enrich(ctx context.Context, snap domain.TokenSnapshot) (Enrichment, error) {
	var (
		meta            birdeye.Metadata
		market          birdeye.Market
		metaErr, mktErr error
		g               errgroup.Group
	)
	g.Go(func() error {
		meta, metaErr = m.metadata(ctx, snap.ContractAddress)
		return nil
	})
	g.Go(func() error {
		market, mktErr = m.market(ctx, snap.ContractAddress)
		return nil
	})
	_ = g.Wait()

	if metaErr != nil && mktErr != nil && snap.MarketCapNative <= 0 && snap.LiquidityNative <= 0 {
		return Enrichment{}, fmt.Errorf("market data unavailable: %w", errors.Join(metaErr, mktErr))
	}

	sol := m.SolPrice(ctx)
	e := Enrichment{
		Name:        firstNonEmpty(snap.Name, meta.Name, "Unknown"),
		Symbol:      firstNonEmpty(snap.Symbol, meta.Symbol, "???"),
		Holders:     market.Holders,
		PriceUSD:    market.Price,
		SolPriceUSD: sol,
	}

	if native := snap.MarketCapNative * sol; native > 0 {
		e.MarketCapUSD = native
	} else {
		e.MarketCapUSD = market.MarketCapUSD()
	}
	if market.Liquidity > 0 {
		e.LiquidityUSD = market.Liquidity
	} else {
		e.LiquidityUSD = snap.LiquidityNative * sol
	}
	if e.PriceUSD <= 0 && e.MarketCapUSD > 0 {
		e.PriceUSD = e.MarketCapUSD / pumpSupply
	}
	return e, nil
}

// CurrentPrice returns the USD price of ca for position supervision: the
// lookup price, else one derived from the live snapshot. Zero means no
// price is available.
func (m *MarketData) CurrentPrice(ctx context.Context, ca string, snap domain.TokenSnapshot, haveSnap bool) float64 {
	market, err := m.market(ctx, ca)
	if err == nil && market.Price > 0 {
		if cacheErr := m.prices.SetPrice(ctx, ca, market.Price, time.Now()); cacheErr != nil {
			m.logger.DebugContext(ctx, "market_data: cache token price failed",
				slog.String("ca", ca),
				slog.String("error", cacheErr.Error()),
			)
		}
		return market.Price
	}
	if haveSnap && snap.MarketCapNative > 0 {
		return snap.MarketCapNative * m.SolPrice(ctx) / pumpSupply
	}
	return 0
}

func (m *MarketData) metadata(ctx context.Context, ca string) (birdeye.Metadata, error) {
	if err := m.wait(ctx); err != nil {
		return birdeye.Metadata{}, err
	}
	meta, err := m.lookup.Metadata(ctx, ca)
	if err != nil {
		m.metrics.LookupError("metadata")
	}
	return meta, err
}

func (m *MarketData) market(ctx context.Context, ca string) (birdeye.Market, error) {
	if err := m.wait(ctx); err != nil {
		return birdeye.Market{}, err
	}
	market, err := m.lookup.Market(ctx, ca)
	if err != nil {
		m.metrics.LookupError("market")
	}
	return market, err
}

func (m *MarketData) fetchPrice(ctx context.Context, address string) (float64, error) {
	if err := m.wait(ctx); err != nil {
		return 0, err
	}
	p, err := m.lookup.Price(ctx, address)
	if err != nil {
		m.metrics.LookupError("price")
	}
	return p, err
}

func (m *MarketData) wait(ctx context.Context) error {
	if m.limiter == nil {
		return nil
	}
	if err := m.limiter.Wait(ctx, lookupLimitKey); err != nil {
		return fmt.Errorf("market_data: rate limit: %w", err)
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

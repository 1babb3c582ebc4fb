package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitorsaz/skull-agent/internal/cache/local"
	"github.com/vitorsaz/skull-agent/internal/domain"
	"github.com/vitorsaz/skull-agent/internal/platform/birdeye"
)

func newTestMarketData(lookup *fakeLookup, fallback float64) *MarketData {
	return NewMarketData(lookup, local.NewPriceCache(time.Minute), nil, MarketDataConfig{FallbackSolPrice: fallback}, nil, testLogger())
}

func TestMarketData_SolPriceCached(t *testing.T) {
	lookup := newFakeLookup()
	m := newTestMarketData(lookup, 0)

	assert.InDelta(t, 100, m.SolPrice(context.Background()), 1e-9)
	assert.InDelta(t, 100, m.SolPrice(context.Background()), 1e-9)
	assert.Equal(t, 1, lookup.count("price"))
}

func TestMarketData_SolPriceFallbacks(t *testing.T) {
	lookup := newFakeLookup()
	lookup.solErr = errors.New("down")
	m := NewMarketData(lookup, local.NewPriceCache(time.Nanosecond), nil, MarketDataConfig{FallbackSolPrice: 150}, nil, testLogger())

	assert.InDelta(t, 150, m.SolPrice(context.Background()), 1e-9, "configured fallback")

	lookup.mu.Lock()
	lookup.solErr = nil
	lookup.solPrice = 120
	lookup.mu.Unlock()
	assert.InDelta(t, 120, m.SolPrice(context.Background()), 1e-9)

	lookup.mu.Lock()
	lookup.solErr = errors.New("down again")
	lookup.mu.Unlock()
	time.Sleep(time.Millisecond)
	assert.InDelta(t, 120, m.SolPrice(context.Background()), 1e-9, "last known price")
}

func TestMarketData_DefaultFallback(t *testing.T) {
	lookup := newFakeLookup()
	lookup.solErr = errors.New("down")
	m := newTestMarketData(lookup, 0)

	assert.InDelta(t, 200, m.SolPrice(context.Background()), 1e-9)
}

func TestMarketData_EnrichPrecedence(t *testing.T) {
	lookup := newFakeLookup()
	lookup.setMarket(testMint, birdeye.Market{Price: 0.00002, MarketCap: 20000, Liquidity: 4000, Holders: 42})
	lookup.meta[testMint] = birdeye.Metadata{Name: "Meta Name", Symbol: "META"}
	m := newTestMarketData(lookup, 0)

	e, err := m.Enrich(context.Background(), domain.TokenSnapshot{
		ContractAddress: testMint,
		Symbol:          "FEED",
		MarketCapNative: 30,
		LiquidityNative: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, "Meta Name", e.Name)
	assert.Equal(t, "FEED", e.Symbol)
	assert.InDelta(t, 3000, e.MarketCapUSD, 1e-9, "native market cap wins")
	assert.InDelta(t, 4000, e.LiquidityUSD, 1e-9, "lookup liquidity wins")
	assert.InDelta(t, 0.00002, e.PriceUSD, 1e-12)
	assert.Equal(t, int64(42), e.Holders)
	assert.InDelta(t, 100, e.SolPriceUSD, 1e-9)
}

func TestMarketData_EnrichFromFeedOnly(t *testing.T) {
	lookup := newFakeLookup()
	m := newTestMarketData(lookup, 0)

	e, err := m.Enrich(context.Background(), domain.TokenSnapshot{
		ContractAddress: testMint,
		MarketCapNative: 50,
		LiquidityNative: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, "Unknown", e.Name)
	assert.Equal(t, "???", e.Symbol)
	assert.InDelta(t, 5000, e.MarketCapUSD, 1e-9)
	assert.InDelta(t, 2000, e.LiquidityUSD, 1e-9)
	assert.InDelta(t, 5000/1e9, e.PriceUSD, 1e-15)
}

func TestMarketData_EnrichFailsWithoutAnyData(t *testing.T) {
	m := newTestMarketData(newFakeLookup(), 0)

	_, err := m.Enrich(context.Background(), domain.TokenSnapshot{ContractAddress: testMint})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNoMarketData)
}

func TestMarketData_CurrentPrice(t *testing.T) {
	lookup := newFakeLookup()
	m := newTestMarketData(lookup, 0)
	ctx := context.Background()

	assert.Zero(t, m.CurrentPrice(ctx, testMint, domain.TokenSnapshot{}, false))

	snap := domain.TokenSnapshot{ContractAddress: testMint, MarketCapNative: 40}
	assert.InDelta(t, 40*100/1e9, m.CurrentPrice(ctx, testMint, snap, true), 1e-15)

	lookup.setMarket(testMint, birdeye.Market{Price: 0.5})
	assert.InDelta(t, 0.5, m.CurrentPrice(ctx, testMint, snap, true), 1e-9)
}

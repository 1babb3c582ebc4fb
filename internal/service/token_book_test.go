package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitorsaz/skull-agent/internal/domain"
)

func TestTokenBook_TradeOverwritesMarketFields(t *testing.T) {
	b := NewTokenBook(10)
	created := time.Now().Add(-time.Minute)
	b.Created(domain.TokenSnapshot{ContractAddress: "A", Name: "Alpha", Symbol: "ALP", MarketCapNative: 30, CreatedAt: created})
	b.ApplyTrade(domain.TradeUpdate{ContractAddress: "A", MarketCapNative: 45, LiquidityNative: 12})

	snap, ok := b.Get("A")
	require.True(t, ok)
	assert.Equal(t, "Alpha", snap.Name)
	assert.Equal(t, "ALP", snap.Symbol)
	assert.Equal(t, created, snap.CreatedAt)
	assert.InDelta(t, 45, snap.MarketCapNative, 1e-9)
	assert.InDelta(t, 12, snap.LiquidityNative, 1e-9)
}

func TestTokenBook_RepeatCreateIgnored(t *testing.T) {
	b := NewTokenBook(10)
	b.Created(domain.TokenSnapshot{ContractAddress: "A", Name: "First", CreatedAt: time.Now()})
	b.Created(domain.TokenSnapshot{ContractAddress: "A", Name: "Second", CreatedAt: time.Now()})

	snap, _ := b.Get("A")
	assert.Equal(t, "First", snap.Name)
	assert.Equal(t, 1, b.Len())
}

func TestTokenBook_TradeBeforeCreate(t *testing.T) {
	b := NewTokenBook(10)
	b.ApplyTrade(domain.TradeUpdate{ContractAddress: "A", MarketCapNative: 60})
	b.Created(domain.TokenSnapshot{ContractAddress: "A", Name: "Alpha", MarketCapNative: 30, CreatedAt: time.Now()})

	snap, ok := b.Get("A")
	require.True(t, ok)
	assert.Equal(t, "Alpha", snap.Name)
	assert.InDelta(t, 60, snap.MarketCapNative, 1e-9)
}

func TestTokenBook_EvictsOldest(t *testing.T) {
	b := NewTokenBook(2)
	for _, ca := range []string{"A", "B", "C"} {
		b.Created(domain.TokenSnapshot{ContractAddress: ca, CreatedAt: time.Now()})
	}

	assert.Equal(t, 2, b.Len())
	_, ok := b.Get("A")
	assert.False(t, ok)
	_, ok = b.Get("C")
	assert.True(t, ok)
}

func TestStats_Snapshot(t *testing.T) {
	s := NewStats()
	s.TokenScanned("A")
	s.TokenScanned("B")
	s.SnipeExecuted()
	s.Kill(120)
	s.Death(-55)

	snap := s.Snapshot()
	assert.Equal(t, StatsSnapshot{
		TokensScanned:  2,
		SnipesExecuted: 1,
		Kills:          1,
		Deaths:         1,
		TotalPnL:       65,
		LastToken:      "B",
	}, snap)
}

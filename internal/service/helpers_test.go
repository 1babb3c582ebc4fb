package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/vitorsaz/skull-agent/internal/domain"
	"github.com/vitorsaz/skull-agent/internal/platform/birdeye"
	"github.com/vitorsaz/skull-agent/internal/store/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func memoryStores() Stores {
	return Stores{
		Tokens:    memory.NewTokenStore(),
		Trades:    memory.NewTradeStore(),
		Positions: memory.NewPositionStore(),
		Audit:     memory.NewAuditStore(),
		Status:    memory.NewStatusStore(),
	}
}

type fakeLookup struct {
	mu       sync.Mutex
	meta     map[string]birdeye.Metadata
	market   map[string]birdeye.Market
	solPrice float64
	solErr   error
	mktErr   error
	calls    map[string]int
}

func newFakeLookup() *fakeLookup {
	return &fakeLookup{
		meta:     make(map[string]birdeye.Metadata),
		market:   make(map[string]birdeye.Market),
		solPrice: 100,
		calls:    make(map[string]int),
	}
}

func (f *fakeLookup) setMarket(ca string, m birdeye.Market) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.market[ca] = m
}

func (f *fakeLookup) Metadata(_ context.Context, ca string) (birdeye.Metadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["metadata"]++
	m, ok := f.meta[ca]
	if !ok {
		return birdeye.Metadata{}, domain.ErrNoMarketData
	}
	return m, nil
}

func (f *fakeLookup) Market(_ context.Context, ca string) (birdeye.Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["market"]++
	if f.mktErr != nil {
		return birdeye.Market{}, f.mktErr
	}
	m, ok := f.market[ca]
	if !ok {
		return birdeye.Market{}, domain.ErrNoMarketData
	}
	return m, nil
}

func (f *fakeLookup) Price(_ context.Context, _ string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["price"]++
	if f.solErr != nil {
		return 0, f.solErr
	}
	return f.solPrice, nil
}

func (f *fakeLookup) count(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[kind]
}

type fakeGateway struct {
	mu         sync.Mutex
	noKey      bool
	acquireErr error
	releaseErr error
	acquires   []string
	releases   []domain.ReleaseAmount
	claimErr   error
}

func (g *fakeGateway) HasKey() bool   { return !g.noKey }
func (g *fakeGateway) Wallet() string { return "Wallet111" }

func (g *fakeGateway) Acquire(_ context.Context, mint string, _ float64, _ int) (domain.ExecutionResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.acquires = append(g.acquires, mint)
	if g.acquireErr != nil {
		return domain.ExecutionResult{}, g.acquireErr
	}
	return domain.ExecutionResult{Action: domain.TradeSideBuy, Mint: mint, Signature: "buy-" + mint}, nil
}

func (g *fakeGateway) Release(_ context.Context, mint string, amount domain.ReleaseAmount, _ int) (domain.ExecutionResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.releases = append(g.releases, amount)
	if g.releaseErr != nil {
		return domain.ExecutionResult{}, g.releaseErr
	}
	return domain.ExecutionResult{Action: domain.TradeSideSell, Mint: mint, Signature: "sell-" + mint}, nil
}

func (g *fakeGateway) ClaimFees(_ context.Context, mint string) (domain.ExecutionResult, error) {
	if g.claimErr != nil {
		return domain.ExecutionResult{}, g.claimErr
	}
	return domain.ExecutionResult{Mint: mint, Signature: "claim-" + mint}, nil
}

func (g *fakeGateway) setReleaseErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.releaseErr = err
}

func (g *fakeGateway) acquireCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.acquires)
}

func (g *fakeGateway) releaseCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.releases)
}

type fakeSubscriber struct {
	mu    sync.Mutex
	addrs []string
}

func (s *fakeSubscriber) Subscribe(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addrs = append(s.addrs, addr)
	return nil
}

func (s *fakeSubscriber) subscribed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.addrs...)
}

type recordingAlerter struct {
	mu     sync.Mutex
	events []string
}

func (a *recordingAlerter) Notify(_ context.Context, event, _, _ string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return nil
}

func (a *recordingAlerter) seen() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.events...)
}

func auditActions(audit domain.AuditStore) []string {
	entries, _ := audit.List(context.Background(), domain.ListOpts{})
	out := make([]string, 0, len(entries))
	// List is newest first.
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i].Event)
	}
	return out
}

func auditEntry(t *testing.T, audit domain.AuditStore, action string) domain.AuditEntry {
	t.Helper()
	entries, err := audit.List(context.Background(), domain.ListOpts{})
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	for _, e := range entries {
		if e.Event == action {
			return e
		}
	}
	t.Fatalf("no %s audit entry", action)
	return domain.AuditEntry{}
}

func countAction(audit domain.AuditStore, action string) int {
	n := 0
	for _, a := range auditActions(audit) {
		if a == action {
			n++
		}
	}
	return n
}

// setStoreTimeout shortens the persistence deadline for one test.
func setStoreTimeout(t *testing.T, d time.Duration) {
	t.Helper()
	prev := storeTimeout
	storeTimeout = d
	t.Cleanup(func() { storeTimeout = prev })
}

// flakyPositions fails the next closeFailures calls to Close.
type flakyPositions struct {
	domain.PositionStore
	mu            sync.Mutex
	closeFailures int
	closeCalls    int
}

func (f *flakyPositions) Close(ctx context.Context, id string, reason domain.ExitReason, sig string, pnl float64) error {
	f.mu.Lock()
	f.closeCalls++
	if f.closeFailures > 0 {
		f.closeFailures--
		f.mu.Unlock()
		return errors.New("connection reset by peer")
	}
	f.mu.Unlock()
	return f.PositionStore.Close(ctx, id, reason, sig, pnl)
}

func (f *flakyPositions) closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCalls
}

// hungPositions blocks GetOpen until the caller's deadline.
type hungPositions struct {
	domain.PositionStore
}

func (hungPositions) GetOpen(ctx context.Context) ([]domain.Position, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// hungTokens blocks Upsert until the caller's deadline.
type hungTokens struct {
	domain.TokenStore
}

func (hungTokens) Upsert(ctx context.Context, _ domain.TokenRecord) error {
	<-ctx.Done()
	return ctx.Err()
}

package service

import (
	"sync"
	"time"

	"github.com/vitorsaz/skull-agent/internal/domain"
)

const defaultBookCapacity = 5000

// TokenBook keeps the live snapshot of every recently discovered token.
// Identity fields come from the creation event; market fields follow the
// latest trade (last write wins). The oldest token is dropped past capacity.
type TokenBook struct {
	mu       sync.RWMutex
	tokens   map[string]domain.TokenSnapshot
	order    []string
	capacity int
}

// NewTokenBook creates a TokenBook. capacity <= 0 uses a default.
func NewTokenBook(capacity int) *TokenBook {
	if capacity <= 0 {
		capacity = defaultBookCapacity
	}
	return &TokenBook{
		tokens:   make(map[string]domain.TokenSnapshot),
		capacity: capacity,
	}
}

// Created records a token-created event. A repeat creation for a known
// token is ignored. If trades arrived first, their market fields are kept.
func (b *TokenBook) Created(snap domain.TokenSnapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = snap.CreatedAt
	}
	if prev, ok := b.tokens[snap.ContractAddress]; ok {
		if !prev.CreatedAt.IsZero() {
			return
		}
		snap.MarketCapNative = prev.MarketCapNative
		snap.LiquidityNative = prev.LiquidityNative
		snap.UpdatedAt = prev.UpdatedAt
		b.tokens[snap.ContractAddress] = snap
		return
	}
	b.insertLocked(snap)
}

func (b *TokenBook) insertLocked(snap domain.TokenSnapshot) {
	b.tokens[snap.ContractAddress] = snap
	b.order = append(b.order, snap.ContractAddress)

	if len(b.order) > b.capacity {
		oldest := b.order[0]
		b.order = b.order[1:]
		delete(b.tokens, oldest)
	}
}

// ApplyTrade overwrites the market fields of ca. Trades for a token the
// book has not seen (a manual buy, for example) start a snapshot without
// identity fields.
func (b *TokenBook) ApplyTrade(u domain.TradeUpdate) {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap, ok := b.tokens[u.ContractAddress]
	if !ok {
		snap = domain.TokenSnapshot{ContractAddress: u.ContractAddress}
	}
	snap.MarketCapNative = u.MarketCapNative
	snap.LiquidityNative = u.LiquidityNative
	snap.UpdatedAt = u.ReceivedAt
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = time.Now()
	}
	if ok {
		b.tokens[u.ContractAddress] = snap
	} else {
		b.insertLocked(snap)
	}
}

// Get returns the current snapshot for ca.
func (b *TokenBook) Get(ca string) (domain.TokenSnapshot, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	snap, ok := b.tokens[ca]
	return snap, ok
}

func (b *TokenBook) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.tokens)
}

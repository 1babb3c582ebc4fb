// Package memory provides in-process implementations of the domain stores,
// used when no database is configured and in tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vitorsaz/skull-agent/internal/domain"
)

// TokenStore implements domain.TokenStore.
type TokenStore struct {
	mu     sync.RWMutex
	tokens map[string]domain.TokenRecord
	now    func() time.Time
}

// NewTokenStore creates an empty TokenStore.
func NewTokenStore() *TokenStore {
	return &TokenStore{tokens: make(map[string]domain.TokenRecord), now: time.Now}
}

func (s *TokenStore) Upsert(_ context.Context, rec domain.TokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if prev, ok := s.tokens[rec.ContractAddress]; ok {
		rec.CreatedAt = prev.CreatedAt
	} else if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	s.tokens[rec.ContractAddress] = rec
	return nil
}

func (s *TokenStore) SetStatus(_ context.Context, ca string, status domain.TokenStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.tokens[ca]
	if !ok {
		return domain.ErrNotFound
	}
	rec.Status = status
	rec.UpdatedAt = s.now()
	s.tokens[ca] = rec
	return nil
}

func (s *TokenStore) Get(_ context.Context, ca string) (domain.TokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.tokens[ca]
	if !ok {
		return domain.TokenRecord{}, domain.ErrNotFound
	}
	return rec, nil
}

func (s *TokenStore) ListRecent(_ context.Context, limit int) ([]domain.TokenRecord, error) {
	s.mu.RLock()
	out := make([]domain.TokenRecord, 0, len(s.tokens))
	for _, rec := range s.tokens {
		out = append(out, rec)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *TokenStore) Count(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.tokens)), nil
}

// TradeStore implements domain.TradeStore.
type TradeStore struct {
	mu     sync.RWMutex
	trades []domain.Trade
}

// NewTradeStore creates an empty TradeStore.
func NewTradeStore() *TradeStore { return &TradeStore{} }

func (s *TradeStore) Insert(_ context.Context, t domain.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades = append(s.trades, t)
	return nil
}

func (s *TradeStore) ListRecent(_ context.Context, opts domain.ListOpts) ([]domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Trade
	for i := len(s.trades) - 1; i >= 0; i-- {
		t := s.trades[i]
		if matches(opts, t.ContractAddress, t.CreatedAt) {
			out = append(out, t)
		}
	}
	return page(out, opts), nil
}

// PositionStore implements domain.PositionStore.
type PositionStore struct {
	mu        sync.RWMutex
	positions map[string]domain.Position
	order     []string
	now       func() time.Time
}

// NewPositionStore creates an empty PositionStore.
func NewPositionStore() *PositionStore {
	return &PositionStore{positions: make(map[string]domain.Position), now: time.Now}
}

func (s *PositionStore) Create(_ context.Context, p domain.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.positions[p.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.positions[p.ID] = p
	s.order = append(s.order, p.ID)
	return nil
}

func (s *PositionStore) UpdatePrice(_ context.Context, id string, price, pnlPercent float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.openLocked(id)
	if err != nil {
		return err
	}
	p.CurrentPrice = price
	p.PnLPercent = &pnlPercent
	s.positions[id] = p
	return nil
}

func (s *PositionStore) Close(_ context.Context, id string, reason domain.ExitReason, exitSignature string, pnlPercent float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.openLocked(id)
	if err != nil {
		return err
	}
	now := s.now()
	p.Status = domain.PositionStatusClosed
	p.ExitReason = reason
	p.ExitSignature = exitSignature
	p.PnLPercent = &pnlPercent
	p.ClosedAt = &now
	s.positions[id] = p
	return nil
}

func (s *PositionStore) openLocked(id string) (domain.Position, error) {
	p, ok := s.positions[id]
	if !ok {
		return domain.Position{}, domain.ErrNotFound
	}
	if !p.IsOpen() {
		return domain.Position{}, domain.ErrPositionClosed
	}
	return p, nil
}

func (s *PositionStore) GetOpen(context.Context) ([]domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Position
	for _, id := range s.order {
		if p := s.positions[id]; p.IsOpen() {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *PositionStore) GetByID(_ context.Context, id string) (domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.positions[id]
	if !ok {
		return domain.Position{}, domain.ErrNotFound
	}
	return p, nil
}

func (s *PositionStore) ListRecent(_ context.Context, opts domain.ListOpts) ([]domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Position
	for i := len(s.order) - 1; i >= 0; i-- {
		p := s.positions[s.order[i]]
		if matches(opts, p.ContractAddress, p.OpenedAt) {
			out = append(out, p)
		}
	}
	return page(out, opts), nil
}

func (s *PositionStore) ListClosedBefore(_ context.Context, before time.Time, limit int) ([]domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Position
	for _, id := range s.order {
		p := s.positions[id]
		if p.ClosedAt != nil && p.ClosedAt.Before(before) {
			out = append(out, p)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// AuditStore implements domain.AuditStore and domain.AuditArchiveStore.
type AuditStore struct {
	mu      sync.RWMutex
	entries []domain.AuditEntry
	nextID  int64
	now     func() time.Time
}

// NewAuditStore creates an empty AuditStore.
func NewAuditStore() *AuditStore {
	return &AuditStore{now: time.Now}
}

func (s *AuditStore) Log(_ context.Context, event string, detail map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	ca, _ := detail["ca"].(string)
	s.entries = append(s.entries, domain.AuditEntry{
		ID:              s.nextID,
		Event:           event,
		ContractAddress: ca,
		Detail:          detail,
		CreatedAt:       s.now(),
	})
	return nil
}

func (s *AuditStore) List(_ context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.AuditEntry
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if matches(opts, e.ContractAddress, e.CreatedAt) {
			out = append(out, e)
		}
	}
	return page(out, opts), nil
}

func (s *AuditStore) ListBefore(_ context.Context, before time.Time, limit int) ([]domain.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.AuditEntry
	for _, e := range s.entries {
		if !e.CreatedAt.Before(before) {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *AuditStore) DeleteBefore(_ context.Context, before time.Time, maxID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	var n int64
	for _, e := range s.entries {
		if e.CreatedAt.Before(before) && e.ID <= maxID {
			n++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return n, nil
}

// StatusStore implements domain.StatusStore.
type StatusStore struct {
	mu  sync.RWMutex
	st  domain.SystemStatus
	set bool
}

// NewStatusStore creates an empty StatusStore.
func NewStatusStore() *StatusStore { return &StatusStore{} }

func (s *StatusStore) Upsert(_ context.Context, st domain.SystemStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now()
	}
	s.st, s.set = st, true
	return nil
}

func (s *StatusStore) Get(context.Context) (domain.SystemStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.set {
		return domain.SystemStatus{}, domain.ErrNotFound
	}
	return s.st, nil
}

func matches(opts domain.ListOpts, ca string, at time.Time) bool {
	if opts.ContractAddress != "" && opts.ContractAddress != ca {
		return false
	}
	if opts.Since != nil && at.Before(*opts.Since) {
		return false
	}
	if opts.Until != nil && at.After(*opts.Until) {
		return false
	}
	return true
}

func page[T any](items []T, opts domain.ListOpts) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(items) {
			return nil
		}
		items = items[opts.Offset:]
	}
	if opts.Limit > 0 && len(items) > opts.Limit {
		items = items[:opts.Limit]
	}
	return items
}

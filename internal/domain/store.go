package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit           int
	Offset          int
	ContractAddress string
	Since           *time.Time
	Until           *time.Time
}

// TokenStore persists token records keyed by contract address.
type TokenStore interface {
	Upsert(ctx context.Context, rec TokenRecord) error
	SetStatus(ctx context.Context, ca string, status TokenStatus) error
	Get(ctx context.Context, ca string) (TokenRecord, error)
	ListRecent(ctx context.Context, limit int) ([]TokenRecord, error)
	Count(ctx context.Context) (int64, error)
}

// TradeStore persists executed trades. Insert only.
type TradeStore interface {
	Insert(ctx context.Context, t Trade) error
	ListRecent(ctx context.Context, opts ListOpts) ([]Trade, error)
}

// PositionStore persists positions. UpdatePrice and Close must refuse to touch
// a closed position and report ErrPositionClosed.
type PositionStore interface {
	Create(ctx context.Context, pos Position) error
	UpdatePrice(ctx context.Context, id string, price, pnlPercent float64) error
	Close(ctx context.Context, id string, reason ExitReason, exitSignature string, pnlPercent float64) error
	GetOpen(ctx context.Context) ([]Position, error)
	GetByID(ctx context.Context, id string) (Position, error)
	ListRecent(ctx context.Context, opts ListOpts) ([]Position, error)
	ListClosedBefore(ctx context.Context, before time.Time, limit int) ([]Position, error)
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}

// AuditArchiveStore is implemented by audit stores that support archival.
type AuditArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time, limit int) ([]AuditEntry, error)
	DeleteBefore(ctx context.Context, before time.Time, maxID int64) (int64, error)
}

// StatusStore persists the single system status row.
type StatusStore interface {
	Upsert(ctx context.Context, st SystemStatus) error
	Get(ctx context.Context) (SystemStatus, error)
}

// ScoreHistoryStore appends score results for offline analysis.
type ScoreHistoryStore interface {
	InsertScore(ctx context.Context, res ScoreResult, at time.Time) error
}

// PriceTick is one supervisor price observation for an open position.
type PriceTick struct {
	PositionID      string
	ContractAddress string
	PriceUSD        float64
	PnLPercent      float64
	At              time.Time
}

// PriceTickStore appends supervisor price observations.
type PriceTickStore interface {
	InsertTicks(ctx context.Context, ticks []PriceTick) error
}

package domain

import "time"

// PositionStatus tracks whether a position is open or closed.
type PositionStatus string

const (
	PositionStatusOpen   PositionStatus = "open"
	PositionStatusClosed PositionStatus = "closed"
)

// ExitReason records why a position was closed.
type ExitReason string

const (
	ExitReasonTakeProfit ExitReason = "take-profit"
	ExitReasonStopLoss   ExitReason = "stop-loss"
	ExitReasonManual     ExitReason = "manual"
)

// Position is one open or closed trade. Status moves from open to closed
// exactly once; CurrentPrice and PnLPercent only change while open.
type Position struct {
	ID              string         `json:"id"`
	ContractAddress string         `json:"ca"`
	Symbol          string         `json:"symbol,omitempty"`
	SizeNative      float64        `json:"size_sol"`
	EntryPrice      float64        `json:"entry_price"`
	CurrentPrice    float64        `json:"current_price"`
	PnLPercent      *float64       `json:"pnl_percent"`
	Status          PositionStatus `json:"status"`
	EntrySignature  string         `json:"entry_tx,omitempty"`
	ExitSignature   string         `json:"exit_tx,omitempty"`
	ExitReason      ExitReason     `json:"exit_reason,omitempty"`
	OpenedAt        time.Time      `json:"opened_at"`
	ClosedAt        *time.Time     `json:"closed_at,omitempty"`
}

// IsOpen reports whether the position still accepts price refreshes.
func (p Position) IsOpen() bool {
	return p.Status == PositionStatusOpen
}

// PnLPercentAt returns the percentage change from entry to price. ok is false
// when the entry price is unknown.
func (p Position) PnLPercentAt(price float64) (pnl float64, ok bool) {
	if p.EntryPrice <= 0 {
		return 0, false
	}
	return (price - p.EntryPrice) / p.EntryPrice * 100, true
}

// Trade is an executed buy or sell recorded after a successful submission.
type Trade struct {
	ID              string    `json:"id"`
	ContractAddress string    `json:"ca"`
	Side            TradeSide `json:"side"`
	AmountNative    float64   `json:"amount_sol"`
	PriceUSD        float64   `json:"price"`
	Signature       string    `json:"tx_signature"`
	CreatedAt       time.Time `json:"created_at"`
}

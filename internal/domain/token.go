package domain

import (
	"strings"
	"time"
)

// TokenStatus is the lifecycle label stored on a token record.
type TokenStatus string

const (
	TokenStatusScanning TokenStatus = "scanning"
	TokenStatusSniped   TokenStatus = "sniped"
)

// TokenStatusFromVerdict maps a scoring verdict onto the stored status label.
func TokenStatusFromVerdict(v Verdict) TokenStatus {
	return TokenStatus(strings.ToLower(string(v)))
}

// TokenSnapshot is one discovered token. Identity fields (ContractAddress,
// Name, Symbol, MetadataURI, Creator, CreatedAt) are fixed by the creation
// event; market fields follow the latest trade event.
type TokenSnapshot struct {
	ContractAddress string    `json:"ca"`
	Name            string    `json:"name"`
	Symbol          string    `json:"symbol"`
	MetadataURI     string    `json:"uri,omitempty"`
	Creator         string    `json:"creator,omitempty"`
	MarketCapNative float64   `json:"market_cap_sol"`
	LiquidityNative float64   `json:"liquidity_sol"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TradeSide is the direction of a trade on the upstream market.
type TradeSide string

const (
	TradeSideBuy  TradeSide = "buy"
	TradeSideSell TradeSide = "sell"
)

// TradeUpdate is a normalized trade-occurred event for a watched token.
type TradeUpdate struct {
	ContractAddress string
	Side            TradeSide
	Trader          string
	Signature       string
	SolAmount       float64
	TokenAmount     float64
	MarketCapNative float64
	LiquidityNative float64
	ReceivedAt      time.Time
}

// TokenRecord is the persisted view of a token after enrichment and scoring.
type TokenRecord struct {
	ContractAddress string      `json:"ca"`
	Name            string      `json:"name"`
	Symbol          string      `json:"symbol"`
	MetadataURI     string      `json:"uri,omitempty"`
	MarketCapUSD    float64     `json:"market_cap"`
	LiquidityUSD    float64     `json:"liquidity"`
	PriceUSD        float64     `json:"price"`
	Holders         int64       `json:"holders"`
	Score           *int        `json:"score,omitempty"`
	Status          TokenStatus `json:"status"`
	RejectReason    string      `json:"reject_reason,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Package pumpportal speaks the PumpPortal data feed and trade-local APIs.
package pumpportal

import (
	"time"

	"github.com/vitorsaz/skull-agent/internal/domain"
)

// Subscription methods understood by the data feed.
const (
	MethodSubscribeNewToken     = "subscribeNewToken"
	MethodSubscribeTokenTrade   = "subscribeTokenTrade"
	MethodUnsubscribeTokenTrade = "unsubscribeTokenTrade"
	MethodSubscribeAccountTrade = "subscribeAccountTrade"
)

// Event discriminators carried in the txType field.
const (
	TxTypeCreate = "create"
	TxTypeBuy    = "buy"
	TxTypeSell   = "sell"
)

// Command is an outbound subscription frame.
type Command struct {
	Method string   `json:"method"`
	Keys   []string `json:"keys,omitempty"`
}

// SubscribeNewToken returns the standing new-token subscription.
func SubscribeNewToken() Command {
	return Command{Method: MethodSubscribeNewToken}
}

// SubscribeTokenTrade subscribes to trade events for mints.
func SubscribeTokenTrade(mints ...string) Command {
	return Command{Method: MethodSubscribeTokenTrade, Keys: mints}
}

// UnsubscribeTokenTrade cancels trade events for mints.
func UnsubscribeTokenTrade(mints ...string) Command {
	return Command{Method: MethodUnsubscribeTokenTrade, Keys: mints}
}

// SubscribeAccountTrade subscribes to trades made by the given wallets.
func SubscribeAccountTrade(wallets ...string) Command {
	return Command{Method: MethodSubscribeAccountTrade, Keys: wallets}
}

// Frame is an inbound data feed message. Acknowledgements carry only
// Message and no TxType.
type Frame struct {
	TxType                string  `json:"txType"`
	Signature             string  `json:"signature"`
	Mint                  string  `json:"mint"`
	TraderPublicKey       string  `json:"traderPublicKey"`
	Name                  string  `json:"name"`
	Symbol                string  `json:"symbol"`
	URI                   string  `json:"uri"`
	Pool                  string  `json:"pool"`
	InitialBuy            float64 `json:"initialBuy"`
	SolAmount             float64 `json:"solAmount"`
	TokenAmount           float64 `json:"tokenAmount"`
	BondingCurveKey       string  `json:"bondingCurveKey"`
	VTokensInBondingCurve float64 `json:"vTokensInBondingCurve"`
	VSolInBondingCurve    float64 `json:"vSolInBondingCurve"`
	MarketCapSol          float64 `json:"marketCapSol"`
	Message               string  `json:"message"`
	Errors                string  `json:"errors"`
}

// ToSnapshot normalizes a create frame.
func (f *Frame) ToSnapshot(now time.Time) domain.TokenSnapshot {
	return domain.TokenSnapshot{
		ContractAddress: f.Mint,
		Name:            f.Name,
		Symbol:          f.Symbol,
		MetadataURI:     f.URI,
		Creator:         f.TraderPublicKey,
		MarketCapNative: f.MarketCapSol,
		LiquidityNative: f.VSolInBondingCurve,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// ToTradeUpdate normalizes a buy or sell frame.
func (f *Frame) ToTradeUpdate(now time.Time) domain.TradeUpdate {
	side := domain.TradeSideBuy
	if f.TxType == TxTypeSell {
		side = domain.TradeSideSell
	}
	return domain.TradeUpdate{
		ContractAddress: f.Mint,
		Side:            side,
		Trader:          f.TraderPublicKey,
		Signature:       f.Signature,
		SolAmount:       f.SolAmount,
		TokenAmount:     f.TokenAmount,
		MarketCapNative: f.MarketCapSol,
		LiquidityNative: f.VSolInBondingCurve,
		ReceivedAt:      now,
	}
}

// TradeRequest is the trade-local request body.
type TradeRequest struct {
	PublicKey        string  `json:"publicKey"`
	Action           string  `json:"action"`
	Mint             string  `json:"mint"`
	Amount           any     `json:"amount"`
	DenominatedInSol string  `json:"denominatedInSol"`
	Slippage         int     `json:"slippage"`
	PriorityFee      float64 `json:"priorityFee"`
	Pool             string  `json:"pool"`
}

type claimRequest struct {
	PublicKey string `json:"publicKey"`
	Mint      string `json:"mint"`
}

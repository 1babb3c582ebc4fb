package pumpportal

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/vitorsaz/skull-agent/internal/domain"
)

// EventKind classifies a parsed frame.
type EventKind int

const (
	// EventIgnored covers acks and frames with an unknown txType.
	EventIgnored EventKind = iota
	EventTokenCreated
	EventTrade
)

// Event is the normalized form of one inbound frame.
type Event struct {
	Kind  EventKind
	Token domain.TokenSnapshot
	Trade domain.TradeUpdate
}

// ErrMalformedFrame is returned for frames that are not valid JSON objects or
// that lack a mint.
var ErrMalformedFrame = errors.New("pumpportal: malformed frame")

// Parse decodes one data feed frame.
func Parse(raw []byte, now time.Time) (Event, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Event{}, ErrMalformedFrame
	}

	switch f.TxType {
	case TxTypeCreate:
		if f.Mint == "" {
			return Event{}, ErrMalformedFrame
		}
		return Event{Kind: EventTokenCreated, Token: f.ToSnapshot(now)}, nil
	case TxTypeBuy, TxTypeSell:
		if f.Mint == "" {
			return Event{}, ErrMalformedFrame
		}
		return Event{Kind: EventTrade, Trade: f.ToTradeUpdate(now)}, nil
	default:
		return Event{Kind: EventIgnored}, nil
	}
}

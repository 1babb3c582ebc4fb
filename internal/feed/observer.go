package feed

import "github.com/vitorsaz/skull-agent/internal/domain"

// Observer receives feed events. Methods are called from the connection's
// read goroutine and must return quickly; long work belongs on the
// observer's own goroutines.
type Observer interface {
	OnTokenCreated(snap domain.TokenSnapshot)
	OnTradeOccurred(update domain.TradeUpdate)
	OnConnectionStatusChanged(status domain.ConnectionStatus)
}

// Observers fans events out to several observers in order.
type Observers []Observer

func (o Observers) OnTokenCreated(snap domain.TokenSnapshot) {
	for _, obs := range o {
		obs.OnTokenCreated(snap)
	}
}

func (o Observers) OnTradeOccurred(update domain.TradeUpdate) {
	for _, obs := range o {
		obs.OnTradeOccurred(update)
	}
}

func (o Observers) OnConnectionStatusChanged(status domain.ConnectionStatus) {
	for _, obs := range o {
		obs.OnConnectionStatusChanged(status)
	}
}

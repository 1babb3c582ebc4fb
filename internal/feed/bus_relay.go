package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/vitorsaz/skull-agent/internal/domain"
)

// BusRelay is an Observer that republishes feed events on the signal bus so
// websocket clients and other processes can follow the stream. Events are
// queued and published from Run; when the queue is full they are dropped.
type BusRelay struct {
	bus    domain.SignalBus
	queue  chan domain.BusEvent
	logger *slog.Logger
}

// NewBusRelay creates a relay with a queue of the given size.
func NewBusRelay(bus domain.SignalBus, size int, logger *slog.Logger) *BusRelay {
	if size < 1 {
		size = 256
	}
	return &BusRelay{
		bus:    bus,
		queue:  make(chan domain.BusEvent, size),
		logger: logger.With(slog.String("component", "bus_relay")),
	}
}

func (r *BusRelay) OnTokenCreated(snap domain.TokenSnapshot) {
	r.enqueue(domain.EventTokenCreated, snap, snap.CreatedAt)
}

func (r *BusRelay) OnTradeOccurred(update domain.TradeUpdate) {
	r.enqueue(domain.EventTrade, update, update.ReceivedAt)
}

func (r *BusRelay) OnConnectionStatusChanged(status domain.ConnectionStatus) {
	data := map[string]any{
		"state":   status.State,
		"attempt": status.Attempt,
	}
	if status.RetryAfter > 0 {
		data["retry_after_ms"] = status.RetryAfter.Milliseconds()
	}
	if status.Err != nil {
		data["error"] = status.Err.Error()
	}
	r.enqueue(domain.EventFeedStatus, data, status.At)
}

func (r *BusRelay) enqueue(typ string, data any, at time.Time) {
	select {
	case r.queue <- domain.BusEvent{Type: typ, Data: data, Timestamp: at}:
	default:
		r.logger.Debug("relay queue full, dropping event", slog.String("type", typ))
	}
}

// Run publishes queued events until ctx is cancelled.
func (r *BusRelay) Run(ctx context.Context) error {
	r.logger.Info("bus relay started")
	defer r.logger.Info("bus relay stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-r.queue:
			payload, err := json.Marshal(ev)
			if err != nil {
				r.logger.Debug("relay marshal failed", slog.String("error", err.Error()))
				continue
			}
			if err := r.bus.Publish(ctx, domain.ChannelEvents, payload); err != nil {
				r.logger.Warn("relay publish failed",
					slog.String("type", ev.Type),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

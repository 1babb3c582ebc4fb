package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vitorsaz/skull-agent/internal/domain"
	"github.com/vitorsaz/skull-agent/internal/notify"
)

const alertTimeout = 15 * time.Second

// Alerter delivers operator notifications. *notify.Notifier satisfies it.
type Alerter interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Journal records every pipeline transition: it writes the audit log,
// publishes the entry on the event bus for live clients, and raises an alert
// for the actions operators subscribe to. Failures are logged, never
// returned.
type Journal struct {
	audit  domain.AuditStore
	bus    domain.SignalBus
	alerts Alerter
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewJournal creates a Journal. bus and alerts may be nil.
func NewJournal(audit domain.AuditStore, bus domain.SignalBus, alerts Alerter, logger *slog.Logger) *Journal {
	return &Journal{
		audit:  audit,
		bus:    bus,
		alerts: alerts,
		logger: logger.With(slog.String("component", "journal")),
	}
}

// Record writes one audit entry for action.
func (j *Journal) Record(ctx context.Context, action string, detail map[string]any) {
	sctx, cancel := withStoreTimeout(ctx)
	defer cancel()

	if err := j.audit.Log(sctx, action, detail); err != nil {
		j.logger.WarnContext(ctx, "journal: audit log failed",
			slog.String("action", action),
			slog.String("error", err.Error()),
		)
	}

	if j.bus != nil {
		j.publish(sctx, action, detail)
	}

	if event, ok := notify.EventFor(action); ok && j.alerts != nil {
		j.wg.Add(1)
		go func() {
			defer j.wg.Done()
			actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), alertTimeout)
			defer cancel()
			if err := j.alerts.Notify(actx, event, alertTitle(action, detail), alertBody(detail)); err != nil {
				j.logger.Warn("journal: alert failed",
					slog.String("action", action),
					slog.String("error", err.Error()),
				)
			}
		}()
	}
}

// Position publishes a position change for live clients.
func (j *Journal) Position(ctx context.Context, p domain.Position) {
	if j.bus == nil {
		return
	}
	sctx, cancel := withStoreTimeout(ctx)
	defer cancel()
	if err := publishEvent(sctx, j.bus, domain.ChannelPositions, domain.EventPosition, p); err != nil {
		j.logger.WarnContext(ctx, "journal: publish position failed",
			slog.String("position_id", p.ID),
			slog.String("error", err.Error()),
		)
	}
}

// Wait blocks until in-flight alerts are delivered.
func (j *Journal) Wait() {
	j.wg.Wait()
}

func (j *Journal) publish(ctx context.Context, action string, detail map[string]any) {
	now := time.Now().UTC()
	payload, err := json.Marshal(domain.BusEvent{
		Type:      domain.EventAudit,
		Data:      map[string]any{"action": action, "detail": detail, "timestamp": now},
		Timestamp: now,
	})
	if err != nil {
		return
	}
	if err := j.bus.Publish(ctx, domain.ChannelEvents, payload); err != nil {
		j.logger.WarnContext(ctx, "journal: publish failed", slog.String("error", err.Error()))
	}
	if err := j.bus.StreamAppend(ctx, domain.StreamAudit, payload); err != nil {
		j.logger.WarnContext(ctx, "journal: stream append failed", slog.String("error", err.Error()))
	}
}

func alertTitle(action string, detail map[string]any) string {
	symbol, _ := detail["symbol"].(string)
	if symbol == "" {
		return action
	}
	return fmt.Sprintf("%s %s", action, symbol)
}

func alertBody(detail map[string]any) string {
	var body string
	for _, key := range []string{"ca", "amount", "pnl_percent", "tx_signature", "reason"} {
		v, ok := detail[key]
		if !ok || v == nil || v == "" {
			continue
		}
		if f, isFloat := v.(float64); isFloat {
			body += fmt.Sprintf("%s: %.2f\n", key, f)
			continue
		}
		body += fmt.Sprintf("%s: %v\n", key, v)
	}
	return body
}

// publishEvent wraps data in a BusEvent and publishes it on channel.
func publishEvent(ctx context.Context, bus domain.SignalBus, channel, typ string, data any) error {
	now := time.Now().UTC()
	payload, err := json.Marshal(domain.BusEvent{Type: typ, Data: data, Timestamp: now})
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", typ, err)
	}
	return bus.Publish(ctx, channel, payload)
}

package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitorsaz/skull-agent/internal/cache/local"
	"github.com/vitorsaz/skull-agent/internal/domain"
	"github.com/vitorsaz/skull-agent/internal/store/memory"
)

func TestJournal_RecordPublishesAndAlerts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := local.NewBus()
	events, err := bus.Subscribe(ctx, domain.ChannelEvents)
	require.NoError(t, err)

	audit := memory.NewAuditStore()
	alerts := &recordingAlerter{}
	j := NewJournal(audit, bus, alerts, testLogger())

	j.Record(ctx, domain.ActionStopLoss, map[string]any{"ca": testMint, "symbol": "SKL", "pnl_percent": -60.0})
	j.Record(ctx, domain.ActionDetected, map[string]any{"ca": testMint})
	j.Wait()

	assert.Equal(t, []string{"stop_loss"}, alerts.seen())
	assert.Equal(t, []string{domain.ActionStopLoss, domain.ActionDetected}, auditActions(audit))

	select {
	case raw := <-events:
		var ev struct {
			Type string `json:"type"`
			Data struct {
				Action string         `json:"action"`
				Detail map[string]any `json:"detail"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(raw, &ev))
		assert.Equal(t, domain.EventAudit, ev.Type)
		assert.Equal(t, domain.ActionStopLoss, ev.Data.Action)
		assert.Equal(t, testMint, ev.Data.Detail["ca"])
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}

	msgs, err := bus.StreamRead(ctx, domain.StreamAudit, "0", 10)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestJournal_PositionPublishes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := local.NewBus()
	ch, err := bus.Subscribe(ctx, domain.ChannelPositions)
	require.NoError(t, err)

	j := NewJournal(memory.NewAuditStore(), bus, nil, testLogger())
	j.Position(ctx, domain.Position{ID: "p1", ContractAddress: testMint, Status: domain.PositionStatusOpen})

	select {
	case raw := <-ch:
		assert.Contains(t, string(raw), `"type":"position"`)
		assert.Contains(t, string(raw), `"id":"p1"`)
	case <-time.After(time.Second):
		t.Fatal("no position event")
	}
}

func TestAlertBody(t *testing.T) {
	body := alertBody(map[string]any{"ca": "MintA", "pnl_percent": 101.234, "reason": ""})
	assert.Equal(t, "ca: MintA\npnl_percent: 101.23\n", body)
	assert.Equal(t, "TAKE_PROFIT SKL", alertTitle(domain.ActionTakeProfit, map[string]any{"symbol": "SKL"}))
}

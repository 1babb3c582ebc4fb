package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitorsaz/skull-agent/internal/config"
	"github.com/vitorsaz/skull-agent/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingSender struct {
	mu     sync.Mutex
	titles []string
	err    error
}

func (r *recordingSender) Send(_ context.Context, title, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.titles = append(r.titles, title)
	return r.err
}

func (r *recordingSender) Name() string { return "recording" }

func TestEventFor(t *testing.T) {
	cases := map[string]string{
		domain.ActionSnipeSuccess: EventSnipeSuccess,
		domain.ActionTakeProfit:   EventTakeProfit,
		domain.ActionStopLoss:     EventStopLoss,
		domain.ActionSnipeFailed:  EventError,
		domain.ActionExitFailed:   EventError,
	}
	for action, want := range cases {
		got, ok := EventFor(action)
		assert.True(t, ok, action)
		assert.Equal(t, want, got, action)
	}
	_, ok := EventFor(domain.ActionDetected)
	assert.False(t, ok)
}

func TestNotifier_Filter(t *testing.T) {
	rec := &recordingSender{}
	n := NewNotifier([]Sender{rec}, []string{"TAKE_PROFIT", " stop_loss "}, testLogger())

	require.NoError(t, n.Notify(context.Background(), EventTakeProfit, "tp", "x"))
	require.NoError(t, n.Notify(context.Background(), EventStopLoss, "sl", "x"))
	require.NoError(t, n.Notify(context.Background(), EventSnipeSuccess, "buy", "x"))
	require.NoError(t, n.NotifyAll(context.Background(), "all", "x"))

	assert.Equal(t, []string{"tp", "sl", "all"}, rec.titles)
}

func TestNotifier_SenderFailureDoesNotStopOthers(t *testing.T) {
	bad := &recordingSender{err: assert.AnError}
	good := &recordingSender{}
	n := NewNotifier([]Sender{bad, good}, nil, testLogger())

	err := n.Notify(context.Background(), EventError, "boom", "x")
	require.Error(t, err)
	assert.Len(t, good.titles, 1)
}

func TestFromConfig_NoChannels(t *testing.T) {
	n := FromConfig(config.NotifyConfig{}, testLogger())
	assert.False(t, n.Enabled())
	assert.NoError(t, n.Notify(context.Background(), EventError, "x", "y"))
}

func TestTelegramSender(t *testing.T) {
	var got map[string]any
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("TOKEN", "42").WithBaseURL(srv.URL)
	require.NoError(t, s.Send(context.Background(), "Sniped", "MintA"))

	assert.Equal(t, "/botTOKEN/sendMessage", path)
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "*Sniped*\nMintA", got["text"])
	assert.Equal(t, true, got["disable_web_page_preview"])
}

func TestDiscordSender(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, NewDiscordSender(srv.URL).Send(context.Background(), "Stop loss", "MintA -55%"))
	assert.Equal(t, "**Stop loss**\nMintA -55%", got["content"])

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer failing.Close()
	assert.Error(t, NewDiscordSender(failing.URL).Send(context.Background(), "t", "m"))
}

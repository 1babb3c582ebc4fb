package feed

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitorsaz/skull-agent/internal/domain"
	"github.com/vitorsaz/skull-agent/internal/platform/pumpportal"
)

// --- fakes ---

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) scheduled() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

func (c *fakeClock) delays() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, 0, len(c.timers))
	for _, t := range c.timers {
		out = append(out, t.d)
	}
	return out
}

// fireLast advances the clock and runs the most recent timer unless stopped.
func (c *fakeClock) fireLast() {
	c.mu.Lock()
	t := c.timers[len(c.timers)-1]
	c.now = c.now.Add(t.d)
	c.mu.Unlock()
	if !t.stopped {
		t.f()
	}
}

type fakeConn struct {
	mu      sync.Mutex
	written []pumpportal.Command
	inbound chan []byte
	readErr chan error
	closed  bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbound: make(chan []byte, 16), readErr: make(chan error, 1)}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.inbound:
		return data, nil
	case err := <-c.readErr:
		return nil, err
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	var cmd pumpportal.Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("closed")
	}
	c.written = append(c.written, cmd)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		select {
		case c.readErr <- io.EOF:
		default:
		}
	}
	return nil
}

func (c *fakeConn) drop(err error) { c.readErr <- err }

func (c *fakeConn) commands() []pumpportal.Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]pumpportal.Command, len(c.written))
	copy(out, c.written)
	return out
}

// fakeDialer hands out queued results in order; once the queue is empty every
// dial fails.
type fakeDialer struct {
	mu      sync.Mutex
	results []any
	dials   int
}

func (d *fakeDialer) push(results ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.results = append(d.results, results...)
}

func (d *fakeDialer) Dial(context.Context, string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if len(d.results) == 0 {
		return nil, errors.New("connection refused")
	}
	r := d.results[0]
	d.results = d.results[1:]
	switch v := r.(type) {
	case *fakeConn:
		return v, nil
	case error:
		return nil, v
	}
	return nil, errors.New("bad fake result")
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

type recorder struct {
	mu       sync.Mutex
	tokens   []domain.TokenSnapshot
	trades   []domain.TradeUpdate
	statuses []domain.ConnectionStatus
}

func (r *recorder) OnTokenCreated(s domain.TokenSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens = append(r.tokens, s)
}

func (r *recorder) OnTradeOccurred(u domain.TradeUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trades = append(r.trades, u)
}

func (r *recorder) OnConnectionStatusChanged(s domain.ConnectionStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *recorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tokens), len(r.trades)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(cfg Config, obs Observer) (*Manager, *fakeClock, *fakeDialer) {
	clock := newFakeClock()
	dialer := &fakeDialer{}
	if cfg.ReconnectBase == 0 {
		cfg.ReconnectBase = 5 * time.Second
	}
	if cfg.ReconnectCap == 0 {
		cfg.ReconnectCap = 30 * time.Second
	}
	if cfg.SubscriptionCapacity == 0 {
		cfg.SubscriptionCapacity = 100
	}
	m := NewManager(cfg, obs, testLogger(), WithClock(clock), WithDialer(dialer))
	return m, clock, dialer
}

// --- tests ---

func TestManager_ReconnectDelaysGrowLinearly(t *testing.T) {
	rec := &recorder{}
	m, clock, _ := newTestManager(Config{}, rec)

	m.Connect()
	assert.Equal(t, domain.ConnBackoffWait, m.State())
	clock.fireLast()
	clock.fireLast()

	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second, 15 * time.Second}, clock.delays())
	assert.Equal(t, domain.ConnBackoffWait, m.State())

	rec.mu.Lock()
	defer rec.mu.Unlock()
	var disconnects []domain.ConnectionStatus
	for _, s := range rec.statuses {
		if s.State == domain.ConnDisconnected {
			disconnects = append(disconnects, s)
		}
	}
	require.Len(t, disconnects, 3)
	assert.Equal(t, 3, disconnects[2].Attempt)
	assert.Equal(t, 15*time.Second, disconnects[2].RetryAfter)
	assert.Error(t, disconnects[2].Err)
}

func TestManager_DelayHoldsAtCap(t *testing.T) {
	m, clock, _ := newTestManager(Config{ReconnectBase: 10 * time.Second, ReconnectCap: 25 * time.Second}, &recorder{})

	m.Connect()
	for i := 0; i < 4; i++ {
		clock.fireLast()
	}
	assert.Equal(t, []time.Duration{
		10 * time.Second, 20 * time.Second, 25 * time.Second, 25 * time.Second, 25 * time.Second,
	}, clock.delays())
}

func TestManager_MaxRetriesRestartsBackoff(t *testing.T) {
	m, clock, _ := newTestManager(Config{MaxRetries: 3}, &recorder{})

	m.Connect()
	for i := 0; i < 3; i++ {
		clock.fireLast()
	}
	assert.Equal(t, []time.Duration{
		5 * time.Second, 10 * time.Second, 15 * time.Second, 5 * time.Second,
	}, clock.delays())
}

func TestManager_SuccessResetsRetryCounter(t *testing.T) {
	m, clock, dialer := newTestManager(Config{}, &recorder{})
	conn := newFakeConn()
	dialer.push(errors.New("refused"), errors.New("refused"), conn)

	m.Connect()
	clock.fireLast()
	clock.fireLast()
	require.Equal(t, domain.ConnConnected, m.State())

	conn.drop(errors.New("reset by peer"))
	require.Eventually(t, func() bool { return clock.scheduled() == 3 }, time.Second, 5*time.Millisecond)

	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second, 5 * time.Second}, clock.delays())
	assert.Equal(t, domain.ConnBackoffWait, m.State())
}

func TestManager_ConnectIsNoOpWhenConnected(t *testing.T) {
	m, _, dialer := newTestManager(Config{}, &recorder{})
	dialer.push(newFakeConn())

	m.Connect()
	m.Connect()
	m.Connect()

	assert.Equal(t, 1, dialer.dialCount())
	assert.Equal(t, domain.ConnConnected, m.State())
	m.Close()
}

func TestManager_ConnectFromBackoffCancelsTimer(t *testing.T) {
	m, clock, dialer := newTestManager(Config{}, &recorder{})

	m.Connect()
	require.Equal(t, 1, clock.scheduled())

	dialer.push(newFakeConn())
	m.Connect()
	require.Equal(t, domain.ConnConnected, m.State())

	// the pending timer was stopped, so firing it must not dial again
	clock.fireLast()
	assert.Equal(t, 2, dialer.dialCount())
	m.Close()
}

func TestManager_ResubscribesOnConnect(t *testing.T) {
	m, _, dialer := newTestManager(Config{AccountKeys: []string{"Wallet111"}}, &recorder{})
	conn := newFakeConn()
	dialer.push(conn)

	require.NoError(t, m.Subscribe("MintA"))
	require.NoError(t, m.Subscribe("MintB"))
	m.Connect()
	defer m.Close()

	assert.Equal(t, []pumpportal.Command{
		pumpportal.SubscribeTokenTrade("MintA", "MintB"),
		pumpportal.SubscribeNewToken(),
		pumpportal.SubscribeAccountTrade("Wallet111"),
	}, conn.commands())
}

func TestManager_EvictionUnsubscribesBeforeSubscribe(t *testing.T) {
	m, _, dialer := newTestManager(Config{SubscriptionCapacity: 2}, &recorder{})
	conn := newFakeConn()
	dialer.push(conn)
	m.Connect()
	defer m.Close()

	require.NoError(t, m.Subscribe("A"))
	require.NoError(t, m.Subscribe("B"))
	require.NoError(t, m.Subscribe("B"))
	require.NoError(t, m.Subscribe("C"))

	assert.Equal(t, []pumpportal.Command{
		pumpportal.SubscribeNewToken(),
		pumpportal.SubscribeTokenTrade("A"),
		pumpportal.SubscribeTokenTrade("B"),
		pumpportal.UnsubscribeTokenTrade("A"),
		pumpportal.SubscribeTokenTrade("C"),
	}, conn.commands())
	assert.Equal(t, []string{"B", "C"}, m.Subscriptions())

	require.NoError(t, m.Unsubscribe("B"))
	require.NoError(t, m.Unsubscribe("nope"))
	assert.Equal(t, []string{"C"}, m.Subscriptions())
	assert.Equal(t, pumpportal.UnsubscribeTokenTrade("B"), conn.commands()[5])
	assert.Len(t, conn.commands(), 6)
}

func TestManager_DispatchesAndDropsMalformed(t *testing.T) {
	rec := &recorder{}
	m, _, dialer := newTestManager(Config{}, rec)
	conn := newFakeConn()
	dialer.push(conn)
	m.Connect()
	defer m.Close()

	conn.inbound <- []byte(`{"message":"Successfully subscribed"}`)
	conn.inbound <- []byte(`{{{ not json`)
	conn.inbound <- []byte(`{"txType":"create","mint":"Mint1","name":"Skull","symbol":"SKL","marketCapSol":30,"vSolInBondingCurve":31}`)
	conn.inbound <- []byte(`{"txType":"buy","mint":"Mint1","marketCapSol":42,"vSolInBondingCurve":40,"solAmount":1}`)

	require.Eventually(t, func() bool {
		tokens, trades := rec.counts()
		return tokens == 1 && trades == 1
	}, time.Second, 5*time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, "Mint1", rec.tokens[0].ContractAddress)
	assert.Equal(t, 30.0, rec.tokens[0].MarketCapNative)
	assert.Equal(t, 42.0, rec.trades[0].MarketCapNative)
	assert.Equal(t, domain.ConnConnected, m.State())
}

func TestManager_CloseStopsReconnects(t *testing.T) {
	m, clock, dialer := newTestManager(Config{}, &recorder{})

	m.Connect()
	m.Close()
	clock.fireLast()

	assert.Equal(t, 1, dialer.dialCount())
	assert.Equal(t, domain.ConnDisconnected, m.State())
}

func TestManager_StaleConnFailureIgnored(t *testing.T) {
	m, clock, dialer := newTestManager(Config{}, &recorder{})
	first := newFakeConn()
	dialer.push(first)
	m.Connect()

	m.fail(newFakeConn(), errors.New("old connection"))
	assert.Equal(t, domain.ConnConnected, m.State())
	assert.Equal(t, 0, clock.scheduled())
	m.Close()
}

func TestManager_WebsocketIntegration(t *testing.T) {
	upgrader := websocket.Upgrader{}
	received := make(chan string, 4)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()

		_, msg, err := c.ReadMessage()
		if err != nil {
			return
		}
		received <- string(msg)

		_ = c.WriteMessage(websocket.TextMessage,
			[]byte(`{"txType":"create","mint":"MintWS","name":"Live","symbol":"LIV","marketCapSol":28}`))

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	rec := &recorder{}
	m := NewManager(Config{
		URL:                  "ws" + strings.TrimPrefix(srv.URL, "http"),
		ReconnectBase:        time.Second,
		ReconnectCap:         5 * time.Second,
		SubscriptionCapacity: 10,
	}, rec, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = m.Run(ctx)
		close(done)
	}()

	select {
	case msg := <-received:
		assert.JSONEq(t, `{"method":"subscribeNewToken"}`, msg)
	case <-time.After(5 * time.Second):
		t.Fatal("server never received the subscription")
	}

	require.Eventually(t, func() bool {
		tokens, _ := rec.counts()
		return tokens == 1
	}, 5*time.Second, 10*time.Millisecond)

	rec.mu.Lock()
	assert.Equal(t, "MintWS", rec.tokens[0].ContractAddress)
	rec.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, domain.ConnDisconnected, m.State())
}

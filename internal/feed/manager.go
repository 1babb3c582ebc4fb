// Package feed owns the single persistent connection to the PumpPortal data
// stream: connect, resubscribe, reconnect with backoff, and event dispatch.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vitorsaz/skull-agent/internal/domain"
	"github.com/vitorsaz/skull-agent/internal/observability"
	"github.com/vitorsaz/skull-agent/internal/platform/pumpportal"
)

// Config parameterizes a Manager.
type Config struct {
	URL                  string
	ReconnectBase        time.Duration
	ReconnectCap         time.Duration
	MaxRetries           int
	SubscriptionCapacity int
	// AccountKeys are wallets whose own trades are streamed.
	AccountKeys []string
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option { return func(m *Manager) { m.clock = c } }

// WithDialer replaces the websocket dialer.
func WithDialer(d Dialer) Option { return func(m *Manager) { m.dialer = d } }

// WithMetrics records feed metrics.
func WithMetrics(mt *observability.Metrics) Option { return func(m *Manager) { m.metrics = mt } }

// Manager is the feed connection state machine:
//
//	DISCONNECTED -> CONNECTING -> CONNECTED -> (failure) -> BACKOFF_WAIT -> CONNECTING ...
//
// Exactly one physical connection exists at a time and every outbound frame
// goes through writeMu.
type Manager struct {
	cfg      Config
	set      *SubscriptionSet
	observer Observer
	dialer   Dialer
	clock    Clock
	metrics  *observability.Metrics
	logger   *slog.Logger

	mu      sync.Mutex
	state   domain.ConnectionState
	conn    Conn
	timer   Timer
	backoff *Backoff
	closed  bool
	runCtx  context.Context

	writeMu sync.Mutex
}

// NewManager creates a Manager in the DISCONNECTED state.
func NewManager(cfg Config, observer Observer, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		cfg:      cfg,
		set:      NewSubscriptionSet(cfg.SubscriptionCapacity),
		observer: observer,
		dialer:   WSDialer{},
		clock:    RealClock(),
		logger:   logger.With(slog.String("component", "feed")),
		state:    domain.ConnDisconnected,
		backoff:  NewBackoff(cfg.ReconnectBase, cfg.ReconnectCap, cfg.MaxRetries),
		runCtx:   context.Background(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run connects and keeps the feed alive until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	m.mu.Lock()
	m.runCtx = ctx
	m.mu.Unlock()

	m.Connect()
	<-ctx.Done()
	m.Close()
	return nil
}

// State returns the current connection state.
func (m *Manager) State() domain.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscriptions returns the watched token addresses, oldest first.
func (m *Manager) Subscriptions() []string {
	return m.set.Members()
}

// Connect opens the stream. It is a no-op while CONNECTING or CONNECTED, and
// cancels any pending reconnect timer when called from BACKOFF_WAIT.
func (m *Manager) Connect() {
	m.mu.Lock()
	if m.closed || m.state == domain.ConnConnecting || m.state == domain.ConnConnected {
		m.mu.Unlock()
		return
	}
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.state = domain.ConnConnecting
	ctx := m.runCtx
	attempt := m.backoff.Attempt()
	m.mu.Unlock()

	m.emit(domain.ConnectionStatus{State: domain.ConnConnecting, Attempt: attempt})

	dialCtx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	conn, err := m.dialer.Dial(dialCtx, m.cfg.URL)
	cancel()
	if err != nil {
		m.fail(nil, err)
		return
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		_ = conn.Close()
		return
	}
	m.conn = conn
	m.state = domain.ConnConnected
	m.backoff.Reset()
	m.mu.Unlock()

	if err := m.resubscribe(conn); err != nil {
		m.fail(conn, fmt.Errorf("resubscribe: %w", err))
		return
	}

	m.logger.Info("feed connected",
		slog.String("url", m.cfg.URL),
		slog.Int("subscriptions", m.set.Len()),
	)
	m.metrics.FeedState(true)
	m.emit(domain.ConnectionStatus{State: domain.ConnConnected})

	go m.readLoop(conn)
}

// resubscribe replays every watched address and the standing subscriptions.
func (m *Manager) resubscribe(conn Conn) error {
	if members := m.set.Members(); len(members) > 0 {
		if err := m.write(conn, pumpportal.SubscribeTokenTrade(members...)); err != nil {
			return err
		}
	}
	if err := m.write(conn, pumpportal.SubscribeNewToken()); err != nil {
		return err
	}
	if len(m.cfg.AccountKeys) > 0 {
		if err := m.write(conn, pumpportal.SubscribeAccountTrade(m.cfg.AccountKeys...)); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe watches addr for trade events. When the set is full the oldest
// address is evicted and unsubscribed before addr is subscribed. While
// disconnected only the set changes; the next connect replays it.
func (m *Manager) Subscribe(addr string) error {
	added, evicted := m.set.Add(addr)
	m.metrics.SetSubscriptions(m.set.Len())
	if !added {
		return nil
	}

	conn := m.connected()
	if conn == nil {
		return nil
	}
	if evicted != "" {
		if err := m.write(conn, pumpportal.UnsubscribeTokenTrade(evicted)); err != nil {
			return fmt.Errorf("feed: unsubscribe %s: %w", evicted, err)
		}
	}
	if err := m.write(conn, pumpportal.SubscribeTokenTrade(addr)); err != nil {
		return fmt.Errorf("feed: subscribe %s: %w", addr, err)
	}
	return nil
}

// Unsubscribe stops watching addr.
func (m *Manager) Unsubscribe(addr string) error {
	if !m.set.Remove(addr) {
		return nil
	}
	m.metrics.SetSubscriptions(m.set.Len())

	conn := m.connected()
	if conn == nil {
		return nil
	}
	if err := m.write(conn, pumpportal.UnsubscribeTokenTrade(addr)); err != nil {
		return fmt.Errorf("feed: unsubscribe %s: %w", addr, err)
	}
	return nil
}

// Close tears the connection down and cancels any pending reconnect.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	conn := m.conn
	m.conn = nil
	m.state = domain.ConnDisconnected
	m.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	m.metrics.FeedState(false)
}

func (m *Manager) connected() Conn {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != domain.ConnConnected {
		return nil
	}
	return m.conn
}

func (m *Manager) write(conn Conn, cmd pumpportal.Command) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return conn.WriteMessage(data)
}

func (m *Manager) readLoop(conn Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			m.fail(conn, err)
			return
		}

		ev, err := pumpportal.Parse(data, m.clock.Now())
		if err != nil {
			m.metrics.FeedFrame("malformed")
			m.logger.Debug("dropping malformed frame", slog.String("error", err.Error()))
			continue
		}

		switch ev.Kind {
		case pumpportal.EventTokenCreated:
			m.metrics.FeedFrame("create")
			m.observer.OnTokenCreated(ev.Token)
		case pumpportal.EventTrade:
			m.metrics.FeedFrame("trade")
			m.observer.OnTradeOccurred(ev.Trade)
		default:
			m.metrics.FeedFrame("ignored")
		}
	}
}

// fail handles a dial or read failure. conn is nil for dial failures; a
// failure reported by a connection that is no longer current is ignored.
func (m *Manager) fail(conn Conn, cause error) {
	m.mu.Lock()
	if conn != nil && m.conn != conn {
		m.mu.Unlock()
		return
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.state = domain.ConnDisconnected
	if m.closed {
		m.mu.Unlock()
		return
	}

	delay := m.backoff.Next()
	attempt := m.backoff.Attempt()
	m.state = domain.ConnBackoffWait
	m.timer = m.clock.AfterFunc(delay, m.Connect)
	m.mu.Unlock()

	m.metrics.FeedState(false)
	m.metrics.ReconnectScheduled()
	if errors.Is(cause, context.Canceled) {
		cause = errors.New("connection cancelled")
	}
	m.logger.Warn("feed disconnected, reconnect scheduled",
		slog.String("error", cause.Error()),
		slog.Int("attempt", attempt),
		slog.Duration("retry_after", delay),
	)
	m.emit(domain.ConnectionStatus{
		State:      domain.ConnDisconnected,
		Attempt:    attempt,
		RetryAfter: delay,
		Err:        cause,
	})
}

func (m *Manager) emit(st domain.ConnectionStatus) {
	st.At = m.clock.Now()
	m.observer.OnConnectionStatusChanged(st)
}

// Package local provides in-process stand-ins for the Redis-backed cache and
// bus, used when Redis is not configured.
package local

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/vitorsaz/skull-agent/internal/domain"
)

const (
	subscriberBuffer = 128
	streamCap        = 1000
)

// Bus implements domain.SignalBus inside one process. Slow subscribers drop
// messages rather than block publishers.
type Bus struct {
	mu      sync.RWMutex
	subs    map[string]map[chan []byte]struct{}
	streams map[string][]domain.StreamMessage
	seq     int64
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{
		subs:    make(map[string]map[chan []byte]struct{}),
		streams: make(map[string][]domain.StreamMessage),
	}
}

func (b *Bus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[channel] {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

// Subscribe returns a channel that is closed when ctx is cancelled.
func (b *Bus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, subscriberBuffer)

	b.mu.Lock()
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[chan []byte]struct{})
	}
	b.subs[channel][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs[channel], ch)
		close(ch)
		b.mu.Unlock()
	}()
	return ch, nil
}

func (b *Bus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	msgs := append(b.streams[stream], domain.StreamMessage{
		ID:      strconv.FormatInt(b.seq, 10) + "-0",
		Payload: payload,
	})
	if len(msgs) > streamCap {
		msgs = msgs[len(msgs)-streamCap:]
	}
	b.streams[stream] = msgs
	return nil
}

// StreamRead returns up to count entries after lastID ("0" reads from the
// start).
func (b *Bus) StreamRead(_ context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	after := streamSeq(lastID)
	var out []domain.StreamMessage
	for _, m := range b.streams[stream] {
		if streamSeq(m.ID) <= after {
			continue
		}
		out = append(out, m)
		if count > 0 && len(out) == count {
			break
		}
	}
	return out, nil
}

func streamSeq(id string) int64 {
	for i := 0; i < len(id); i++ {
		if id[i] == '-' {
			id = id[:i]
			break
		}
	}
	n, _ := strconv.ParseInt(id, 10, 64)
	return n
}

// PriceCache implements domain.PriceCache with per-entry expiry.
type PriceCache struct {
	mu     sync.RWMutex
	ttl    time.Duration
	prices map[string]priceEntry
	now    func() time.Time
}

type priceEntry struct {
	price   float64
	ts      time.Time
	expires time.Time
}

// NewPriceCache creates a PriceCache. ttl <= 0 keeps entries forever.
func NewPriceCache(ttl time.Duration) *PriceCache {
	return &PriceCache{ttl: ttl, prices: make(map[string]priceEntry), now: time.Now}
}

func (c *PriceCache) SetPrice(_ context.Context, id string, price float64, ts time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := priceEntry{price: price, ts: ts}
	if c.ttl > 0 {
		e.expires = c.now().Add(c.ttl)
	}
	c.prices[id] = e
	return nil
}

func (c *PriceCache) GetPrice(_ context.Context, id string) (float64, time.Time, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.lookup(id)
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	return e.price, e.ts, nil
}

func (c *PriceCache) GetPrices(_ context.Context, ids []string) (map[string]float64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]float64, len(ids))
	for _, id := range ids {
		if e, ok := c.lookup(id); ok {
			out[id] = e.price
		}
	}
	return out, nil
}

func (c *PriceCache) lookup(id string) (priceEntry, bool) {
	e, ok := c.prices[id]
	if !ok || (!e.expires.IsZero() && !c.now().Before(e.expires)) {
		return priceEntry{}, false
	}
	return e, true
}

var (
	_ domain.SignalBus  = (*Bus)(nil)
	_ domain.PriceCache = (*PriceCache)(nil)
)

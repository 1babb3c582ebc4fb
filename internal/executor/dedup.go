package executor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vitorsaz/skull-agent/internal/domain"
)

// Dedup is an in-process domain.LockManager. It guarantees at most one
// holder per key until the holder unlocks or the TTL passes, and is used in
// place of the Redis lock when Redis is not configured.
type Dedup struct {
	mu   sync.Mutex
	held map[string]hold
	now  func() time.Time
}

type hold struct {
	token   string
	expires time.Time
}

// NewDedup creates an empty Dedup.
func NewDedup() *Dedup {
	return &Dedup{
		held: make(map[string]hold),
		now:  time.Now,
	}
}

// Acquire takes key for ttl. It returns domain.ErrLockHeld if another holder
// has it.
func (d *Dedup) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if h, ok := d.held[key]; ok && now.Before(h.expires) {
		return nil, domain.ErrLockHeld
	}

	token := uuid.NewString()
	d.held[key] = hold{token: token, expires: now.Add(ttl)}

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		// only the holder that took the lock may clear it
		if h, ok := d.held[key]; ok && h.token == token {
			delete(d.held, key)
		}
	}, nil
}

// Cleanup removes expired entries. Call it periodically.
func (d *Dedup) Cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for key, h := range d.held {
		if !now.Before(h.expires) {
			delete(d.held, key)
		}
	}
}

// RunCleanup calls Cleanup every interval until ctx is cancelled.
func (d *Dedup) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Cleanup()
		}
	}
}

package feed

import "time"

// Backoff computes reconnect delays as min(base*attempt, cap). After
// maxRetries consecutive failures the attempt counter restarts at 1, so the
// manager never gives up.
type Backoff struct {
	base       time.Duration
	cap        time.Duration
	maxRetries int
	attempt    int
}

// NewBackoff creates a Backoff. maxRetries < 1 disables the restart.
func NewBackoff(base, cap time.Duration, maxRetries int) *Backoff {
	return &Backoff{base: base, cap: cap, maxRetries: maxRetries}
}

// Next records a failure and returns the delay before the next attempt.
func (b *Backoff) Next() time.Duration {
	b.attempt++
	if b.maxRetries > 0 && b.attempt > b.maxRetries {
		b.attempt = 1
	}
	d := b.base * time.Duration(b.attempt)
	if d > b.cap {
		d = b.cap
	}
	return d
}

// Reset clears the failure count after a successful connect.
func (b *Backoff) Reset() { b.attempt = 0 }

// Attempt returns the current consecutive failure count.
func (b *Backoff) Attempt() int { return b.attempt }

package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitorsaz/skull-agent/internal/domain"
)

func TestDedup_SingleHolder(t *testing.T) {
	d := NewDedup()
	ctx := context.Background()

	unlock, err := d.Acquire(ctx, "snipe:Mint", time.Minute)
	require.NoError(t, err)

	_, err = d.Acquire(ctx, "snipe:Mint", time.Minute)
	assert.ErrorIs(t, err, domain.ErrLockHeld)

	_, err = d.Acquire(ctx, "snipe:Other", time.Minute)
	assert.NoError(t, err)

	unlock()
	_, err = d.Acquire(ctx, "snipe:Mint", time.Minute)
	assert.NoError(t, err)
}

func TestDedup_ExpiryAndStaleUnlock(t *testing.T) {
	d := NewDedup()
	now := time.Unix(1_700_000_000, 0)
	d.now = func() time.Time { return now }
	ctx := context.Background()

	staleUnlock, err := d.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)

	now = now.Add(2 * time.Second)
	_, err = d.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)

	// the expired holder must not release the new one
	staleUnlock()
	_, err = d.Acquire(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, domain.ErrLockHeld)

	now = now.Add(2 * time.Minute)
	d.Cleanup()
	assert.Empty(t, d.held)
}

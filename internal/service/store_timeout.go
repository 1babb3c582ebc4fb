package service

import (
	"context"
	"time"
)

// storeTimeout bounds every persistence, cache and bus call made from the
// pipeline. Expiry is handled like any other store failure.
var storeTimeout = 5 * time.Second

func withStoreTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, storeTimeout)
}

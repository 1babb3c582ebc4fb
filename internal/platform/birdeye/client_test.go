package birdeye

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitorsaz/skull-agent/internal/domain"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /defi/v3/token/market-data/multiple", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.Header.Get("X-API-KEY"))
		assert.Equal(t, "solana", r.Header.Get("x-chain"))
		if r.URL.Query().Get("list_address") != "Mint" {
			_, _ = w.Write([]byte(`{"success":true,"data":{}}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"data":{"Mint":{"price":0.00002,"marketCap":0,"realMc":21000,
			"liquidity":6400,"v24hUSD":1000,"holder":61}}}`))
	})
	mux.HandleFunc("GET /defi/v3/token/meta-data/multiple", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":{"Mint":{"name":"Skull","symbol":"SKL","decimals":6}}}`))
	})
	mux.HandleFunc("GET /defi/price", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("address") == WrappedSOL {
			_, _ = w.Write([]byte(`{"success":true,"data":{"value":187.5}}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":false,"message":"not found"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Market(t *testing.T) {
	c := NewClient(newTestServer(t).URL, "key", time.Second)

	m, err := c.Market(context.Background(), "Mint")
	require.NoError(t, err)
	assert.Equal(t, 21000.0, m.MarketCapUSD())
	assert.Equal(t, 6400.0, m.Liquidity)
	assert.Equal(t, int64(61), m.Holders)

	_, err = c.Market(context.Background(), "Other")
	assert.ErrorIs(t, err, domain.ErrNoMarketData)
}

func TestClient_Metadata(t *testing.T) {
	c := NewClient(newTestServer(t).URL, "key", time.Second)
	md, err := c.Metadata(context.Background(), "Mint")
	require.NoError(t, err)
	assert.Equal(t, "SKL", md.Symbol)
}

func TestClient_Price(t *testing.T) {
	c := NewClient(newTestServer(t).URL, "key", time.Second)

	p, err := c.Price(context.Background(), WrappedSOL)
	require.NoError(t, err)
	assert.Equal(t, 187.5, p)

	_, err = c.Price(context.Background(), "Unknown")
	assert.ErrorIs(t, err, domain.ErrNoMarketData)
}

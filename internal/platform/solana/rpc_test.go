package solana

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rpcServer(t *testing.T, handle func(req rpcRequest) any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		out := handle(req)
		if e, ok := out.(*RPCError); ok {
			resp["error"] = e
		} else {
			resp["result"] = out
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPClient_GetBalance(t *testing.T) {
	srv := rpcServer(t, func(req rpcRequest) any {
		assert.Equal(t, "getBalance", req.Method)
		assert.Equal(t, "Wallet111", req.Params[0])
		return map[string]any{"context": map[string]any{"slot": 1}, "value": 1_500_000_000}
	})

	c := NewHTTPClient(srv.URL)
	bal, err := c.GetBalance(context.Background(), "Wallet111")
	require.NoError(t, err)
	assert.InDelta(t, 1.5, bal, 1e-9)
}

func TestHTTPClient_SendTransaction(t *testing.T) {
	raw := []byte{1, 2, 3, 4}
	srv := rpcServer(t, func(req rpcRequest) any {
		assert.Equal(t, "sendTransaction", req.Method)
		assert.Equal(t, base64.StdEncoding.EncodeToString(raw), req.Params[0])
		opts := req.Params[1].(map[string]any)
		assert.Equal(t, "base64", opts["encoding"])
		return "5igSig"
	})

	c := NewHTTPClient(srv.URL)
	sig, err := c.SendTransaction(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "5igSig", sig)
}

func TestHTTPClient_SendTransaction_NoRetryOnRPCError(t *testing.T) {
	var calls atomic.Int32
	srv := rpcServer(t, func(req rpcRequest) any {
		calls.Add(1)
		return &RPCError{Code: -32002, Message: "Transaction simulation failed"}
	})

	c := NewHTTPClient(srv.URL, WithRetryDelay(time.Millisecond))
	_, err := c.SendTransaction(context.Background(), []byte{1})
	require.Error(t, err)

	var rpcErr *RPCError
	assert.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPClient_RetriesTransportFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		var req rpcRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0", "id": req.ID, "result": map[string]any{"value": 0},
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, WithRetryDelay(time.Millisecond))
	_, err := c.GetBalance(context.Background(), "w")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

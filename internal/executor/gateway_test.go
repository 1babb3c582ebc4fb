package executor

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitorsaz/skull-agent/internal/crypto"
	"github.com/vitorsaz/skull-agent/internal/domain"
	"github.com/vitorsaz/skull-agent/internal/platform/pumpportal"
	"github.com/vitorsaz/skull-agent/internal/platform/solana"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// unsignedTx builds a minimal v0 transaction whose only signer is pub.
func unsignedTx(pub ed25519.PublicKey) []byte {
	msg := []byte{0x80, 1, 0, 1}
	msg = crypto.EncodeCompactU16(msg, 2)
	msg = append(msg, pub...)
	msg = append(msg, make([]byte, 32)...) // program
	msg = append(msg, make([]byte, 32)...) // blockhash
	msg = append(msg, 0)

	tx := crypto.EncodeCompactU16(nil, 1)
	tx = append(tx, make([]byte, ed25519.SignatureSize)...)
	return append(tx, msg...)
}

func TestGateway_AcquireEndToEnd(t *testing.T) {
	_, key, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	signer, err := crypto.NewSigner(key)
	require.NoError(t, err)

	var tradeReq pumpportal.TradeRequest
	trade := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&tradeReq))
		_, _ = w.Write(unsignedTx(key.Public().(ed25519.PublicKey)))
	}))
	defer trade.Close()

	var submitted []byte
	rpc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "sendTransaction", req.Method)

		var encoded string
		if assert.NotEmpty(t, req.Params) {
			assert.NoError(t, json.Unmarshal(req.Params[0], &encoded))
		}
		raw, derr := base64.StdEncoding.DecodeString(encoded)
		assert.NoError(t, derr)
		submitted = raw

		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"5igSig"}`))
	}))
	defer rpc.Close()

	gw := NewGateway(
		pumpportal.NewTradeClient(trade.URL, trade.URL, "pump", 0.001),
		signer,
		solana.NewHTTPClient(rpc.URL),
		5*time.Second, nil, testLogger(),
	)

	res, err := gw.Acquire(context.Background(), "MintABC", 0.1, 15)
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionResult{Action: domain.TradeSideBuy, Mint: "MintABC", Signature: "5igSig"}, res)

	assert.Equal(t, signer.Address(), tradeReq.PublicKey)
	assert.Equal(t, "buy", tradeReq.Action)
	assert.Equal(t, "MintABC", tradeReq.Mint)
	assert.Equal(t, 15, tradeReq.Slippage)

	require.NotEmpty(t, submitted)
	msg := submitted[1+ed25519.SignatureSize:]
	assert.True(t, ed25519.Verify(key.Public().(ed25519.PublicKey), msg, submitted[1:1+ed25519.SignatureSize]))
}

type fakeBuilder struct {
	calls    atomic.Int32
	err      error
	deadline bool
}

func (b *fakeBuilder) build(ctx context.Context) ([]byte, error) {
	b.calls.Add(1)
	_, b.deadline = ctx.Deadline()
	if b.err != nil {
		return nil, b.err
	}
	return []byte("unsigned"), nil
}

func (b *fakeBuilder) BuildBuy(ctx context.Context, _, _ string, _ float64, _ int) ([]byte, error) {
	return b.build(ctx)
}

func (b *fakeBuilder) BuildSell(ctx context.Context, _, _ string, _ domain.ReleaseAmount, _ int) ([]byte, error) {
	return b.build(ctx)
}

func (b *fakeBuilder) BuildClaimFees(ctx context.Context, _, _ string) ([]byte, error) {
	return b.build(ctx)
}

type fakeSigner struct{ err error }

func (s fakeSigner) Address() string { return "Wallet111" }

func (s fakeSigner) SignTransaction(tx []byte) ([]byte, string, error) {
	if s.err != nil {
		return nil, "", s.err
	}
	return append([]byte("signed:"), tx...), "sig", nil
}

type fakeSubmitter struct {
	calls atomic.Int32
	err   error
}

func (s *fakeSubmitter) SendTransaction(_ context.Context, tx []byte) (string, error) {
	s.calls.Add(1)
	if s.err != nil {
		return "", s.err
	}
	return "txsig-" + string(tx[:6]), nil
}

func TestGateway_NoKey(t *testing.T) {
	b := &fakeBuilder{}
	sub := &fakeSubmitter{}
	gw := NewGateway(b, nil, sub, time.Second, nil, testLogger())

	_, err := gw.Acquire(context.Background(), "Mint", 0.1, 10)
	assert.ErrorIs(t, err, domain.ErrNoSigningKey)
	_, err = gw.Release(context.Background(), "Mint", domain.ReleaseAll, 10)
	assert.ErrorIs(t, err, domain.ErrNoSigningKey)

	assert.False(t, gw.HasKey())
	assert.Empty(t, gw.Wallet())
	assert.Zero(t, b.calls.Load())
	assert.Zero(t, sub.calls.Load())
}

func TestGateway_ReleaseAppliesTimeout(t *testing.T) {
	b := &fakeBuilder{}
	sub := &fakeSubmitter{}
	gw := NewGateway(b, fakeSigner{}, sub, time.Second, nil, testLogger())

	res, err := gw.Release(context.Background(), "Mint", domain.ReleasePercent(50), 10)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeSideSell, res.Action)
	assert.Equal(t, "txsig-signed", res.Signature)
	assert.True(t, b.deadline)
}

func TestGateway_Failures(t *testing.T) {
	t.Run("builder rejected", func(t *testing.T) {
		b := &fakeBuilder{err: domain.ErrTradeRejected}
		sub := &fakeSubmitter{}
		gw := NewGateway(b, fakeSigner{}, sub, time.Second, nil, testLogger())

		_, err := gw.Acquire(context.Background(), "Mint", 0.1, 10)
		assert.ErrorIs(t, err, domain.ErrTradeRejected)
		assert.Zero(t, sub.calls.Load())
	})

	t.Run("signing failed", func(t *testing.T) {
		sub := &fakeSubmitter{}
		gw := NewGateway(&fakeBuilder{}, fakeSigner{err: errors.New("not a signer")}, sub, time.Second, nil, testLogger())

		_, err := gw.Acquire(context.Background(), "Mint", 0.1, 10)
		assert.ErrorIs(t, err, domain.ErrSigningFailed)
		assert.Zero(t, sub.calls.Load())
	})

	t.Run("submission failed once", func(t *testing.T) {
		sub := &fakeSubmitter{err: errors.New("blockhash not found")}
		gw := NewGateway(&fakeBuilder{}, fakeSigner{}, sub, time.Second, nil, testLogger())

		_, err := gw.Release(context.Background(), "Mint", domain.ReleaseAll, 10)
		assert.Error(t, err)
		assert.Equal(t, int32(1), sub.calls.Load())
	})

	t.Run("no fees", func(t *testing.T) {
		gw := NewGateway(&fakeBuilder{err: domain.ErrNoFees}, fakeSigner{}, &fakeSubmitter{}, time.Second, nil, testLogger())

		_, err := gw.ClaimFees(context.Background(), "Mint")
		assert.ErrorIs(t, err, domain.ErrNoFees)
	})
}

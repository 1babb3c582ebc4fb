package pumpportal

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitorsaz/skull-agent/internal/domain"
)

func TestParse_Create(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	raw := `{"signature":"sig1","mint":"Mint111","traderPublicKey":"Dev111","txType":"create",
		"initialBuy":1000,"solAmount":0.5,"vSolInBondingCurve":30.5,"marketCapSol":28.1,
		"name":"Skull","symbol":"SKL","uri":"https://ipfs.io/x","pool":"pump"}`

	ev, err := Parse([]byte(raw), now)
	require.NoError(t, err)
	require.Equal(t, EventTokenCreated, ev.Kind)

	tok := ev.Token
	assert.Equal(t, "Mint111", tok.ContractAddress)
	assert.Equal(t, "Skull", tok.Name)
	assert.Equal(t, "SKL", tok.Symbol)
	assert.Equal(t, "https://ipfs.io/x", tok.MetadataURI)
	assert.Equal(t, "Dev111", tok.Creator)
	assert.Equal(t, 28.1, tok.MarketCapNative)
	assert.Equal(t, 30.5, tok.LiquidityNative)
	assert.Equal(t, now, tok.CreatedAt)
}

func TestParse_Trade(t *testing.T) {
	raw := `{"txType":"sell","mint":"Mint111","traderPublicKey":"T","solAmount":0.2,
		"tokenAmount":5000,"marketCapSol":40,"vSolInBondingCurve":35,"signature":"s"}`

	ev, err := Parse([]byte(raw), time.Now())
	require.NoError(t, err)
	require.Equal(t, EventTrade, ev.Kind)
	assert.Equal(t, domain.TradeSideSell, ev.Trade.Side)
	assert.Equal(t, 40.0, ev.Trade.MarketCapNative)
	assert.Equal(t, 35.0, ev.Trade.LiquidityNative)
}

func TestParse_AckAndGarbage(t *testing.T) {
	ev, err := Parse([]byte(`{"message":"Successfully subscribed to token creation events."}`), time.Now())
	require.NoError(t, err)
	assert.Equal(t, EventIgnored, ev.Kind)

	_, err = Parse([]byte(`not json`), time.Now())
	assert.ErrorIs(t, err, ErrMalformedFrame)

	_, err = Parse([]byte(`{"txType":"create"}`), time.Now())
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestCommands(t *testing.T) {
	b, err := json.Marshal(SubscribeNewToken())
	require.NoError(t, err)
	assert.JSONEq(t, `{"method":"subscribeNewToken"}`, string(b))

	b, err = json.Marshal(UnsubscribeTokenTrade("M"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"method":"unsubscribeTokenTrade","keys":["M"]}`, string(b))
}

func TestTradeClient_BuildBuy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"publicKey":"Wallet","action":"buy","mint":"Mint","amount":0.1,
			"denominatedInSol":"true","slippage":15,"priorityFee":0.001,"pool":"pump"}`, string(body))
		_, _ = w.Write([]byte{1, 2, 3})
	}))
	defer srv.Close()

	c := NewTradeClient(srv.URL, srv.URL, "pump", 0.001)
	tx, err := c.BuildBuy(context.Background(), "Wallet", "Mint", 0.1, 15)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, tx)
}

func TestTradeClient_BuildSell(t *testing.T) {
	var got TradeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte{9})
	}))
	defer srv.Close()

	c := NewTradeClient(srv.URL, srv.URL, "pump", 0.001)
	_, err := c.BuildSell(context.Background(), "Wallet", "Mint", domain.ReleasePercent(50), 15)
	require.NoError(t, err)
	assert.Equal(t, "sell", got.Action)
	assert.Equal(t, "50%", got.Amount)
	assert.Equal(t, "false", got.DenominatedInSol)
}

func TestTradeClient_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/claim" {
			http.Error(w, "No fees to claim", http.StatusBadRequest)
			return
		}
		http.Error(w, "bad mint", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewTradeClient(srv.URL+"/trade", srv.URL+"/claim", "pump", 0.001)

	_, err := c.BuildBuy(context.Background(), "W", "M", 0.1, 15)
	assert.True(t, errors.Is(err, domain.ErrTradeRejected))

	_, err = c.BuildClaimFees(context.Background(), "W", "M")
	assert.ErrorIs(t, err, domain.ErrNoFees)
}

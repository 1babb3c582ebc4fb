package pumpportal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vitorsaz/skull-agent/internal/domain"
)

// maxTxBytes bounds the transaction payload read from the trade endpoint.
const maxTxBytes = 64 << 10

// TradeClient builds unsigned transactions through the trade-local endpoint.
type TradeClient struct {
	tradeURL    string
	claimURL    string
	pool        string
	priorityFee float64
	httpClient  *http.Client
}

// NewTradeClient creates a TradeClient.
func NewTradeClient(tradeURL, claimURL, pool string, priorityFee float64) *TradeClient {
	return &TradeClient{
		tradeURL:    tradeURL,
		claimURL:    claimURL,
		pool:        pool,
		priorityFee: priorityFee,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// BuildBuy requests an unsigned buy of amountSol for mint.
func (c *TradeClient) BuildBuy(ctx context.Context, publicKey, mint string, amountSol float64, slippage int) ([]byte, error) {
	req := TradeRequest{
		PublicKey:        publicKey,
		Action:           string(domain.TradeSideBuy),
		Mint:             mint,
		Amount:           amountSol,
		DenominatedInSol: "true",
		Slippage:         slippage,
		PriorityFee:      c.priorityFee,
		Pool:             c.pool,
	}
	tx, err := c.post(ctx, c.tradeURL, req)
	if err != nil {
		return nil, fmt.Errorf("pumpportal: build buy %s: %w", mint, err)
	}
	return tx, nil
}

// BuildSell requests an unsigned sell of amount ("all" or "N%") for mint.
func (c *TradeClient) BuildSell(ctx context.Context, publicKey, mint string, amount domain.ReleaseAmount, slippage int) ([]byte, error) {
	req := TradeRequest{
		PublicKey:        publicKey,
		Action:           string(domain.TradeSideSell),
		Mint:             mint,
		Amount:           string(amount),
		DenominatedInSol: "false",
		Slippage:         slippage,
		PriorityFee:      c.priorityFee,
		Pool:             c.pool,
	}
	tx, err := c.post(ctx, c.tradeURL, req)
	if err != nil {
		return nil, fmt.Errorf("pumpportal: build sell %s: %w", mint, err)
	}
	return tx, nil
}

// BuildClaimFees requests an unsigned creator-fee claim for mint. It returns
// domain.ErrNoFees when nothing is claimable.
func (c *TradeClient) BuildClaimFees(ctx context.Context, publicKey, mint string) ([]byte, error) {
	tx, err := c.post(ctx, c.claimURL, claimRequest{PublicKey: publicKey, Mint: mint})
	if err != nil {
		return nil, fmt.Errorf("pumpportal: claim fees %s: %w", mint, err)
	}
	return tx, nil
}

func (c *TradeClient) post(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxTxBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		text := strings.TrimSpace(string(respBody))
		if strings.Contains(text, "No fees") {
			return nil, domain.ErrNoFees
		}
		return nil, fmt.Errorf("%w: status %d: %s", domain.ErrTradeRejected, resp.StatusCode, truncate(text, 200))
	}
	if len(respBody) == 0 {
		return nil, fmt.Errorf("%w: empty transaction payload", domain.ErrTradeRejected)
	}
	return respBody, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...(" + strconv.Itoa(len(s)) + " bytes)"
}

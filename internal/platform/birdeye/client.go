// Package birdeye is a REST client for the Birdeye token data API.
package birdeye

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/vitorsaz/skull-agent/internal/domain"
)

// WrappedSOL is the mint used to quote the SOL/USD price.
const WrappedSOL = "So11111111111111111111111111111111111111112"

// Metadata is the subset of token metadata the agent uses.
type Metadata struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	LogoURI  string `json:"logo_uri"`
	Decimals int    `json:"decimals"`
}

// Market is a token market data row. MarketCap prefers marketCap over realMc.
type Market struct {
	Price     float64 `json:"price"`
	MarketCap float64 `json:"marketCap"`
	RealMc    float64 `json:"realMc"`
	Liquidity float64 `json:"liquidity"`
	Volume24h float64 `json:"v24hUSD"`
	Change24h float64 `json:"v24hChangePercent"`
	Holders   int64   `json:"holder"`
}

// MarketCapUSD returns marketCap, falling back to realMc.
func (m Market) MarketCapUSD() float64 {
	if m.MarketCap > 0 {
		return m.MarketCap
	}
	return m.RealMc
}

// Client talks to the Birdeye public API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a Birdeye client. timeout bounds every request.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// Metadata fetches token metadata for ca.
func (c *Client) Metadata(ctx context.Context, ca string) (Metadata, error) {
	var rows map[string]*Metadata
	if err := c.getMultiple(ctx, "/defi/v3/token/meta-data/multiple", ca, &rows); err != nil {
		return Metadata{}, fmt.Errorf("birdeye: metadata %s: %w", ca, err)
	}
	m, ok := rows[ca]
	if !ok || m == nil {
		return Metadata{}, fmt.Errorf("birdeye: metadata %s: %w", ca, domain.ErrNoMarketData)
	}
	return *m, nil
}

// Market fetches market data for ca.
func (c *Client) Market(ctx context.Context, ca string) (Market, error) {
	var rows map[string]*Market
	if err := c.getMultiple(ctx, "/defi/v3/token/market-data/multiple", ca, &rows); err != nil {
		return Market{}, fmt.Errorf("birdeye: market %s: %w", ca, err)
	}
	m, ok := rows[ca]
	if !ok || m == nil {
		return Market{}, fmt.Errorf("birdeye: market %s: %w", ca, domain.ErrNoMarketData)
	}
	return *m, nil
}

// Price returns the USD price of address.
func (c *Client) Price(ctx context.Context, address string) (float64, error) {
	params := url.Values{}
	params.Set("address", address)

	var data struct {
		Value float64 `json:"value"`
	}
	if err := c.get(ctx, "/defi/price?"+params.Encode(), &data); err != nil {
		return 0, fmt.Errorf("birdeye: price %s: %w", address, err)
	}
	if data.Value <= 0 {
		return 0, fmt.Errorf("birdeye: price %s: %w", address, domain.ErrNoMarketData)
	}
	return data.Value, nil
}

func (c *Client) getMultiple(ctx context.Context, path, ca string, out any) error {
	params := url.Values{}
	params.Set("list_address", ca)
	return c.get(ctx, path+"?"+params.Encode(), out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("x-chain", "solana")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return domain.ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if !env.Success || len(env.Data) == 0 || string(env.Data) == "null" {
		return domain.ErrNoMarketData
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

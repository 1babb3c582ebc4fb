// Package executor turns acquire and release decisions into signed, submitted
// Solana transactions.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vitorsaz/skull-agent/internal/domain"
	"github.com/vitorsaz/skull-agent/internal/observability"
)

// TxBuilder requests unsigned transactions from the trade endpoint.
type TxBuilder interface {
	BuildBuy(ctx context.Context, publicKey, mint string, amountSol float64, slippage int) ([]byte, error)
	BuildSell(ctx context.Context, publicKey, mint string, amount domain.ReleaseAmount, slippage int) ([]byte, error)
	BuildClaimFees(ctx context.Context, publicKey, mint string) ([]byte, error)
}

// TxSigner signs serialized transactions with the wallet key.
type TxSigner interface {
	Address() string
	SignTransaction(tx []byte) (signed []byte, signature string, err error)
}

// TxSubmitter broadcasts signed transactions.
type TxSubmitter interface {
	SendTransaction(ctx context.Context, signedTx []byte) (string, error)
}

// Gateway executes trades. It never retries: a failed call returns an error
// and the caller decides what to do. Calls are not idempotent.
type Gateway struct {
	builder   TxBuilder
	signer    TxSigner
	submitter TxSubmitter
	timeout   time.Duration
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewGateway creates a Gateway. A nil signer puts the gateway in observer
// mode: every call returns domain.ErrNoSigningKey.
func NewGateway(builder TxBuilder, signer TxSigner, submitter TxSubmitter, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Gateway {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Gateway{
		builder:   builder,
		signer:    signer,
		submitter: submitter,
		timeout:   timeout,
		metrics:   metrics,
		logger:    logger.With(slog.String("component", "gateway")),
	}
}

// HasKey reports whether trades can be signed.
func (g *Gateway) HasKey() bool { return g.signer != nil }

// Wallet returns the signing wallet address, or "" in observer mode.
func (g *Gateway) Wallet() string {
	if g.signer == nil {
		return ""
	}
	return g.signer.Address()
}

// Acquire buys sizeSol worth of mint.
func (g *Gateway) Acquire(ctx context.Context, mint string, sizeSol float64, slippage int) (domain.ExecutionResult, error) {
	return g.execute(ctx, domain.TradeSideBuy, mint, func(ctx context.Context, pk string) ([]byte, error) {
		return g.builder.BuildBuy(ctx, pk, mint, sizeSol, slippage)
	}, slog.Float64("amount_sol", sizeSol))
}

// Release sells amount of the wallet's mint holding.
func (g *Gateway) Release(ctx context.Context, mint string, amount domain.ReleaseAmount, slippage int) (domain.ExecutionResult, error) {
	return g.execute(ctx, domain.TradeSideSell, mint, func(ctx context.Context, pk string) ([]byte, error) {
		return g.builder.BuildSell(ctx, pk, mint, amount, slippage)
	}, slog.String("amount", string(amount)))
}

// ClaimFees collects creator fees for mint. domain.ErrNoFees means there was
// nothing to claim.
func (g *Gateway) ClaimFees(ctx context.Context, mint string) (domain.ExecutionResult, error) {
	return g.execute(ctx, "claim", mint, func(ctx context.Context, pk string) ([]byte, error) {
		return g.builder.BuildClaimFees(ctx, pk, mint)
	})
}

func (g *Gateway) execute(
	ctx context.Context,
	action domain.TradeSide,
	mint string,
	build func(context.Context, string) ([]byte, error),
	attrs ...any,
) (domain.ExecutionResult, error) {
	if g.signer == nil {
		return domain.ExecutionResult{}, domain.ErrNoSigningKey
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	sig, err := g.buildSignSubmit(ctx, mint, build)
	g.metrics.Execution(string(action), err == nil, time.Since(start).Seconds())

	attrs = append(attrs, slog.String("action", string(action)), slog.String("mint", mint))
	if err != nil {
		g.logger.WarnContext(ctx, "execution failed", append(attrs, slog.String("error", err.Error()))...)
		return domain.ExecutionResult{}, err
	}

	g.logger.InfoContext(ctx, "execution submitted", append(attrs, slog.String("signature", sig))...)
	return domain.ExecutionResult{Action: action, Mint: mint, Signature: sig}, nil
}

func (g *Gateway) buildSignSubmit(ctx context.Context, mint string, build func(context.Context, string) ([]byte, error)) (string, error) {
	unsigned, err := build(ctx, g.signer.Address())
	if err != nil {
		return "", err
	}

	signed, _, err := g.signer.SignTransaction(unsigned)
	if err != nil {
		return "", fmt.Errorf("executor: sign %s: %w: %v", mint, domain.ErrSigningFailed, err)
	}

	sig, err := g.submitter.SendTransaction(ctx, signed)
	if err != nil {
		return "", fmt.Errorf("executor: submit %s: %w", mint, err)
	}
	return sig, nil
}

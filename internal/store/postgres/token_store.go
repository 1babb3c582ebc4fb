package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vitorsaz/skull-agent/internal/domain"
)

// TokenStore implements domain.TokenStore using PostgreSQL.
type TokenStore struct {
	pool *pgxpool.Pool
}

// NewTokenStore creates a new TokenStore backed by the given connection pool.
func NewTokenStore(pool *pgxpool.Pool) *TokenStore {
	return &TokenStore{pool: pool}
}

const tokenSelectCols = `ca, name, symbol, uri, market_cap, liquidity, price,
	holders, score, status, reject_reason, created_at, updated_at`

func scanToken(row pgx.Row) (domain.TokenRecord, error) {
	var t domain.TokenRecord
	var status string
	err := row.Scan(
		&t.ContractAddress, &t.Name, &t.Symbol, &t.MetadataURI,
		&t.MarketCapUSD, &t.LiquidityUSD, &t.PriceUSD,
		&t.Holders, &t.Score, &status, &t.RejectReason,
		&t.CreatedAt, &t.UpdatedAt,
	)
	t.Status = domain.TokenStatus(status)
	return t, err
}

// Upsert inserts or replaces a token keyed by contract address. created_at is
// kept from the first insert.
func (s *TokenStore) Upsert(ctx context.Context, t domain.TokenRecord) error {
	const query = `
		INSERT INTO tokens (
			ca, name, symbol, uri, market_cap, liquidity, price,
			holders, score, status, reject_reason, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, COALESCE($12, NOW()), NOW()
		)
		ON CONFLICT (ca) DO UPDATE SET
			name          = EXCLUDED.name,
			symbol        = EXCLUDED.symbol,
			uri           = EXCLUDED.uri,
			market_cap    = EXCLUDED.market_cap,
			liquidity     = EXCLUDED.liquidity,
			price         = EXCLUDED.price,
			holders       = EXCLUDED.holders,
			score         = EXCLUDED.score,
			status        = EXCLUDED.status,
			reject_reason = EXCLUDED.reject_reason,
			updated_at    = NOW()`

	var createdAt any
	if !t.CreatedAt.IsZero() {
		createdAt = t.CreatedAt
	}
	_, err := s.pool.Exec(ctx, query,
		t.ContractAddress, t.Name, t.Symbol, t.MetadataURI,
		t.MarketCapUSD, t.LiquidityUSD, t.PriceUSD,
		t.Holders, t.Score, string(t.Status), t.RejectReason, createdAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert token %s: %w", t.ContractAddress, err)
	}
	return nil
}

// SetStatus updates only the status label.
func (s *TokenStore) SetStatus(ctx context.Context, ca string, status domain.TokenStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tokens SET status = $2, updated_at = NOW() WHERE ca = $1`, ca, string(status))
	if err != nil {
		return fmt.Errorf("postgres: set token status %s: %w", ca, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Get returns a token by contract address.
func (s *TokenStore) Get(ctx context.Context, ca string) (domain.TokenRecord, error) {
	t, err := scanToken(s.pool.QueryRow(ctx,
		`SELECT `+tokenSelectCols+` FROM tokens WHERE ca = $1`, ca))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TokenRecord{}, domain.ErrNotFound
		}
		return domain.TokenRecord{}, fmt.Errorf("postgres: get token %s: %w", ca, err)
	}
	return t, nil
}

// ListRecent returns the newest tokens first.
func (s *TokenStore) ListRecent(ctx context.Context, limit int) ([]domain.TokenRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+tokenSelectCols+` FROM tokens ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list tokens: %w", err)
	}
	defer rows.Close()

	var out []domain.TokenRecord
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan token: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Count returns the number of tokens ever seen.
func (s *TokenStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tokens`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count tokens: %w", err)
	}
	return n, nil
}

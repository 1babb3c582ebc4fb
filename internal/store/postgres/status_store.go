package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vitorsaz/skull-agent/internal/domain"
)

// StatusStore implements domain.StatusStore on the single system_status row.
type StatusStore struct {
	pool *pgxpool.Pool
}

// NewStatusStore creates a new StatusStore backed by the given connection pool.
func NewStatusStore(pool *pgxpool.Pool) *StatusStore {
	return &StatusStore{pool: pool}
}

// Upsert writes row id=1.
func (s *StatusStore) Upsert(ctx context.Context, st domain.SystemStatus) error {
	const query = `
		INSERT INTO system_status (
			id, status, wallet_address, balance_sol, sniper_enabled,
			tokens_scanned, snipes_executed, kills, deaths, total_pnl, updated_at
		) VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (id) DO UPDATE SET
			status          = EXCLUDED.status,
			wallet_address  = EXCLUDED.wallet_address,
			balance_sol     = EXCLUDED.balance_sol,
			sniper_enabled  = EXCLUDED.sniper_enabled,
			tokens_scanned  = EXCLUDED.tokens_scanned,
			snipes_executed = EXCLUDED.snipes_executed,
			kills           = EXCLUDED.kills,
			deaths          = EXCLUDED.deaths,
			total_pnl       = EXCLUDED.total_pnl,
			updated_at      = NOW()`

	_, err := s.pool.Exec(ctx, query,
		st.Status, st.WalletAddress, st.BalanceSol, st.SniperEnabled,
		st.TokensScanned, st.SnipesExecuted, st.Kills, st.Deaths, st.TotalPnL,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert system status: %w", err)
	}
	return nil
}

// Get reads row id=1.
func (s *StatusStore) Get(ctx context.Context) (domain.SystemStatus, error) {
	var st domain.SystemStatus
	err := s.pool.QueryRow(ctx, `
		SELECT status, wallet_address, balance_sol, sniper_enabled,
			tokens_scanned, snipes_executed, kills, deaths, total_pnl, updated_at
		FROM system_status WHERE id = 1`).Scan(
		&st.Status, &st.WalletAddress, &st.BalanceSol, &st.SniperEnabled,
		&st.TokensScanned, &st.SnipesExecuted, &st.Kills, &st.Deaths, &st.TotalPnL, &st.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SystemStatus{}, domain.ErrNotFound
		}
		return domain.SystemStatus{}, fmt.Errorf("postgres: get system status: %w", err)
	}
	return st, nil
}

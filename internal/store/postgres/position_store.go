package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vitorsaz/skull-agent/internal/domain"
)

// PositionStore implements domain.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a new PositionStore backed by the given connection pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

const positionSelectCols = `id, ca, symbol, size_sol, entry_price, current_price,
	pnl_percent, status, entry_tx, exit_tx, exit_reason, opened_at, closed_at`

func scanPosition(row pgx.Row) (domain.Position, error) {
	var p domain.Position
	var status, reason string
	err := row.Scan(
		&p.ID, &p.ContractAddress, &p.Symbol, &p.SizeNative,
		&p.EntryPrice, &p.CurrentPrice, &p.PnLPercent,
		&status, &p.EntrySignature, &p.ExitSignature, &reason,
		&p.OpenedAt, &p.ClosedAt,
	)
	p.Status = domain.PositionStatus(status)
	p.ExitReason = domain.ExitReason(reason)
	return p, err
}

func scanPositions(rows pgx.Rows) ([]domain.Position, error) {
	defer rows.Close()
	var out []domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Create inserts a new open position.
func (s *PositionStore) Create(ctx context.Context, p domain.Position) error {
	const query = `
		INSERT INTO positions (
			id, ca, symbol, size_sol, entry_price, current_price,
			pnl_percent, status, entry_tx, opened_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())`

	_, err := s.pool.Exec(ctx, query,
		p.ID, p.ContractAddress, p.Symbol, p.SizeNative, p.EntryPrice, p.CurrentPrice,
		p.PnLPercent, string(p.Status), p.EntrySignature, p.OpenedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create position %s: %w", p.ID, err)
	}
	return nil
}

// UpdatePrice refreshes the current price and P&L of an open position.
func (s *PositionStore) UpdatePrice(ctx context.Context, id string, price, pnlPercent float64) error {
	const query = `
		UPDATE positions SET
			current_price = $2,
			pnl_percent   = $3,
			updated_at    = NOW()
		WHERE id = $1 AND status = 'open'`

	tag, err := s.pool.Exec(ctx, query, id, price, pnlPercent)
	if err != nil {
		return fmt.Errorf("postgres: update position price %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return s.notOpen(ctx, id)
	}
	return nil
}

// Close marks an open position closed. It succeeds at most once per position.
func (s *PositionStore) Close(ctx context.Context, id string, reason domain.ExitReason, exitSignature string, pnlPercent float64) error {
	const query = `
		UPDATE positions SET
			status      = 'closed',
			exit_reason = $2,
			exit_tx     = $3,
			pnl_percent = $4,
			closed_at   = NOW(),
			updated_at  = NOW()
		WHERE id = $1 AND status = 'open'`

	tag, err := s.pool.Exec(ctx, query, id, string(reason), exitSignature, pnlPercent)
	if err != nil {
		return fmt.Errorf("postgres: close position %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return s.notOpen(ctx, id)
	}
	return nil
}

// notOpen distinguishes a closed position from a missing one after a
// guarded update touched no rows.
func (s *PositionStore) notOpen(ctx context.Context, id string) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	return domain.ErrPositionClosed
}

// GetOpen returns every open position, oldest first.
func (s *PositionStore) GetOpen(ctx context.Context) ([]domain.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionSelectCols+` FROM positions WHERE status = 'open' ORDER BY opened_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: get open positions: %w", err)
	}
	out, err := scanPositions(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan open positions: %w", err)
	}
	return out, nil
}

// GetByID retrieves a single position by its ID.
func (s *PositionStore) GetByID(ctx context.Context, id string) (domain.Position, error) {
	p, err := scanPosition(s.pool.QueryRow(ctx,
		`SELECT `+positionSelectCols+` FROM positions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Position{}, domain.ErrNotFound
		}
		return domain.Position{}, fmt.Errorf("postgres: get position %s: %w", id, err)
	}
	return p, nil
}

// ListRecent returns positions newest first.
func (s *PositionStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.Position, error) {
	query, args := appendFilters(`SELECT `+positionSelectCols+` FROM positions WHERE 1=1`, nil, "opened_at", opts)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions: %w", err)
	}
	out, err := scanPositions(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan positions: %w", err)
	}
	return out, nil
}

// ListClosedBefore returns closed positions whose close time is before the
// cutoff, oldest first.
func (s *PositionStore) ListClosedBefore(ctx context.Context, before time.Time, limit int) ([]domain.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionSelectCols+` FROM positions
		 WHERE status = 'closed' AND closed_at < $1
		 ORDER BY closed_at ASC LIMIT $2`, before, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list closed positions: %w", err)
	}
	out, err := scanPositions(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan closed positions: %w", err)
	}
	return out, nil
}

package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/vitorsaz/skull-agent/internal/domain"
)

// PriceTickStore implements domain.PriceTickStore.
type PriceTickStore struct {
	conn *Conn
}

// NewPriceTickStore creates a PriceTickStore.
func NewPriceTickStore(conn *Conn) *PriceTickStore {
	return &PriceTickStore{conn: conn}
}

var _ domain.PriceTickStore = (*PriceTickStore)(nil)

// InsertTicks writes ticks as a single batch.
func (s *PriceTickStore) InsertTicks(ctx context.Context, ticks []domain.PriceTick) error {
	if len(ticks) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO position_ticks (position_id, ca, price_usd, pnl_percent, observed_at)
	`)
	if err != nil {
		return fmt.Errorf("clickhouse: prepare ticks: %w", err)
	}
	for _, t := range ticks {
		if err := batch.Append(t.PositionID, t.ContractAddress, t.PriceUSD, t.PnLPercent, t.At.UTC()); err != nil {
			return fmt.Errorf("clickhouse: append tick: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("clickhouse: send ticks: %w", err)
	}
	return nil
}

// ListByPosition returns ticks for a position, oldest first.
func (s *PriceTickStore) ListByPosition(ctx context.Context, positionID string) ([]domain.PriceTick, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT position_id, ca, price_usd, pnl_percent, observed_at
		FROM position_ticks
		WHERE position_id = ?
		ORDER BY observed_at ASC`, positionID)
	if err != nil {
		return nil, fmt.Errorf("clickhouse: list ticks %s: %w", positionID, err)
	}
	defer rows.Close()

	var out []domain.PriceTick
	for rows.Next() {
		var (
			t  domain.PriceTick
			at time.Time
		)
		if err := rows.Scan(&t.PositionID, &t.ContractAddress, &t.PriceUSD, &t.PnLPercent, &at); err != nil {
			return nil, fmt.Errorf("clickhouse: scan tick: %w", err)
		}
		t.At = at
		out = append(out, t)
	}
	return out, rows.Err()
}

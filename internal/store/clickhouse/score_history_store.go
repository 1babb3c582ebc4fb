package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/vitorsaz/skull-agent/internal/domain"
)

// ScoreHistoryStore implements domain.ScoreHistoryStore.
type ScoreHistoryStore struct {
	conn *Conn
}

// NewScoreHistoryStore creates a ScoreHistoryStore.
func NewScoreHistoryStore(conn *Conn) *ScoreHistoryStore {
	return &ScoreHistoryStore{conn: conn}
}

var _ domain.ScoreHistoryStore = (*ScoreHistoryStore)(nil)

func (s *ScoreHistoryStore) InsertScore(ctx context.Context, res domain.ScoreResult, at time.Time) error {
	reasons := res.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	var approved uint8
	if res.Approved {
		approved = 1
	}

	err := s.conn.Exec(ctx, `
		INSERT INTO score_history (
			ca, score, verdict, approved, liquidity_usd, mcap_usd,
			holders, price_usd, reasons, scored_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ContractAddress, uint8(res.Score), string(res.Verdict), approved,
		res.LiquidityUSD, res.MarketCapUSD, res.Holders, res.PriceUSD,
		reasons, at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("clickhouse: insert score %s: %w", res.ContractAddress, err)
	}
	return nil
}

// ScoreRow is one score_history row.
type ScoreRow struct {
	ContractAddress string
	Score           int
	Verdict         domain.Verdict
	Approved        bool
	ScoredAt        time.Time
}

// ListByToken returns the score history for ca, oldest first.
func (s *ScoreHistoryStore) ListByToken(ctx context.Context, ca string) ([]ScoreRow, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT ca, score, verdict, approved, scored_at
		FROM score_history
		WHERE ca = ?
		ORDER BY scored_at ASC`, ca)
	if err != nil {
		return nil, fmt.Errorf("clickhouse: list scores %s: %w", ca, err)
	}
	defer rows.Close()

	var out []ScoreRow
	for rows.Next() {
		var (
			r        ScoreRow
			score    uint8
			verdict  string
			approved uint8
		)
		if err := rows.Scan(&r.ContractAddress, &score, &verdict, &approved, &r.ScoredAt); err != nil {
			return nil, fmt.Errorf("clickhouse: scan score: %w", err)
		}
		r.Score = int(score)
		r.Verdict = domain.Verdict(verdict)
		r.Approved = approved == 1
		out = append(out, r)
	}
	return out, rows.Err()
}

package scoring

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitorsaz/skull-agent/internal/config"
	"github.com/vitorsaz/skull-agent/internal/domain"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func defaultEngine() *Engine {
	return NewEngine(config.Defaults().Scoring)
}

func TestScore_ScenarioA(t *testing.T) {
	res := defaultEngine().Score(Input{
		ContractAddress: "MintA",
		LiquidityUSD:    5000,
		MarketCapUSD:    15000,
		Holders:         60,
		CreatedAt:       now.Add(-2 * time.Minute),
		Now:             now,
	})

	assert.Equal(t, 75, res.Breakdown.Liquidity.Score)
	assert.Equal(t, 100, res.Breakdown.MarketCap.Score)
	assert.Equal(t, 75, res.Breakdown.Holders.Score)
	assert.Equal(t, 90, res.Breakdown.Age.Score)

	// (75*25 + 100*25 + 75*15 + 90*15) / 80 = 85.625
	assert.Equal(t, 86, res.Score)
	assert.Equal(t, domain.VerdictExcellent, res.Verdict)
	assert.True(t, res.Approved)
	assert.Equal(t, []string{"High score across all metrics"}, res.Reasons)
	assert.Contains(t, res.Opportunities, TagSweetSpotMcap)
	assert.Empty(t, res.Risks)
}

func TestScore_ScenarioB_LiquidityGateWins(t *testing.T) {
	cfg := config.Defaults().Scoring
	cfg.LiquidityExcellent = 100
	cfg.LiquidityGood = 50
	cfg.LiquidityMinimum = 10
	cfg.LiquidityWeight = 1

	res := NewEngine(cfg).Score(Input{
		LiquidityUSD: 200,
		MarketCapUSD: 15000,
		Holders:      500,
		CreatedAt:    now.Add(-time.Minute),
		Now:          now,
	})

	assert.GreaterOrEqual(t, res.Score, 90)
	assert.Equal(t, domain.VerdictRejected, res.Verdict)
	assert.False(t, res.Approved)
	assert.Equal(t, []string{ReasonLowLiquidity}, res.Reasons)
}

func TestScore_BothGatesListed(t *testing.T) {
	res := defaultEngine().Score(Input{LiquidityUSD: 10, MarketCapUSD: 90000, Now: now})

	assert.Equal(t, domain.VerdictRejected, res.Verdict)
	assert.False(t, res.Approved)
	assert.Equal(t, []string{ReasonLowLiquidity, ReasonHighMarketCap}, res.Reasons)
}

func TestScore_GateNeverApproves(t *testing.T) {
	e := defaultEngine()
	for _, liq := range []float64{0, 1, 500, 999.99, 1000, 20000} {
		for _, mcap := range []float64{0, 4000, 15000, 50000, 50000.01, 200000} {
			res := e.Score(Input{LiquidityUSD: liq, MarketCapUSD: mcap, Holders: 200, CreatedAt: now, Now: now})
			if liq < 1000 || mcap > 50000 {
				assert.Equal(t, domain.VerdictRejected, res.Verdict, "liq=%v mcap=%v", liq, mcap)
				assert.False(t, res.Approved, "liq=%v mcap=%v", liq, mcap)
			}
			if res.Approved {
				assert.Contains(t, []domain.Verdict{domain.VerdictExcellent, domain.VerdictGood}, res.Verdict)
			}
			assert.GreaterOrEqual(t, res.Score, 0)
			assert.LessOrEqual(t, res.Score, 100)
		}
	}
}

func TestScore_Monotonic(t *testing.T) {
	e := defaultEngine()
	base := Input{LiquidityUSD: 3000, MarketCapUSD: 10000, Holders: 20, CreatedAt: now.Add(-10 * time.Minute), Now: now}

	prev := -1
	for _, liq := range []float64{0, 10, 999, 1000, 4999, 5000, 9999, 10000, 1e6} {
		in := base
		in.LiquidityUSD = liq
		s := e.Score(in).Score
		assert.GreaterOrEqual(t, s, prev, "liquidity %v", liq)
		prev = s
	}

	prev = -1
	for _, h := range []int64{0, 1, 9, 10, 49, 50, 99, 100, 10000} {
		in := base
		in.Holders = h
		s := e.Score(in).Score
		assert.GreaterOrEqual(t, s, prev, "holders %v", h)
		prev = s
	}

	// Every market cap inside the sweet spot scores at least as well as any
	// outside it.
	inside := base
	inside.MarketCapUSD = 5000
	best := e.Score(inside).Score
	for _, mc := range []float64{1, 4999, 30001, 100000, 100001} {
		in := base
		in.MarketCapUSD = mc
		assert.LessOrEqual(t, e.Score(in).Score, best, "mcap %v", mc)
	}
}

func TestScore_SubScoreTiers(t *testing.T) {
	e := defaultEngine()
	tests := []struct {
		name string
		in   Input
		get  func(domain.ScoreBreakdown) int
		want int
	}{
		{"liq zero", Input{LiquidityUSD: 0}, liq, 0},
		{"liq low", Input{LiquidityUSD: 999}, liq, 25},
		{"liq minimum", Input{LiquidityUSD: 1000}, liq, 50},
		{"liq excellent", Input{LiquidityUSD: 10000}, liq, 100},
		{"mcap zero", Input{MarketCapUSD: 0}, mcap, 0},
		{"mcap early", Input{MarketCapUSD: 4000}, mcap, 80},
		{"mcap sweet max", Input{MarketCapUSD: 30000}, mcap, 100},
		{"mcap above", Input{MarketCapUSD: 80000}, mcap, 60},
		{"mcap ceiling", Input{MarketCapUSD: 100001}, mcap, 20},
		{"holders good", Input{Holders: 50}, holders, 75},
		{"age unknown", Input{}, age, 50},
		{"age 20m", Input{CreatedAt: now.Add(-20 * time.Minute)}, age, 80},
		{"age 45m", Input{CreatedAt: now.Add(-45 * time.Minute)}, age, 60},
		{"age 2h", Input{CreatedAt: now.Add(-2 * time.Hour)}, age, 40},
		{"age 5h", Input{CreatedAt: now.Add(-5 * time.Hour)}, age, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.in.Now = now
			assert.Equal(t, tt.want, tt.get(e.Score(tt.in).Breakdown))
		})
	}
}

func TestScore_VerdictBands(t *testing.T) {
	assert.Equal(t, domain.VerdictExcellent, verdictFor(80))
	assert.Equal(t, domain.VerdictGood, verdictFor(79))
	assert.Equal(t, domain.VerdictGood, verdictFor(65))
	assert.Equal(t, domain.VerdictRisky, verdictFor(64))
	assert.Equal(t, domain.VerdictRisky, verdictFor(50))
	assert.Equal(t, domain.VerdictAvoid, verdictFor(49))
}

func TestScore_Tags(t *testing.T) {
	res := defaultEngine().Score(Input{LiquidityUSD: 500, MarketCapUSD: 150000, Holders: 3, Now: now})
	assert.Equal(t, []string{TagLowLiquidity, TagHighMcap, TagFewHolders}, res.Risks)
	assert.Empty(t, res.Opportunities)

	res = defaultEngine().Score(Input{LiquidityUSD: 20000, MarketCapUSD: 20000, Holders: 300, Now: now})
	assert.Equal(t, []string{TagSweetSpotMcap, TagHighLiquidity, TagManyHolders}, res.Opportunities)
}

func TestFailed(t *testing.T) {
	res := Failed("MintX", errors.New("birdeye: timeout"))
	require.Len(t, res.Reasons, 1)
	assert.Equal(t, domain.VerdictError, res.Verdict)
	assert.False(t, res.Approved)
	assert.Equal(t, "Analysis failed: birdeye: timeout", res.Reasons[0])
	assert.Equal(t, "MintX", res.ContractAddress)
}

func liq(b domain.ScoreBreakdown) int     { return b.Liquidity.Score }
func mcap(b domain.ScoreBreakdown) int    { return b.MarketCap.Score }
func holders(b domain.ScoreBreakdown) int { return b.Holders.Score }
func age(b domain.ScoreBreakdown) int     { return b.Age.Score }

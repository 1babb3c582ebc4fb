// Package scoring rates newly discovered tokens against a weighted heuristic
// rubric and decides whether they are eligible for acquisition.
package scoring

import (
	"math"
	"time"

	"github.com/vitorsaz/skull-agent/internal/config"
	"github.com/vitorsaz/skull-agent/internal/domain"
)

// Input is everything the engine looks at for one token. Figures are USD.
// A zero CreatedAt means the token's age is unknown.
type Input struct {
	ContractAddress string
	LiquidityUSD    float64
	MarketCapUSD    float64
	Holders         int64
	PriceUSD        float64
	CreatedAt       time.Time
	Now             time.Time
}

// Engine is a pure scorer. It holds only configuration and is safe for
// concurrent use.
type Engine struct {
	cfg config.ScoringConfig
}

// NewEngine creates an Engine. cfg is expected to have passed validation.
func NewEngine(cfg config.ScoringConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Score computes the weighted score, verdict and approval for in.
func (e *Engine) Score(in Input) domain.ScoreResult {
	c := e.cfg

	ageMinutes := -1.0
	if !in.CreatedAt.IsZero() {
		ageMinutes = in.Now.Sub(in.CreatedAt).Minutes()
		if ageMinutes < 0 {
			ageMinutes = 0
		}
	}

	b := domain.ScoreBreakdown{
		Liquidity: domain.SubScore{
			Value:  in.LiquidityUSD,
			Score:  tierScore(in.LiquidityUSD, c.LiquidityExcellent, c.LiquidityGood, c.LiquidityMinimum),
			Weight: c.LiquidityWeight,
		},
		MarketCap: domain.SubScore{
			Value:  in.MarketCapUSD,
			Score:  e.marketCapScore(in.MarketCapUSD),
			Weight: c.MarketCapWeight,
		},
		Holders: domain.SubScore{
			Value: float64(in.Holders),
			Score: tierScore(float64(in.Holders),
				float64(c.HoldersExcellent), float64(c.HoldersGood), float64(c.HoldersMinimum)),
			Weight: c.HoldersWeight,
		},
		Age: domain.SubScore{
			Value:  ageMinutes,
			Score:  ageScore(ageMinutes),
			Weight: c.AgeWeight,
		},
	}

	score := combine(b.Liquidity, b.MarketCap, b.Holders, b.Age)
	verdict := verdictFor(score)

	res := domain.ScoreResult{
		ContractAddress: in.ContractAddress,
		Score:           score,
		Verdict:         verdict,
		Approved:        verdict == domain.VerdictExcellent || verdict == domain.VerdictGood,
		Reasons:         []string{verdictReason(verdict)},
		Breakdown:       b,
		LiquidityUSD:    in.LiquidityUSD,
		MarketCapUSD:    in.MarketCapUSD,
		Holders:         in.Holders,
		PriceUSD:        in.PriceUSD,
	}
	res.Risks, res.Opportunities = e.tags(in)

	// Hard gates override the weighted verdict.
	var gates []string
	if in.LiquidityUSD < c.MinLiquidity {
		gates = append(gates, ReasonLowLiquidity)
	}
	if in.MarketCapUSD > c.MaxMcap {
		gates = append(gates, ReasonHighMarketCap)
	}
	if len(gates) > 0 {
		res.Verdict = domain.VerdictRejected
		res.Approved = false
		res.Reasons = gates
	}
	return res
}

// Failed builds the ERROR result for a token whose inputs could not be
// gathered.
func Failed(contractAddress string, err error) domain.ScoreResult {
	return domain.ScoreResult{
		ContractAddress: contractAddress,
		Verdict:         domain.VerdictError,
		Approved:        false,
		Reasons:         []string{"Analysis failed: " + err.Error()},
	}
}

func (e *Engine) marketCapScore(mcap float64) int {
	c := e.cfg
	switch {
	case mcap <= 0:
		return 0
	case mcap >= c.SweetMin && mcap <= c.SweetMax:
		return 100
	case mcap < c.SweetMin:
		return 80
	case mcap <= c.MaxAllowed:
		return 60
	default:
		return 20
	}
}

// tierScore maps v onto 100/75/50/25 by descending thresholds; non-positive
// values score 0.
func tierScore(v, excellent, good, minimum float64) int {
	switch {
	case v <= 0:
		return 0
	case v >= excellent:
		return 100
	case v >= good:
		return 75
	case v >= minimum:
		return 50
	default:
		return 25
	}
}

// ageScore favors younger tokens. Negative minutes means unknown.
func ageScore(minutes float64) int {
	switch {
	case minutes < 0:
		return 50
	case minutes < 5:
		return 90
	case minutes < 30:
		return 80
	case minutes < 60:
		return 60
	case minutes < 240:
		return 40
	default:
		return 20
	}
}

func combine(parts ...domain.SubScore) int {
	var sum, weights float64
	for _, p := range parts {
		sum += float64(p.Score * p.Weight)
		weights += float64(p.Weight)
	}
	if weights <= 0 {
		return 0
	}
	score := int(math.Round(sum / weights))
	return min(max(score, 0), 100)
}

func verdictFor(score int) domain.Verdict {
	switch {
	case score >= 80:
		return domain.VerdictExcellent
	case score >= 65:
		return domain.VerdictGood
	case score >= 50:
		return domain.VerdictRisky
	default:
		return domain.VerdictAvoid
	}
}

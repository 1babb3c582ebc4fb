package scoring

import "github.com/vitorsaz/skull-agent/internal/domain"

// Gate reasons.
const (
	ReasonLowLiquidity  = "Liquidity below minimum threshold"
	ReasonHighMarketCap = "Market cap above maximum threshold"
)

// Risk and opportunity tags recorded in the audit trail.
const (
	TagLowLiquidity  = "LOW_LIQUIDITY"
	TagHighMcap      = "HIGH_MCAP"
	TagFewHolders    = "FEW_HOLDERS"
	TagSweetSpotMcap = "SWEET_SPOT_MCAP"
	TagHighLiquidity = "HIGH_LIQUIDITY"
	TagManyHolders   = "MANY_HOLDERS"
)

func verdictReason(v domain.Verdict) string {
	switch v {
	case domain.VerdictExcellent:
		return "High score across all metrics"
	case domain.VerdictGood:
		return "Good potential with acceptable risk"
	case domain.VerdictRisky:
		return "Medium score - proceed with caution"
	default:
		return "Low score - too risky"
	}
}

func (e *Engine) tags(in Input) (risks, opportunities []string) {
	c := e.cfg
	risks = []string{}
	opportunities = []string{}

	if in.LiquidityUSD < c.LiquidityMinimum {
		risks = append(risks, TagLowLiquidity)
	}
	if in.MarketCapUSD > c.MaxAllowed {
		risks = append(risks, TagHighMcap)
	}
	if in.Holders < c.HoldersMinimum {
		risks = append(risks, TagFewHolders)
	}

	if in.MarketCapUSD >= c.SweetMin && in.MarketCapUSD <= c.SweetMax {
		opportunities = append(opportunities, TagSweetSpotMcap)
	}
	if in.LiquidityUSD >= c.LiquidityExcellent {
		opportunities = append(opportunities, TagHighLiquidity)
	}
	if in.Holders >= c.HoldersExcellent {
		opportunities = append(opportunities, TagManyHolders)
	}
	return risks, opportunities
}

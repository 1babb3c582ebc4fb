package domain

// Verdict is the categorical outcome of scoring a token.
type Verdict string

const (
	VerdictExcellent Verdict = "EXCELLENT"
	VerdictGood      Verdict = "GOOD"
	VerdictRisky     Verdict = "RISKY"
	VerdictAvoid     Verdict = "AVOID"
	VerdictRejected  Verdict = "REJECTED"
	VerdictError     Verdict = "ERROR"
)

// SubScore is one weighted component of a ScoreResult.
type SubScore struct {
	Value  float64 `json:"value"`
	Score  int     `json:"score"`
	Weight int     `json:"weight"`
}

// ScoreBreakdown holds the four weighted components.
type ScoreBreakdown struct {
	Liquidity SubScore `json:"liquidity"`
	MarketCap SubScore `json:"mcap"`
	Holders   SubScore `json:"holders"`
	Age       SubScore `json:"age"`
}

// ScoreResult is the output of the scoring engine for one token at one point
// in time. Approved implies Verdict is EXCELLENT or GOOD and both hard gates
// passed.
type ScoreResult struct {
	ContractAddress string         `json:"ca"`
	Score           int            `json:"score"`
	Verdict         Verdict        `json:"verdict"`
	Approved        bool           `json:"approved"`
	Reasons         []string       `json:"reasons"`
	Risks           []string       `json:"risks"`
	Opportunities   []string       `json:"opportunities"`
	Breakdown       ScoreBreakdown `json:"scores"`
	LiquidityUSD    float64        `json:"liquidity"`
	MarketCapUSD    float64        `json:"mcap"`
	Holders         int64          `json:"holders"`
	PriceUSD        float64        `json:"price"`
}

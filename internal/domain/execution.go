package domain

import (
	"fmt"
	"strconv"
)

// ReleaseAmount is the sell quantity understood by the trade endpoint:
// either "all" or a percentage such as "50%".
type ReleaseAmount string

// ReleaseAll sells the whole holding.
const ReleaseAll ReleaseAmount = "all"

// ReleasePercent builds a percentage release. Values at or above 100 collapse
// to ReleaseAll.
func ReleasePercent(pct float64) ReleaseAmount {
	if pct >= 100 || pct <= 0 {
		return ReleaseAll
	}
	return ReleaseAmount(strconv.FormatFloat(pct, 'f', -1, 64) + "%")
}

// ExecutionResult is the outcome of a gateway call that reached the network.
type ExecutionResult struct {
	Action    TradeSide
	Mint      string
	Signature string
}

func (r ExecutionResult) String() string {
	return fmt.Sprintf("%s %s: %s", r.Action, r.Mint, r.Signature)
}

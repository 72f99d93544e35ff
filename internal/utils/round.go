package utils

import (
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

// Round2 rounds v to two decimal places, ties to even, on the exact binary
// value of v: 2.675 is stored as 2.67499... and becomes 2.67, 0.125 is an
// exact tie and becomes 0.12.
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	// 1100 fractional digits hold the full expansion of any float64.
	exact, err := decimal.NewFromString(new(big.Float).SetFloat64(v).Text('f', 1100))
	if err != nil {
		return v
	}
	return exact.RoundBank(2).InexactFloat64()
}

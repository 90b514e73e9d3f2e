// Package fixed provides exact fixed-point arithmetic on scaled int64 values.
// All helpers truncate toward zero and assume non-negative operands, which is
// the domain of prices, quantities and cash in this engine.
package fixed

import (
	"math"
	"math/bits"
)

// Mul returns a*b, reporting false when the product does not fit in int64.
func Mul(a, b int64) (int64, bool) {
	if a < 0 || b < 0 {
		return 0, false
	}
	if a == 0 || b == 0 {
		return 0, true
	}
	if a > math.MaxInt64/b {
		return 0, false
	}
	return a * b, true
}

// MulDivFloor returns floor(a*b/den) using a 128-bit intermediate product.
// Reports false when operands are negative, den is not positive, or the
// quotient does not fit in int64.
func MulDivFloor(a, b, den int64) (int64, bool) {
	if a < 0 || b < 0 || den <= 0 {
		return 0, false
	}
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	if hi >= uint64(den) {
		return 0, false
	}
	q, _ := bits.Div64(hi, lo, uint64(den))
	if q > math.MaxInt64 {
		return 0, false
	}
	return int64(q), true
}

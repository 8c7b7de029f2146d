package domain

import (
	"errors"
	"math"
	"math/bits"
)

// MaxLineQuantity caps the units a single cart line may hold.
const MaxLineQuantity int64 = 10_000

var ErrAmountOverflow = errors.New("amount out of range")

// MulAmount multiplies two non-negative minor-unit amounts.
func MulAmount(a, b int64) (int64, error) {
	if a < 0 || b < 0 {
		return 0, ErrAmountOverflow
	}
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	if hi != 0 || lo > math.MaxInt64 {
		return 0, ErrAmountOverflow
	}
	return int64(lo), nil
}

// AddAmount adds two minor-unit amounts, failing instead of wrapping.
func AddAmount(a, b int64) (int64, error) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, ErrAmountOverflow
	}
	return sum, nil
}

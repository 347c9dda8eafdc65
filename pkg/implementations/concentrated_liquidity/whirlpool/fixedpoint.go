package whirlpool

import (
	"math/big"

	"lukechampine.com/uint128"
)

// Q64Resolution is the number of fractional bits in a Q64.64 fixed-point
// value: sqrt-price, liquidity growth, and reward growth are all stored
// this way.
const Q64Resolution = 64

// q64One is 2^64 as a big.Int, the fixed-point unit.
var q64One = new(big.Int).Lsh(big.NewInt(1), Q64Resolution)

// toBig promotes a Uint128 to an unbounded big.Int for 256-bit-safe
// intermediate arithmetic, per spec.md §4.1 ("all multiplications that
// can exceed 128 bits must promote to 256-bit intermediates").
func toBig(v uint128.Uint128) *big.Int {
	return v.Big()
}

// fromBigChecked reduces a big.Int intermediate back to Uint128,
// returning ErrMulDivOverflow if it does not fit.
func fromBigChecked(v *big.Int) (uint128.Uint128, error) {
	if v.Sign() < 0 || v.BitLen() > 128 {
		return uint128.Zero, ErrMulDivOverflow
	}
	return uint128.FromBig(v), nil
}

// mulDivFloor computes floor(a*b/c) with a 256-bit-safe intermediate.
func mulDivFloor(a, b uint128.Uint128, c *big.Int) (uint128.Uint128, error) {
	if c.Sign() == 0 {
		return uint128.Zero, ErrDivideByZero
	}
	num := new(big.Int).Mul(toBig(a), toBig(b))
	num.Quo(num, c)
	return fromBigChecked(num)
}

// mulDivCeil computes ceil(a*b/c) with a 256-bit-safe intermediate.
func mulDivCeil(a, b uint128.Uint128, c *big.Int) (uint128.Uint128, error) {
	if c.Sign() == 0 {
		return uint128.Zero, ErrDivideByZero
	}
	num := new(big.Int).Mul(toBig(a), toBig(b))
	rem := new(big.Int)
	num.QuoRem(num, c, rem)
	if rem.Sign() != 0 {
		num.Add(num, big.NewInt(1))
	}
	return fromBigChecked(num)
}

// mulShiftRightFloor computes floor(a*b / 2^64) with a 256-bit-safe
// intermediate. Used for growth*liquidity style conversions.
func mulShiftRightFloor(a, b uint128.Uint128) (uint128.Uint128, error) {
	num := new(big.Int).Mul(toBig(a), toBig(b))
	num.Rsh(num, Q64Resolution)
	return fromBigChecked(num)
}

// mulShiftRightCeil computes ceil(a*b / 2^64) with a 256-bit-safe
// intermediate.
func mulShiftRightCeil(a, b uint128.Uint128) (uint128.Uint128, error) {
	num := new(big.Int).Mul(toBig(a), toBig(b))
	rem := new(big.Int)
	q := new(big.Int)
	mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), Q64Resolution), big.NewInt(1))
	rem.And(num, mask)
	q.Rsh(num, Q64Resolution)
	if rem.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return fromBigChecked(q)
}

// wrappingAddU128 adds two Q64.64 growth accumulators with u128 wraparound,
// per spec.md §3 ("Fee/reward 'growth' accumulators ... use wrapping
// arithmetic — only differences are meaningful").
func wrappingAddU128(a, b uint128.Uint128) uint128.Uint128 {
	return a.Add(b)
}

// wrappingSubU128 subtracts two Q64.64 growth accumulators with u128
// wraparound.
func wrappingSubU128(a, b uint128.Uint128) uint128.Uint128 {
	return a.Sub(b)
}

// clampU128 clamps v to [lo, hi].
func clampU128(v, lo, hi uint128.Uint128) uint128.Uint128 {
	if v.Cmp(lo) < 0 {
		return lo
	}
	if v.Cmp(hi) > 0 {
		return hi
	}
	return v
}

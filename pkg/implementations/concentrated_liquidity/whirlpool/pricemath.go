package whirlpool

import (
	"math"
	"math/big"

	"lukechampine.com/uint128"
)

// Tick index bounds and sqrt-price bounds (spec.md §3). Whirlpool's
// sqrt-price relation is 1.0001^(tick/2) in Q64.64, which is the same
// bit-magic table Uniswap V3 uses for 1.0001^(tick/2) in Q64.96 (see
// SPEC_FULL.md domain-stack note): the magic constants below are
// identical, only the final right-shift changes (64 instead of 32)
// because the fixed-point output width differs.
const (
	MinTickIndex = -443636
	MaxTickIndex = 443636
)

var (
	minSqrtPrice = uint128.From64(4295048016)
	maxSqrtPrice = mustUint128FromString("79226673515401279992447579055")
)

func mustUint128FromString(s string) uint128.Uint128 {
	v, err := uint128.FromString(s)
	if err != nil {
		panic("whirlpool: invalid uint128 literal " + s)
	}
	return v
}

// MinSqrtPrice and MaxSqrtPrice return the legal Q64.64 sqrt-price bounds.
func MinSqrtPrice() uint128.Uint128 { return minSqrtPrice }
func MaxSqrtPrice() uint128.Uint128 { return maxSqrtPrice }

// tickMagic holds the bit-i multiplier (in Q128.128) for the
// piecewise-multiply table used by SqrtPriceFromTick. Values are the
// standard 1.0001^(-2^i / 2) constants shared by every concentrated
// liquidity AMM that uses this tick relation.
var tickMagic = [19]string{
	"fffcb933bd6fad37aa2d162d1a594001",
	"fff97272373d413259a46990580e213a",
	"fff2e50f5f656932ef12357cf3c7fdcc",
	"ffe5caca7e10e4e61c3624eaa0941cd0",
	"ffcb9843d60f6159c9db58835c926644",
	"ff973b41fa98c081472e6896dfb254c0",
	"ff2ea16466c96a3843ec78b326b52861",
	"fe5dee046a99a2a811c461f1969c3053",
	"fcbe86c7900a88aedcffc83b479aa3a4",
	"f987a7253ac413176f2b074cf7815e54",
	"f3392b0822b70005940c7a398e4b70f3",
	"e7159475a2c29b7443b29c7fa6e889d9",
	"d097f3bdfd2022b8845ad8f792aa5825",
	"a9f746462d870fdf8a65dc1f90e061e5",
	"70d869a156d2a1b890bb3df62baf32f7",
	"31be135f97d08fd981231505542fcfa6",
	"9aa508b5b7a84e1c677de54f3e99bc9",
	"5d6af8dedb81196699c329225ee604",
	"2216e584f5fa1ea926041bedfe98",
}

var tickMagicBig [19]*big.Int

func init() {
	for i, hexStr := range tickMagic {
		v, ok := new(big.Int).SetString(hexStr, 16)
		if !ok {
			panic("whirlpool: invalid tick magic constant")
		}
		tickMagicBig[i] = v
	}
}

var q128One = new(big.Int).Lsh(big.NewInt(1), 128)
var uint256Max = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// SqrtPriceFromTick returns the Q64.64 sqrt-price for a legal tick index,
// clamped to [MinSqrtPrice, MaxSqrtPrice]. Deterministic and monotonic
// over [MinTickIndex, MaxTickIndex] (spec.md §8, tick-math monotonicity
// law).
func SqrtPriceFromTick(tick int32) (uint128.Uint128, error) {
	if tick < MinTickIndex || tick > MaxTickIndex {
		return uint128.Zero, ErrInvalidTickIndex
	}

	absTick := tick
	if absTick < 0 {
		absTick = -absTick
	}

	ratio := new(big.Int)
	if absTick&1 != 0 {
		ratio.Set(tickMagicBig[0])
	} else {
		ratio.Set(q128One)
	}

	for i := 1; i < 19; i++ {
		if absTick&(1<<uint(i)) != 0 {
			ratio.Mul(ratio, tickMagicBig[i])
			ratio.Rsh(ratio, 128)
		}
	}

	if tick > 0 {
		ratio.Quo(uint256Max, ratio)
	}

	// ratio is Q128.128; reduce to Q64.64, rounding up.
	rem := new(big.Int)
	sqrtPrice := new(big.Int)
	sqrtPrice.QuoRem(ratio, q64One, rem)
	if rem.Sign() != 0 {
		sqrtPrice.Add(sqrtPrice, big.NewInt(1))
	}

	result := uint128.FromBig(sqrtPrice)
	return clampU128(result, minSqrtPrice, maxSqrtPrice), nil
}

// TickFromSqrtPrice returns the unique tick t satisfying
// sqrt_price(t) <= sp < sqrt_price(t+1), per spec.md §3's invariant 1.
// Implemented via a float natural-log estimate refined by an exact
// linear scan of SqrtPriceFromTick over the ticks within 2 of that
// estimate, which keeps the round-trip
// TickFromSqrtPrice(SqrtPriceFromTick(t)) == t exact for every usable
// tick (spec.md §8) without requiring a second, independently-rounded
// fixed-point log table.
func TickFromSqrtPrice(sp uint128.Uint128) (int32, error) {
	if sp.Cmp(minSqrtPrice) < 0 || sp.Cmp(maxSqrtPrice) > 0 {
		return 0, ErrSqrtPriceOutOfBounds
	}

	spFloat := bigToFloat(sp.Big())
	q64Float := bigToFloat(q64One)
	price := spFloat / q64Float
	// log_{1.0001^0.5}(price) = log(price) / log(1.0001^0.5)
	tickEstimate := logBase(price, 1.0000499987500625) // sqrt(1.0001)

	lo := int32(tickEstimate) - 2
	hi := int32(tickEstimate) + 2
	if lo < MinTickIndex {
		lo = MinTickIndex
	}
	if hi > MaxTickIndex {
		hi = MaxTickIndex
	}

	// Linear scan over the small neighborhood; exact and monotone.
	for t := lo; t <= hi; t++ {
		cur, err := SqrtPriceFromTick(t)
		if err != nil {
			continue
		}
		var next uint128.Uint128
		if t == MaxTickIndex {
			next = maxSqrtPrice.Add(uint128.From64(1))
		} else {
			next, err = SqrtPriceFromTick(t + 1)
			if err != nil {
				continue
			}
		}
		if sp.Cmp(cur) >= 0 && sp.Cmp(next) < 0 {
			return t, nil
		}
	}
	// Fall back to boundary ticks for values exactly at the clamped rails.
	if sp.Cmp(minSqrtPrice) == 0 {
		return MinTickIndex, nil
	}
	return MaxTickIndex, nil
}

func bigToFloat(v *big.Int) float64 {
	f := new(big.Float).SetInt(v)
	result, _ := f.Float64()
	return result
}

// logBase returns log_base(x) using natural logs; x and base are both
// assumed positive and finite, which holds for every legal sqrt-price.
func logBase(x, base float64) float64 {
	return math.Log(x) / math.Log(base)
}

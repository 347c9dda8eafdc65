package whirlpool

import (
	"math/big"

	"lukechampine.com/uint128"
)

// GetAmountADelta returns the amount of token A required to move
// liquidity L between sqrt-prices spLower <= spUpper (spec.md §4.1):
//
//	Δa = round( L * (spUpper - spLower) * 2^64 / (spLower * spUpper) )
//
// roundUp selects ceil (adding liquidity) vs floor (removing liquidity) —
// spec.md's "round in favor of the pool" rule.
func GetAmountADelta(spLower, spUpper uint128.Uint128, liquidity uint128.Uint128, roundUp bool) (uint128.Uint128, error) {
	if spLower.Cmp(spUpper) > 0 {
		spLower, spUpper = spUpper, spLower
	}
	if spLower.IsZero() {
		return uint128.Zero, ErrDivideByZero
	}

	numerator := new(big.Int).Mul(toBig(liquidity), new(big.Int).Sub(toBig(spUpper), toBig(spLower)))
	numerator.Lsh(numerator, Q64Resolution)
	denominator := new(big.Int).Mul(toBig(spLower), toBig(spUpper))

	if roundUp {
		return divCeilBig(numerator, denominator)
	}
	return divFloorBig(numerator, denominator)
}

// GetAmountBDelta returns the amount of token B required to move
// liquidity L between sqrt-prices spLower <= spUpper:
//
//	Δb = round( L * (spUpper - spLower) / 2^64 )
func GetAmountBDelta(spLower, spUpper uint128.Uint128, liquidity uint128.Uint128, roundUp bool) (uint128.Uint128, error) {
	if spLower.Cmp(spUpper) > 0 {
		spLower, spUpper = spUpper, spLower
	}

	numerator := new(big.Int).Mul(toBig(liquidity), new(big.Int).Sub(toBig(spUpper), toBig(spLower)))
	if roundUp {
		return divCeilBig(numerator, q64One)
	}
	return divFloorBig(numerator, q64One)
}

func divFloorBig(num, den *big.Int) (uint128.Uint128, error) {
	if den.Sign() == 0 {
		return uint128.Zero, ErrDivideByZero
	}
	q := new(big.Int).Quo(num, den)
	return fromBigChecked(q)
}

func divCeilBig(num, den *big.Int) (uint128.Uint128, error) {
	if den.Sign() == 0 {
		return uint128.Zero, ErrDivideByZero
	}
	q, rem := new(big.Int), new(big.Int)
	q.QuoRem(num, den, rem)
	if rem.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return fromBigChecked(q)
}

// GetNextSqrtPriceFromARoundingUp returns the sqrt-price reached after
// adding (add=true) or removing (add=false) amountA of token A at
// constant liquidity L, rounding the result up (spec.md §4.1 step math,
// A-side).
func GetNextSqrtPriceFromARoundingUp(sp uint128.Uint128, liquidity uint128.Uint128, amountA uint128.Uint128, add bool) (uint128.Uint128, error) {
	if amountA.IsZero() {
		return sp, nil
	}
	lShifted := new(big.Int).Lsh(toBig(liquidity), Q64Resolution)
	product := new(big.Int).Mul(toBig(amountA), toBig(sp))

	if add {
		denominator := new(big.Int).Add(lShifted, product)
		return divCeilBig(new(big.Int).Mul(lShifted, toBig(sp)), denominator)
	}

	denominator := new(big.Int).Sub(lShifted, product)
	if denominator.Sign() <= 0 {
		return uint128.Zero, ErrAmountCalcOverflow
	}
	return divCeilBig(new(big.Int).Mul(lShifted, toBig(sp)), denominator)
}

// GetNextSqrtPriceFromBRoundingDown returns the sqrt-price reached after
// adding (add=true) or removing (add=false) amountB of token B at
// constant liquidity L, rounding the result down (spec.md §4.1 step
// math, B-side).
func GetNextSqrtPriceFromBRoundingDown(sp uint128.Uint128, liquidity uint128.Uint128, amountB uint128.Uint128, add bool) (uint128.Uint128, error) {
	if liquidity.IsZero() {
		return uint128.Zero, ErrDivideByZero
	}
	quotient, err := func() (uint128.Uint128, error) {
		shifted := new(big.Int).Lsh(toBig(amountB), Q64Resolution)
		if add {
			return divFloorBig(shifted, toBig(liquidity))
		}
		return divCeilBig(shifted, toBig(liquidity))
	}()
	if err != nil {
		return uint128.Zero, err
	}

	if add {
		return sp.Add(quotient), nil
	}
	if sp.Cmp(quotient) < 0 {
		return uint128.Zero, ErrAmountCalcOverflow
	}
	return sp.Sub(quotient), nil
}

// SwapStepResult is the outcome of a single swap-engine step (spec.md §4.6).
type SwapStepResult struct {
	SqrtPriceNext uint128.Uint128
	AmountIn      uint128.Uint128
	AmountOut     uint128.Uint128
	FeeAmount     uint128.Uint128
}

// ComputeSwapStep computes one swap step from sp to sp bounded by
// spTarget at constant liquidity L, honoring exact-in/exact-out and
// separating the fee from the traded amount (spec.md §4.1, §4.6).
// feeRate is expressed in millionths (1_000_000 = 100%), matching
// FeeRateHardLimit = 100_000 (10%).
func ComputeSwapStep(aToB bool, amountSpecifiedIsInput bool, sp, spTarget uint128.Uint128, liquidity uint128.Uint128, amountRemaining uint128.Uint128, feeRate uint32) (SwapStepResult, error) {
	var amountInMax, amountOutMax uint128.Uint128
	var err error
	if aToB {
		amountInMax, err = GetAmountADelta(spTarget, sp, liquidity, true)
		if err != nil {
			return SwapStepResult{}, err
		}
		amountOutMax, err = GetAmountBDelta(spTarget, sp, liquidity, false)
		if err != nil {
			return SwapStepResult{}, err
		}
	} else {
		amountInMax, err = GetAmountBDelta(sp, spTarget, liquidity, true)
		if err != nil {
			return SwapStepResult{}, err
		}
		amountOutMax, err = GetAmountADelta(sp, spTarget, liquidity, false)
		if err != nil {
			return SwapStepResult{}, err
		}
	}

	const feeRateDenom = 1_000_000

	if amountSpecifiedIsInput {
		amountRemainingLessFee, err := mulDivFloorU64(amountRemaining, feeRateDenom-uint64(feeRate), feeRateDenom)
		if err != nil {
			return SwapStepResult{}, err
		}

		var spNext, amountIn uint128.Uint128
		reachedTarget := amountRemainingLessFee.Cmp(amountInMax) >= 0
		if reachedTarget {
			spNext = spTarget
			amountIn = amountInMax
		} else {
			amountIn = amountRemainingLessFee
			if aToB {
				spNext, err = GetNextSqrtPriceFromARoundingUp(sp, liquidity, amountIn, true)
			} else {
				spNext, err = GetNextSqrtPriceFromBRoundingDown(sp, liquidity, amountIn, true)
			}
			if err != nil {
				return SwapStepResult{}, err
			}
		}

		var amountOut uint128.Uint128
		if aToB {
			amountOut, err = GetAmountBDelta(spNext, sp, liquidity, false)
		} else {
			amountOut, err = GetAmountADelta(sp, spNext, liquidity, false)
		}
		if err != nil {
			return SwapStepResult{}, err
		}

		var feeAmount uint128.Uint128
		if reachedTarget {
			feeAmount, err = mulDivCeilU64(amountIn, uint64(feeRate), feeRateDenom-uint64(feeRate))
			if err != nil {
				return SwapStepResult{}, err
			}
		} else {
			feeAmount = amountRemaining.Sub(amountIn)
		}

		return SwapStepResult{SqrtPriceNext: spNext, AmountIn: amountIn, AmountOut: amountOut, FeeAmount: feeAmount}, nil
	}

	// Exact-output.
	var spNext, amountOut uint128.Uint128
	reachedTarget := amountRemaining.Cmp(amountOutMax) >= 0
	if reachedTarget {
		spNext = spTarget
		amountOut = amountOutMax
	} else {
		amountOut = amountRemaining
		if aToB {
			spNext, err = GetNextSqrtPriceFromBRoundingDown(sp, liquidity, amountOut, false)
		} else {
			spNext, err = GetNextSqrtPriceFromARoundingUp(sp, liquidity, amountOut, false)
		}
		if err != nil {
			return SwapStepResult{}, err
		}
	}

	var amountIn uint128.Uint128
	if aToB {
		amountIn, err = GetAmountADelta(spNext, sp, liquidity, true)
	} else {
		amountIn, err = GetAmountBDelta(sp, spNext, liquidity, true)
	}
	if err != nil {
		return SwapStepResult{}, err
	}

	feeAmount, err := mulDivCeilU64(amountIn, uint64(feeRate), feeRateDenom-uint64(feeRate))
	if err != nil {
		return SwapStepResult{}, err
	}

	return SwapStepResult{SqrtPriceNext: spNext, AmountIn: amountIn, AmountOut: amountOut, FeeAmount: feeAmount}, nil
}

func mulDivFloorU64(a uint128.Uint128, mulFactor, divisor uint64) (uint128.Uint128, error) {
	if divisor == 0 {
		return uint128.Zero, ErrDivideByZero
	}
	num := new(big.Int).Mul(toBig(a), big.NewInt(int64(mulFactor)))
	return divFloorBig(num, big.NewInt(int64(divisor)))
}

func mulDivCeilU64(a uint128.Uint128, mulFactor, divisor uint64) (uint128.Uint128, error) {
	if divisor == 0 {
		return uint128.Zero, ErrDivideByZero
	}
	num := new(big.Int).Mul(toBig(a), big.NewInt(int64(mulFactor)))
	return divCeilBig(num, big.NewInt(int64(divisor)))
}

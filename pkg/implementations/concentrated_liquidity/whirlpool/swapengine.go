package whirlpool

import (
	"math/big"

	"cosmossdk.io/math"
	"github.com/gagliardetto/solana-go"
	"lukechampine.com/uint128"
)

// SwapFeeRateDenom is the fee-rate denominator used throughout the
// engine: a rate of 1_000_000 is 100%.
const SwapFeeRateDenom = 1_000_000

// SwapParams is a single swap's inputs (spec.md §4.6).
type SwapParams struct {
	AToB                   bool
	AmountSpecifiedIsInput bool
	Amount                 uint64
	SqrtPriceLimit         uint128.Uint128
	OtherAmountThreshold   uint64
	Now                    uint64
}

// SwapResult is everything a swap computed, for the caller to commit
// atomically to the pool, tick arrays (already mutated in place through
// the supplied TickArraySequence), and adaptive-fee oracle.
type SwapResult struct {
	NextSqrtPrice        uint128.Uint128
	NextTickIndex        int32
	NextLiquidity        uint128.Uint128
	NextFeeGrowthGlobalA uint128.Uint128
	NextFeeGrowthGlobalB uint128.Uint128
	NextProtocolFeeOwedA uint64
	NextProtocolFeeOwedB uint64
	NextRewardInfos      [NumRewards]WhirlpoolRewardInfo
	NextAdaptiveFee      AdaptiveFeeVariables
	AmountA              uint64
	AmountB              uint64
}

// OutputAmount returns the amount of the token this swap produced.
func (r SwapResult) OutputAmount(aToB bool) uint64 {
	if aToB {
		return r.AmountB
	}
	return r.AmountA
}

// InputAmount returns the amount of the token this swap consumed.
func (r SwapResult) InputAmount(aToB bool) uint64 {
	if aToB {
		return r.AmountA
	}
	return r.AmountB
}

// Swap runs the swap walk described in spec.md §4.6: validation, the
// per-step loop (next-initialized-tick search, target clamping, fee
// determination, step math, accumulator updates, tick crossing), and
// termination (partial-fill/slippage checks). It mutates the tick
// records it crosses through sequence (matching the program's pattern
// of updating loaded tick-array accounts as the walk proceeds) but
// leaves the pool and adaptive-fee oracle untouched — the caller
// commits SwapResult's fields atomically once the instruction succeeds.
func Swap(pool *Pool, sequence *TickArraySequence, params SwapParams, adaptiveConstants *AdaptiveFeeConstants, adaptiveVariables AdaptiveFeeVariables) (SwapResult, error) {
	if params.Amount == 0 {
		return SwapResult{}, ErrZeroTradableAmount
	}
	if err := pool.RequireTradeEnabled(params.Now); err != nil {
		return SwapResult{}, err
	}
	if params.SqrtPriceLimit.Cmp(MinSqrtPrice()) < 0 || params.SqrtPriceLimit.Cmp(MaxSqrtPrice()) > 0 {
		return SwapResult{}, ErrSqrtPriceOutOfBounds
	}
	if params.AToB {
		if params.SqrtPriceLimit.Cmp(pool.SqrtPrice) >= 0 {
			return SwapResult{}, ErrInvalidSqrtPriceLimitDirection
		}
	} else {
		if params.SqrtPriceLimit.Cmp(pool.SqrtPrice) <= 0 {
			return SwapResult{}, ErrInvalidSqrtPriceLimitDirection
		}
	}

	// Reward global update precedes everything else in the swap;
	// rewards do not accrue again for the rest of the walk (spec.md §5).
	nextRewardInfos, err := pool.NextRewardInfos(params.Now)
	if err != nil {
		return SwapResult{}, err
	}
	rewardGrowthsGlobal := rewardGrowthsFrom(nextRewardInfos)

	feeManager := NewFeeRateManager(params.AToB, pool.TickCurrentIndex, params.Now, pool.FeeRate, adaptiveConstants, adaptiveVariables)

	sp := pool.SqrtPrice
	searchTick := pool.TickCurrentIndex
	liquidity := pool.Liquidity
	feeGrowthGlobalA := pool.FeeGrowthGlobalA
	feeGrowthGlobalB := pool.FeeGrowthGlobalB

	amountRemaining := uint128.From64(params.Amount)
	amountCalculated := uint128.Zero
	protocolFeeAccum := uint128.Zero

	for {
		if amountRemaining.IsZero() || sp.Cmp(params.SqrtPriceLimit) == 0 {
			break
		}

		nextTick, nextTickIndex, hasNext, err := sequence.NextInitializedTick(searchTick, params.AToB)
		if err != nil {
			return SwapResult{}, err
		}

		var rawTarget uint128.Uint128
		var spAtNext uint128.Uint128
		if hasNext {
			spAtNext, err = SqrtPriceFromTick(nextTickIndex)
			if err != nil {
				return SwapResult{}, err
			}
			if params.AToB {
				rawTarget = maxU128(spAtNext, params.SqrtPriceLimit)
			} else {
				rawTarget = minU128(spAtNext, params.SqrtPriceLimit)
			}
		} else {
			rawTarget = params.SqrtPriceLimit
		}

		feeManager.UpdateVolatilityAccumulator()
		feeRate := feeManager.TotalFeeRate()
		boundedTarget, isGroupBoundary, err := feeManager.BoundedSqrtPriceTarget(rawTarget)
		if err != nil {
			return SwapResult{}, err
		}

		step, err := ComputeSwapStep(params.AToB, params.AmountSpecifiedIsInput, sp, boundedTarget, liquidity, amountRemaining, feeRate)
		if err != nil {
			return SwapResult{}, err
		}

		if params.AmountSpecifiedIsInput {
			amountRemaining = amountRemaining.Sub(step.AmountIn.Add(step.FeeAmount))
			amountCalculated = amountCalculated.Add(step.AmountOut)
		} else {
			amountRemaining = amountRemaining.Sub(step.AmountOut)
			amountCalculated = amountCalculated.Add(step.AmountIn.Add(step.FeeAmount))
		}

		protocolFeePart, err := mulDivFloorU64(step.FeeAmount, uint64(pool.ProtocolFeeRate), 10_000)
		if err != nil {
			return SwapResult{}, err
		}
		protocolFeeAccum = wrappingAddU128(protocolFeeAccum, protocolFeePart)

		if !liquidity.IsZero() {
			lpFeeAmount := step.FeeAmount.Sub(protocolFeePart)
			growthDelta, err := feeGrowthPerLiquidity(lpFeeAmount, liquidity)
			if err != nil {
				return SwapResult{}, err
			}
			if params.AToB {
				feeGrowthGlobalA = wrappingAddU128(feeGrowthGlobalA, growthDelta)
			} else {
				feeGrowthGlobalB = wrappingAddU128(feeGrowthGlobalB, growthDelta)
			}
		}

		reachedBoundedTarget := step.SqrtPriceNext.Cmp(boundedTarget) == 0
		if reachedBoundedTarget && isGroupBoundary {
			feeManager.AdvanceTickGroup()
		}
		if reachedBoundedTarget && hasNext && step.SqrtPriceNext.Cmp(spAtNext) == 0 {
			nextLiquidity, err := crossTick(sequence, nextTick, nextTickIndex, params.AToB, liquidity, feeGrowthGlobalA, feeGrowthGlobalB, rewardGrowthsGlobal)
			if err != nil {
				return SwapResult{}, err
			}
			liquidity = nextLiquidity
			if params.AToB {
				searchTick = nextTickIndex - int32(pool.TickSpacing)
			} else {
				searchTick = nextTickIndex
			}
		}

		sp = step.SqrtPriceNext
	}

	if !amountRemaining.IsZero() {
		isDefaultLimit := false
		if params.AToB {
			isDefaultLimit = params.SqrtPriceLimit.Cmp(MinSqrtPrice()) == 0
		} else {
			isDefaultLimit = params.SqrtPriceLimit.Cmp(MaxSqrtPrice()) == 0
		}
		if isDefaultLimit {
			return SwapResult{}, ErrPartialFillError
		}
	}

	finalTick, err := TickFromSqrtPrice(sp)
	if err != nil {
		return SwapResult{}, err
	}

	var totalIn, totalOut uint128.Uint128
	if params.AmountSpecifiedIsInput {
		totalIn = uint128.From64(params.Amount).Sub(amountRemaining)
		totalOut = amountCalculated

		if totalOut.Cmp(uint128.From64(params.OtherAmountThreshold)) < 0 {
			return SwapResult{}, ErrAmountOutBelowMinimum
		}
	} else {
		totalOut = uint128.From64(params.Amount).Sub(amountRemaining)
		totalIn = amountCalculated

		if totalIn.Cmp(uint128.From64(params.OtherAmountThreshold)) > 0 {
			return SwapResult{}, ErrAmountInAboveMaximum
		}
	}

	var amountA, amountB uint128.Uint128
	if params.AToB {
		amountA, amountB = totalIn, totalOut
	} else {
		amountA, amountB = totalOut, totalIn
	}

	amountAU64, err := u128ToU64Checked(amountA)
	if err != nil {
		return SwapResult{}, err
	}
	amountBU64, err := u128ToU64Checked(amountB)
	if err != nil {
		return SwapResult{}, err
	}
	protocolFeeU64, err := u128ToU64Checked(protocolFeeAccum)
	if err != nil {
		return SwapResult{}, err
	}

	nextProtocolFeeOwedA := pool.ProtocolFeeOwedA
	nextProtocolFeeOwedB := pool.ProtocolFeeOwedB
	if params.AToB {
		nextProtocolFeeOwedA, err = addU64Checked(nextProtocolFeeOwedA, protocolFeeU64)
	} else {
		nextProtocolFeeOwedB, err = addU64Checked(nextProtocolFeeOwedB, protocolFeeU64)
	}
	if err != nil {
		return SwapResult{}, err
	}

	return SwapResult{
		NextSqrtPrice:        sp,
		NextTickIndex:        finalTick,
		NextLiquidity:        liquidity,
		NextFeeGrowthGlobalA: feeGrowthGlobalA,
		NextFeeGrowthGlobalB: feeGrowthGlobalB,
		NextProtocolFeeOwedA: nextProtocolFeeOwedA,
		NextProtocolFeeOwedB: nextProtocolFeeOwedB,
		NextRewardInfos:      nextRewardInfos,
		NextAdaptiveFee:      feeManager.NextVariables(),
		AmountA:              amountAU64,
		AmountB:              amountBU64,
	}, nil
}

// crossTick applies a crossed tick's liquidity_net to liquidity
// (negated for a_to_b) and flips its fee/reward "outside" fields
// against the respective running globals, writing the update back
// through sequence (spec.md §4.6 step 7).
func crossTick(sequence *TickArraySequence, tick Tick, tickIndex int32, aToB bool, liquidity uint128.Uint128, feeGrowthGlobalA, feeGrowthGlobalB uint128.Uint128, rewardGrowthsGlobal [NumRewards]uint128.Uint128) (uint128.Uint128, error) {
	delta := tick.LiquidityNet
	if aToB {
		delta = math.ZeroInt().Sub(delta)
	}
	nextLiquidity, err := addLiquidityDelta(liquidity, delta)
	if err != nil {
		return uint128.Zero, err
	}

	var rewardsOutside [NumRewards]uint128.Uint128
	for i := range rewardsOutside {
		rewardsOutside[i] = wrappingSubU128(rewardGrowthsGlobal[i], tick.RewardGrowthsOutside[i])
	}

	update := TickUpdate{
		Initialized:          tick.Initialized,
		LiquidityNet:         tick.LiquidityNet,
		LiquidityGross:       tick.LiquidityGross,
		FeeGrowthOutsideA:    wrappingSubU128(feeGrowthGlobalA, tick.FeeGrowthOutsideA),
		FeeGrowthOutsideB:    wrappingSubU128(feeGrowthGlobalB, tick.FeeGrowthOutsideB),
		RewardGrowthsOutside: rewardsOutside,
	}
	if err := sequence.UpdateTick(tickIndex, update); err != nil {
		return uint128.Zero, err
	}
	return nextLiquidity, nil
}

// feeGrowthPerLiquidity computes floor(amount * 2^64 / liquidity), the
// per-unit-liquidity fee growth a step's LP-fee share contributes
// (spec.md §4.6 step 6). Zero liquidity contributes nothing (no LPs to
// credit).
func feeGrowthPerLiquidity(amount, liquidity uint128.Uint128) (uint128.Uint128, error) {
	if liquidity.IsZero() {
		return uint128.Zero, nil
	}
	num := new(big.Int).Lsh(toBig(amount), Q64Resolution)
	return divFloorBig(num, toBig(liquidity))
}

func maxU128(a, b uint128.Uint128) uint128.Uint128 {
	if a.Cmp(b) > 0 {
		return a
	}
	return b
}

func minU128(a, b uint128.Uint128) uint128.Uint128 {
	if a.Cmp(b) < 0 {
		return a
	}
	return b
}

func u128ToU64Checked(v uint128.Uint128) (uint64, error) {
	if v.Big().BitLen() > 64 {
		return 0, ErrAmountCalcOverflow
	}
	return v.Big().Uint64(), nil
}

func addU64Checked(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, ErrAmountCalcOverflow
	}
	return sum, nil
}

// TwoHopSwapLeg is one pool/tick-array-window pair participating in a
// two-hop swap (spec.md §4.6).
type TwoHopSwapLeg struct {
	Pool              *Pool
	Sequence          *TickArraySequence
	MintA             solana.PublicKey
	MintB             solana.PublicKey
	AdaptiveConstants *AdaptiveFeeConstants
	AdaptiveVariables AdaptiveFeeVariables
	AToB              bool
	SqrtPriceLimit    uint128.Uint128
}

func (l TwoHopSwapLeg) inputMint() solana.PublicKey {
	if l.AToB {
		return l.MintA
	}
	return l.MintB
}

func (l TwoHopSwapLeg) outputMint() solana.PublicKey {
	if l.AToB {
		return l.MintB
	}
	return l.MintA
}

// TwoHopSwap runs swap-1 on leg1 then swap-2 on leg2, chaining swap-1's
// output into swap-2's input (exact-in) or sizing swap-1's output to
// meet swap-2's required input (exact-out) — spec.md §4.6.
func TwoHopSwap(leg1, leg2 TwoHopSwapLeg, amount uint64, otherAmountThreshold uint64, amountSpecifiedIsInput bool, now uint64) (SwapResult, SwapResult, error) {
	if leg1.Pool.Key == leg2.Pool.Key {
		return SwapResult{}, SwapResult{}, ErrDuplicateTwoHopPool
	}
	if leg1.outputMint() != leg2.inputMint() {
		return SwapResult{}, SwapResult{}, ErrInvalidIntermediaryMint
	}

	if amountSpecifiedIsInput {
		res1, err := Swap(leg1.Pool, leg1.Sequence, SwapParams{
			AToB:                   leg1.AToB,
			AmountSpecifiedIsInput: true,
			Amount:                 amount,
			SqrtPriceLimit:         leg1.SqrtPriceLimit,
			Now:                    now,
		}, leg1.AdaptiveConstants, leg1.AdaptiveVariables)
		if err != nil {
			return SwapResult{}, SwapResult{}, err
		}

		intermediateAmount := res1.OutputAmount(leg1.AToB)

		res2, err := Swap(leg2.Pool, leg2.Sequence, SwapParams{
			AToB:                   leg2.AToB,
			AmountSpecifiedIsInput: true,
			Amount:                 intermediateAmount,
			SqrtPriceLimit:         leg2.SqrtPriceLimit,
			OtherAmountThreshold:   otherAmountThreshold,
			Now:                    now,
		}, leg2.AdaptiveConstants, leg2.AdaptiveVariables)
		if err != nil {
			return SwapResult{}, SwapResult{}, err
		}
		if res2.InputAmount(leg2.AToB) != intermediateAmount {
			return SwapResult{}, SwapResult{}, ErrIntermediateTokenAmountMismatch
		}
		return res1, res2, nil
	}

	res2, err := Swap(leg2.Pool, leg2.Sequence, SwapParams{
		AToB:                   leg2.AToB,
		AmountSpecifiedIsInput: false,
		Amount:                 amount,
		SqrtPriceLimit:         leg2.SqrtPriceLimit,
		Now:                    now,
	}, leg2.AdaptiveConstants, leg2.AdaptiveVariables)
	if err != nil {
		return SwapResult{}, SwapResult{}, err
	}

	requiredIntermediateInput := res2.InputAmount(leg2.AToB)

	res1, err := Swap(leg1.Pool, leg1.Sequence, SwapParams{
		AToB:                   leg1.AToB,
		AmountSpecifiedIsInput: false,
		Amount:                 requiredIntermediateInput,
		SqrtPriceLimit:         leg1.SqrtPriceLimit,
		OtherAmountThreshold:   otherAmountThreshold,
		Now:                    now,
	}, leg1.AdaptiveConstants, leg1.AdaptiveVariables)
	if err != nil {
		return SwapResult{}, SwapResult{}, err
	}
	if res1.OutputAmount(leg1.AToB) != requiredIntermediateInput {
		return SwapResult{}, SwapResult{}, ErrIntermediateTokenAmountMismatch
	}

	return res1, res2, nil
}

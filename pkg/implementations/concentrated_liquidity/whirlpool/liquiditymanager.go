package whirlpool

import (
	"cosmossdk.io/math"
	"lukechampine.com/uint128"
)

// MaxLiquidityGross bounds a single tick's liquidity_gross so growth
// bookkeeping cannot overflow while still leaving headroom under u128
// (spec.md §4.3's "configured per-tick maximum"; chosen at 2^126 - 1 the
// way the upstream program reserves two bits of margin).
var MaxLiquidityGross = uint128.Max.Rsh(2)

// ModifyLiquidityResult carries everything LiquidityManager computed
// before the caller commits it (spec.md §4.3: the function is pure —
// commit is the caller's responsibility since it alone holds the
// account-lock/transaction context).
type ModifyLiquidityResult struct {
	NextRewardInfos [NumRewards]WhirlpoolRewardInfo
	TickLowerUpdate TickUpdate
	TickUpperUpdate TickUpdate
	PositionUpdate  PositionUpdate
	NextPoolLiquidity uint128.Uint128
	DeltaA            uint128.Uint128
	DeltaB            uint128.Uint128
}

// CalculateModifyLiquidity runs the six-step liquidity-modification
// algorithm (spec.md §4.3): global reward update, per-boundary-tick
// update, growth-inside recompute, position update, pool active-
// liquidity update, and token-delta calculation. It does not mutate
// any of its inputs; the caller applies the returned result atomically.
// A negative delta on a locked position fails with
// ErrOperationNotAllowedOnLockedPosition.
func CalculateModifyLiquidity(pool *Pool, position *Position, tickLowerArray, tickUpperArray TickArray, liquidityDelta math.Int, now uint64) (ModifyLiquidityResult, error) {
	if liquidityDelta.IsZero() {
		return ModifyLiquidityResult{}, ErrLiquidityZero
	}
	if liquidityDelta.IsNegative() {
		if err := position.RequireLiquidityMutable(); err != nil {
			return ModifyLiquidityResult{}, err
		}
	}

	// Step 1: global reward update.
	nextRewardInfos, err := pool.NextRewardInfos(now)
	if err != nil {
		return ModifyLiquidityResult{}, err
	}
	rewardGrowthsGlobal := rewardGrowthsFrom(nextRewardInfos)

	// Step 2: per-boundary-tick update.
	tickLower, err := tickLowerArray.GetTick(position.TickLowerIndex, pool.TickSpacing)
	if err != nil {
		return ModifyLiquidityResult{}, err
	}
	tickUpper, err := tickUpperArray.GetTick(position.TickUpperIndex, pool.TickSpacing)
	if err != nil {
		return ModifyLiquidityResult{}, err
	}

	lowerUpdate, err := NextTickLiquidityUpdate(tickLower, position.TickLowerIndex, pool.TickCurrentIndex, liquidityDelta, false, pool.FeeGrowthGlobalA, pool.FeeGrowthGlobalB, rewardGrowthsGlobal)
	if err != nil {
		return ModifyLiquidityResult{}, err
	}
	if lowerUpdate.LiquidityGross.Cmp(MaxLiquidityGross) > 0 {
		return ModifyLiquidityResult{}, ErrLiquidityGrossOverflow
	}

	upperUpdate, err := NextTickLiquidityUpdate(tickUpper, position.TickUpperIndex, pool.TickCurrentIndex, liquidityDelta, true, pool.FeeGrowthGlobalA, pool.FeeGrowthGlobalB, rewardGrowthsGlobal)
	if err != nil {
		return ModifyLiquidityResult{}, err
	}
	if upperUpdate.LiquidityGross.Cmp(MaxLiquidityGross) > 0 {
		return ModifyLiquidityResult{}, ErrLiquidityGrossOverflow
	}

	// Step 3: growth-inside recompute.
	feeGrowthInsideA := GrowthInside(pool.TickCurrentIndex, position.TickLowerIndex, position.TickUpperIndex, pool.FeeGrowthGlobalA, lowerUpdate.FeeGrowthOutsideA, upperUpdate.FeeGrowthOutsideA)
	feeGrowthInsideB := GrowthInside(pool.TickCurrentIndex, position.TickLowerIndex, position.TickUpperIndex, pool.FeeGrowthGlobalB, lowerUpdate.FeeGrowthOutsideB, upperUpdate.FeeGrowthOutsideB)

	var rewardGrowthsInside [NumRewards]uint128.Uint128
	for i := 0; i < NumRewards; i++ {
		rewardGrowthsInside[i] = GrowthInside(pool.TickCurrentIndex, position.TickLowerIndex, position.TickUpperIndex, rewardGrowthsGlobal[i], lowerUpdate.RewardGrowthsOutside[i], upperUpdate.RewardGrowthsOutside[i])
	}

	// Step 4: position update.
	positionLiquidityPre := position.Liquidity
	nextPositionLiquidity, err := addLiquidityDelta(position.Liquidity, liquidityDelta)
	if err != nil {
		return ModifyLiquidityResult{}, ErrLiquidityUnderflow
	}

	feeOwedA, err := accrueOwed(position.FeeOwedA, feeGrowthInsideA, position.FeeGrowthCheckpointA, positionLiquidityPre)
	if err != nil {
		return ModifyLiquidityResult{}, err
	}
	feeOwedB, err := accrueOwed(position.FeeOwedB, feeGrowthInsideB, position.FeeGrowthCheckpointB, positionLiquidityPre)
	if err != nil {
		return ModifyLiquidityResult{}, err
	}

	var nextRewardPositionInfos [NumRewards]PositionRewardInfo
	for i := 0; i < NumRewards; i++ {
		owed, err := accrueOwed(position.RewardInfos[i].AmountOwed, rewardGrowthsInside[i], position.RewardInfos[i].GrowthInsideCheckpoint, positionLiquidityPre)
		if err != nil {
			return ModifyLiquidityResult{}, err
		}
		nextRewardPositionInfos[i] = PositionRewardInfo{GrowthInsideCheckpoint: rewardGrowthsInside[i], AmountOwed: owed}
	}

	positionUpdate := PositionUpdate{
		Liquidity:            nextPositionLiquidity,
		FeeGrowthCheckpointA: feeGrowthInsideA,
		FeeOwedA:             feeOwedA,
		FeeGrowthCheckpointB: feeGrowthInsideB,
		FeeOwedB:             feeOwedB,
		RewardInfos:          nextRewardPositionInfos,
	}

	// Step 5: pool active-liquidity update.
	nextPoolLiquidity, err := pool.NextLiquidity(position.TickLowerIndex, position.TickUpperIndex, liquidityDelta)
	if err != nil {
		return ModifyLiquidityResult{}, err
	}

	// Step 6: token deltas.
	deltaA, deltaB, err := liquidityTokenDeltas(pool.TickCurrentIndex, pool.SqrtPrice, position.TickLowerIndex, position.TickUpperIndex, liquidityDelta)
	if err != nil {
		return ModifyLiquidityResult{}, err
	}

	return ModifyLiquidityResult{
		NextRewardInfos:   nextRewardInfos,
		TickLowerUpdate:   lowerUpdate,
		TickUpperUpdate:   upperUpdate,
		PositionUpdate:    positionUpdate,
		NextPoolLiquidity: nextPoolLiquidity,
		DeltaA:            deltaA,
		DeltaB:            deltaB,
	}, nil
}

func rewardGrowthsFrom(infos [NumRewards]WhirlpoolRewardInfo) [NumRewards]uint128.Uint128 {
	var out [NumRewards]uint128.Uint128
	for i, r := range infos {
		out[i] = r.GrowthGlobalX64
	}
	return out
}

// GrowthInside implements spec.md §4.3 step 3's below/above split,
// using wrapping u128 subtraction throughout (only differences are
// meaningful — spec.md §3 invariant 4).
func GrowthInside(tickCurrent, tickLower, tickUpper int32, global, lowerOutside, upperOutside uint128.Uint128) uint128.Uint128 {
	var below uint128.Uint128
	if tickCurrent >= tickLower {
		below = lowerOutside
	} else {
		below = wrappingSubU128(global, lowerOutside)
	}

	var above uint128.Uint128
	if tickCurrent < tickUpper {
		above = upperOutside
	} else {
		above = wrappingSubU128(global, upperOutside)
	}

	return wrappingSubU128(wrappingSubU128(global, below), above)
}

// accrueOwed computes floor((growthInside - checkpoint) * liquidity / 2^64)
// (wrapping subtraction) and adds it to currentOwed, per spec.md §4.3
// step 4.
func accrueOwed(currentOwed uint64, growthInside, checkpoint uint128.Uint128, liquidity uint128.Uint128) (uint64, error) {
	delta := wrappingSubU128(growthInside, checkpoint)
	earned, err := mulShiftRightFloor(delta, liquidity)
	if err != nil {
		return 0, err
	}
	if earned.Big().BitLen() > 64 {
		return 0, ErrAmountCalcOverflow
	}
	sum := earned.Big().Uint64() + currentOwed
	return sum, nil
}

// liquidityTokenDeltas computes (Δa, Δb) for a liquidity modification
// at [tickLower, tickUpper) depending on where the current price sits
// relative to the range (spec.md §4.3 step 6).
func liquidityTokenDeltas(tickCurrent int32, sqrtPriceCurrent uint128.Uint128, tickLower, tickUpper int32, liquidityDelta math.Int) (uint128.Uint128, uint128.Uint128, error) {
	roundUp := liquidityDelta.IsPositive()
	absLiquidity, err := i128AbsToU128(liquidityDelta)
	if err != nil {
		return uint128.Zero, uint128.Zero, err
	}

	spLower, err := SqrtPriceFromTick(tickLower)
	if err != nil {
		return uint128.Zero, uint128.Zero, err
	}
	spUpper, err := SqrtPriceFromTick(tickUpper)
	if err != nil {
		return uint128.Zero, uint128.Zero, err
	}

	switch {
	case tickCurrent < tickLower:
		deltaA, err := GetAmountADelta(spLower, spUpper, absLiquidity, roundUp)
		return deltaA, uint128.Zero, err
	case tickCurrent >= tickUpper:
		deltaB, err := GetAmountBDelta(spLower, spUpper, absLiquidity, roundUp)
		return uint128.Zero, deltaB, err
	default:
		deltaA, err := GetAmountADelta(sqrtPriceCurrent, spUpper, absLiquidity, roundUp)
		if err != nil {
			return uint128.Zero, uint128.Zero, err
		}
		deltaB, err := GetAmountBDelta(spLower, sqrtPriceCurrent, absLiquidity, roundUp)
		if err != nil {
			return uint128.Zero, uint128.Zero, err
		}
		return deltaA, deltaB, nil
	}
}

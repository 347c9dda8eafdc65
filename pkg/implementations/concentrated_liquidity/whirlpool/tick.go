package whirlpool

import (
	"math/big"

	"cosmossdk.io/math"
	"lukechampine.com/uint128"
)

// NumRewards is the fixed number of reward emitters a pool tracks
// (spec.md §3).
const NumRewards = 3

// TickArraySize is the number of ticks materialized per tick array
// account (spec.md §3).
const TickArraySize = 88

// Tick holds the state crossing this tick index flips (spec.md §3):
// liquidity deltas and the fee/reward growth recorded "outside" of it
// for the growth-inside attribution formula.
type Tick struct {
	Initialized          bool
	LiquidityNet         math.Int
	LiquidityGross       uint128.Uint128
	FeeGrowthOutsideA     uint128.Uint128
	FeeGrowthOutsideB     uint128.Uint128
	RewardGrowthsOutside [NumRewards]uint128.Uint128
}

// ZeroTick returns the zero-value tick (matches the Rust
// STATIC_ZEROED_MEMORY_MAPPED_TICK used when a dynamic tick array has
// never materialized a given offset).
func ZeroTick() Tick {
	return Tick{LiquidityNet: math.ZeroInt()}
}

// TickUpdate is the delta applied to a tick by a liquidity-modification
// or reward-update operation (spec.md §4.2, §4.4).
type TickUpdate struct {
	Initialized          bool
	LiquidityNet         math.Int
	LiquidityGross       uint128.Uint128
	FeeGrowthOutsideA     uint128.Uint128
	FeeGrowthOutsideB     uint128.Uint128
	RewardGrowthsOutside [NumRewards]uint128.Uint128
}

// Apply overwrites t's mutable fields with u's (the on-chain program
// replaces, it does not merge).
func (t *Tick) Apply(u TickUpdate) {
	t.Initialized = u.Initialized
	t.LiquidityNet = u.LiquidityNet
	t.LiquidityGross = u.LiquidityGross
	t.FeeGrowthOutsideA = u.FeeGrowthOutsideA
	t.FeeGrowthOutsideB = u.FeeGrowthOutsideB
	t.RewardGrowthsOutside = u.RewardGrowthsOutside
}

// NextTickLiquidityUpdate computes the TickUpdate produced by adding
// signedLiquidityDelta at this tick, given whether the tick is the
// position's lower or upper bound and the pool's current global growth
// accumulators (used to seed "outside" growth the first time a tick is
// initialized — spec.md §3 growth-inside invariant). If the update
// drives liquidity_gross back to 0, the tick reverts to uninitialized
// and the zero TickUpdate is returned.
func NextTickLiquidityUpdate(tick Tick, tickIndex, currentTick int32, signedLiquidityDelta math.Int, isUpperTick bool, feeGrowthGlobalA, feeGrowthGlobalB uint128.Uint128, rewardGrowthsGlobal [NumRewards]uint128.Uint128) (TickUpdate, error) {
	liquidityGrossDelta := signedLiquidityDelta.Abs()
	grossDeltaU128, err := i128AbsToU128(liquidityGrossDelta)
	if err != nil {
		return TickUpdate{}, err
	}

	var newLiquidityGross uint128.Uint128
	if signedLiquidityDelta.IsNegative() {
		if tick.LiquidityGross.Cmp(grossDeltaU128) < 0 {
			return TickUpdate{}, ErrLiquidityNetError
		}
		newLiquidityGross = tick.LiquidityGross.Sub(grossDeltaU128)
	} else {
		sum := new(big.Int).Add(tick.LiquidityGross.Big(), grossDeltaU128.Big())
		if sum.BitLen() > 128 {
			return TickUpdate{}, ErrLiquidityGrossOverflow
		}
		newLiquidityGross = uint128.FromBig(sum)
	}

	if newLiquidityGross.IsZero() {
		return TickUpdate{LiquidityNet: math.ZeroInt()}, nil
	}

	feeOutsideA, feeOutsideB := tick.FeeGrowthOutsideA, tick.FeeGrowthOutsideB
	rewardsOutside := tick.RewardGrowthsOutside
	if !tick.Initialized {
		// Per Uniswap-V3-family convention, a tick's "outside" growth is
		// initialized assuming all growth to date occurred below it when
		// it is below or at the current tick, else assuming none did.
		if tickIndex <= currentTick {
			feeOutsideA, feeOutsideB = feeGrowthGlobalA, feeGrowthGlobalB
			rewardsOutside = rewardGrowthsGlobal
		} else {
			feeOutsideA, feeOutsideB = uint128.Zero, uint128.Zero
			rewardsOutside = [NumRewards]uint128.Uint128{}
		}
	}

	liquidityNet := tick.LiquidityNet
	if isUpperTick {
		liquidityNet = liquidityNet.Sub(signedLiquidityDelta)
	} else {
		liquidityNet = liquidityNet.Add(signedLiquidityDelta)
	}

	return TickUpdate{
		Initialized:          true,
		LiquidityNet:         liquidityNet,
		LiquidityGross:       newLiquidityGross,
		FeeGrowthOutsideA:     feeOutsideA,
		FeeGrowthOutsideB:     feeOutsideB,
		RewardGrowthsOutside: rewardsOutside,
	}, nil
}

func i128AbsToU128(v math.Int) (uint128.Uint128, error) {
	if v.IsNegative() {
		return uint128.Zero, ErrNumberCastError
	}
	if v.BigInt().BitLen() > 128 {
		return uint128.Zero, ErrLiquidityOverflow
	}
	return uint128.FromBig(v.BigInt()), nil
}

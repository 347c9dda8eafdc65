package whirlpool

import (
	"testing"

	"cosmossdk.io/math"
	"lukechampine.com/uint128"
)

func TestZeroTick(t *testing.T) {
	tick := ZeroTick()
	if tick.Initialized {
		t.Errorf("zero tick should not be initialized")
	}
	if !tick.LiquidityNet.IsZero() {
		t.Errorf("zero tick liquidity net should be zero, got %s", tick.LiquidityNet)
	}
}

func TestTickApply(t *testing.T) {
	var tick Tick
	update := TickUpdate{
		Initialized:    true,
		LiquidityNet:   math.NewInt(100),
		LiquidityGross: uint128.From64(100),
	}
	tick.Apply(update)
	if !tick.Initialized {
		t.Errorf("expected tick to be initialized after apply")
	}
	if tick.LiquidityNet.Int64() != 100 {
		t.Errorf("expected liquidity net 100, got %s", tick.LiquidityNet)
	}
	if tick.LiquidityGross.Cmp(uint128.From64(100)) != 0 {
		t.Errorf("expected liquidity gross 100, got %s", tick.LiquidityGross)
	}
}

func TestNextTickLiquidityUpdateSeedsOutsideGrowth(t *testing.T) {
	feeGrowthGlobalA := uint128.From64(1000)
	feeGrowthGlobalB := uint128.From64(2000)
	var rewardsGlobal [NumRewards]uint128.Uint128
	rewardsGlobal[0] = uint128.From64(50)

	t.Run("tick at or below current seeds global growth", func(t *testing.T) {
		update, err := NextTickLiquidityUpdate(ZeroTick(), -10, 0, math.NewInt(100), false, feeGrowthGlobalA, feeGrowthGlobalB, rewardsGlobal)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if update.FeeGrowthOutsideA.Cmp(feeGrowthGlobalA) != 0 {
			t.Errorf("expected fee growth outside A to seed from global, got %s", update.FeeGrowthOutsideA)
		}
		if update.FeeGrowthOutsideB.Cmp(feeGrowthGlobalB) != 0 {
			t.Errorf("expected fee growth outside B to seed from global, got %s", update.FeeGrowthOutsideB)
		}
		if update.RewardGrowthsOutside[0].Cmp(rewardsGlobal[0]) != 0 {
			t.Errorf("expected reward growth outside to seed from global")
		}
	})

	t.Run("tick above current seeds zero growth", func(t *testing.T) {
		update, err := NextTickLiquidityUpdate(ZeroTick(), 10, 0, math.NewInt(100), false, feeGrowthGlobalA, feeGrowthGlobalB, rewardsGlobal)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !update.FeeGrowthOutsideA.IsZero() {
			t.Errorf("expected fee growth outside A to be zero, got %s", update.FeeGrowthOutsideA)
		}
		if !update.FeeGrowthOutsideB.IsZero() {
			t.Errorf("expected fee growth outside B to be zero, got %s", update.FeeGrowthOutsideB)
		}
	})

	t.Run("already-initialized tick keeps its own outside growth", func(t *testing.T) {
		existing := Tick{
			Initialized:       true,
			FeeGrowthOutsideA: uint128.From64(7),
			FeeGrowthOutsideB: uint128.From64(8),
		}
		update, err := NextTickLiquidityUpdate(existing, -10, 0, math.NewInt(100), false, feeGrowthGlobalA, feeGrowthGlobalB, rewardsGlobal)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if update.FeeGrowthOutsideA.Cmp(uint128.From64(7)) != 0 {
			t.Errorf("expected existing fee growth outside A to be preserved, got %s", update.FeeGrowthOutsideA)
		}
	})
}

func TestNextTickLiquidityUpdateSignsLiquidityNet(t *testing.T) {
	t.Run("lower tick adds signed delta", func(t *testing.T) {
		update, err := NextTickLiquidityUpdate(ZeroTick(), -10, 0, math.NewInt(100), false, uint128.Zero, uint128.Zero, [NumRewards]uint128.Uint128{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if update.LiquidityNet.Int64() != 100 {
			t.Errorf("expected liquidity net +100 for lower tick, got %s", update.LiquidityNet)
		}
	})

	t.Run("upper tick subtracts signed delta", func(t *testing.T) {
		update, err := NextTickLiquidityUpdate(ZeroTick(), 10, 0, math.NewInt(100), true, uint128.Zero, uint128.Zero, [NumRewards]uint128.Uint128{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if update.LiquidityNet.Int64() != -100 {
			t.Errorf("expected liquidity net -100 for upper tick, got %s", update.LiquidityNet)
		}
	})
}

func TestNextTickLiquidityUpdateGrossDelta(t *testing.T) {
	t.Run("positive delta adds to gross", func(t *testing.T) {
		existing := Tick{Initialized: true, LiquidityGross: uint128.From64(500)}
		update, err := NextTickLiquidityUpdate(existing, -10, 0, math.NewInt(100), false, uint128.Zero, uint128.Zero, [NumRewards]uint128.Uint128{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if update.LiquidityGross.Cmp(uint128.From64(600)) != 0 {
			t.Errorf("expected gross 600, got %s", update.LiquidityGross)
		}
	})

	t.Run("negative delta subtracts from gross", func(t *testing.T) {
		existing := Tick{Initialized: true, LiquidityGross: uint128.From64(500)}
		update, err := NextTickLiquidityUpdate(existing, -10, 0, math.NewInt(-100), false, uint128.Zero, uint128.Zero, [NumRewards]uint128.Uint128{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if update.LiquidityGross.Cmp(uint128.From64(400)) != 0 {
			t.Errorf("expected gross 400, got %s", update.LiquidityGross)
		}
	})

	t.Run("negative delta larger than gross errors", func(t *testing.T) {
		existing := Tick{Initialized: true, LiquidityGross: uint128.From64(50)}
		_, err := NextTickLiquidityUpdate(existing, -10, 0, math.NewInt(-100), false, uint128.Zero, uint128.Zero, [NumRewards]uint128.Uint128{})
		if err != ErrLiquidityNetError {
			t.Errorf("expected ErrLiquidityNetError, got %v", err)
		}
	})
}

func TestNextTickLiquidityUpdateDeinitializesOnZeroGross(t *testing.T) {
	existing := Tick{
		Initialized:       true,
		LiquidityGross:    uint128.From64(100),
		FeeGrowthOutsideA: uint128.From64(7),
	}
	update, err := NextTickLiquidityUpdate(existing, -10, 0, math.NewInt(-100), false, uint128.Zero, uint128.Zero, [NumRewards]uint128.Uint128{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if update.Initialized {
		t.Errorf("expected tick to revert to uninitialized when gross hits zero")
	}
	if !update.LiquidityGross.IsZero() {
		t.Errorf("expected zero gross, got %s", update.LiquidityGross)
	}
	if !update.FeeGrowthOutsideA.IsZero() {
		t.Errorf("expected de-init to discard outside growth, got %s", update.FeeGrowthOutsideA)
	}
	if !update.LiquidityNet.IsZero() {
		t.Errorf("expected zero liquidity net, got %s", update.LiquidityNet)
	}
}

func TestI128AbsToU128(t *testing.T) {
	t.Run("positive value converts directly", func(t *testing.T) {
		got, err := i128AbsToU128(math.NewInt(42))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Cmp(uint128.From64(42)) != 0 {
			t.Errorf("got %s, want 42", got)
		}
	})

	t.Run("negative value errors", func(t *testing.T) {
		if _, err := i128AbsToU128(math.NewInt(-1)); err != ErrNumberCastError {
			t.Errorf("expected ErrNumberCastError, got %v", err)
		}
	})
}

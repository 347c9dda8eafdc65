package whirlpool

import (
	"testing"

	"lukechampine.com/uint128"
)

func TestGetAmountADeltaOrdersBounds(t *testing.T) {
	spLower, err := SqrtPriceFromTick(-1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	spUpper, err := SqrtPriceFromTick(1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	liquidity := uint128.From64(1_000_000)

	forward, err := GetAmountADelta(spLower, spUpper, liquidity, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	reversed, err := GetAmountADelta(spUpper, spLower, liquidity, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if forward.Cmp(reversed) != 0 {
		t.Errorf("expected order-independent result, got %s vs %s", forward, reversed)
	}
}

func TestGetAmountADeltaZeroLowerBoundErrors(t *testing.T) {
	spUpper, _ := SqrtPriceFromTick(1000)
	if _, err := GetAmountADelta(uint128.Zero, spUpper, uint128.From64(1), true); err != ErrDivideByZero {
		t.Errorf("expected ErrDivideByZero, got %v", err)
	}
}

func TestGetAmountADeltaRoundingDirection(t *testing.T) {
	spLower, _ := SqrtPriceFromTick(-1000)
	spUpper, _ := SqrtPriceFromTick(1000)
	liquidity := uint128.From64(7)

	ceil, err := GetAmountADelta(spLower, spUpper, liquidity, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	floor, err := GetAmountADelta(spLower, spUpper, liquidity, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ceil.Cmp(floor) < 0 {
		t.Errorf("expected ceil >= floor, got ceil=%s floor=%s", ceil, floor)
	}
}

func TestGetAmountBDeltaRoundingDirection(t *testing.T) {
	spLower, _ := SqrtPriceFromTick(-1000)
	spUpper, _ := SqrtPriceFromTick(1000)
	liquidity := uint128.From64(7)

	ceil, err := GetAmountBDelta(spLower, spUpper, liquidity, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	floor, err := GetAmountBDelta(spLower, spUpper, liquidity, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ceil.Cmp(floor) < 0 {
		t.Errorf("expected ceil >= floor, got ceil=%s floor=%s", ceil, floor)
	}
}

func TestGetNextSqrtPriceFromARoundingUpZeroAmountIsNoOp(t *testing.T) {
	sp, _ := SqrtPriceFromTick(0)
	got, err := GetNextSqrtPriceFromARoundingUp(sp, uint128.From64(1_000_000), uint128.Zero, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Cmp(sp) != 0 {
		t.Errorf("expected unchanged sqrt price for zero amount, got %s", got)
	}
}

func TestGetNextSqrtPriceFromARoundingUpDirection(t *testing.T) {
	sp, _ := SqrtPriceFromTick(0)
	liquidity := uint128.From64(1_000_000_000)
	amountA := uint128.From64(1000)

	added, err := GetNextSqrtPriceFromARoundingUp(sp, liquidity, amountA, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if added.Cmp(sp) >= 0 {
		t.Errorf("adding token A should decrease the sqrt price, got %s from %s", added, sp)
	}

	removed, err := GetNextSqrtPriceFromARoundingUp(sp, liquidity, amountA, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed.Cmp(sp) <= 0 {
		t.Errorf("removing token A should increase the sqrt price, got %s from %s", removed, sp)
	}
}

func TestGetNextSqrtPriceFromBRoundingDownDirection(t *testing.T) {
	sp, _ := SqrtPriceFromTick(0)
	liquidity := uint128.From64(1_000_000_000)
	amountB := uint128.From64(1000)

	added, err := GetNextSqrtPriceFromBRoundingDown(sp, liquidity, amountB, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if added.Cmp(sp) <= 0 {
		t.Errorf("adding token B should increase the sqrt price, got %s from %s", added, sp)
	}

	removed, err := GetNextSqrtPriceFromBRoundingDown(sp, liquidity, amountB, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed.Cmp(sp) >= 0 {
		t.Errorf("removing token B should decrease the sqrt price, got %s from %s", removed, sp)
	}
}

func TestGetNextSqrtPriceFromBRoundingDownZeroLiquidityErrors(t *testing.T) {
	sp, _ := SqrtPriceFromTick(0)
	if _, err := GetNextSqrtPriceFromBRoundingDown(sp, uint128.Zero, uint128.From64(1), true); err != ErrDivideByZero {
		t.Errorf("expected ErrDivideByZero, got %v", err)
	}
}

func TestComputeSwapStepExactInPartialFill(t *testing.T) {
	sp, _ := SqrtPriceFromTick(0)
	spTarget, _ := SqrtPriceFromTick(-100)
	liquidity := uint128.From64(1_000_000_000)

	result, err := ComputeSwapStep(true, true, sp, spTarget, liquidity, uint128.From64(10), 3000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.AmountIn.IsZero() {
		t.Errorf("expected nonzero amount in")
	}
	total := result.AmountIn.Add(result.FeeAmount)
	if total.Cmp(uint128.From64(10)) > 0 {
		t.Errorf("amount in plus fee should not exceed amount remaining, got %s", total)
	}
}

func TestComputeSwapStepExactInReachesTarget(t *testing.T) {
	sp, _ := SqrtPriceFromTick(0)
	spTarget, _ := SqrtPriceFromTick(-100)
	liquidity := uint128.From64(1_000)

	result, err := ComputeSwapStep(true, true, sp, spTarget, liquidity, uint128.From64(1_000_000_000), 3000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.SqrtPriceNext.Cmp(spTarget) != 0 {
		t.Errorf("expected to reach target price with abundant input, got %s want %s", result.SqrtPriceNext, spTarget)
	}
}

func TestComputeSwapStepExactOutReachesTarget(t *testing.T) {
	sp, _ := SqrtPriceFromTick(0)
	spTarget, _ := SqrtPriceFromTick(100)
	liquidity := uint128.From64(1_000)

	result, err := ComputeSwapStep(false, false, sp, spTarget, liquidity, uint128.From64(1_000_000_000), 3000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.SqrtPriceNext.Cmp(spTarget) != 0 {
		t.Errorf("expected to reach target price with abundant output demand, got %s want %s", result.SqrtPriceNext, spTarget)
	}
	if result.FeeAmount.IsZero() {
		t.Errorf("expected a nonzero fee on the input side")
	}
}

func TestComputeSwapStepExactOutPartialFill(t *testing.T) {
	sp, _ := SqrtPriceFromTick(0)
	spTarget, _ := SqrtPriceFromTick(100)
	liquidity := uint128.From64(1_000_000_000)

	result, err := ComputeSwapStep(false, false, sp, spTarget, liquidity, uint128.From64(10), 3000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.AmountOut.Cmp(uint128.From64(10)) != 0 {
		t.Errorf("expected exact requested amount out to be filled, got %s", result.AmountOut)
	}
	if result.SqrtPriceNext.Cmp(spTarget) == 0 {
		t.Errorf("expected partial fill to stop short of the target price")
	}
}

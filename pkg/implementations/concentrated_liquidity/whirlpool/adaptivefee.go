package whirlpool

import (
	"math/big"

	"lukechampine.com/uint128"
)

// VolatilityAccumulatorScaleFactor scales a tick-group distance into the
// same units as volatility_accumulator (spec.md §4.5).
const VolatilityAccumulatorScaleFactor = 10_000

// MaxReductionFactor is the upper bound on AdaptiveFeeConstants.ReductionFactor.
const MaxReductionFactor = 10_000

// AdaptiveFeeControlFactorDenom is the fixed denominator in the
// adaptive fee rate formula (spec.md §4.5).
const AdaptiveFeeControlFactorDenom = 100_000

// FeeRateHardLimit is the absolute ceiling on any total (static +
// adaptive) fee rate, in millionths (10%). spec.md §4.5: "max fee rate
// should be controlled by max_volatility_accumulator, so this is a hard
// limit for safety."
const FeeRateHardLimit = 100_000

// AdaptiveFeeConstants is a pool's adaptive-fee configuration, validated
// once at initialization and otherwise immutable (spec.md §4.5,
// grounded on AdaptiveFeeTier).
type AdaptiveFeeConstants struct {
	FilterPeriod             uint16
	DecayPeriod              uint16
	ReductionFactor          uint16
	AdaptiveFeeControlFactor uint32
	MaxVolatilityAccumulator uint32
	TickGroupSize            uint16
	MajorSwapThresholdTicks  uint16
}

// ValidateAdaptiveFeeConstants checks the constraints spec.md §4.5 lists
// (grounded on AdaptiveFeeTier::initialize's field validation).
func ValidateAdaptiveFeeConstants(c AdaptiveFeeConstants) error {
	if !(c.FilterPeriod < c.DecayPeriod) {
		return ErrInvalidAdaptiveFeeConstants
	}
	if c.DecayPeriod == 0 {
		return ErrInvalidAdaptiveFeeConstants
	}
	if c.ReductionFactor > MaxReductionFactor {
		return ErrInvalidAdaptiveFeeConstants
	}
	if c.AdaptiveFeeControlFactor > AdaptiveFeeControlFactorDenom {
		return ErrInvalidAdaptiveFeeConstants
	}
	if c.TickGroupSize == 0 {
		return ErrInvalidAdaptiveFeeConstants
	}
	return nil
}

// AdaptiveFeeVariables is a pool's mutable adaptive-fee state, carried
// between swaps (spec.md §4.5).
type AdaptiveFeeVariables struct {
	LastReferenceUpdateTimestamp uint64
	LastMajorSwapTimestamp       uint64
	VolatilityReference          uint32
	TickGroupIndexReference      int32
	VolatilityAccumulator        uint32
}

// updateReference runs spec.md §4.5 step 1: at the start of each swap,
// decide whether the volatility reference resets, decays, or holds.
func (v *AdaptiveFeeVariables) updateReference(tickGroupIndex int32, timestamp uint64, c AdaptiveFeeConstants) {
	if timestamp < v.LastReferenceUpdateTimestamp {
		return
	}
	elapsed := timestamp - v.LastReferenceUpdateTimestamp

	switch {
	case elapsed < uint64(c.FilterPeriod):
		// still within the filter period: hold the reference as-is.
	case elapsed < uint64(c.DecayPeriod):
		v.VolatilityReference = uint32((uint64(v.VolatilityAccumulator) * uint64(c.ReductionFactor)) / VolatilityAccumulatorScaleFactor)
		v.TickGroupIndexReference = tickGroupIndex
	default:
		v.VolatilityReference = 0
		v.TickGroupIndexReference = tickGroupIndex
	}

	v.LastReferenceUpdateTimestamp = timestamp
}

// updateVolatilityAccumulator runs spec.md §4.5 step 2: on crossing a
// tick-group boundary, grow the accumulator by the distance traveled
// from the reference group, clamped to MaxVolatilityAccumulator.
func (v *AdaptiveFeeVariables) updateVolatilityAccumulator(tickGroupIndex int32, c AdaptiveFeeConstants) {
	delta := tickGroupIndex - v.TickGroupIndexReference
	if delta < 0 {
		delta = -delta
	}
	crossed := uint64(delta) * VolatilityAccumulatorScaleFactor
	next := uint64(v.VolatilityReference) + crossed
	if next > uint64(c.MaxVolatilityAccumulator) {
		next = uint64(c.MaxVolatilityAccumulator)
	}
	v.VolatilityAccumulator = uint32(next)
}

// FeeRateManager tracks the per-swap adaptive-fee walk state: the
// current tick group index and, when adaptive fees are configured, the
// constants/variables pair they evolve (spec.md §4.5, grounded on
// FeeRateManager).
type FeeRateManager struct {
	aToB            bool
	staticFeeRate   uint32
	tickGroupIndex  int32
	adaptive        bool
	constants       AdaptiveFeeConstants
	variables       AdaptiveFeeVariables
}

// NewFeeRateManager builds a FeeRateManager for one swap. adaptiveFee is
// nil for pools without an adaptive-fee tier, in which case the manager
// always returns staticFeeRate unmodified.
func NewFeeRateManager(aToB bool, currentTickIndex int32, timestamp uint64, staticFeeRate uint32, constants *AdaptiveFeeConstants, variables AdaptiveFeeVariables) *FeeRateManager {
	if constants == nil {
		return &FeeRateManager{aToB: aToB, staticFeeRate: staticFeeRate}
	}

	tickGroupIndex := floorDivision(currentTickIndex, int32(constants.TickGroupSize))
	variables.updateReference(tickGroupIndex, timestamp, *constants)

	return &FeeRateManager{
		aToB:           aToB,
		staticFeeRate:  staticFeeRate,
		tickGroupIndex: tickGroupIndex,
		adaptive:       true,
		constants:      *constants,
		variables:      variables,
	}
}

// UpdateVolatilityAccumulator re-derives the volatility accumulator from
// the manager's current tick-group position. A no-op for static-fee
// pools.
func (m *FeeRateManager) UpdateVolatilityAccumulator() {
	if !m.adaptive {
		return
	}
	m.variables.updateVolatilityAccumulator(m.tickGroupIndex, m.constants)
}

// AdvanceTickGroup moves the tracked tick group one step in the swap
// direction (decreasing for a_to_b, increasing otherwise).
func (m *FeeRateManager) AdvanceTickGroup() {
	if !m.adaptive {
		return
	}
	if m.aToB {
		m.tickGroupIndex--
	} else {
		m.tickGroupIndex++
	}
}

// TotalFeeRate returns the effective fee rate (millionths) for the
// current step: the static rate for a non-adaptive pool, or
// static+adaptive clamped to FeeRateHardLimit (spec.md §4.5 step 3).
func (m *FeeRateManager) TotalFeeRate() uint32 {
	if !m.adaptive {
		return m.staticFeeRate
	}
	total := m.staticFeeRate + computeAdaptiveFeeRate(m.constants, m.variables)
	if total > FeeRateHardLimit {
		return FeeRateHardLimit
	}
	return total
}

// BoundedSqrtPriceTarget clamps sqrtPrice to the current tick group's
// boundary (spec.md §4.5 step 4), so a swap step never crosses more
// than one tick group before the fee rate is re-evaluated. isBoundary
// reports whether the tick-group edge (rather than sqrtPrice itself)
// is the returned value, so the caller knows whether reaching it means
// the group should advance. A no-op for static-fee pools.
func (m *FeeRateManager) BoundedSqrtPriceTarget(sqrtPrice uint128.Uint128) (bounded uint128.Uint128, isBoundary bool, err error) {
	if !m.adaptive {
		return sqrtPrice, false, nil
	}

	var boundaryTick int32
	if m.aToB {
		boundaryTick = m.tickGroupIndex * int32(m.constants.TickGroupSize)
	} else {
		boundaryTick = m.tickGroupIndex*int32(m.constants.TickGroupSize) + int32(m.constants.TickGroupSize)
	}
	if boundaryTick < MinTickIndex {
		boundaryTick = MinTickIndex
	}
	if boundaryTick > MaxTickIndex {
		boundaryTick = MaxTickIndex
	}

	boundarySqrtPrice, err := SqrtPriceFromTick(boundaryTick)
	if err != nil {
		return sqrtPrice, false, err
	}

	if m.aToB {
		if sqrtPrice.Cmp(boundarySqrtPrice) > 0 {
			return sqrtPrice, false, nil
		}
		return boundarySqrtPrice, true, nil
	}
	if sqrtPrice.Cmp(boundarySqrtPrice) < 0 {
		return sqrtPrice, false, nil
	}
	return boundarySqrtPrice, true, nil
}

// NextVariables returns the adaptive-fee variables to persist after the
// swap, unchanged for static-fee pools.
func (m *FeeRateManager) NextVariables() AdaptiveFeeVariables {
	return m.variables
}

// computeAdaptiveFeeRate implements spec.md §4.5's adaptive fee formula:
// ceil(control_factor * (volatility_accumulator * tick_group_size)^2 /
// (100000 * 10000^2)), clamped to FeeRateHardLimit. The numerator can
// exceed 64 bits (crossed^2 alone can approach 2^64), so it is computed
// with a big.Int intermediate, matching the 256-bit-safe-intermediate
// convention used throughout this package's fixed-point math.
func computeAdaptiveFeeRate(c AdaptiveFeeConstants, v AdaptiveFeeVariables) uint32 {
	crossed := uint64(v.VolatilityAccumulator) * uint64(c.TickGroupSize)
	squared := new(big.Int).Mul(big.NewInt(int64(crossed)), big.NewInt(int64(crossed)))

	num := new(big.Int).Mul(big.NewInt(int64(c.AdaptiveFeeControlFactor)), squared)
	denom := big.NewInt(int64(AdaptiveFeeControlFactorDenom) * VolatilityAccumulatorScaleFactor * VolatilityAccumulatorScaleFactor)

	quo, rem := new(big.Int), new(big.Int)
	quo.QuoRem(num, denom, rem)
	if rem.Sign() != 0 {
		quo.Add(quo, big.NewInt(1))
	}

	if quo.Cmp(big.NewInt(FeeRateHardLimit)) > 0 {
		return FeeRateHardLimit
	}
	return uint32(quo.Int64())
}

// floorDivision is integer division rounding toward negative infinity,
// the tick-to-group mapping spec.md §4.5 requires (Go's / truncates
// toward zero, which is wrong for negative tick indexes).
func floorDivision(a, b int32) int32 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

package whirlpool

import (
	"lukechampine.com/uint128"

	"github.com/gagliardetto/solana-go"
)

// FullRangeOnlyTickSpacingThreshold is the tick spacing at or above
// which a pool only accepts full-range positions (spec.md §4.2).
const FullRangeOnlyTickSpacingThreshold = 1 << 15

// PositionState classifies a position by what it currently holds, per
// spec.md §4.2's lifecycle ("Empty/Funded/Dust").
type PositionState int

const (
	PositionEmpty PositionState = iota
	PositionFunded
	PositionDust
)

// PositionRewardInfo is a position's checkpoint against one of the
// pool's reward emitters.
type PositionRewardInfo struct {
	GrowthInsideCheckpoint uint128.Uint128
	AmountOwed             uint64
}

// Position is an owner's liquidity claim over [TickLowerIndex,
// TickUpperIndex) in a pool, plus its fee/reward checkpoints (spec.md
// §3).
type Position struct {
	Whirlpool      solana.PublicKey
	PositionMint   solana.PublicKey
	Liquidity      uint128.Uint128
	TickLowerIndex int32
	TickUpperIndex int32

	FeeGrowthCheckpointA uint128.Uint128
	FeeOwedA             uint64
	FeeGrowthCheckpointB uint128.Uint128
	FeeOwedB             uint64

	RewardInfos [NumRewards]PositionRewardInfo

	LockInfo *LockConfig
}

// PositionUpdate is the full replacement state a liquidity or
// fee/reward collection operation produces for a position (the
// program always overwrites, never merges, matching
// Position::update).
type PositionUpdate struct {
	Liquidity            uint128.Uint128
	FeeGrowthCheckpointA uint128.Uint128
	FeeOwedA             uint64
	FeeGrowthCheckpointB uint128.Uint128
	FeeOwedB             uint64
	RewardInfos          [NumRewards]PositionRewardInfo
}

// Apply overwrites p's mutable fields with u's.
func (p *Position) Apply(u PositionUpdate) {
	p.Liquidity = u.Liquidity
	p.FeeGrowthCheckpointA = u.FeeGrowthCheckpointA
	p.FeeOwedA = u.FeeOwedA
	p.FeeGrowthCheckpointB = u.FeeGrowthCheckpointB
	p.FeeOwedB = u.FeeOwedB
	p.RewardInfos = u.RewardInfos
}

// IsEmpty reports whether a position holds no liquidity and owes
// nothing — the only state close_position will accept (spec.md §4.2).
func (p *Position) IsEmpty() bool {
	if !p.Liquidity.IsZero() {
		return false
	}
	if p.FeeOwedA != 0 || p.FeeOwedB != 0 {
		return false
	}
	for _, r := range p.RewardInfos {
		if r.AmountOwed != 0 {
			return false
		}
	}
	return true
}

// State classifies the position for the Empty/Funded/Dust lifecycle
// spec.md §4.2 describes: Dust is liquidity below the protocol's
// minimum meaningful amount (zero net token output at current price),
// which this core leaves to the caller to detect via ΔA/ΔB == 0 on a
// full withdrawal quote — State reports Empty when IsEmpty holds (no
// liquidity and nothing owed) and Funded otherwise, and lets the caller
// layer Dust on top using that quote.
func (p *Position) State() PositionState {
	if p.IsEmpty() {
		return PositionEmpty
	}
	return PositionFunded
}

// OpenPosition validates and records a new position's tick range
// against the owning pool's tick spacing and full-range-only
// constraint (spec.md §4.2, grounded on Position::open_position).
func OpenPosition(whirlpoolKey solana.PublicKey, tickSpacing uint16, positionMint solana.PublicKey, tickLowerIndex, tickUpperIndex int32) (*Position, error) {
	if !isUsableTick(tickLowerIndex, tickSpacing) || !isUsableTick(tickUpperIndex, tickSpacing) {
		return nil, ErrInvalidTickIndex
	}
	if tickLowerIndex >= tickUpperIndex {
		return nil, ErrInvalidTickIndex
	}
	if tickSpacing >= FullRangeOnlyTickSpacingThreshold {
		lo, hi := fullRangeIndexes(tickSpacing)
		if tickLowerIndex != lo || tickUpperIndex != hi {
			return nil, ErrFullRangeOnlyPool
		}
	}
	return &Position{
		Whirlpool:      whirlpoolKey,
		PositionMint:   positionMint,
		TickLowerIndex: tickLowerIndex,
		TickUpperIndex: tickUpperIndex,
	}, nil
}

// ResetPositionRange re-targets an existing (empty) position onto a new
// tick range, the "reposition" operation spec.md's supplemented
// feature set adds (grounded on instructions/reset_position_range.rs
// and v2/reposition_liquidity_v2.rs): it is only legal on an empty,
// unlocked position, and the new range must differ from the old one.
func (p *Position) ResetPositionRange(tickSpacing uint16, newLowerIndex, newUpperIndex int32) error {
	if p.LockInfo != nil {
		return ErrOperationNotAllowedOnLockedPosition
	}
	if !p.IsEmpty() {
		return ErrClosePositionNotEmpty
	}
	if !isUsableTick(newLowerIndex, tickSpacing) || !isUsableTick(newUpperIndex, tickSpacing) {
		return ErrInvalidTickIndex
	}
	if newLowerIndex >= newUpperIndex {
		return ErrInvalidTickIndex
	}
	if newLowerIndex == p.TickLowerIndex && newUpperIndex == p.TickUpperIndex {
		return ErrSameTickRangeNotAllowed
	}
	p.TickLowerIndex = newLowerIndex
	p.TickUpperIndex = newUpperIndex
	return nil
}

// ClosePosition validates that an empty, unlocked position can be
// closed (spec.md §4.2).
func (p *Position) ClosePosition() error {
	if p.LockInfo != nil {
		return ErrOperationNotAllowedOnLockedPosition
	}
	if !p.IsEmpty() {
		return ErrClosePositionNotEmpty
	}
	return nil
}

func isUsableTick(tickIndex int32, tickSpacing uint16) bool {
	if tickIndex < MinTickIndex || tickIndex > MaxTickIndex {
		return false
	}
	return tickIndex%int32(tickSpacing) == 0
}

func fullRangeIndexes(tickSpacing uint16) (int32, int32) {
	span := (int32(MaxTickIndex) / int32(tickSpacing)) * int32(tickSpacing)
	return -span, span
}

// LockType distinguishes a position lock that can never be removed
// from one with a defined unlock time (spec.md supplemented feature,
// grounded on instructions/lock_position.rs + state LockConfig).
type LockType int

const (
	LockPermanent LockType = iota
	LockTemporary
)

// LockConfig records that a position has been locked against further
// liquidity decrease/close, mirroring the on-chain LockConfig account.
type LockConfig struct {
	Position      solana.PublicKey
	PositionOwner solana.PublicKey
	Whirlpool     solana.PublicKey
	LockedAt      uint64
	LockType      LockType
}

// LockPosition locks a non-empty, not-already-locked position.
func (p *Position) LockPosition(owner solana.PublicKey, lockedAt uint64, lockType LockType) error {
	if p.LockInfo != nil {
		return ErrOperationNotAllowedOnLockedPosition
	}
	if p.Liquidity.IsZero() {
		return ErrPositionNotLockable
	}
	p.LockInfo = &LockConfig{
		Position:      p.PositionMint,
		PositionOwner: owner,
		Whirlpool:     p.Whirlpool,
		LockedAt:      lockedAt,
		LockType:      lockType,
	}
	return nil
}

// RequireLiquidityMutable returns an error if the position is locked
// in a way that forbids decreasing liquidity or closing (spec.md §4.2:
// locked positions may still collect fees/rewards but cannot shrink or
// close).
func (p *Position) RequireLiquidityMutable() error {
	if p.LockInfo != nil {
		return ErrOperationNotAllowedOnLockedPosition
	}
	return nil
}

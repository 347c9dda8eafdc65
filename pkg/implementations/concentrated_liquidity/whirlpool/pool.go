package whirlpool

import (
	"math/big"

	"cosmossdk.io/math"
	"github.com/gagliardetto/solana-go"
	"lukechampine.com/uint128"
)

// MaxFeeRate is the largest static (base) fee rate a pool may carry, in
// millionths (spec.md §4.4: FEE_RATE_HARD_LIMIT applies to the
// effective adaptive rate; MaxFeeRate bounds the configured base).
const MaxFeeRate = 100_000

// MaxProtocolFeeRate is the largest share of the swap fee a pool may
// route to the protocol treasury, in ten-thousandths.
const MaxProtocolFeeRate = 2_500

// WhirlpoolRewardInfo is one of a pool's (up to NumRewards) liquidity
// mining emitters.
type WhirlpoolRewardInfo struct {
	Mint                  solana.PublicKey
	Vault                 solana.PublicKey
	Authority             solana.PublicKey
	EmissionsPerSecondX64 uint128.Uint128
	GrowthGlobalX64       uint128.Uint128
}

// Initialized reports whether this reward slot has an emitter
// configured (the zero mint means unused).
func (r WhirlpoolRewardInfo) Initialized() bool {
	return r.Mint != solana.PublicKey{}
}

// Pool is the aggregate CLAMM market state for one token-A/token-B
// pair at one tick spacing (spec.md §3). Field layout and naming
// follow the account this mirrors on-chain (see codec.go).
type Pool struct {
	Key                solana.PublicKey
	WhirlpoolsConfig   solana.PublicKey
	TokenMintA         solana.PublicKey
	TokenMintB         solana.PublicKey
	TokenVaultA        solana.PublicKey
	TokenVaultB        solana.PublicKey
	TickSpacing        uint16
	FeeTierIndex       uint16

	FeeRate         uint32
	ProtocolFeeRate uint16

	Liquidity        uint128.Uint128
	SqrtPrice        uint128.Uint128
	TickCurrentIndex int32

	ProtocolFeeOwedA uint64
	ProtocolFeeOwedB uint64
	FeeGrowthGlobalA uint128.Uint128
	FeeGrowthGlobalB uint128.Uint128

	RewardLastUpdatedTimestamp uint64
	RewardInfos                [NumRewards]WhirlpoolRewardInfo

	TradeEnableTimestamp uint64
}

// RewardGrowthsGlobal returns the global reward growth accumulators as
// a plain array, for use by the growth-inside fee/reward attribution
// math.
func (p *Pool) RewardGrowthsGlobal() [NumRewards]uint128.Uint128 {
	var out [NumRewards]uint128.Uint128
	for i, r := range p.RewardInfos {
		out[i] = r.GrowthGlobalX64
	}
	return out
}

// NextRewardInfos computes the pool's reward-growth accumulators as of
// nextTimestamp, a no-op if there is no liquidity or no elapsed time
// (spec.md §4.4, grounded on next_whirlpool_reward_infos). An
// individual reward's growth delta calculation that would overflow is
// defined to contribute zero rather than fail the whole update, so one
// misconfigured emitter cannot halt the others.
func (p *Pool) NextRewardInfos(nextTimestamp uint64) ([NumRewards]WhirlpoolRewardInfo, error) {
	if nextTimestamp < p.RewardLastUpdatedTimestamp {
		return p.RewardInfos, ErrInvalidTimestamp
	}
	if p.Liquidity.IsZero() || nextTimestamp == p.RewardLastUpdatedTimestamp {
		return p.RewardInfos, nil
	}

	next := p.RewardInfos
	timeDelta := nextTimestamp - p.RewardLastUpdatedTimestamp
	for i := range next {
		if !next[i].Initialized() {
			continue
		}
		delta, err := mulDivFloor(uint128.From64(timeDelta), next[i].EmissionsPerSecondX64, p.Liquidity.Big())
		if err != nil {
			delta = uint128.Zero
		}
		next[i].GrowthGlobalX64 = wrappingAddU128(next[i].GrowthGlobalX64, delta)
	}
	return next, nil
}

// NextLiquidity computes the pool's global liquidity after a position
// modification at [tickLowerIndex, tickUpperIndex) applies
// liquidityDelta, which only affects global liquidity when the pool's
// current tick is inside the position's range (spec.md §4.3, grounded
// on next_whirlpool_liquidity).
func (p *Pool) NextLiquidity(tickLowerIndex, tickUpperIndex int32, liquidityDelta math.Int) (uint128.Uint128, error) {
	if p.TickCurrentIndex < tickLowerIndex || p.TickCurrentIndex >= tickUpperIndex {
		return p.Liquidity, nil
	}
	return addLiquidityDelta(p.Liquidity, liquidityDelta)
}

// addLiquidityDelta applies a signed i128 delta to an unsigned u128
// liquidity value, erroring on underflow/overflow (spec.md §3: pool
// and tick liquidity are stored as u128, deltas are signed i128).
func addLiquidityDelta(liquidity uint128.Uint128, delta math.Int) (uint128.Uint128, error) {
	sum := new(big.Int).Add(liquidity.Big(), delta.BigInt())
	if sum.Sign() < 0 || sum.BitLen() > 128 {
		return uint128.Zero, ErrLiquidityNetError
	}
	return uint128.FromBig(sum), nil
}

// RequireTradeEnabled returns an error if swaps are not yet permitted
// (spec.md supplemented feature: pools may delay trading until a
// configured timestamp, grounded on ErrTradeIsNotEnabled /
// ErrInvalidTradeEnableTimestamp).
func (p *Pool) RequireTradeEnabled(now uint64) error {
	if now < p.TradeEnableTimestamp {
		return ErrTradeIsNotEnabled
	}
	return nil
}

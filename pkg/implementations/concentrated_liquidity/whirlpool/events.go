package whirlpool

import (
	"github.com/gagliardetto/solana-go"
	"lukechampine.com/uint128"
)

// Event is the common interface every typed event value satisfies, so
// a caller that only wants to log/forward events can hold them
// uniformly without a type switch on the concrete struct. No operation
// in this package constructs or returns these values; the caller builds
// them from an operation's inputs and result (NewTradedFromSwapResult
// for a swap).
type Event interface {
	eventName() string
}

// PoolInitialized is emitted once, when a pool account is first
// created. Grounded on instructions/initialize_pool.rs's emit!(PoolInitialized{...}).
type PoolInitialized struct {
	Whirlpool        solana.PublicKey
	WhirlpoolsConfig solana.PublicKey
	TokenMintA       solana.PublicKey
	TokenMintB       solana.PublicKey
	TickSpacing      uint16
	DecimalsA        uint8
	DecimalsB        uint8
	InitialSqrtPrice uint128.Uint128
}

func (PoolInitialized) eventName() string { return "PoolInitialized" }

// PositionOpened is emitted when a new position is opened over a tick
// range. Grounded on instructions/open_position_with_token_extensions.rs's
// emit!(PositionOpened{...}).
type PositionOpened struct {
	Whirlpool      solana.PublicKey
	Position       solana.PublicKey
	TickLowerIndex int32
	TickUpperIndex int32
}

func (PositionOpened) eventName() string { return "PositionOpened" }

// LiquidityIncreased is emitted when CalculateModifyLiquidity is
// applied with a positive liquidity delta. Grounded on
// pinocchio/instructions/increase_liquidity.rs's emit!(LiquidityIncreased{...}),
// with TokenATransferFee/TokenBTransferFee carried through from
// spec.md §4 "accounted for, not computed" (callers supply the
// transfer-fee-extension amount; this core does not compute it).
type LiquidityIncreased struct {
	Whirlpool          solana.PublicKey
	Position           solana.PublicKey
	TickLowerIndex     int32
	TickUpperIndex     int32
	Liquidity          uint128.Uint128
	TokenAAmount       uint64
	TokenBAmount       uint64
	TokenATransferFee  uint64
	TokenBTransferFee  uint64
}

func (LiquidityIncreased) eventName() string { return "LiquidityIncreased" }

// LiquidityDecreased is the LiquidityIncreased counterpart for a
// negative liquidity delta. Grounded on
// pinocchio/instructions/decrease_liquidity_v2.rs's emit!(LiquidityDecreased{...}).
type LiquidityDecreased struct {
	Whirlpool         solana.PublicKey
	Position          solana.PublicKey
	TickLowerIndex    int32
	TickUpperIndex    int32
	Liquidity         uint128.Uint128
	TokenAAmount      uint64
	TokenBAmount      uint64
	TokenATransferFee uint64
	TokenBTransferFee uint64
}

func (LiquidityDecreased) eventName() string { return "LiquidityDecreased" }

// LiquidityRepositioned is emitted by the reposition operation
// (spec.md's supplemented reset_position_range feature), recording
// both the old and new range/liquidity/token amounts in one event
// rather than a close-then-open pair. Grounded on the pinocchio events
// module's Event::LiquidityRepositioned variant.
type LiquidityRepositioned struct {
	Whirlpool         solana.PublicKey
	Position          solana.PublicKey
	OldTickLowerIndex int32
	OldTickUpperIndex int32
	NewTickLowerIndex int32
	NewTickUpperIndex int32
	OldLiquidity      uint128.Uint128
	NewLiquidity      uint128.Uint128
	OldTokenAAmount   uint64
	OldTokenBAmount   uint64
	NewTokenAAmount   uint64
	NewTokenBAmount   uint64
}

func (LiquidityRepositioned) eventName() string { return "LiquidityRepositioned" }

// Traded records one completed Swap call; a TwoHopSwap yields two, one
// per leg, each built from that leg's own SwapResult. Grounded on
// pinocchio/instructions/swap.rs's
// Event::Traded{...}.
type Traded struct {
	Whirlpool          solana.PublicKey
	AToB               bool
	PreSqrtPrice       uint128.Uint128
	PostSqrtPrice      uint128.Uint128
	InputAmount        uint64
	OutputAmount       uint64
	InputTransferFee   uint64
	OutputTransferFee  uint64
	LPFee              uint64
	ProtocolFee        uint64
}

func (Traded) eventName() string { return "Traded" }

// NewTradedFromSwapResult builds a Traded event from a Swap/TwoHopSwap
// leg's result, the way pinocchio/instructions/swap.rs derives its
// event fields from the same SwapUpdate the account commit uses.
func NewTradedFromSwapResult(whirlpoolKey solana.PublicKey, aToB bool, preSqrtPrice uint128.Uint128, result SwapResult, lpFee, protocolFee uint64) Traded {
	return Traded{
		Whirlpool:     whirlpoolKey,
		AToB:          aToB,
		PreSqrtPrice:  preSqrtPrice,
		PostSqrtPrice: result.NextSqrtPrice,
		InputAmount:   result.InputAmount(aToB),
		OutputAmount:  result.OutputAmount(aToB),
		LPFee:         lpFee,
		ProtocolFee:   protocolFee,
	}
}

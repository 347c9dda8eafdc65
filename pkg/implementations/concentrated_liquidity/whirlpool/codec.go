package whirlpool

import (
	"bytes"
	"crypto/sha256"
	"math/big"

	"cosmossdk.io/math"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"lukechampine.com/uint128"
)

// Account discriminators follow the Anchor convention: the first 8
// bytes of sha256("account:<TypeName>"). Grounded on
// guidebee-SolRoute's WhirlpoolPool.Discriminator field and spec.md §6
// ("each record begins with a unique 8-byte discriminator").
func accountDiscriminator(typeName string) [8]byte {
	sum := sha256.Sum256([]byte("account:" + typeName))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}

var (
	poolDiscriminator             = accountDiscriminator("Whirlpool")
	fixedTickArrayDiscriminator   = accountDiscriminator("TickArray")
	dynamicTickArrayDiscriminator = accountDiscriminator("DynamicTickArray")
	positionDiscriminator         = accountDiscriminator("Position")
	lockConfigDiscriminator       = accountDiscriminator("LockConfig")
)

// poolWireSize is the byte-exact size of an encoded Pool account,
// matching the 653-byte base layout guidebee-SolRoute's Decode checks
// for, plus this core's two appended supplemented fields (FeeTierIndex,
// TradeEnableTimestamp) and the widened FeeRate (see EncodePool).
const poolWireSize = 653 + 2 + 2 + 8

// EncodePool serializes a Pool the way the on-chain program lays out a
// Whirlpool account, field-by-field in wire order (grounded on
// guidebee-SolRoute's WhirlpoolPool.Decode, run in reverse). Wire order
// interleaves the A/B mint, vault, and fee-growth fields; it is not the
// same as Pool's Go field declaration order, which groups them for
// readability.
//
// Two differences from the base account this mirrors: FeeRate is
// written as 4 bytes (u32), not 2 (u16), since this core's adaptive-fee
// ceiling (FeeRateHardLimit = 100000) does not fit u16; and
// FeeTierIndex/TradeEnableTimestamp are appended after RewardInfos as a
// supplemented extension. Both are documented deviations, not layout
// bugs — see DESIGN.md.
func EncodePool(p *Pool) ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)

	if err := writeAll(enc,
		poolDiscriminator,
		p.WhirlpoolsConfig,
		uint8(0), // bump: PDA derivation data, regenerated by the caller, not load-bearing here.
		p.TickSpacing,
		[2]uint8{}, // tick spacing seed: same.
		p.FeeRate,
		p.ProtocolFeeRate,
		p.Liquidity,
		p.SqrtPrice,
		p.TickCurrentIndex,
		p.ProtocolFeeOwedA,
		p.ProtocolFeeOwedB,
		p.TokenMintA,
		p.TokenVaultA,
		p.FeeGrowthGlobalA,
		p.TokenMintB,
		p.TokenVaultB,
		p.FeeGrowthGlobalB,
		p.RewardLastUpdatedTimestamp,
	); err != nil {
		return nil, err
	}
	for _, r := range p.RewardInfos {
		if err := writeAll(enc, r.Mint, r.Vault, r.Authority, r.EmissionsPerSecondX64, r.GrowthGlobalX64); err != nil {
			return nil, err
		}
	}
	if err := writeAll(enc, p.FeeTierIndex, p.TradeEnableTimestamp); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodePool is EncodePool's inverse. key is the account's own address,
// which is never part of the account's data and must be supplied by the
// caller (the account lookup, not the payload, is its source of truth).
func DecodePool(key solana.PublicKey, data []byte) (*Pool, error) {
	if len(data) < poolWireSize {
		return nil, ErrDeserializationError
	}
	dec := bin.NewBinDecoder(data)

	var discriminator [8]byte
	var bump uint8
	var tickSpacingSeed [2]uint8
	p := &Pool{Key: key}

	if err := readAll(dec,
		&discriminator,
		&p.WhirlpoolsConfig,
		&bump,
		&p.TickSpacing,
		&tickSpacingSeed,
		&p.FeeRate,
		&p.ProtocolFeeRate,
		&p.Liquidity,
		&p.SqrtPrice,
		&p.TickCurrentIndex,
		&p.ProtocolFeeOwedA,
		&p.ProtocolFeeOwedB,
		&p.TokenMintA,
		&p.TokenVaultA,
		&p.FeeGrowthGlobalA,
		&p.TokenMintB,
		&p.TokenVaultB,
		&p.FeeGrowthGlobalB,
		&p.RewardLastUpdatedTimestamp,
	); err != nil {
		return nil, err
	}
	if discriminator != poolDiscriminator {
		return nil, ErrAccountDiscriminatorMismatch
	}
	for i := range p.RewardInfos {
		r := &p.RewardInfos[i]
		if err := readAll(dec, &r.Mint, &r.Vault, &r.Authority, &r.EmissionsPerSecondX64, &r.GrowthGlobalX64); err != nil {
			return nil, err
		}
	}
	if err := readAll(dec, &p.FeeTierIndex, &p.TradeEnableTimestamp); err != nil {
		return nil, err
	}
	return p, nil
}

// tickWireSize is one Tick's encoded size: 1 (initialized) + 16
// (liquidity_net, i128) + 16 (liquidity_gross) + 16 + 16 (fee growth
// outside) + 3*16 (reward growth outside) = 113 bytes, matching
// guidebee-SolRoute's Tick struct.
const tickWireSize = 1 + 16 + 16 + 16 + 16 + NumRewards*16

func writeTick(enc *bin.Encoder, t Tick) error {
	initialized := uint8(0)
	if t.Initialized {
		initialized = 1
	}
	if err := writeAll(enc, initialized); err != nil {
		return err
	}
	var netBytes [16]uint8
	copy(netBytes[:], encodeI128(t.LiquidityNet))
	if err := writeAll(enc, netBytes); err != nil {
		return err
	}
	if err := writeAll(enc, t.LiquidityGross, t.FeeGrowthOutsideA, t.FeeGrowthOutsideB); err != nil {
		return err
	}
	for _, r := range t.RewardGrowthsOutside {
		if err := writeAll(enc, r); err != nil {
			return err
		}
	}
	return nil
}

func readTick(dec *bin.Decoder) (Tick, error) {
	var initialized uint8
	if err := readAll(dec, &initialized); err != nil {
		return Tick{}, err
	}
	var netBytes [16]uint8
	if err := readAll(dec, &netBytes); err != nil {
		return Tick{}, err
	}
	t := Tick{Initialized: initialized != 0, LiquidityNet: decodeI128(netBytes[:])}
	if err := readAll(dec, &t.LiquidityGross, &t.FeeGrowthOutsideA, &t.FeeGrowthOutsideB); err != nil {
		return Tick{}, err
	}
	for i := range t.RewardGrowthsOutside {
		if err := readAll(dec, &t.RewardGrowthsOutside[i]); err != nil {
			return Tick{}, err
		}
	}
	return t, nil
}

// EncodeFixedTickArray serializes a FixedTickArray the way a "fixed"
// tick-array account is laid out (spec.md §6): 8-byte discriminator,
// start_tick_index (i32), 88 fixed-width ticks, then the owning pool's
// address.
func EncodeFixedTickArray(a *FixedTickArray) ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	if err := writeAll(enc, fixedTickArrayDiscriminator, a.startTickIndex); err != nil {
		return nil, err
	}
	for _, t := range a.ticks {
		if err := writeTick(enc, t); err != nil {
			return nil, err
		}
	}
	if err := writeAll(enc, a.whirlpool); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeFixedTickArray is EncodeFixedTickArray's inverse.
func DecodeFixedTickArray(data []byte) (*FixedTickArray, error) {
	const headerSize = 8 + 4
	if len(data) < headerSize+TickArraySize*tickWireSize+32 {
		return nil, ErrDeserializationError
	}
	dec := bin.NewBinDecoder(data)

	var discriminator [8]byte
	var startTickIndex int32
	if err := readAll(dec, &discriminator, &startTickIndex); err != nil {
		return nil, err
	}
	if discriminator != fixedTickArrayDiscriminator {
		return nil, ErrAccountDiscriminatorMismatch
	}

	a := &FixedTickArray{startTickIndex: startTickIndex}
	for i := range a.ticks {
		t, err := readTick(dec)
		if err != nil {
			return nil, err
		}
		a.ticks[i] = t
	}
	if err := readAll(dec, &a.whirlpool); err != nil {
		return nil, err
	}
	return a, nil
}

// EncodeDynamicTickArray serializes a sparse tick array: discriminator,
// start_tick_index, owning pool, a 128-bit occupancy bitmap, then only
// the ticks the bitmap marks present, in ascending offset order
// (spec.md §6, "dynamic" kind avoids paying for 88 always-materialized
// ticks).
func EncodeDynamicTickArray(a *DynamicTickArray) ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	if err := writeAll(enc, dynamicTickArrayDiscriminator, a.startTickIndex, a.whirlpool); err != nil {
		return nil, err
	}
	bitmap := packBitmap(a.bitmap)
	if err := writeAll(enc, bitmap); err != nil {
		return nil, err
	}
	for offset := 0; offset < TickArraySize; offset++ {
		if !a.bitmap[offset] {
			continue
		}
		if err := writeTick(enc, a.ticks[int32(offset)]); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// DecodeDynamicTickArray is EncodeDynamicTickArray's inverse.
func DecodeDynamicTickArray(data []byte) (*DynamicTickArray, error) {
	const headerSize = 8 + 4 + 32 + 16
	if len(data) < headerSize {
		return nil, ErrDeserializationError
	}
	dec := bin.NewBinDecoder(data)

	var discriminator [8]byte
	a := &DynamicTickArray{ticks: make(map[int32]Tick)}
	var bitmap uint128.Uint128
	if err := readAll(dec, &discriminator, &a.startTickIndex, &a.whirlpool, &bitmap); err != nil {
		return nil, err
	}
	if discriminator != dynamicTickArrayDiscriminator {
		return nil, ErrAccountDiscriminatorMismatch
	}
	a.bitmap = unpackBitmap(bitmap)

	for offset := 0; offset < TickArraySize; offset++ {
		if !a.bitmap[offset] {
			continue
		}
		t, err := readTick(dec)
		if err != nil {
			return nil, err
		}
		a.ticks[int32(offset)] = t
	}
	return a, nil
}

// EncodePosition serializes a Position, excluding LockInfo (persisted
// separately as its own LockConfig account and linked by the position's
// address — spec.md §6).
func EncodePosition(p *Position) ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	if err := writeAll(enc,
		positionDiscriminator,
		p.Whirlpool,
		p.PositionMint,
		p.Liquidity,
		p.TickLowerIndex,
		p.TickUpperIndex,
		p.FeeGrowthCheckpointA,
		p.FeeOwedA,
		p.FeeGrowthCheckpointB,
		p.FeeOwedB,
	); err != nil {
		return nil, err
	}
	for _, r := range p.RewardInfos {
		if err := writeAll(enc, r.GrowthInsideCheckpoint, r.AmountOwed); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// DecodePosition is EncodePosition's inverse. LockInfo is left nil; the
// caller attaches it by separately decoding the position's LockConfig
// account, if one exists.
func DecodePosition(data []byte) (*Position, error) {
	dec := bin.NewBinDecoder(data)
	var discriminator [8]byte
	p := &Position{}
	if err := readAll(dec,
		&discriminator,
		&p.Whirlpool,
		&p.PositionMint,
		&p.Liquidity,
		&p.TickLowerIndex,
		&p.TickUpperIndex,
		&p.FeeGrowthCheckpointA,
		&p.FeeOwedA,
		&p.FeeGrowthCheckpointB,
		&p.FeeOwedB,
	); err != nil {
		return nil, err
	}
	if discriminator != positionDiscriminator {
		return nil, ErrAccountDiscriminatorMismatch
	}
	for i := range p.RewardInfos {
		if err := readAll(dec, &p.RewardInfos[i].GrowthInsideCheckpoint, &p.RewardInfos[i].AmountOwed); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// EncodeLockConfig serializes a LockConfig account.
func EncodeLockConfig(l *LockConfig) ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	lockType := uint8(l.LockType)
	if err := writeAll(enc, lockConfigDiscriminator, l.Position, l.PositionOwner, l.Whirlpool, l.LockedAt, lockType); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeLockConfig is EncodeLockConfig's inverse.
func DecodeLockConfig(data []byte) (*LockConfig, error) {
	dec := bin.NewBinDecoder(data)
	var discriminator [8]byte
	var lockType uint8
	l := &LockConfig{}
	if err := readAll(dec, &discriminator, &l.Position, &l.PositionOwner, &l.Whirlpool, &l.LockedAt, &lockType); err != nil {
		return nil, err
	}
	if discriminator != lockConfigDiscriminator {
		return nil, ErrAccountDiscriminatorMismatch
	}
	l.LockType = LockType(lockType)
	return l, nil
}

func packBitmap(bitmap [TickArraySize]bool) uint128.Uint128 {
	var bits big.Int
	for i, set := range bitmap {
		if set {
			bits.SetBit(&bits, i, 1)
		}
	}
	return uint128.FromBig(&bits)
}

func unpackBitmap(bits uint128.Uint128) [TickArraySize]bool {
	var out [TickArraySize]bool
	v := bits.Big()
	for i := range out {
		out[i] = v.Bit(i) == 1
	}
	return out
}

// encodeI128 packs a signed 128-bit integer as 16 little-endian bytes,
// two's complement — the layout guidebee-SolRoute's Tick.LiquidityNet
// comment documents ("16 (i128)") but does not itself decode, since its
// Decode only covers the Pool account. No library in the retrieval pack
// offers a ready raw-byte codec for a signed 128-bit integer backed by
// cosmossdk.io/math.Int, so this is hand-rolled on top of math/big, the
// same promotion this package already uses for 128-bit-safe
// intermediates elsewhere (fixedpoint.go).
func encodeI128(v math.Int) []byte {
	bi := v.BigInt()
	if bi.Sign() < 0 {
		mod := new(big.Int).Lsh(big.NewInt(1), 128)
		bi = new(big.Int).Add(mod, bi)
	}
	be := bi.Bytes()
	var out [16]byte
	copy(out[16-len(be):], be)
	for i, j := 0, 15; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out[:]
}

func decodeI128(b []byte) math.Int {
	be := make([]byte, 16)
	for i := 0; i < 16; i++ {
		be[i] = b[15-i]
	}
	bi := new(big.Int).SetBytes(be)
	if b[15]&0x80 != 0 {
		mod := new(big.Int).Lsh(big.NewInt(1), 128)
		bi = new(big.Int).Sub(bi, mod)
	}
	return math.NewIntFromBigInt(bi)
}

func writeAll(enc *bin.Encoder, values ...interface{}) error {
	for _, v := range values {
		if err := enc.Encode(v); err != nil {
			return err
		}
	}
	return nil
}

func readAll(dec *bin.Decoder, dests ...interface{}) error {
	for _, d := range dests {
		if err := dec.Decode(d); err != nil {
			return err
		}
	}
	return nil
}

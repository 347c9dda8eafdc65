package whirlpool

import "github.com/gagliardetto/solana-go"

// TickArray is the data-plane contract a pool's tick storage satisfies,
// independent of whether the backing account is the fixed, densely
// materialized layout or the sparse, bitmap-indexed dynamic layout
// (spec.md §3 "fixed/dense vs sparse/dynamic tick storage").
type TickArray interface {
	StartTickIndex() int32
	Whirlpool() solana.PublicKey
	IsVariableSize() bool

	GetTick(tickIndex int32, tickSpacing uint16) (Tick, error)
	UpdateTick(tickIndex int32, tickSpacing uint16, update TickUpdate) error
	GetNextInitTickIndex(tickIndex int32, tickSpacing uint16, aToB bool) (int32, bool, error)
}

func inSearchRange(startTickIndex int32, tickSpacing uint16, tickIndex int32, shifted bool) bool {
	lower := startTickIndex
	upper := startTickIndex + TickArraySize*int32(tickSpacing)
	if shifted {
		lower -= int32(tickSpacing)
		upper -= int32(tickSpacing)
	}
	return tickIndex >= lower && tickIndex < upper
}

func checkInArrayBounds(startTickIndex int32, tickSpacing uint16, tickIndex int32) bool {
	return inSearchRange(startTickIndex, tickSpacing, tickIndex, false)
}

// isMinTickArray reports whether this array's start tick is at or below
// the protocol's minimum usable tick.
func isMinTickArray(startTickIndex int32) bool {
	return startTickIndex <= MinTickIndex
}

// isMaxTickArray reports whether this array's tick range reaches the
// protocol's maximum usable tick.
func isMaxTickArray(startTickIndex int32, tickSpacing uint16) bool {
	return startTickIndex+TickArraySize*int32(tickSpacing) > MaxTickIndex
}

// tickOffset returns the zero-based slot index of tickIndex within an
// array starting at startTickIndex, using floor division (spec.md §3:
// "the offset arithmetic must floor-divide, not truncate, for ticks
// below the array's start").
func tickOffset(tickIndex, startTickIndex int32, tickSpacing uint16) (int32, error) {
	if tickSpacing == 0 {
		return 0, ErrInvalidTickSpacing
	}
	lhs := tickIndex - startTickIndex
	rhs := int32(tickSpacing)
	d := lhs / rhs
	r := lhs % rhs
	if r < 0 {
		d--
	}
	return d, nil
}

// checkIsUsableTickAndGetOffset validates tickIndex is in protocol
// bounds, aligned to tickSpacing, and within this array's window,
// returning its slot offset.
func checkIsUsableTickAndGetOffset(tickIndex int32, tickSpacing uint16, startTickIndex int32) (int32, bool) {
	if tickIndex < MinTickIndex || tickIndex > MaxTickIndex {
		return 0, false
	}
	diff := tickIndex - startTickIndex
	if diff < 0 {
		diff = -diff
	}
	if uint32(diff) >= uint32(tickSpacing)*TickArraySize {
		return 0, false
	}
	if diff%int32(tickSpacing) != 0 {
		return 0, false
	}
	offset, err := tickOffset(tickIndex, startTickIndex, tickSpacing)
	if err != nil {
		return 0, false
	}
	return offset, true
}

// FixedTickArray is the densely materialized tick-array layout: every
// one of TickArraySize slots holds a real Tick, initialized or not
// (spec.md §3, "fixed" kind).
type FixedTickArray struct {
	startTickIndex int32
	whirlpool      solana.PublicKey
	ticks          [TickArraySize]Tick
}

// NewFixedTickArray constructs an empty fixed tick array for the given
// pool and (tick-spacing-aligned) start index.
func NewFixedTickArray(whirlpool solana.PublicKey, startTickIndex int32) *FixedTickArray {
	a := &FixedTickArray{startTickIndex: startTickIndex, whirlpool: whirlpool}
	for i := range a.ticks {
		a.ticks[i] = ZeroTick()
	}
	return a
}

func (a *FixedTickArray) IsVariableSize() bool            { return false }
func (a *FixedTickArray) StartTickIndex() int32           { return a.startTickIndex }
func (a *FixedTickArray) Whirlpool() solana.PublicKey     { return a.whirlpool }

func (a *FixedTickArray) GetTick(tickIndex int32, tickSpacing uint16) (Tick, error) {
	offset, ok := checkIsUsableTickAndGetOffset(tickIndex, tickSpacing, a.startTickIndex)
	if !ok {
		return Tick{}, ErrTickNotFound
	}
	return a.ticks[offset], nil
}

func (a *FixedTickArray) UpdateTick(tickIndex int32, tickSpacing uint16, update TickUpdate) error {
	offset, ok := checkIsUsableTickAndGetOffset(tickIndex, tickSpacing, a.startTickIndex)
	if !ok {
		return ErrTickNotFound
	}
	a.ticks[offset].Apply(update)
	return nil
}

func (a *FixedTickArray) GetNextInitTickIndex(tickIndex int32, tickSpacing uint16, aToB bool) (int32, bool, error) {
	if !inSearchRange(a.startTickIndex, tickSpacing, tickIndex, !aToB) {
		return 0, false, ErrInvalidTickArraySequence
	}
	currOffset, err := tickOffset(tickIndex, a.startTickIndex, tickSpacing)
	if err != nil {
		return 0, false, err
	}
	if !aToB {
		currOffset++
	}
	for currOffset >= 0 && currOffset < TickArraySize {
		if a.ticks[currOffset].Initialized {
			return currOffset*int32(tickSpacing) + a.startTickIndex, true, nil
		}
		if aToB {
			currOffset--
		} else {
			currOffset++
		}
	}
	return 0, false, nil
}

// DynamicTickArray is the sparse tick-array layout: only initialized
// ticks occupy storage, tracked by a per-slot occupancy bitmap (one bool
// per slot here; codec.go persists it as a 128-bit word) (spec.md
// §3, "dynamic" kind — splash pools and low-liquidity markets use this
// to avoid paying rent for 88 always-materialized ticks).
type DynamicTickArray struct {
	startTickIndex int32
	whirlpool      solana.PublicKey
	bitmap         [TickArraySize]bool
	ticks          map[int32]Tick
}

// NewDynamicTickArray constructs an empty sparse tick array.
func NewDynamicTickArray(whirlpool solana.PublicKey, startTickIndex int32) *DynamicTickArray {
	return &DynamicTickArray{
		startTickIndex: startTickIndex,
		whirlpool:      whirlpool,
		ticks:          make(map[int32]Tick),
	}
}

func (a *DynamicTickArray) IsVariableSize() bool        { return true }
func (a *DynamicTickArray) StartTickIndex() int32       { return a.startTickIndex }
func (a *DynamicTickArray) Whirlpool() solana.PublicKey { return a.whirlpool }

func (a *DynamicTickArray) GetTick(tickIndex int32, tickSpacing uint16) (Tick, error) {
	offset, ok := checkIsUsableTickAndGetOffset(tickIndex, tickSpacing, a.startTickIndex)
	if !ok {
		return Tick{}, ErrTickNotFound
	}
	if !a.bitmap[offset] {
		return ZeroTick(), nil
	}
	return a.ticks[offset], nil
}

func (a *DynamicTickArray) UpdateTick(tickIndex int32, tickSpacing uint16, update TickUpdate) error {
	offset, ok := checkIsUsableTickAndGetOffset(tickIndex, tickSpacing, a.startTickIndex)
	if !ok {
		return ErrTickNotFound
	}
	if !update.Initialized {
		delete(a.ticks, offset)
		a.bitmap[offset] = false
		return nil
	}
	var t Tick
	t.Apply(update)
	a.ticks[offset] = t
	a.bitmap[offset] = true
	return nil
}

func (a *DynamicTickArray) GetNextInitTickIndex(tickIndex int32, tickSpacing uint16, aToB bool) (int32, bool, error) {
	if !inSearchRange(a.startTickIndex, tickSpacing, tickIndex, !aToB) {
		return 0, false, ErrInvalidTickArraySequence
	}
	currOffset, err := tickOffset(tickIndex, a.startTickIndex, tickSpacing)
	if err != nil {
		return 0, false, err
	}
	if !aToB {
		currOffset++
	}
	for currOffset >= 0 && currOffset < TickArraySize {
		if a.bitmap[currOffset] {
			return currOffset*int32(tickSpacing) + a.startTickIndex, true, nil
		}
		if aToB {
			currOffset--
		} else {
			currOffset++
		}
	}
	return 0, false, nil
}

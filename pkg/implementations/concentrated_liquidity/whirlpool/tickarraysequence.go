package whirlpool

import (
	"sort"

	"github.com/gagliardetto/solana-go"
)

// MaxTickArraysPerSwap is the largest number of tick arrays a single
// swap traversal can be seeded with (spec.md §4.5: "up to 6 supplied
// tick arrays").
const MaxTickArraysPerSwap = 6

// TickArraySequence is the bounded traversal window a swap walks
// across: up to MaxTickArraysPerSwap tick arrays, evenly spaced by
// TickArraySize*tickSpacing and sorted ascending by start index
// (spec.md §4.5, grounded on the canonical TickArraySequence).
type TickArraySequence struct {
	arrays       []TickArray
	tickSpacing  uint16
	whirlpool    solana.PublicKey
}

// NewTickArraySequence builds a traversal sequence from caller-supplied
// tick arrays. Arrays are deduplicated by start tick index, sorted
// ascending, and validated for even spacing and matching pool key. A
// nil entry in arrays is skipped: no zeroed virtual array is put in its
// place, so the sequence covers only the arrays actually supplied, and
// a gap left by a nil entry fails the even-spacing check.
func NewTickArraySequence(whirlpool solana.PublicKey, tickSpacing uint16, arrays []TickArray) (*TickArraySequence, error) {
	if len(arrays) == 0 {
		return nil, ErrInvalidTickArraySequence
	}
	if len(arrays) > MaxTickArraysPerSwap {
		return nil, ErrTooManySupplementalTickArrays
	}

	seen := make(map[int32]bool, len(arrays))
	deduped := make([]TickArray, 0, len(arrays))
	for _, a := range arrays {
		if a == nil {
			continue
		}
		if a.Whirlpool() != whirlpool {
			return nil, ErrDifferentWhirlpoolTickArrayAccount
		}
		if seen[a.StartTickIndex()] {
			continue
		}
		seen[a.StartTickIndex()] = true
		deduped = append(deduped, a)
	}
	if len(deduped) == 0 {
		return nil, ErrInvalidTickArraySequence
	}

	sort.Slice(deduped, func(i, j int) bool {
		return deduped[i].StartTickIndex() < deduped[j].StartTickIndex()
	})

	requiredSpacing := int32(TickArraySize) * int32(tickSpacing)
	for i := 0; i < len(deduped)-1; i++ {
		diff := deduped[i+1].StartTickIndex() - deduped[i].StartTickIndex()
		if diff != requiredSpacing {
			return nil, ErrInvalidTickArraySequence
		}
	}

	return &TickArraySequence{arrays: deduped, tickSpacing: tickSpacing, whirlpool: whirlpool}, nil
}

// StartIndex returns the lowest tick index this sequence covers.
func (s *TickArraySequence) StartIndex() int32 {
	return s.arrays[0].StartTickIndex()
}

// EndIndex returns the exclusive upper tick index this sequence covers.
func (s *TickArraySequence) EndIndex() int32 {
	span := int32(len(s.arrays)) * TickArraySize * int32(s.tickSpacing)
	return s.StartIndex() + span
}

func (s *TickArraySequence) arrayForTick(tickIndex int32) (TickArray, error) {
	if tickIndex < s.StartIndex() || tickIndex >= s.EndIndex() {
		return nil, ErrTickArrayIndexOutofBounds
	}
	if tickIndex%int32(s.tickSpacing) != 0 {
		return nil, ErrInvalidTickIndex
	}
	span := TickArraySize * int32(s.tickSpacing)
	idx := (tickIndex - s.StartIndex()) / span
	return s.arrays[idx], nil
}

// Tick returns the tick record at tickIndex.
func (s *TickArraySequence) Tick(tickIndex int32) (Tick, error) {
	arr, err := s.arrayForTick(tickIndex)
	if err != nil {
		return Tick{}, err
	}
	return arr.GetTick(tickIndex, s.tickSpacing)
}

// UpdateTick applies update to the tick at tickIndex.
func (s *TickArraySequence) UpdateTick(tickIndex int32, update TickUpdate) error {
	arr, err := s.arrayForTick(tickIndex)
	if err != nil {
		return err
	}
	return arr.UpdateTick(tickIndex, s.tickSpacing, update)
}

// NextInitializedTick returns the next initialized tick in the aToB
// direction, searching across array boundaries: for a_to_b the search
// moves down and includes tickIndex itself; otherwise it moves up,
// starting strictly above tickIndex. ok is false if the sequence is
// exhausted without finding one.
func (s *TickArraySequence) NextInitializedTick(tickIndex int32, aToB bool) (Tick, int32, bool, error) {
	for {
		arr, err := s.arrayForTick(tickIndex)
		if err != nil {
			return Tick{}, 0, false, err
		}
		next, ok, err := arr.GetNextInitTickIndex(tickIndex, s.tickSpacing, aToB)
		if err != nil {
			return Tick{}, 0, false, err
		}
		if ok {
			tick, err := s.Tick(next)
			if err != nil {
				return Tick{}, 0, false, err
			}
			return tick, next, true, nil
		}

		if aToB {
			tickIndex = arr.StartTickIndex() - int32(s.tickSpacing)
		} else {
			tickIndex = arr.StartTickIndex() + TickArraySize*int32(s.tickSpacing)
		}
		if tickIndex < s.StartIndex() || tickIndex >= s.EndIndex() {
			return Tick{}, 0, false, nil
		}
		if !aToB {
			// The next array's search starts strictly above its first
			// slot, so that slot is checked here.
			tick, err := s.Tick(tickIndex)
			if err != nil {
				return Tick{}, 0, false, err
			}
			if tick.Initialized {
				return tick, tickIndex, true, nil
			}
		}
	}
}

package score

import (
	"github.com/cockroachdb/errors"
)

const (
	// DefaultSlotCount and DefaultSlotSize describe the heap budget that an allocator may use
	// without being penalized: 1024 slots of 480 bytes
	DefaultSlotCount uint64 = 1 << 10
	DefaultSlotSize  uint64 = 40 * 12
)

// Scorer computes the space utilization of an allocator run, as the ratio of the peak payload
// size to the heap size the allocator actually used. Both sides are raised to a floor first, so
// that runs which never allocate much are not penalized for a heap that is small in absolute terms.
type Scorer struct {
	floor uint64
}

// New creates a Scorer whose floor is slotCount * slotSize bytes
func New(slotCount, slotSize uint64) (Scorer, error) {
	if slotCount == 0 || slotSize == 0 {
		return Scorer{}, errors.Newf("slot count %d and slot size %d must both be positive", slotCount, slotSize)
	}

	floor := slotCount * slotSize
	if floor/slotSize != slotCount {
		return Scorer{}, errors.Newf("slot count %d and slot size %d overflow the floor", slotCount, slotSize)
	}

	return Scorer{floor: floor}, nil
}

// Default creates a Scorer with DefaultSlotCount and DefaultSlotSize
func Default() Scorer {
	return Scorer{floor: DefaultSlotCount * DefaultSlotSize}
}

// Floor returns the heap size below which no penalty applies
func (s Scorer) Floor() uint64 { return s.floor }

// Score returns max(peakAllocatedSize, floor) / max(usedHeapSize, floor). A value close to 1 means
// the allocator spent little heap on overhead and fragmentation. A value above 1 means the peak
// payload size exceeded the reported heap size, which a correct allocator cannot produce.
func (s Scorer) Score(peakAllocatedSize, usedHeapSize uint64) float64 {
	return float64(max(peakAllocatedSize, s.floor)) / float64(max(usedHeapSize, s.floor))
}

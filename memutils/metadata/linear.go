package metadata

import (
	"github.com/dolthub/swiss"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/pkg/errors"
	"github.com/vkngwrapper/heapcheck/memutils"
	"golang.org/x/exp/slices"
)

// LinearBlockIndex is a BlockIndex implementation that keys live blocks by start address in a hash
// map and checks new blocks for overlap by scanning every live block.
//
// Frees are constant time, but every insert costs a pass over the whole live set, so this
// implementation is only suitable for small traces. It is mainly useful as a reference to check
// OrderedBlockIndex against. Zero-size blocks are kept outside the map.
type LinearBlockIndex struct {
	blockIndexBase

	blocks *swiss.Map[uint64, LiveBlock]
}

var _ BlockIndex = &LinearBlockIndex{}

// NewLinearBlockIndex creates an empty LinearBlockIndex
func NewLinearBlockIndex() *LinearBlockIndex {
	return &LinearBlockIndex{
		blockIndexBase: newBlockIndexBase(),
		blocks:         swiss.NewMap[uint64, LiveBlock](42),
	}
}

// Count returns the number of live blocks in the index
func (m *LinearBlockIndex) Count() int {
	return m.blocks.Count() + m.zeroSizedCount
}

// IsEmpty will return true if this index has no live blocks
func (m *LinearBlockIndex) IsEmpty() bool {
	return m.blocks.Count() == 0 && m.zeroSizedCount == 0
}

// Validate performs internal consistency checks on the index. It is quadratic in the number of
// live blocks.
func (m *LinearBlockIndex) Validate() error {
	var blocks []LiveBlock
	var sumSize uint64
	var err error

	m.blocks.Iter(func(start uint64, block LiveBlock) bool {
		if start != block.Start {
			err = errors.Errorf("block (0x%x,0x%x) is keyed by address 0x%x", block.Start, block.End, start)
			return true
		}

		if block.Size == 0 {
			err = errors.Errorf("zero-size block at 0x%x is stored with the sized blocks", block.Start)
			return true
		}

		if block != BlockAt(block.Start, block.Size) {
			err = errors.Errorf("block (0x%x,0x%x) does not span its size of %d bytes", block.Start, block.End, block.Size)
			return true
		}

		for _, other := range blocks {
			if block.Overlaps(other) {
				err = errors.Errorf("block (0x%x,0x%x) overlaps block (0x%x,0x%x)", block.Start, block.End, other.Start, other.End)
				return true
			}
		}

		blocks = append(blocks, block)
		sumSize += block.Size
		return false
	})
	if err != nil {
		return err
	}

	if sumSize != m.sumSize {
		return errors.Errorf("the index's live size %d does not match the calculated live size %d", m.sumSize, sumSize)
	}

	return m.validateZeroSized()
}

// Insert adds a new live block to the index, after checking it against every live block
func (m *LinearBlockIndex) Insert(block LiveBlock) error {
	if block.Size == 0 {
		m.insertZeroSized(block.Start)
		return nil
	}

	existing, overlaps := m.Overlapping(block)
	if overlaps {
		return overlapError(block, existing)
	}

	m.blocks.Put(block.Start, block)
	m.sumSize += block.Size
	return nil
}

// Remove removes the live block that begins at the provided address and returns it
func (m *LinearBlockIndex) Remove(start uint64) (LiveBlock, error) {
	block, ok := m.blocks.Get(start)
	if !ok {
		block, ok = m.removeZeroSized(start)
		if !ok {
			return LiveBlock{}, invalidFreeError(start)
		}
		return block, nil
	}

	m.blocks.Delete(start)
	m.sumSize -= block.Size
	return block, nil
}

// Find retrieves the live block that begins at the provided address, if any
func (m *LinearBlockIndex) Find(start uint64) (LiveBlock, bool) {
	block, ok := m.blocks.Get(start)
	if !ok {
		return m.findZeroSized(start)
	}
	return block, true
}

// Overlapping retrieves a live block that intersects the provided block, if any
func (m *LinearBlockIndex) Overlapping(block LiveBlock) (LiveBlock, bool) {
	var found LiveBlock
	var overlaps bool

	if block.Size == 0 {
		return found, overlaps
	}

	m.blocks.Iter(func(_ uint64, existing LiveBlock) bool {
		if existing.Overlaps(block) {
			found = existing
			overlaps = true
		}
		return overlaps
	})

	return found, overlaps
}

// VisitAllBlocks will call the provided callback once for each live block, in ascending order of
// start address. The blocks are sorted on every call.
func (m *LinearBlockIndex) VisitAllBlocks(handleBlock func(block LiveBlock) error) error {
	blocks := make([]LiveBlock, 0, m.blocks.Count())
	m.blocks.Iter(func(_ uint64, block LiveBlock) bool {
		blocks = append(blocks, block)
		return false
	})

	slices.SortFunc(blocks, func(left, right LiveBlock) int {
		return compareBlockStart(left, right.Start)
	})

	return m.visitMerged(blocks, handleBlock)
}

// AddStatistics sums this index's live blocks into the statistics currently present in the
// provided memutils.Statistics object.
func (m *LinearBlockIndex) AddStatistics(stats *memutils.Statistics) {
	stats.AllocationCount += m.Count()
	stats.AllocationBytes += m.sumSize
}

// BlockJsonData populates a json object with information about the live blocks
func (m *LinearBlockIndex) BlockJsonData(json jwriter.ObjectState) {
	m.writeBlockJson(json, m)
}

// Clear instantly drops all live blocks
func (m *LinearBlockIndex) Clear() {
	m.blocks = swiss.NewMap[uint64, LiveBlock](42)
	m.clearBase()
}

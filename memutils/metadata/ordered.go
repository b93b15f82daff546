package metadata

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/pkg/errors"
	"github.com/vkngwrapper/heapcheck/memutils"
	"golang.org/x/exp/slices"
)

// OrderedBlockIndex is a BlockIndex implementation that keeps live blocks in a slice sorted by
// start address.
//
// Because live blocks never intersect, sorting them by start address also sorts them by end
// address. A new block can therefore only overlap its immediate neighbours in the slice: the last
// block beginning at or before it, and the first block beginning after it. Lookups and overlap
// checks are logarithmic; inserts and removes additionally pay for shifting the tail of the slice.
// Zero-size blocks are kept outside the slice.
type OrderedBlockIndex struct {
	blockIndexBase

	blocks []LiveBlock
}

var _ BlockIndex = &OrderedBlockIndex{}

// NewOrderedBlockIndex creates an empty OrderedBlockIndex
func NewOrderedBlockIndex() *OrderedBlockIndex {
	return &OrderedBlockIndex{
		blockIndexBase: newBlockIndexBase(),
		blocks:         []LiveBlock{},
	}
}

// Count returns the number of live blocks in the index
func (m *OrderedBlockIndex) Count() int {
	return len(m.blocks) + m.zeroSizedCount
}

// IsEmpty will return true if this index has no live blocks
func (m *OrderedBlockIndex) IsEmpty() bool {
	return len(m.blocks) == 0 && m.zeroSizedCount == 0
}

// Validate performs internal consistency checks on the index
func (m *OrderedBlockIndex) Validate() error {
	var sumSize uint64

	for blockIndex, block := range m.blocks {
		if block.Size == 0 {
			return errors.Errorf("zero-size block at index %d (0x%x) is stored with the sized blocks", blockIndex, block.Start)
		}

		if block != BlockAt(block.Start, block.Size) {
			return errors.Errorf("block at index %d (0x%x,0x%x) does not span its size of %d bytes", blockIndex, block.Start, block.End, block.Size)
		}

		if blockIndex > 0 {
			prev := m.blocks[blockIndex-1]
			if prev.End >= block.Start {
				return errors.Errorf("block at index %d (0x%x,0x%x) collides with or precedes the previous block (0x%x,0x%x)", blockIndex, block.Start, block.End, prev.Start, prev.End)
			}
		}

		sumSize += block.Size
	}

	if sumSize != m.sumSize {
		return errors.Errorf("the index's live size %d does not match the calculated live size %d", m.sumSize, sumSize)
	}

	return m.validateZeroSized()
}

// Insert adds a new live block to the index
func (m *OrderedBlockIndex) Insert(block LiveBlock) error {
	if block.Size == 0 {
		m.insertZeroSized(block.Start)
		return nil
	}

	index, existing, overlaps := m.findOverlap(block)
	if overlaps {
		return overlapError(block, existing)
	}

	m.blocks = slices.Insert(m.blocks, index, block)
	m.sumSize += block.Size
	return nil
}

// Remove removes the live block that begins at the provided address and returns it
func (m *OrderedBlockIndex) Remove(start uint64) (LiveBlock, error) {
	index, found := slices.BinarySearchFunc(m.blocks, start, compareBlockStart)
	if !found {
		block, ok := m.removeZeroSized(start)
		if !ok {
			return LiveBlock{}, invalidFreeError(start)
		}
		return block, nil
	}

	block := m.blocks[index]
	m.blocks = slices.Delete(m.blocks, index, index+1)
	m.sumSize -= block.Size
	return block, nil
}

// Find retrieves the live block that begins at the provided address, if any
func (m *OrderedBlockIndex) Find(start uint64) (LiveBlock, bool) {
	index, found := slices.BinarySearchFunc(m.blocks, start, compareBlockStart)
	if !found {
		return m.findZeroSized(start)
	}

	return m.blocks[index], true
}

// Overlapping retrieves a live block that intersects the provided block, if any
func (m *OrderedBlockIndex) Overlapping(block LiveBlock) (LiveBlock, bool) {
	if block.Size == 0 {
		return LiveBlock{}, false
	}

	_, existing, overlaps := m.findOverlap(block)
	return existing, overlaps
}

// findOverlap returns the slice position the block would be inserted at, along with an intersecting
// live block if there is one
func (m *OrderedBlockIndex) findOverlap(block LiveBlock) (int, LiveBlock, bool) {
	index, found := slices.BinarySearchFunc(m.blocks, block.Start, compareBlockStart)
	if found {
		return index, m.blocks[index], true
	}

	// The last block that begins before the new one
	if index > 0 && m.blocks[index-1].End >= block.Start {
		return index, m.blocks[index-1], true
	}

	// The first block that begins after the new one
	if index < len(m.blocks) && m.blocks[index].Start <= block.End {
		return index, m.blocks[index], true
	}

	return index, LiveBlock{}, false
}

// VisitAllBlocks will call the provided callback once for each live block, in ascending order of
// start address
func (m *OrderedBlockIndex) VisitAllBlocks(handleBlock func(block LiveBlock) error) error {
	return m.visitMerged(m.blocks, handleBlock)
}

// AddStatistics sums this index's live blocks into the statistics currently present in the
// provided memutils.Statistics object.
func (m *OrderedBlockIndex) AddStatistics(stats *memutils.Statistics) {
	stats.AllocationCount += m.Count()
	stats.AllocationBytes += m.sumSize
}

// BlockJsonData populates a json object with information about the live blocks
func (m *OrderedBlockIndex) BlockJsonData(json jwriter.ObjectState) {
	m.writeBlockJson(json, m)
}

// Clear instantly drops all live blocks
func (m *OrderedBlockIndex) Clear() {
	m.blocks = m.blocks[:0]
	m.clearBase()
}

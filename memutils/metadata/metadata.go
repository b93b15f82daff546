package metadata

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/heapcheck/memutils"
	"golang.org/x/exp/slices"
)

// BlockIndex holds the set of payloads that are live at the current point of a replay. Implementations
// guarantee that no two live blocks intersect: Insert refuses a block that would overlap an existing
// one, and Remove only accepts the exact start address of a live block.
type BlockIndex interface {
	// Validate performs internal consistency checks on the index. These checks may be expensive, depending
	// on the implementation. When the implementation is functioning correctly, it should not be possible
	// for this method to return an error, but this may assist in diagnosing issues with the implementation.
	Validate() error

	// Insert adds a new live block to the index. The returned error is marked with
	// memutils.ErrOverlappingPayload if the block intersects a block that is already live, in which
	// case the index is left unchanged. Zero-size blocks are always accepted.
	Insert(block LiveBlock) error
	// Remove removes the live block that begins at the provided address and returns it. A sized block
	// is preferred over a zero-size block with the same start. The returned error is marked with
	// memutils.ErrInvalidFree if no live block begins at that address.
	Remove(start uint64) (LiveBlock, error)
	// Find retrieves the live block that begins at the provided address, if any
	Find(start uint64) (LiveBlock, bool)
	// Overlapping retrieves a live block that intersects the provided block, if any. When several live
	// blocks intersect it, the implementation may return any one of them.
	Overlapping(block LiveBlock) (LiveBlock, bool)

	// Count returns the number of live blocks in the index
	Count() int
	// SumSize returns the total payload size in bytes of all live blocks in the index
	SumSize() uint64
	// IsEmpty will return true if this index has no live blocks
	IsEmpty() bool

	// VisitAllBlocks will call the provided callback once for each live block, in ascending order of
	// start address. Depending on implementation, this can be slow and should generally not be done
	// except for diagnostic purposes.
	VisitAllBlocks(handleBlock func(block LiveBlock) error) error
	// AddStatistics sums this index's live blocks into the statistics currently present in the
	// provided memutils.Statistics object.
	AddStatistics(stats *memutils.Statistics)
	// BlockJsonData populates a json object with information about the live blocks
	BlockJsonData(json jwriter.ObjectState)

	// Clear instantly drops all live blocks
	Clear()
}

// IndexKind selects a BlockIndex implementation
type IndexKind uint32

const (
	// IndexOrdered selects OrderedBlockIndex, which keeps blocks sorted by start address
	IndexOrdered IndexKind = iota
	// IndexLinear selects LinearBlockIndex, which checks overlaps with a linear scan
	IndexLinear
)

var indexKindMapping = map[IndexKind]string{
	IndexOrdered: "ordered",
	IndexLinear:  "linear",
}

func (k IndexKind) String() string {
	return indexKindMapping[k]
}

// ParseIndexKind maps the name of an index kind, as returned by IndexKind.String, back to its value
func ParseIndexKind(name string) (IndexKind, error) {
	for kind, kindName := range indexKindMapping {
		if kindName == name {
			return kind, nil
		}
	}

	return IndexOrdered, errors.Newf("unknown block index kind %q", name)
}

// NewBlockIndex creates an empty BlockIndex of the requested kind
func NewBlockIndex(kind IndexKind) (BlockIndex, error) {
	switch kind {
	case IndexOrdered:
		return NewOrderedBlockIndex(), nil
	case IndexLinear:
		return NewLinearBlockIndex(), nil
	}

	return nil, errors.Newf("unknown block index kind %d", kind)
}

// blockIndexBase provides the bookkeeping shared by the BlockIndex implementations. Zero-size blocks
// live here rather than in the implementations: they never overlap anything, so they only need to be
// counted per start address.
type blockIndexBase struct {
	sumSize uint64

	zeroSized      *swiss.Map[uint64, int]
	zeroSizedCount int
}

func newBlockIndexBase() blockIndexBase {
	return blockIndexBase{
		zeroSized: swiss.NewMap[uint64, int](42),
	}
}

// SumSize returns the total payload size in bytes of all live blocks in the index
func (b *blockIndexBase) SumSize() uint64 { return b.sumSize }

func (b *blockIndexBase) insertZeroSized(start uint64) {
	count, _ := b.zeroSized.Get(start)
	b.zeroSized.Put(start, count+1)
	b.zeroSizedCount++
}

func (b *blockIndexBase) findZeroSized(start uint64) (LiveBlock, bool) {
	if !b.zeroSized.Has(start) {
		return LiveBlock{}, false
	}
	return BlockAt(start, 0), true
}

func (b *blockIndexBase) removeZeroSized(start uint64) (LiveBlock, bool) {
	count, ok := b.zeroSized.Get(start)
	if !ok {
		return LiveBlock{}, false
	}

	if count > 1 {
		b.zeroSized.Put(start, count-1)
	} else {
		b.zeroSized.Delete(start)
	}
	b.zeroSizedCount--
	return BlockAt(start, 0), true
}

func (b *blockIndexBase) validateZeroSized() error {
	var total int
	var err error

	b.zeroSized.Iter(func(start uint64, count int) bool {
		if count <= 0 {
			err = errors.Newf("zero-size blocks at 0x%x have a count of %d", start, count)
			return true
		}
		total += count
		return false
	})
	if err != nil {
		return err
	}

	if total != b.zeroSizedCount {
		return errors.Newf("the index's zero-size block count %d does not match the calculated count %d", b.zeroSizedCount, total)
	}

	return nil
}

// visitMerged calls handleBlock for every block in sized, which must be sorted by start address, and
// every zero-size block, in ascending order of start address. A zero-size block is visited before a
// sized block with the same start.
func (b *blockIndexBase) visitMerged(sized []LiveBlock, handleBlock func(block LiveBlock) error) error {
	starts := make([]uint64, 0, b.zeroSized.Count())
	b.zeroSized.Iter(func(start uint64, _ int) bool {
		starts = append(starts, start)
		return false
	})
	slices.Sort(starts)

	for _, start := range starts {
		count, _ := b.zeroSized.Get(start)

		for len(sized) > 0 && sized[0].Start < start {
			err := handleBlock(sized[0])
			if err != nil {
				return err
			}
			sized = sized[1:]
		}

		for i := 0; i < count; i++ {
			err := handleBlock(BlockAt(start, 0))
			if err != nil {
				return err
			}
		}
	}

	for _, block := range sized {
		err := handleBlock(block)
		if err != nil {
			return err
		}
	}

	return nil
}

func (b *blockIndexBase) clearBase() {
	b.sumSize = 0
	b.zeroSized = swiss.NewMap[uint64, int](42)
	b.zeroSizedCount = 0
}

func (b *blockIndexBase) writeBlockJson(json jwriter.ObjectState, index BlockIndex) {
	json.Name("LiveBlocks").Int(index.Count())
	json.Name("LiveBytes").Int(int(b.sumSize))

	blocks := json.Name("Blocks").Array()
	defer blocks.End()

	_ = index.VisitAllBlocks(func(block LiveBlock) error {
		obj := blocks.Object()
		defer obj.End()

		obj.Name("Start").String(fmt.Sprintf("0x%x", block.Start))
		obj.Name("End").String(fmt.Sprintf("0x%x", block.End))
		obj.Name("Size").Int(int(block.Size))
		return nil
	})
}

func overlapError(block, existing LiveBlock) error {
	return errors.Mark(
		errors.Newf("payload (0x%x,0x%x) overlaps another payload (0x%x,0x%x)",
			block.Start, block.End, existing.Start, existing.End),
		memutils.ErrOverlappingPayload)
}

func invalidFreeError(start uint64) error {
	return errors.Mark(
		errors.Newf("0x%x is not the start of a live payload", start),
		memutils.ErrInvalidFree)
}

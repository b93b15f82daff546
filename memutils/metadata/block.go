package metadata

// LiveBlock is one payload that has been allocated and not yet released. Start and End are
// the inclusive bounds of the address range it occupies.
//
// A zero-size payload occupies no address at all. Its End equals its Start, but it never overlaps
// anything, and any number of them may share a start address.
type LiveBlock struct {
	Start uint64
	End   uint64
	Size  uint64
}

// BlockAt builds the LiveBlock for a payload of the provided size beginning at start. The
// caller is responsible for ensuring that the range does not wrap around the address space.
func BlockAt(start, size uint64) LiveBlock {
	end := start
	if size > 0 {
		end = start + size - 1
	}

	return LiveBlock{
		Start: start,
		End:   end,
		Size:  size,
	}
}

// Overlaps reports whether the two blocks share at least one address
func (b LiveBlock) Overlaps(other LiveBlock) bool {
	if b.Size == 0 || other.Size == 0 {
		return false
	}
	return b.Start <= other.End && b.End >= other.Start
}

func compareBlockStart(block LiveBlock, start uint64) int {
	if block.Start < start {
		return -1
	} else if block.Start > start {
		return 1
	}
	return 0
}

package memutils

import "math"

// Statistics is a snapshot of the payloads that are live at one point in a replay
type Statistics struct {
	AllocationCount int
	AllocationBytes uint64
}

func (s *Statistics) Clear() {
	s.AllocationCount = 0
	s.AllocationBytes = 0
}

// DetailedStatistics extends Statistics with running counters that cover the whole replay
// rather than a single moment in it.
type DetailedStatistics struct {
	Statistics
	MallocCount  int
	FreeCount    int
	ReallocCount int

	PeakAllocationCount int
	PeakAllocationBytes uint64

	AllocationSizeMin uint64
	AllocationSizeMax uint64
}

func (s *DetailedStatistics) Clear() {
	s.Statistics.Clear()
	s.MallocCount = 0
	s.FreeCount = 0
	s.ReallocCount = 0
	s.PeakAllocationCount = 0
	s.PeakAllocationBytes = 0
	s.AllocationSizeMin = math.MaxUint64
	s.AllocationSizeMax = 0
}

// AddAllocation records a new live payload of the provided size and raises the peaks if needed
func (s *DetailedStatistics) AddAllocation(size uint64) {
	s.AllocationCount++
	s.AllocationBytes += size

	if size < s.AllocationSizeMin {
		s.AllocationSizeMin = size
	}

	if size > s.AllocationSizeMax {
		s.AllocationSizeMax = size
	}

	if s.AllocationCount > s.PeakAllocationCount {
		s.PeakAllocationCount = s.AllocationCount
	}

	if s.AllocationBytes > s.PeakAllocationBytes {
		s.PeakAllocationBytes = s.AllocationBytes
	}
}

// RemoveAllocation records that a live payload of the provided size was released
func (s *DetailedStatistics) RemoveAllocation(size uint64) {
	s.AllocationCount--
	s.AllocationBytes -= size
}

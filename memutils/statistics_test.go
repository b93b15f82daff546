package memutils_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/heapcheck/memutils"
)

func TestDetailedStatisticsPeaks(t *testing.T) {
	var stats memutils.DetailedStatistics
	stats.Clear()

	require.Equal(t, uint64(math.MaxUint64), stats.AllocationSizeMin)

	stats.AddAllocation(16)
	stats.AddAllocation(16)
	stats.RemoveAllocation(16)
	stats.AddAllocation(8)

	require.Equal(t, memutils.DetailedStatistics{
		Statistics: memutils.Statistics{
			AllocationCount: 2,
			AllocationBytes: 24,
		},
		PeakAllocationCount: 2,
		PeakAllocationBytes: 32,
		AllocationSizeMin:   8,
		AllocationSizeMax:   16,
	}, stats)
}

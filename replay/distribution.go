package replay

import (
	"github.com/cockroachdb/errors"
	"github.com/montanaflynn/stats"
)

// SizeDistribution summarizes the sizes of every payload allocated during a replay, including the
// new payloads of reallocations
type SizeDistribution struct {
	Count int
	Mean  float64
	P50   float64
	P90   float64
	P99   float64
	Max   float64
}

// SizeDistribution computes the distribution of payload sizes allocated so far. It returns a zero
// SizeDistribution if nothing was allocated.
func (m *Model) SizeDistribution() (SizeDistribution, error) {
	if len(m.sizes) == 0 {
		return SizeDistribution{}, nil
	}

	if len(m.sizes) == 1 {
		size := m.sizes[0]
		return SizeDistribution{Count: 1, Mean: size, P50: size, P90: size, P99: size, Max: size}, nil
	}

	data := stats.Float64Data(m.sizes)
	dist := SizeDistribution{Count: len(m.sizes)}

	var err error
	dist.Mean, err = stats.Mean(data)
	if err != nil {
		return SizeDistribution{}, errors.Wrap(err, "calculating mean payload size")
	}

	percentiles := []struct {
		percent float64
		out     *float64
	}{
		{50, &dist.P50},
		{90, &dist.P90},
		{99, &dist.P99},
	}
	for _, p := range percentiles {
		*p.out, err = stats.Percentile(data, p.percent)
		if err != nil {
			return SizeDistribution{}, errors.Wrapf(err, "calculating percentile %v of payload sizes", p.percent)
		}
	}

	dist.Max, err = stats.Max(data)
	if err != nil {
		return SizeDistribution{}, errors.Wrap(err, "calculating largest payload size")
	}

	return dist, nil
}

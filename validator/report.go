package validator

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/heapcheck/memutils"
	"github.com/vkngwrapper/heapcheck/memutils/metadata"
	"github.com/vkngwrapper/heapcheck/replay"
)

// Report is the outcome of a validation run
type Report struct {
	RunID   string
	Sources []string

	// Events is the number of records that were replayed successfully
	Events            uint64
	PeakAllocatedSize uint64
	UsedHeapSize      uint64
	// Floor is the heap size below which the score carries no penalty
	Floor uint64
	// Score is the space utilization score. It is only meaningful when Err is nil.
	Score float64
	// Leaks is the number of payloads still live at the end of the log
	Leaks int

	Statistics   memutils.DetailedStatistics
	Live         memutils.Statistics
	Distribution replay.SizeDistribution

	Err *ValidationError

	live metadata.BlockIndex
}

// Success returns true if the run replayed every record without error
func (r *Report) Success() bool {
	return r.Err == nil
}

func (r *Report) collect(model *replay.Model, applied uint64) {
	r.Events = applied
	r.PeakAllocatedSize = model.PeakAllocatedSize()
	r.Statistics = model.Statistics()
	r.live = model.Index()

	r.Live.Clear()
	r.live.AddStatistics(&r.Live)

	dist, err := model.SizeDistribution()
	if err == nil {
		r.Distribution = dist
	}
}

func (r *Report) fail(err *ValidationError) *Report {
	r.Err = err
	r.Score = 0
	return r
}

// WriteText writes the human-readable summary of the run to w. In verbose mode the summary also
// covers event counts, leaks and the distribution of payload sizes.
func (r *Report) WriteText(w io.Writer, verbose bool) error {
	if r.Err != nil {
		_, err := fmt.Fprintf(w, "VALIDATION ERROR: %s\n", r.Err)
		return err
	}

	lines := []string{
		"VALIDATION SUCCESS",
		fmt.Sprintf("Peak allocated size: %d", r.PeakAllocatedSize),
		fmt.Sprintf("Used heap size: %d", r.UsedHeapSize),
		fmt.Sprintf("Space utilization score: %.6f", r.Score),
	}

	if verbose {
		lines = append(lines,
			fmt.Sprintf("Run ID: %s", r.RunID),
			fmt.Sprintf("Events: %d (%d mallocs, %d frees, %d reallocs)",
				r.Events, r.Statistics.MallocCount, r.Statistics.FreeCount, r.Statistics.ReallocCount),
			fmt.Sprintf("Peak live payloads: %d (%s)",
				r.Statistics.PeakAllocationCount, humanize.IBytes(r.Statistics.PeakAllocationBytes)),
			fmt.Sprintf("Score floor: %s", humanize.IBytes(r.Floor)),
			fmt.Sprintf("Unreleased payloads: %d (%s)", r.Leaks, humanize.IBytes(r.Live.AllocationBytes)),
		)

		if r.Distribution.Count > 0 {
			lines = append(lines, fmt.Sprintf("Payload sizes: mean %.1f, p50 %.0f, p90 %.0f, p99 %.0f, max %.0f",
				r.Distribution.Mean, r.Distribution.P50, r.Distribution.P90, r.Distribution.P99, r.Distribution.Max))
		}
	}

	for _, line := range lines {
		_, err := fmt.Fprintln(w, line)
		if err != nil {
			return err
		}
	}

	return nil
}

// WriteJSON writes the run as a single JSON object to w
func (r *Report) WriteJSON(w io.Writer) error {
	writer := jwriter.NewWriter()
	r.writeJson(&writer)

	err := writer.Error()
	if err != nil {
		return errors.Wrap(err, "encoding report")
	}

	_, err = w.Write(append(writer.Bytes(), '\n'))
	return err
}

func (r *Report) writeJson(writer *jwriter.Writer) {
	obj := writer.Object()
	defer obj.End()

	obj.Name("RunId").String(r.RunID)
	obj.Name("Success").Bool(r.Success())

	sources := obj.Name("Sources").Array()
	for _, source := range r.Sources {
		sources.String(source)
	}
	sources.End()

	if r.Err != nil {
		errObj := obj.Name("Error").Object()
		errObj.Name("Kind").String(r.Err.Kind())
		errObj.Name("Message").String(r.Err.Err.Error())
		writeUint64(errObj.Name("Seq"), r.Err.Seq)
		errObj.Name("Source").String(r.Err.Source)
		errObj.End()
	} else {
		obj.Name("Score").Float64(r.Score)
	}

	writeUint64(obj.Name("Events"), r.Events)
	writeUint64(obj.Name("PeakAllocatedSize"), r.PeakAllocatedSize)
	writeUint64(obj.Name("UsedHeapSize"), r.UsedHeapSize)
	writeUint64(obj.Name("Floor"), r.Floor)

	stats := obj.Name("Statistics").Object()
	stats.Name("MallocCount").Int(r.Statistics.MallocCount)
	stats.Name("FreeCount").Int(r.Statistics.FreeCount)
	stats.Name("ReallocCount").Int(r.Statistics.ReallocCount)
	stats.Name("PeakAllocationCount").Int(r.Statistics.PeakAllocationCount)
	writeUint64(stats.Name("PeakAllocationBytes"), r.Statistics.PeakAllocationBytes)
	if r.Distribution.Count > 0 {
		writeUint64(stats.Name("AllocationSizeMin"), r.Statistics.AllocationSizeMin)
		writeUint64(stats.Name("AllocationSizeMax"), r.Statistics.AllocationSizeMax)
	}
	stats.End()

	if r.Distribution.Count > 0 {
		dist := obj.Name("SizeDistribution").Object()
		dist.Name("Count").Int(r.Distribution.Count)
		dist.Name("Mean").Float64(r.Distribution.Mean)
		dist.Name("P50").Float64(r.Distribution.P50)
		dist.Name("P90").Float64(r.Distribution.P90)
		dist.Name("P99").Float64(r.Distribution.P99)
		dist.Name("Max").Float64(r.Distribution.Max)
		dist.End()
	}

	if r.live != nil {
		live := obj.Name("Live").Object()
		r.live.BlockJsonData(live)
		live.End()
	}
}

// writeUint64 writes value as an exact JSON integer; jwriter only offers int and float64
func writeUint64(writer *jwriter.Writer, value uint64) {
	writer.Raw(json.RawMessage(strconv.FormatUint(value, 10)))
}

package replay

import (
	"context"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/vkngwrapper/heapcheck/event"
	"github.com/vkngwrapper/heapcheck/memutils"
	"github.com/vkngwrapper/heapcheck/memutils/metadata"
	"golang.org/x/exp/slog"
)

// DefaultAlignment is the payload alignment every allocator under test must honor
const DefaultAlignment uint64 = 8

// CreateOptions configures a Model
type CreateOptions struct {
	// Alignment is the alignment, in bytes, required of every payload pointer. It must be a power of
	// two. Zero selects DefaultAlignment.
	Alignment uint64
	// Index selects the BlockIndex implementation that tracks live payloads
	Index metadata.IndexKind
}

// Model replays allocator events against the set of payloads that are currently live, rejecting
// any event that a correct allocator could not have produced. It also keeps the running and peak
// payload totals the utilization score is computed from.
//
// Reallocation is not atomic as far as the Model is concerned: a realloc-begin releases the old
// payload immediately, so other threads may legitimately be handed that range before the matching
// realloc-end arrives.
type Model struct {
	logger    *slog.Logger
	alignment uint64
	index     metadata.BlockIndex

	allocatedSize     uint64
	peakAllocatedSize uint64
	stats             memutils.DetailedStatistics
	sizes             []float64
}

// New creates an empty Model. A nil logger discards all output.
func New(logger *slog.Logger, options CreateOptions) (*Model, error) {
	if logger == nil {
		logger = discardLogger()
	}

	alignment := options.Alignment
	if alignment == 0 {
		alignment = DefaultAlignment
	}

	err := memutils.CheckPow2(alignment, "alignment")
	if err != nil {
		return nil, err
	}

	index, err := metadata.NewBlockIndex(options.Index)
	if err != nil {
		return nil, err
	}

	m := &Model{
		logger:    logger,
		alignment: alignment,
		index:     index,
	}
	m.stats.Clear()

	return m, nil
}

// AllocatedSize returns the total size of all live payloads
func (m *Model) AllocatedSize() uint64 { return m.allocatedSize }

// PeakAllocatedSize returns the largest value AllocatedSize has reached so far
func (m *Model) PeakAllocatedSize() uint64 { return m.peakAllocatedSize }

// LiveCount returns the number of live payloads
func (m *Model) LiveCount() int { return m.index.Count() }

// Index exposes the live payloads. It must not be modified.
func (m *Model) Index() metadata.BlockIndex { return m.index }

// Statistics returns the detailed counters gathered over the replay so far
func (m *Model) Statistics() memutils.DetailedStatistics { return m.stats }

// Validate checks that the running totals agree with the live payloads
func (m *Model) Validate() error {
	err := m.index.Validate()
	if err != nil {
		return err
	}

	if m.index.SumSize() != m.allocatedSize {
		return errors.Newf("allocated size %d does not match the %d bytes of live payloads", m.allocatedSize, m.index.SumSize())
	}

	if m.peakAllocatedSize < m.allocatedSize {
		return errors.Newf("peak allocated size %d is below the allocated size %d", m.peakAllocatedSize, m.allocatedSize)
	}

	return nil
}

// Apply replays a single event
func (m *Model) Apply(e event.Event) error {
	if m.logger.Enabled(context.Background(), slog.LevelDebug) {
		m.logger.LogAttrs(context.Background(), slog.LevelDebug, "Model::Apply",
			slog.Uint64("seq", e.Seq),
			slog.String("event", e.String()))
	}

	var err error
	switch e.Kind {
	case event.KindMalloc:
		m.stats.MallocCount++
		err = m.Malloc(e.Size, e.Pointer)
	case event.KindFree:
		m.stats.FreeCount++
		err = m.Free(e.Pointer)
	case event.KindReallocBegin:
		m.stats.ReallocCount++
		err = m.Free(e.OldPointer)
	case event.KindReallocEnd:
		err = m.Malloc(e.Size, e.Pointer)
	default:
		err = errors.Mark(errors.Newf("unknown event kind %d", e.Kind), memutils.ErrUnknownAction)
	}

	memutils.DebugValidate(m)
	return err
}

// Malloc records a new payload of size bytes at pointer
func (m *Model) Malloc(size, pointer uint64) error {
	if !memutils.IsAligned(pointer, m.alignment) {
		return errors.Mark(
			errors.Newf("0x%x is not aligned to %d bytes", pointer, m.alignment),
			memutils.ErrMisalignedPointer)
	}

	if size > 0 && size-1 > math.MaxUint64-pointer {
		return errors.Mark(
			errors.Newf("payload of %d bytes at 0x%x runs past the end of the address space", size, pointer),
			memutils.ErrMalformedRecord)
	}

	err := m.index.Insert(metadata.BlockAt(pointer, size))
	if err != nil {
		return err
	}

	m.allocatedSize += size
	if m.allocatedSize > m.peakAllocatedSize {
		m.peakAllocatedSize = m.allocatedSize
	}
	m.stats.AddAllocation(size)
	m.sizes = append(m.sizes, float64(size))

	return nil
}

// Free releases the payload that begins at pointer
func (m *Model) Free(pointer uint64) error {
	block, err := m.index.Remove(pointer)
	if err != nil {
		return err
	}

	m.allocatedSize -= block.Size
	m.stats.RemoveAllocation(block.Size)
	return nil
}

// ReportLeaks logs every payload that is still live. It is meant to be called once the whole log
// has been replayed, and returns the number of leaked payloads.
func (m *Model) ReportLeaks() int {
	_ = m.index.VisitAllBlocks(func(block metadata.LiveBlock) error {
		m.logger.LogAttrs(context.Background(), slog.LevelWarn, "[UNRELEASED MEMORY] payload never freed",
			slog.String("start", hexAddress(block.Start)),
			slog.String("end", hexAddress(block.End)),
			slog.Uint64("size", block.Size))
		return nil
	})

	if m.index.Count() > 0 {
		m.logger.Warn("payloads still live at end of log",
			slog.Int("count", m.index.Count()),
			slog.String("bytes", humanize.IBytes(m.allocatedSize)))
	}

	return m.index.Count()
}

package validator

import (
	"context"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/vkngwrapper/heapcheck/event"
	"github.com/vkngwrapper/heapcheck/logcursor"
	"github.com/vkngwrapper/heapcheck/memutils/metadata"
	"github.com/vkngwrapper/heapcheck/replay"
	"github.com/vkngwrapper/heapcheck/score"
	"github.com/vkngwrapper/heapcheck/sequencer"
	"golang.org/x/exp/slog"
)

// DefaultSingleLogReorderWindow is the reorder window a run with a single log file gets when none is
// configured. Programs that share one log between threads take their sequence numbers outside the log
// lock, so records in that log are routinely out of order.
const DefaultSingleLogReorderWindow = 1024

// CreateOptions configures a Validator
type CreateOptions struct {
	// Alignment is the alignment, in bytes, required of every payload pointer. Zero selects
	// replay.DefaultAlignment.
	Alignment uint64
	// Index selects the BlockIndex implementation that tracks live payloads
	Index metadata.IndexKind
	// ReorderWindow is the number of records each log file may be out of order by. Zero requires
	// every file to be strictly ordered, except for a run with a single log file, which gets
	// DefaultSingleLogReorderWindow.
	ReorderWindow int
	// ExpectedEvents, when nonzero, is the number of records the merged log must contain
	ExpectedEvents uint64
	// SlotCount and SlotSize define the score floor. Zero selects the score package defaults.
	SlotCount uint64
	SlotSize  uint64
}

// Validator replays the event logs of an allocator run and scores the run if the logs describe a
// correct allocator
type Validator struct {
	logger  *slog.Logger
	options CreateOptions
	scorer  score.Scorer
}

// New creates a Validator. A nil logger discards all output.
func New(logger *slog.Logger, options CreateOptions) (*Validator, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	slotCount := options.SlotCount
	if slotCount == 0 {
		slotCount = score.DefaultSlotCount
	}

	slotSize := options.SlotSize
	if slotSize == 0 {
		slotSize = score.DefaultSlotSize
	}

	scorer, err := score.New(slotCount, slotSize)
	if err != nil {
		return nil, err
	}

	// Fail on a bad alignment or index kind here rather than on the first run
	_, err = replay.New(nil, replay.CreateOptions{Alignment: options.Alignment, Index: options.Index})
	if err != nil {
		return nil, err
	}

	return &Validator{
		logger:  logger,
		options: options,
		scorer:  scorer,
	}, nil
}

// ValidateFiles opens every log file in paths and validates them as one run. Every file that was
// opened is closed before ValidateFiles returns.
//
// The returned Report is nil only if the run could not start. Whenever the run fails, the error is a
// *ValidationError and the Report describes the run up to the failure.
func (v *Validator) ValidateFiles(paths []string, usedHeapSize uint64) (*Report, error) {
	opened := make([]*logcursor.Cursor, 0, len(paths))
	defer func() {
		for _, cursor := range opened {
			err := cursor.Close()
			if err != nil {
				v.logger.Warn("failed to close log", slog.String("path", cursor.Name()), slog.Any("error", err))
			}
		}
	}()

	window := v.options.ReorderWindow
	if window == 0 && len(paths) == 1 {
		window = DefaultSingleLogReorderWindow
	}

	cursors := make([]sequencer.Cursor, 0, len(paths))
	for _, path := range paths {
		cursor, err := logcursor.Open(path, logcursor.WithReorderWindow(window))
		if err != nil {
			verr := &ValidationError{Source: path, Err: err}
			v.logger.Error("validation failed", slog.String("kind", verr.Kind()), slog.Any("error", verr))
			return v.newReport(paths, usedHeapSize).fail(verr), verr
		}
		opened = append(opened, cursor)
		cursors = append(cursors, cursor)
	}

	return v.Validate(cursors, usedHeapSize)
}

// Validate merges the records of the provided cursors, replays them against an empty allocation model
// and scores the run against usedHeapSize, the heap size the allocator reported. The cursors are not
// closed.
//
// Whenever the run fails, the error is a *ValidationError and the returned Report describes the run up
// to the failure.
func (v *Validator) Validate(cursors []sequencer.Cursor, usedHeapSize uint64) (*Report, error) {
	sources := make([]string, 0, len(cursors))
	for _, cursor := range cursors {
		sources = append(sources, cursor.Name())
	}

	report := v.newReport(sources, usedHeapSize)
	logger := v.logger.With(slog.String("run_id", report.RunID))

	model, err := replay.New(logger, replay.CreateOptions{
		Alignment: v.options.Alignment,
		Index:     v.options.Index,
	})
	if err != nil {
		return nil, err
	}

	var opts []sequencer.Option
	if v.options.ExpectedEvents > 0 {
		opts = append(opts, sequencer.WithExpectedCount(v.options.ExpectedEvents))
	}

	seq, err := sequencer.New(cursors, opts...)
	if err != nil {
		verr := &ValidationError{Source: "<no sources>", Err: err}
		logger.Error("validation failed", slog.String("kind", verr.Kind()), slog.Any("error", verr))
		return report.fail(verr), verr
	}

	logger.Debug("replaying logs", slog.Any("sources", sources), slog.Uint64("used_heap_size", usedHeapSize))

	var applied uint64
	err = seq.Run(func(e event.Event, source string) error {
		err := model.Apply(e)
		if err != nil {
			return &ValidationError{Seq: e.Seq, Source: source, Err: err}
		}
		applied++
		return nil
	})
	report.collect(model, applied)

	if err != nil {
		var verr *ValidationError
		if !errors.As(err, &verr) {
			verr = &ValidationError{Seq: seq.Delivered(), Source: seq.LastSource(), Err: err}
		}

		logger.LogAttrs(context.Background(), slog.LevelError, "validation failed",
			slog.String("kind", verr.Kind()),
			slog.Uint64("seq", verr.Seq),
			slog.String("source", verr.Source),
			slog.Any("error", verr.Err))
		return report.fail(verr), verr
	}

	report.Leaks = model.ReportLeaks()
	report.Score = v.scorer.Score(model.PeakAllocatedSize(), usedHeapSize)
	if report.Score > 1 {
		logger.Warn("allocator reported a heap smaller than its peak payload size",
			slog.Uint64("peak_allocated_size", model.PeakAllocatedSize()),
			slog.Uint64("used_heap_size", usedHeapSize))
	}

	logger.Info("validation succeeded",
		slog.Uint64("events", report.Events),
		slog.Uint64("peak_allocated_size", report.PeakAllocatedSize),
		slog.Float64("score", report.Score))

	return report, nil
}

func (v *Validator) newReport(sources []string, usedHeapSize uint64) *Report {
	return &Report{
		RunID:        uuid.NewString(),
		Sources:      sources,
		UsedHeapSize: usedHeapSize,
		Floor:        v.scorer.Floor(),
	}
}

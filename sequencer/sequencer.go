package sequencer

import (
	"container/heap"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/heapcheck/event"
	"github.com/vkngwrapper/heapcheck/memutils"
)

//go:generate mockgen -source sequencer.go -destination ./mocks/cursor.go

// Cursor is a single-pass source of log records, such as a logcursor.Cursor
type Cursor interface {
	// Name identifies the source in errors
	Name() string
	// Peek returns the next undelivered record without consuming it, or false once the source is
	// exhausted
	Peek() (event.Event, bool, error)
	// Advance consumes the record most recently returned by Peek
	Advance()
}

// Option configures a Sequencer
type Option func(s *Sequencer)

// WithExpectedCount makes the Sequencer fail with memutils.ErrIncompleteLog if its sources run dry
// before count records have been delivered
func WithExpectedCount(count uint64) Option {
	return func(s *Sequencer) {
		s.expectedCount = count
		s.hasExpectedCount = true
	}
}

// Sequencer merges the records of several cursors into a single stream ordered by sequence number,
// and verifies that the merged stream is exactly 0, 1, 2, ... with no number missing or repeated.
//
// Each cursor only has to be ordered with respect to itself. The Sequencer keeps the head record of
// every non-exhausted cursor in a min-heap; the smallest head is always the next record of the merged
// stream, and it must carry the next expected sequence number.
type Sequencer struct {
	cursors []Cursor
	heads   headHeap
	primed  bool

	next             uint64
	expectedCount    uint64
	hasExpectedCount bool
	lastSource       string

	// An error raised while refilling the heap after a successful delivery. It is returned by the
	// following call to Next, so the delivered record is not lost.
	deferredErr error
}

// New creates a Sequencer over the provided cursors. At least one cursor is required.
func New(cursors []Cursor, opts ...Option) (*Sequencer, error) {
	if len(cursors) == 0 {
		return nil, errors.Mark(errors.New("no log sources to merge"), memutils.ErrIncompleteLog)
	}

	s := &Sequencer{
		cursors: cursors,
		heads:   make(headHeap, 0, len(cursors)),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Delivered returns the number of records delivered so far, which is also the sequence number of
// the next record to be delivered
func (s *Sequencer) Delivered() uint64 { return s.next }

// LastSource returns the name of the cursor that supplied the most recently delivered or
// rejected record
func (s *Sequencer) LastSource() string { return s.lastSource }

// Next returns the next record of the merged stream along with the name of the cursor it came from.
// The boolean return is false once every cursor is exhausted. Errors are marked with
// memutils.ErrSequenceGap when the smallest remaining record does not carry the expected sequence
// number; errors returned by a cursor are passed through unchanged.
func (s *Sequencer) Next() (event.Event, string, bool, error) {
	if s.deferredErr != nil {
		return event.Event{}, s.lastSource, false, s.deferredErr
	}

	if !s.primed {
		s.primed = true
		for _, cursor := range s.cursors {
			err := s.push(cursor)
			if err != nil {
				return event.Event{}, s.lastSource, false, err
			}
		}
	}

	if s.heads.Len() == 0 {
		if s.hasExpectedCount && s.next < s.expectedCount {
			return event.Event{}, s.lastSource, false, errors.Mark(
				errors.Newf("log ended after %d of %d records", s.next, s.expectedCount),
				memutils.ErrIncompleteLog)
		}
		return event.Event{}, s.lastSource, false, nil
	}

	h := heap.Pop(&s.heads).(head)
	s.lastSource = h.cursor.Name()

	if h.event.Seq != s.next {
		return h.event, s.lastSource, false, s.gapError(h.event.Seq)
	}

	s.next++
	source := s.lastSource
	h.cursor.Advance()
	s.deferredErr = s.push(h.cursor)

	return h.event, source, true, nil
}

// Run delivers every record of the merged stream to handle, in order, stopping at the first error
// from either the merge or the handler
func (s *Sequencer) Run(handle func(e event.Event, source string) error) error {
	for {
		e, source, ok, err := s.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		err = handle(e, source)
		if err != nil {
			return err
		}
	}
}

func (s *Sequencer) push(cursor Cursor) error {
	e, ok, err := cursor.Peek()
	if err != nil {
		s.lastSource = cursor.Name()
		return err
	}
	if ok {
		heap.Push(&s.heads, head{event: e, cursor: cursor})
	}
	return nil
}

func (s *Sequencer) gapError(seq uint64) error {
	if seq < s.next {
		return errors.Mark(
			errors.Newf("seq %d was already delivered, expected %d", seq, s.next),
			memutils.ErrSequenceGap)
	}

	return errors.Mark(
		errors.Newf("seq %d is missing, next available record is %d", s.next, seq),
		memutils.ErrSequenceGap)
}

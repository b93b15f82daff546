package logcursor

import (
	"bufio"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/heapcheck/event"
	"github.com/vkngwrapper/heapcheck/memutils"
	"golang.org/x/exp/slices"
)

const maxRecordSize = 1 << 20

// Cursor reads the records of a single log source, one at a time and in a single pass. The record
// returned by Peek stays in place until Advance is called.
type Cursor struct {
	name    string
	scanner *bufio.Scanner
	closers []io.Closer

	window  int
	pending []event.Event
	line    int
	eof     bool
	err     error
}

// Option configures a Cursor
type Option func(c *Cursor)

// WithReorderWindow makes the cursor hold up to window records beyond the one it exposes, and always
// expose the one with the lowest sequence number. A log that was written slightly out of order, for
// instance by several threads sharing one log under a lock, is delivered in order as long as no
// record is displaced by more than window lines.
func WithReorderWindow(window int) Option {
	return func(c *Cursor) {
		if window > 0 {
			c.window = window
		}
	}
}

// NewCursor creates a Cursor that reads records from r. The name identifies the source in errors.
// The cursor does not close r.
func NewCursor(name string, r io.Reader, opts ...Option) *Cursor {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordSize)

	c := &Cursor{
		name:    name,
		scanner: scanner,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Name returns the name that identifies this cursor's source
func (c *Cursor) Name() string { return c.name }

// Line returns the number of lines read from the source so far
func (c *Cursor) Line() int { return c.line }

// Peek returns the next undelivered record without consuming it. The boolean return is false once the
// source is exhausted. A record that fails to decode is returned as an error marked with
// memutils.ErrMalformedRecord or memutils.ErrUnknownAction, and a failure to read the source as an
// error marked with memutils.ErrIncompleteLog.
func (c *Cursor) Peek() (event.Event, bool, error) {
	c.fill()

	if c.err != nil {
		return event.Event{}, false, c.err
	}

	if len(c.pending) == 0 {
		return event.Event{}, false, nil
	}

	return c.pending[0], true, nil
}

// Advance consumes the record most recently returned by Peek
func (c *Cursor) Advance() {
	if len(c.pending) > 0 {
		c.pending = slices.Delete(c.pending, 0, 1)
	}
}

// Close releases the source, if the cursor owns it
func (c *Cursor) Close() error {
	var err error
	for i := len(c.closers) - 1; i >= 0; i-- {
		err = errors.CombineErrors(err, c.closers[i].Close())
	}
	c.closers = nil

	return err
}

func (c *Cursor) fill() {
	for !c.eof && c.err == nil && len(c.pending) <= c.window {
		if !c.scanner.Scan() {
			c.eof = true
			if err := c.scanner.Err(); err != nil {
				c.err = errors.Mark(
					errors.Wrapf(err, "reading %s after line %d", c.name, c.line),
					memutils.ErrIncompleteLog)
			}
			return
		}

		c.line++
		e, err := event.Decode(c.scanner.Text())
		if err != nil {
			c.err = errors.Wrapf(err, "%s line %d", c.name, c.line)
			return
		}

		index, _ := slices.BinarySearchFunc(c.pending, e.Seq, func(pending event.Event, seq uint64) int {
			if pending.Seq <= seq {
				return -1
			}
			return 1
		})
		c.pending = slices.Insert(c.pending, index, e)
	}
}

package logcursor

import (
	"io"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/readahead"
	"github.com/vkngwrapper/heapcheck/memutils"
)

const (
	readaheadBuffers    = 4
	readaheadBufferSize = 1 << 20
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// Open creates a Cursor over the log file at path. Files ending in .zst or .gz are decompressed
// transparently. The cursor owns the file and must be closed. A file that cannot be opened is
// reported as an error marked with memutils.ErrIncompleteLog, since its records can never be
// delivered.
func Open(path string, opts ...Option) (*Cursor, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "opening log %s", path), memutils.ErrIncompleteLog)
	}

	ra, err := readahead.NewReaderSize(file, readaheadBuffers, readaheadBufferSize)
	if err != nil {
		_ = file.Close()
		return nil, errors.Wrapf(err, "opening log %s", path)
	}

	closers := []io.Closer{file, ra}
	var r io.Reader = ra

	switch filepath.Ext(path) {
	case ".zst":
		dec, err := zstd.NewReader(ra)
		if err != nil {
			_ = ra.Close()
			_ = file.Close()
			return nil, errors.Mark(errors.Wrapf(err, "opening zstd log %s", path), memutils.ErrIncompleteLog)
		}
		closers = append(closers, closerFunc(func() error {
			dec.Close()
			return nil
		}))
		r = dec
	case ".gz":
		gz, err := gzip.NewReader(ra)
		if err != nil {
			_ = ra.Close()
			_ = file.Close()
			return nil, errors.Mark(errors.Wrapf(err, "opening gzip log %s", path), memutils.ErrIncompleteLog)
		}
		closers = append(closers, gz)
		r = gz
	}

	c := NewCursor(path, r, opts...)
	c.closers = closers
	return c, nil
}

package logcursor_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/heapcheck/event"
	"github.com/vkngwrapper/heapcheck/logcursor"
	"github.com/vkngwrapper/heapcheck/memutils"
)

const sampleLog = "0 malloc 16 0x0\n3 malloc 8 0x10\n4 free 0x0\n"

func drain(t *testing.T, c *logcursor.Cursor) []uint64 {
	var seqs []uint64
	for {
		e, ok, err := c.Peek()
		require.NoError(t, err)
		if !ok {
			return seqs
		}
		seqs = append(seqs, e.Seq)
		c.Advance()
	}
}

func TestCursorPeekAdvance(t *testing.T) {
	c := logcursor.NewCursor("thread-1", strings.NewReader(sampleLog))
	require.Equal(t, "thread-1", c.Name())

	e, ok, err := c.Peek()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, event.Malloc(0, 16, 0), e)

	// peeking again does not consume
	e, ok, err = c.Peek()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(0), e.Seq)

	c.Advance()
	require.Equal(t, []uint64{3, 4}, drain(t, c))
	require.Equal(t, 3, c.Line())

	_, ok, err = c.Peek()
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, c.Close())
}

func TestCursorEmptySource(t *testing.T) {
	c := logcursor.NewCursor("empty", strings.NewReader(""))
	_, ok, err := c.Peek()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCursorMalformedLine(t *testing.T) {
	c := logcursor.NewCursor("thread-2", strings.NewReader("0 malloc 16 0x0\n1 malloc sixteen 0x10\n"))
	require.Equal(t, []uint64{0}, drainUntilError(t, c))

	_, _, err := c.Peek()
	require.True(t, errors.Is(err, memutils.ErrMalformedRecord))
	require.Contains(t, err.Error(), "thread-2 line 2")
}

func TestCursorUnknownAction(t *testing.T) {
	c := logcursor.NewCursor("thread-3", strings.NewReader("0 calloc 16 0x0\n"))
	_, _, err := c.Peek()
	require.True(t, errors.Is(err, memutils.ErrUnknownAction))
}

func TestCursorReadError(t *testing.T) {
	c := logcursor.NewCursor("broken", iotest.ErrReader(errors.New("disk on fire")))
	_, _, err := c.Peek()
	require.True(t, errors.Is(err, memutils.ErrIncompleteLog))
	require.Contains(t, err.Error(), "disk on fire")
}

func TestCursorReorderWindow(t *testing.T) {
	log := "1 malloc 8 0x8\n0 malloc 8 0x0\n2 free 0x0\n4 free 0x8\n3 malloc 8 0x10\n"

	strict := logcursor.NewCursor("strict", strings.NewReader(log))
	require.Equal(t, []uint64{1, 0, 2, 4, 3}, drain(t, strict))

	windowed := logcursor.NewCursor("windowed", strings.NewReader(log), logcursor.WithReorderWindow(1))
	require.Equal(t, []uint64{0, 1, 2, 3, 4}, drain(t, windowed))
}

func TestOpenPlainAndCompressed(t *testing.T) {
	dir := t.TempDir()

	plain := filepath.Join(dir, "1.out")
	require.NoError(t, os.WriteFile(plain, []byte(sampleLog), 0o644))

	gzPath := filepath.Join(dir, "2.out.gz")
	gzFile, err := os.Create(gzPath)
	require.NoError(t, err)
	gzWriter := gzip.NewWriter(gzFile)
	_, err = gzWriter.Write([]byte(sampleLog))
	require.NoError(t, err)
	require.NoError(t, gzWriter.Close())
	require.NoError(t, gzFile.Close())

	zstPath := filepath.Join(dir, "3.out.zst")
	zstFile, err := os.Create(zstPath)
	require.NoError(t, err)
	zstWriter, err := zstd.NewWriter(zstFile)
	require.NoError(t, err)
	_, err = zstWriter.Write([]byte(sampleLog))
	require.NoError(t, err)
	require.NoError(t, zstWriter.Close())
	require.NoError(t, zstFile.Close())

	for _, path := range []string{plain, gzPath, zstPath} {
		c, err := logcursor.Open(path)
		require.NoError(t, err, path)
		require.Equal(t, path, c.Name())
		require.Equal(t, []uint64{0, 3, 4}, drain(t, c), path)
		require.NoError(t, c.Close(), path)
	}
}

func TestOpenMissingFile(t *testing.T) {
	_, err := logcursor.Open(filepath.Join(t.TempDir(), "missing.out"))
	require.Error(t, err)
	require.True(t, errors.Is(err, memutils.ErrIncompleteLog))
}

func drainUntilError(t *testing.T, c *logcursor.Cursor) []uint64 {
	var seqs []uint64
	for {
		e, ok, err := c.Peek()
		if err != nil || !ok {
			return seqs
		}
		seqs = append(seqs, e.Seq)
		c.Advance()
	}
}

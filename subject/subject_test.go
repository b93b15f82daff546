package subject_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/heapcheck/subject"
)

const sampleStderr = `Log file: 3
Heap size: 9216
some unrelated output
Log file: 7
`

func TestParseDiagnostics(t *testing.T) {
	diag, err := subject.ParseDiagnostics(strings.NewReader(sampleStderr))
	require.NoError(t, err)
	require.Equal(t, uint64(9216), diag.HeapSize)
	require.Equal(t, []string{"3", "7"}, diag.ThreadIDs)
	require.Equal(t, []string{filepath.Join("tmp", "3.out"), filepath.Join("tmp", "7.out")}, diag.LogPaths("tmp", ".out"))
}

func TestParseDiagnosticsFirstHeapSizeWins(t *testing.T) {
	diag, err := subject.ParseDiagnostics(strings.NewReader("Heap size: 10\nHeap size: 20\n"))
	require.NoError(t, err)
	require.Equal(t, uint64(10), diag.HeapSize)
	require.Empty(t, diag.ThreadIDs)
}

func TestParseDiagnosticsNoHeapSize(t *testing.T) {
	_, err := subject.ParseDiagnostics(strings.NewReader("Log file: 1\n"))
	require.True(t, errors.Is(err, subject.ErrNoHeapSize))
}

func TestCleanLogs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"1.out", "2.out", "keep.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("0 malloc 8 0x0\n"), 0o644))
	}

	removed, err := subject.CleanLogs(dir, ".out")
	require.NoError(t, err)
	require.Equal(t, 2, removed)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "keep.txt", entries[0].Name())
}

func TestCleanLogsMissingDir(t *testing.T) {
	removed, err := subject.CleanLogs(filepath.Join(t.TempDir(), "missing"), ".out")
	require.NoError(t, err)
	require.Equal(t, 0, removed)
}

func TestRun(t *testing.T) {
	var stdout bytes.Buffer
	diag, err := subject.Run(context.Background(), nil,
		[]string{"sh", "-c", "echo hello; echo 'Heap size: 4096' >&2; echo 'Log file: 1' >&2"},
		subject.RunOptions{Stdout: &stdout})
	require.NoError(t, err)
	require.Equal(t, "hello\n", stdout.String())
	require.Equal(t, uint64(4096), diag.HeapSize)
	require.Equal(t, []string{"1"}, diag.ThreadIDs)
}

func TestRunNoLogs(t *testing.T) {
	_, err := subject.Run(context.Background(), nil,
		[]string{"sh", "-c", "echo 'Heap size: 4096' >&2"},
		subject.RunOptions{})
	require.True(t, errors.Is(err, subject.ErrNoLogs))
}

func TestRunTimeout(t *testing.T) {
	_, err := subject.Run(context.Background(), nil,
		[]string{"sleep", "5"},
		subject.RunOptions{Timeout: 50 * time.Millisecond})
	require.Error(t, err)
	require.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestRunNoCommand(t *testing.T) {
	_, err := subject.Run(context.Background(), nil, nil, subject.RunOptions{})
	require.Error(t, err)
}

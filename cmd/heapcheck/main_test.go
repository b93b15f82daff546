package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func runCLI(args ...string) (string, error) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return out.String(), err
}

func writeLog(t *testing.T, dir, name, contents string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestReplaySuccess(t *testing.T) {
	dir := t.TempDir()
	first := writeLog(t, dir, "1.out", "0 malloc 16 1000\n2 free 1000\n")
	second := writeLog(t, dir, "2.out", "1 malloc 32 2000\n3 free 2000\n")

	out, err := runCLI("replay", "--json=false", "--verbose=false", "--heap-size", "4096", first, second)
	require.NoError(t, err)
	require.Equal(t, "VALIDATION SUCCESS\nPeak allocated size: 48\nUsed heap size: 4096\nSpace utilization score: 1.000000\n", out)
}

func TestReplayFailure(t *testing.T) {
	dir := t.TempDir()
	path := writeLog(t, dir, "1.out", "0 malloc 16 1004\n")

	out, err := runCLI("replay", "--json=false", "--verbose=false", "--heap-size", "4096", path)
	require.True(t, errors.Is(err, errValidationFailed))
	require.Equal(t, fmt.Sprintf("VALIDATION ERROR: 0x1004 is not aligned to 8 bytes at seq 0 in %s\n", path), out)
}

func TestReplayAlignmentFlag(t *testing.T) {
	dir := t.TempDir()
	path := writeLog(t, dir, "1.out", "0 malloc 16 1004\n1 free 1004\n")

	_, err := runCLI("replay", "--json=false", "--verbose=false", "--alignment", "4", "--heap-size", "4096", path)
	require.NoError(t, err)

	_, err = runCLI("replay", "--alignment", "3", "--heap-size", "4096", path)
	require.Error(t, err)
	require.False(t, errors.Is(err, errValidationFailed))

	_, err = runCLI("replay", "--alignment", "8", "--heap-size", "4096", path)
	require.True(t, errors.Is(err, errValidationFailed))
}

func TestReplayJSON(t *testing.T) {
	dir := t.TempDir()
	path := writeLog(t, dir, "1.out", "0 malloc 16 1000\n")

	out, err := runCLI("replay", "--json", "--verbose=false", "--heap-size", "4096", path)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, `{"RunId":`))
	require.Contains(t, out, `"Success":true`)
	require.Contains(t, out, `"LiveBlocks":1`)
}

func TestRunValidatesReportedLogs(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "9.out", "stale log from an earlier run\n")

	script := fmt.Sprintf(`printf '0 malloc 16 1000\n1 free 1000\n' > %s/1.out
echo 'Heap size: 4096' >&2
echo 'Log file: 1' >&2
echo 'benchmark done'`, dir)

	out, err := runCLI("run", "--json=false", "--verbose=false", "--tmp-dir", dir, "--", "sh", "-c", script)
	require.NoError(t, err)
	require.Equal(t, "benchmark done\nVALIDATION SUCCESS\nPeak allocated size: 16\nUsed heap size: 4096\nSpace utilization score: 1.000000\n", out)

	_, err = os.Stat(filepath.Join(dir, "9.out"))
	require.True(t, os.IsNotExist(err))
}

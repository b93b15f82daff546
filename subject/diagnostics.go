package subject

import (
	"bufio"
	"io"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/cockroachdb/errors"
)

var (
	heapSizePattern = regexp.MustCompile(`Heap size: (\d+)`)
	logFilePattern  = regexp.MustCompile(`Log file: (\d+)`)
)

// ErrNoHeapSize is returned from ParseDiagnostics when the program under test never reported the
// size of its heap
var ErrNoHeapSize = errors.New("no heap size reported")

// Diagnostics is what a validate build of an allocator reports about its run on stderr
type Diagnostics struct {
	// HeapSize is the heap size the allocator used, in bytes. When it is reported more than once, the
	// first report wins.
	HeapSize uint64
	// ThreadIDs lists the threads that wrote a log, in the order they were reported
	ThreadIDs []string
}

// ParseDiagnostics scans the stderr output of a validate build for its "Heap size: N" and
// "Log file: N" lines. Other output is ignored.
func ParseDiagnostics(r io.Reader) (Diagnostics, error) {
	var diag Diagnostics
	var hasHeapSize bool

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()

		if !hasHeapSize {
			match := heapSizePattern.FindStringSubmatch(line)
			if match != nil {
				heapSize, err := strconv.ParseUint(match[1], 10, 64)
				if err != nil {
					return Diagnostics{}, errors.Wrapf(err, "parsing heap size %q", match[1])
				}
				diag.HeapSize = heapSize
				hasHeapSize = true
			}
		}

		for _, match := range logFilePattern.FindAllStringSubmatch(line, -1) {
			diag.ThreadIDs = append(diag.ThreadIDs, match[1])
		}
	}

	err := scanner.Err()
	if err != nil {
		return Diagnostics{}, errors.Wrap(err, "reading diagnostics")
	}

	if !hasHeapSize {
		return diag, ErrNoHeapSize
	}

	return diag, nil
}

// LogPaths returns the log file of every reported thread, named <thread id><ext> inside dir
func (d Diagnostics) LogPaths(dir, ext string) []string {
	paths := make([]string, 0, len(d.ThreadIDs))
	for _, id := range d.ThreadIDs {
		paths = append(paths, filepath.Join(dir, id+ext))
	}
	return paths
}

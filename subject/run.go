package subject

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"
)

// ErrNoLogs is returned from Run when the program under test did not report any log files, which
// usually means it was not built with validation logging
var ErrNoLogs = errors.New("no log files reported; did you run a validate build of the program?")

// RunOptions configures Run
type RunOptions struct {
	// Timeout bounds the run of the program. Zero means no limit.
	Timeout time.Duration
	// Stdout receives the program's standard output. Nil discards it.
	Stdout io.Writer
}

// Run executes argv, waits for it to exit and returns the diagnostics it reported on stderr. A nil
// logger discards all output.
func Run(ctx context.Context, logger *slog.Logger, argv []string, options RunOptions) (Diagnostics, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if len(argv) == 0 {
		return Diagnostics{}, errors.New("no command to run")
	}

	if options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, options.Timeout)
		defer cancel()
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = options.Stdout
	cmd.Stderr = &stderr

	logger.Debug("running program", slog.Any("argv", argv), slog.Duration("timeout", options.Timeout))

	start := time.Now()
	err := cmd.Run()
	if ctx.Err() != nil {
		return Diagnostics{}, errors.Wrapf(ctx.Err(), "running %s", argv[0])
	}
	if err != nil {
		return Diagnostics{}, errors.Wrapf(err, "running %s", argv[0])
	}

	logger.Debug("program exited", slog.Duration("elapsed", time.Since(start)), slog.Int("stderr_bytes", stderr.Len()))

	diag, err := ParseDiagnostics(&stderr)
	if err != nil {
		return Diagnostics{}, err
	}

	if len(diag.ThreadIDs) == 0 {
		return Diagnostics{}, ErrNoLogs
	}

	return diag, nil
}

// CleanLogs removes every file ending in ext from dir, so that logs left over from an earlier run
// cannot be mistaken for the next run's. A missing dir is not an error. It returns the number of
// files removed.
func CleanLogs(dir, ext string) (int, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*"+ext))
	if err != nil {
		return 0, errors.Wrapf(err, "listing logs in %s", dir)
	}

	var removed int
	for _, path := range paths {
		err = os.Remove(path)
		if err != nil && !os.IsNotExist(err) {
			return removed, errors.Wrapf(err, "removing %s", path)
		}
		removed++
	}

	return removed, nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/vkngwrapper/heapcheck/internal/config"
	"github.com/vkngwrapper/heapcheck/validator"
	"golang.org/x/exp/slog"
)

var (
	// Global flags
	configPath    string
	verbose       bool
	jsonOut       bool
	indexKind     string
	alignment     uint64
	reorderWindow int
	tmpDir        string
	logExt        string
)

// errValidationFailed is returned from a command once a failed validation has been reported, so
// that execute exits nonzero without printing the error a second time
var errValidationFailed = errors.New("validation failed")

var rootCmd = &cobra.Command{
	Use:   "heapcheck",
	Short: "Validate and score a memory allocator from its event logs",
	Long: `heapcheck replays the per-thread malloc/free/realloc logs written by a
validate build of a memory allocator. It merges the logs by sequence number,
checks every payload for alignment, overlap and invalid frees, and scores the
allocator's space utilization as its peak payload size over its heap size.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	defaults := config.Default()

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML file to read settings from")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output the report in JSON format")
	rootCmd.PersistentFlags().StringVar(&indexKind, "index", defaults.Index, "Live payload index to use (ordered, linear)")
	rootCmd.PersistentFlags().Uint64Var(&alignment, "alignment", defaults.Alignment, "Required payload alignment in bytes")
	rootCmd.PersistentFlags().IntVar(&reorderWindow, "reorder-window", defaults.ReorderWindow, "Number of records each log may be out of order by (0: strict, or a wide window for a single log)")
	rootCmd.PersistentFlags().StringVar(&tmpDir, "tmp-dir", defaults.TmpDir, "Directory the logs are written to")
	rootCmd.PersistentFlags().StringVar(&logExt, "log-ext", defaults.LogExt, "Extension of the per-thread log files")
}

func execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		if !errors.Is(err, errValidationFailed) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// loadConfig reads the config file, if any, and applies the flags that were set explicitly on top
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("index") {
		cfg.Index = indexKind
	}
	if flags.Changed("alignment") {
		cfg.Alignment = alignment
	}
	if flags.Changed("reorder-window") {
		cfg.ReorderWindow = reorderWindow
	}
	if flags.Changed("tmp-dir") {
		cfg.TmpDir = tmpDir
	}
	if flags.Changed("log-ext") {
		cfg.LogExt = logExt
	}

	return cfg, cfg.Validate()
}

// newLogger logs warnings and errors to stderr, or everything down to debug in verbose mode
func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// printReport writes the report in the selected format and turns a validation failure into
// errValidationFailed
func printReport(cmd *cobra.Command, report *validator.Report, validateErr error) error {
	if report == nil {
		return validateErr
	}

	var err error
	if jsonOut {
		err = report.WriteJSON(cmd.OutOrStdout())
	} else {
		err = report.WriteText(cmd.OutOrStdout(), verbose)
	}
	if err != nil {
		return errors.Wrap(err, "writing report")
	}

	if validateErr != nil {
		return errValidationFailed
	}
	return nil
}

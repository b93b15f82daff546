package main

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/vkngwrapper/heapcheck/subject"
	"github.com/vkngwrapper/heapcheck/validator"
	"golang.org/x/exp/slog"
)

var runTimeout time.Duration

func init() {
	cmd := newRunCmd()
	cmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Kill the program if it runs longer than this (0 for no limit)")
	rootCmd.AddCommand(cmd)
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [flags] -- <command> [args...]",
		Short: "Run a validate build of an allocator and validate its logs",
		Long: `The run command removes stale logs from the log directory, runs the
given program, and validates the logs of every thread it reports on stderr
against the heap size it reports. The program's stdout is passed through.

Logs must be ordered by sequence number. A program that takes sequence
numbers outside its log lock writes slightly out-of-order logs; pass
--reorder-window N to accept records displaced by up to N lines. A run with
a single log accepts a wide window by default.

Example:
  heapcheck run -- ./cache-scratch-validate 12 100 8 100000
  heapcheck run --timeout 2m --verbose -- ./larson-validate 5 8 1000`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, args)
		},
	}
	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Timeout = runTimeout
	}

	logger := newLogger(cmd)

	removed, err := subject.CleanLogs(cfg.TmpDir, cfg.LogExt)
	if err != nil {
		return err
	}
	logger.Debug("removed stale logs", slog.Int("count", removed), slog.String("dir", cfg.TmpDir))

	diag, err := subject.Run(cmd.Context(), logger, args, subject.RunOptions{
		Timeout: cfg.Timeout,
		Stdout:  cmd.OutOrStdout(),
	})
	if err != nil {
		return err
	}

	options, err := cfg.ValidatorOptions()
	if err != nil {
		return err
	}

	v, err := validator.New(logger, options)
	if err != nil {
		return err
	}

	report, err := v.ValidateFiles(diag.LogPaths(cfg.TmpDir, cfg.LogExt), diag.HeapSize)
	return printReport(cmd, report, err)
}

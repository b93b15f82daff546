package main

import (
	"github.com/spf13/cobra"
	"github.com/vkngwrapper/heapcheck/validator"
)

var (
	replayHeapSize       uint64
	replayExpectedEvents uint64
)

func init() {
	cmd := newReplayCmd()
	cmd.Flags().Uint64Var(&replayHeapSize, "heap-size", 0, "Heap size in bytes the allocator reported")
	cmd.Flags().Uint64Var(&replayExpectedEvents, "expected-events", 0, "Fail unless the logs hold exactly this many records (0 to skip)")
	_ = cmd.MarkFlagRequired("heap-size")
	rootCmd.AddCommand(cmd)
}

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay --heap-size <bytes> <log>...",
		Short: "Validate existing event logs",
		Long: `The replay command validates logs left behind by an earlier run of a
validate build. Logs ending in .zst or .gz are decompressed on the fly.

Example:
  heapcheck replay --heap-size 9216 tmp/3.out tmp/7.out
  heapcheck replay --heap-size 9216 --json run.out.zst`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, args)
		},
	}
	return cmd
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	options, err := cfg.ValidatorOptions()
	if err != nil {
		return err
	}
	options.ExpectedEvents = replayExpectedEvents

	v, err := validator.New(newLogger(cmd), options)
	if err != nil {
		return err
	}

	report, err := v.ValidateFiles(args, replayHeapSize)
	return printReport(cmd, report, err)
}

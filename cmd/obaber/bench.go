package main

import (
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/KilimcininKorOglu/obaber/benchmarks"
)

// ErrTargetsMissed is returned by bench-report --check when a target fails.
var ErrTargetsMissed = errors.New("benchmark targets not met")

func newBenchReportCmd() *cobra.Command {
	var (
		format string
		check  bool
	)

	cmd := &cobra.Command{
		Use:   "bench-report [file]",
		Short: "Format go test -bench output and check throughput targets",
		Long: `Read the output of go test -bench (from a file or stdin) and print a
report grouped by package, followed by the decoder and encoder targets.

Example:
  go test -run '^$' -bench . -benchmem ./internal/... | obaber bench-report --format markdown`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			results, err := benchmarks.ParseBenchmarkOutput(in)
			if err != nil {
				return err
			}

			report := benchmarks.NewReport()
			report.AddResults(results)
			if err := report.Generate(cmd.OutOrStdout(), format); err != nil {
				return err
			}

			if check {
				for _, c := range report.CheckTargets() {
					if !c.Passed() {
						return ErrTargetsMissed
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "Report format: text, markdown")
	cmd.Flags().BoolVar(&check, "check", false, "Exit non-zero when a target is missed")
	return cmd
}

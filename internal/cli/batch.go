package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/asynkron/strictpatch/internal/batch"
	"github.com/asynkron/strictpatch/internal/manifest"
)

func (a *app) batchCommand() *cobra.Command {
	var (
		dryRun bool
		stats  bool
	)
	cmd := &cobra.Command{
		Use:   "batch MANIFEST",
		Short: "Apply every patch listed in a manifest",
		Long: `Apply every patch listed in a JSON or YAML (.yaml, .yml) manifest.

Entries that name the same target are applied in order as one job. Each job
either applies completely or leaves its files untouched; a failing job does not
affect the others. Jobs run concurrently up to --workers.`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if stats {
				defer a.printStats()
			}
			m, err := manifest.Load(args[0])
			if err != nil {
				return err
			}

			runner := batch.NewRunner(batch.Options{
				Workers:      a.opts.Workers,
				OutputSuffix: a.opts.OutputSuffix,
				Stream:       a.opts.Stream,
				DryRun:       dryRun,
				Logger:       a.logger,
				Metrics:      a.metrics,
			})
			report, err := runner.Run(cmd.Context(), m)
			if err != nil {
				return err
			}

			for _, outcome := range report.Outcomes {
				if outcome.OK() {
					fmt.Fprintf(a.stdout, "ok    %s -> %s %s\n", outcome.Entry.Label(), outcome.Result.Status, outcome.Result.Path)
					continue
				}
				fmt.Fprintf(a.stdout, "FAIL  %s\n", outcome.Entry.Label())
				a.printError(outcome.Err)
			}
			if failed := report.Failed(); failed > 0 {
				fmt.Fprintf(a.stderr, "%d of %d entries failed\n", failed, len(report.Outcomes))
				return failedError{}
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.Int("workers", 0, "maximum number of jobs applied concurrently (env STRICTPATCH_WORKERS)")
	flags.Bool("stream", false, "apply line by line instead of loading originals into memory")
	flags.String("suffix", "", "write TARGET+SUFFIX instead of replacing targets")
	flags.BoolVar(&dryRun, "dry-run", false, "check every entry without writing anything")
	flags.BoolVar(&stats, "stats", false, "print timing and size statistics to stderr")
	return cmd
}

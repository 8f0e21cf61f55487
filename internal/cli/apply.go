package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/asynkron/strictpatch/internal/logging"
	"github.com/asynkron/strictpatch/pkg/patch"
)

func (a *app) applyCommand() *cobra.Command {
	var (
		output  string
		inPlace bool
		dryRun  bool
		stats   bool
	)
	cmd := &cobra.Command{
		Use:   "apply ORIGINAL PATCH",
		Short: "Apply PATCH to ORIGINAL",
		Long: `Apply PATCH to ORIGINAL and print the result.

With --output or --in-place the result is staged next to the target and only
moved into place when the whole patch applied. Printing to stdout with
--stream writes lines as they are produced, so a failing patch may leave
partial output behind.`,
		Args: usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "" && inPlace {
				return usageError{fmt.Errorf("--output and --in-place are mutually exclusive")}
			}
			if cmd.Flags().Changed("suffix") && !inPlace {
				return usageError{fmt.Errorf("--suffix requires --in-place")}
			}
			if stats {
				defer a.printStats()
			}
			originalPath, patchPath := args[0], args[1]
			diffText, err := os.ReadFile(patchPath)
			if err != nil {
				return fmt.Errorf("read patch: %w", err)
			}

			logger := a.logger.WithFields(logging.F("original", originalPath), logging.F("patch", patchPath))
			started := time.Now()
			var written int64
			if output != "" || inPlace || dryRun {
				written, err = a.applyToFile(cmd, originalPath, string(diffText), output, dryRun)
			} else {
				written, err = a.applyToStdout(cmd, originalPath, string(diffText))
			}
			duration := time.Since(started)

			a.metrics.RecordApply(duration, written, err == nil)
			if err != nil {
				a.metrics.RecordFailure(patch.CodeOf(err))
				logger.Error(cmd.Context(), "apply failed", err)
				return err
			}
			logger.Info(cmd.Context(), "patch applied", logging.F("bytes", written), logging.F("duration", duration))
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&output, "output", "o", "", "write the result to this file instead of stdout")
	flags.BoolVarP(&inPlace, "in-place", "i", false, "replace ORIGINAL with the result")
	flags.BoolVar(&dryRun, "dry-run", false, "check that the patch applies without writing anything")
	flags.Bool("stream", false, "apply line by line instead of loading ORIGINAL into memory")
	flags.String("suffix", "", "with --in-place, write ORIGINAL+SUFFIX instead of replacing ORIGINAL")
	flags.BoolVar(&stats, "stats", false, "print timing and size statistics to stderr")
	return cmd
}

func (a *app) applyToFile(cmd *cobra.Command, originalPath, diffText, output string, dryRun bool) (int64, error) {
	results, err := patch.ApplyFilesystem(cmd.Context(), []patch.FilePatch{{
		Path:   originalPath,
		Diff:   diffText,
		Output: output,
	}}, patch.FilesystemOptions{
		OutputSuffix: a.opts.OutputSuffix,
		DryRun:       dryRun,
		Buffered:     !a.opts.Stream,
	})
	if err != nil {
		return 0, err
	}
	result := results[0]
	if dryRun {
		fmt.Fprintf(a.stdout, "would write %s (%d bytes)\n", result.Path, result.Bytes)
	} else {
		fmt.Fprintf(a.stdout, "%s %s\n", result.Status, result.Path)
	}
	return result.Bytes, nil
}

func (a *app) applyToStdout(cmd *cobra.Command, originalPath, diffText string) (int64, error) {
	if a.opts.Stream {
		in, err := os.Open(originalPath)
		if err != nil {
			return 0, fmt.Errorf("read original: %w", err)
		}
		defer in.Close()
		sink := patch.NewWriterSink(a.stdout)
		if err := patch.ApplyStream(cmd.Context(), diffText, patch.NewReaderSource(in), sink); err != nil {
			return sink.Written(), err
		}
		return sink.Written(), nil
	}

	original, err := os.ReadFile(originalPath)
	if err != nil {
		return 0, fmt.Errorf("read original: %w", err)
	}
	patched, err := patch.Apply(diffText, string(original))
	if err != nil {
		return 0, err
	}
	n, err := fmt.Fprint(a.stdout, patched)
	return int64(n), err
}

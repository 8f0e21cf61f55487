package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/asynkron/strictpatch/internal/logging"
	"github.com/asynkron/strictpatch/pkg/patch"
)

func (a *app) checkCommand() *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "check ORIGINAL PATCH",
		Short: "Exit 0 if PATCH applies cleanly to ORIGINAL, 1 otherwise",
		Args:  usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			original, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read original: %w", err)
			}
			diffText, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read patch: %w", err)
			}

			diff, err := patch.Parse(string(diffText))
			if err != nil {
				if !quiet {
					a.printError(err)
				}
				return failedError{}
			}
			buf := make([]byte, diff.OutputSize(len(original)))
			ok, n := patch.TryApply(string(diffText), string(original), buf)
			a.logger.Debug(cmd.Context(), "check finished", logging.F("ok", ok), logging.F("bytes", n))
			if !ok {
				if !quiet {
					// TryApply only reports success; Apply recovers the reason.
					_, applyErr := diff.Apply(string(original))
					a.printError(applyErr)
				}
				return failedError{}
			}
			if !quiet {
				fmt.Fprintf(a.stdout, "%s: patch applies (%d bytes)\n", args[0], n)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "print nothing; report only through the exit code")
	return cmd
}

type hunkSummary struct {
	Header   string `json:"header"`
	StartA   int    `json:"start_a"`
	LengthA  int    `json:"length_a"`
	StartB   int    `json:"start_b"`
	LengthB  int    `json:"length_b"`
	Inserted int    `json:"inserted"`
	Deleted  int    `json:"deleted"`
}

type diffSummary struct {
	Hunks          []hunkSummary `json:"hunks"`
	Lines          []int         `json:"lines"`
	LastLine       int           `json:"last_line"`
	CharacterDelta int           `json:"character_delta"`
}

func summarize(diff *patch.UnifiedDiff) diffSummary {
	summary := diffSummary{
		Hunks:          []hunkSummary{},
		Lines:          diff.LineNumbers(),
		LastLine:       diff.LastLine(),
		CharacterDelta: diff.CharacterDelta(),
	}
	for _, hunk := range diff.Hunks() {
		hs := hunkSummary{
			Header:  hunk.Header.String(),
			StartA:  hunk.Header.StartA,
			LengthA: hunk.Header.LengthA,
			StartB:  hunk.Header.StartB,
			LengthB: hunk.Header.LengthB,
		}
		for line := hunk.Header.StartA; line < hunk.Header.StartA+hunk.Header.LengthA; line++ {
			ops, _ := hunk.Operations(line)
			for _, op := range ops {
				switch op.Op {
				case patch.Insert:
					hs.Inserted++
				case patch.Delete:
					hs.Deleted++
				}
			}
		}
		summary.Hunks = append(summary.Hunks, hs)
	}
	return summary
}

func (a *app) parseCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "parse PATCH",
		Short: "Validate PATCH and describe its hunks",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			diffText, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read patch: %w", err)
			}
			diff, err := patch.Parse(string(diffText))
			if err != nil {
				return err
			}
			summary := summarize(diff)
			if asJSON {
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			}
			for _, h := range summary.Hunks {
				fmt.Fprintf(a.stdout, "%s  +%d -%d\n", h.Header, h.Inserted, h.Deleted)
			}
			fmt.Fprintf(a.stdout, "%d hunk(s), last original line %d, size delta %+d bytes\n",
				len(summary.Hunks), summary.LastLine, summary.CharacterDelta)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the summary as JSON")
	return cmd
}

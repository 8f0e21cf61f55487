package cli

import (
	"github.com/spf13/cobra"

	"github.com/asynkron/strictpatch/internal/tui"
)

func (a *app) viewCommand() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "view ORIGINAL PATCH",
		Short: "Browse PATCH applied to ORIGINAL in the terminal",
		Args:  usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return tui.Run(cmd.Context(), tui.Config{
				OriginalPath: args[0],
				PatchPath:    args[1],
				Color:        a.opts.Color,
				Watch:        watch,
			})
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "reload when either file changes")
	return cmd
}

// Package cli implements the strictpatch command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/asynkron/strictpatch/internal/config"
	"github.com/asynkron/strictpatch/internal/logging"
	"github.com/asynkron/strictpatch/internal/metrics"
	"github.com/asynkron/strictpatch/pkg/patch"
)

// Exit codes returned by Run.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// usageError marks mistakes in how the command was invoked.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

// failedError reports a failure that has already been printed.
type failedError struct{}

func (failedError) Error() string { return "failed" }

// app carries state shared by every subcommand.
type app struct {
	opts    config.Options
	stdout  io.Writer
	stderr  io.Writer
	logger  logging.Logger
	metrics *metrics.InMemoryMetrics
	closers []io.Closer

	logLevel string
	logFile  string
	color    string
}

// Run executes the strictpatch command line with args (excluding the program
// name). It returns a POSIX-style exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	opts, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitUsage
	}

	a := &app{
		opts:    opts,
		stdout:  stdout,
		stderr:  stderr,
		logger:  &logging.NoOpLogger{},
		metrics: metrics.NewInMemoryMetrics(),
	}
	defer a.close()

	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err = root.ExecuteContext(ctx)
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, new(usageError)):
		fmt.Fprintf(stderr, "Error: %v\nRun 'strictpatch --help' for usage.\n", err)
		return ExitUsage
	case errors.As(err, new(failedError)):
		return ExitFailure
	default:
		a.printError(err)
		return ExitFailure
	}
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "strictpatch [command]",
		Short:         "Apply unified diffs strictly: every context and deleted line must match",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = cmd.Help()
			return usageError{errors.New("missing command")}
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	flags := root.PersistentFlags()
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error (env "+config.EnvLogLevel+")")
	flags.StringVar(&a.logFile, "log-file", "", "append logs to this file instead of stderr (env "+config.EnvLogFile+")")
	flags.StringVar(&a.color, "color", "", "colour output: auto, always or never (env "+config.EnvColor+")")

	root.AddCommand(
		a.applyCommand(),
		a.checkCommand(),
		a.parseCommand(),
		a.batchCommand(),
		a.viewCommand(),
	)
	return root
}

// setup applies flag overrides to the loaded options and opens the logger.
func (a *app) setup(cmd *cobra.Command) error {
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		a.opts.LogLevel = a.logLevel
	}
	if flags.Changed("log-file") {
		a.opts.LogFile = a.logFile
	}
	if flags.Changed("color") {
		a.opts.Color = config.ColorMode(strings.ToLower(a.color))
	}
	if flags.Lookup("workers") != nil && flags.Changed("workers") {
		a.opts.Workers, _ = flags.GetInt("workers")
	}
	if flags.Lookup("stream") != nil && flags.Changed("stream") {
		a.opts.Stream, _ = flags.GetBool("stream")
	}
	if flags.Lookup("suffix") != nil && flags.Changed("suffix") {
		a.opts.OutputSuffix, _ = flags.GetString("suffix")
	}
	if err := a.opts.Validate(); err != nil {
		return usageError{err}
	}

	var out io.Writer = a.stderr
	if a.opts.LogFile != "" {
		f, err := os.OpenFile(a.opts.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		a.closers = append(a.closers, f)
		out = f
	}
	a.logger = logging.NewStdLogger(a.opts.Level(), out).WithFields(logging.F("cmd", cmd.Name()))
	return nil
}

func (a *app) close() {
	for _, c := range a.closers {
		_ = c.Close()
	}
}

// printError writes err to stderr, using the detailed report for patch errors.
func (a *app) printError(err error) {
	var pe *patch.Error
	if errors.As(err, &pe) {
		fmt.Fprintln(a.stderr, patch.FormatError(pe))
		return
	}
	fmt.Fprintf(a.stderr, "Error: %v\n", err)
}

// printStats writes the collected metrics to stderr.
func (a *app) printStats() {
	snap := a.metrics.GetSnapshot()
	fmt.Fprintf(a.stderr, "applied: %d ok, %d failed, %d bytes written\n",
		snap.Applies.Success, snap.Applies.Failed, snap.BytesWritten)
	fmt.Fprintf(a.stderr, "duration: mean %v, min %v, max %v\n",
		snap.Applies.MeanTime(), snap.Applies.MinTime, snap.Applies.MaxTime)
	for _, code := range slices.Sorted(maps.Keys(snap.Failures)) {
		fmt.Fprintf(a.stderr, "failure %s: %d\n", code, snap.Failures[code])
	}
}

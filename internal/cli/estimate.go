package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/stele/internal/costmodel"
)

// EstimateOptions holds flags for the estimate command.
type EstimateOptions struct {
	*RootOptions
}

// NewEstimateCommand creates the estimate command.
func NewEstimateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EstimateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "estimate <trace.yaml>",
		Short: "Run the retrieval cost model over a trace",
		Long: `Estimate what a sequential consumer pays to execute a multi-turn
retrieval trace: per-turn context size, cumulative processed bytes (early
fetches are paid for on every later turn) and the quadratic attention term.
Also reports both modeled rewrites - small-first load ordering and turn
collapsing - for comparison.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEstimate(opts, args[0], cmd)
		},
	}

	return cmd
}

func runEstimate(opts *EstimateOptions, tracePath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	trace, err := costmodel.LoadTrace(tracePath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load trace", err)
	}

	report := costmodel.Analyze(trace)
	if opts.Format == "json" {
		return formatter.Success(report)
	}
	return formatter.Success(formatReport(report))
}

func formatReport(r costmodel.Report) string {
	var b strings.Builder
	name := r.Trace
	if name == "" {
		name = "(unnamed)"
	}
	fmt.Fprintf(&b, "trace %s: %d turn(s), %d bytes total\n", name, r.TurnCount, r.TotalBytes)
	fmt.Fprintf(&b, "  as given:     cumulative=%d attention=%d contexts=%v\n", r.Cost.Cumulative, r.Cost.Attention, r.Cost.Contexts)
	fmt.Fprintf(&b, "  small-first:  cumulative=%d attention=%d\n", r.FrontLoaded.Cumulative, r.FrontLoaded.Attention)
	fmt.Fprintf(&b, "  collapsed:    cumulative=%d attention=%d", r.Collapsed.Cumulative, r.Collapsed.Attention)
	return b.String()
}

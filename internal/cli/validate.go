package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/stele/internal/publish"
	"github.com/roach88/stele/internal/validator"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Previous string
}

// ValidateSummary is the success payload of a clean validation run.
type ValidateSummary struct {
	Tree      string `json:"tree"`
	Resources int    `json:"resources"`
}

func (s ValidateSummary) String() string {
	return fmt.Sprintf("tree %s is consistent (%d resources)", s.Tree, s.Resources)
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <tree-dir>",
		Short: "Re-run the consistency validator against a published tree",
		Long: `Read a published tree back from disk and re-check the structural, link
and denormalization invariants. Placement checks that rely on compile-time
fact tagging run during compile; everything else runs here.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Previous, "previous", "", "earlier published tree for the leaf-immutability check")

	return cmd
}

func runValidate(opts *ValidateOptions, dir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	tree, err := publish.LoadTree(dir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load tree", err)
	}
	slog.Info("tree loaded", "dir", dir, "resources", tree.Len())
	formatter.VerboseLog("Loaded %d resources from %s", tree.Len(), dir)

	var previous map[string][]byte
	if opts.Previous != "" {
		if _, err := os.Stat(opts.Previous); err != nil {
			return WrapExitError(ExitCommandError, "failed to read previous tree", err)
		}
		previous, err = publish.ReadBytes(opts.Previous)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read previous tree", err)
		}
		formatter.VerboseLog("Checking leaf immutability against %d previously published documents", len(previous))
	}

	if diags := validator.Validate(tree, previous); len(diags) > 0 {
		for _, d := range diags {
			slog.Error("invariant violation", "code", d.Code, "path", d.Path, "fact", d.Fact)
		}
		_ = formatter.Error(diags[0].Code, diags[0].Error(), diags)
		return WrapExitError(ExitFailure, fmt.Sprintf("%d invariant violation(s)", len(diags)), nil)
	}

	return formatter.Success(ValidateSummary{Tree: dir, Resources: tree.Len()})
}

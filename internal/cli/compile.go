package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/stele/internal/compiler"
	"github.com/roach88/stele/internal/linker"
	"github.com/roach88/stele/internal/publish"
	"github.com/roach88/stele/internal/record"
	"github.com/roach88/stele/internal/validator"
	"github.com/roach88/stele/internal/viewport"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Out      string
	Previous string
}

// CompileSummary is the success payload of a compile run.
type CompileSummary struct {
	CycleID   string `json:"cycle_id"`
	Resources int    `json:"resources"`
	TreeHash  string `json:"tree_hash"`
	Published string `json:"published"`
}

func (s CompileSummary) String() string {
	return fmt.Sprintf("published %d resources to %s (cycle %s, tree %s)",
		s.Resources, s.Published, s.CycleID, s.TreeHash[:12])
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <snapshot>",
		Short: "Compile a Record Store snapshot into a published tree",
		Long: `Compile a Record Store snapshot (.yaml/.yml or .db/.sqlite) into the
complete resource tree, resolve all link relations, generate the viewport,
validate every invariant, and atomically swap the result into the output
directory. Any source defect or invariant violation aborts before the swap;
the previously published tree stays live.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Out, "out", "", "published tree directory (required)")
	cmd.Flags().StringVar(&opts.Previous, "previous", "", "previously published tree for the leaf-immutability check (defaults to --out)")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func runCompile(opts *CompileOptions, snapshotPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	slog.Info("loading snapshot", "path", snapshotPath)
	snap, err := record.Load(snapshotPath)
	if err != nil {
		_ = formatter.Error(sourceCode(err), err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load snapshot", err)
	}
	slog.Info("snapshot loaded", "series", len(snap.Series), "disclosures", len(snap.Disclosures), "captured_at", snap.CapturedAt)
	formatter.VerboseLog("Loaded snapshot %s: %d series, %d disclosures", snapshotPath, len(snap.Series), len(snap.Disclosures))

	cycle, err := uuid.NewV7()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to generate cycle ID", err)
	}
	cycleID := cycle.String()

	tree, layout, err := compiler.Compile(cmd.Context(), snap, cycleID)
	if err != nil {
		_ = formatter.Error("C100", err.Error(), defectDetails(err))
		return WrapExitError(ExitFailure, "compilation failed", err)
	}
	slog.Info("tree compiled", "resources", tree.Len(), "cycle", cycleID)
	formatter.VerboseLog("Compiled %d resources (cycle %s)", tree.Len(), cycleID)

	if err := linker.Resolve(tree, layout); err != nil {
		return WrapExitError(ExitCommandError, "link resolution failed", err)
	}
	if err := viewport.Generate(tree, layout, snap); err != nil {
		return WrapExitError(ExitCommandError, "viewport generation failed", err)
	}

	previous, err := loadPrevious(opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read previous tree", err)
	}

	if diags := validator.Validate(tree, previous); len(diags) > 0 {
		for _, d := range diags {
			slog.Error("invariant violation", "code", d.Code, "path", d.Path, "fact", d.Fact)
		}
		_ = formatter.Error(diags[0].Code, diags[0].Error(), diags)
		return WrapExitError(ExitFailure, fmt.Sprintf("%d invariant violation(s); publish blocked", len(diags)), nil)
	}
	slog.Info("validation passed")
	formatter.VerboseLog("All invariants hold; publishing")

	staging := opts.Out + ".staging"
	if err := publish.WriteStaging(tree, staging); err != nil {
		_ = publish.Discard(staging)
		return WrapExitError(ExitCommandError, "failed to write staging tree", err)
	}
	if err := publish.Swap(staging, opts.Out); err != nil {
		_ = publish.Discard(staging)
		return WrapExitError(ExitCommandError, "failed to publish tree", err)
	}

	hash, err := tree.Hash()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to hash tree", err)
	}
	return formatter.Success(CompileSummary{
		CycleID:   cycleID,
		Resources: tree.Len(),
		TreeHash:  hash,
		Published: opts.Out,
	})
}

// loadPrevious reads the tree the immutability check compares against:
// --previous when given, else the current --out tree if one exists.
func loadPrevious(opts *CompileOptions) (map[string][]byte, error) {
	dir := opts.Previous
	if dir == "" {
		dir = opts.Out
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}
	return publish.ReadBytes(dir)
}

// sourceCode extracts the defect code from a record.SourceError, falling
// back to the generic load code.
func sourceCode(err error) string {
	if se, ok := err.(*record.SourceError); ok {
		return se.Code
	}
	return record.ErrSourceParse
}

// defectDetails exposes the full defect list as structured details.
func defectDetails(err error) any {
	if defects, ok := err.(compiler.DefectList); ok {
		return defects
	}
	return nil
}

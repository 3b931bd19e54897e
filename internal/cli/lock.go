package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reqlock/reqlock/pkg/reconcile"
	"github.com/reqlock/reqlock/pkg/venvs"
)

// lockCommand creates the lock command: detect packages whose ".lock"
// files disagree within a venv, choose one authoritative version each,
// and nudge the ".lock"/".unlock" files toward it.
func (c *CLI) lockCommand() *cobra.Command {
	var (
		path   string
		venv   string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:     "lock",
		Aliases: []string{"fix"},
		Short:   "Reconcile version conflicts between lock files",
		Long: `Lock compares the pinned versions across every ".lock" file of a venv.
For each package pinned to more than one version it chooses a single
authoritative version, honoring the constraints in the ".in" sources,
and rewrites the conflicting lines. Conflicts touching shared files are
reported instead of written; conflicts no version satisfies are listed
for manual review.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())
			prog := newProgress(logger)

			loader, err := venvs.NewLoader(path)
			if err != nil {
				return err
			}
			selected, err := selectVenvs(loader, venv)
			if err != nil {
				return err
			}

			written, conflicts := 0, 0
			for _, venvRel := range selected {
				fixer, err := reconcile.NewFixer(loader, venvRel, logger)
				if err != nil {
					return err
				}

				_, unresolvables, err := fixer.Issues()
				if err != nil {
					return err
				}
				msgs, shared, err := fixer.Apply(dryRun)
				if err != nil {
					return err
				}

				printInfo("venv %s", venvRel)
				for _, msg := range msgs {
					printFile(fmt.Sprintf("%s %s %s", msg.FileAbspath, iconArrow, msg.Line))
				}
				if len(msgs) == 0 && len(shared) == 0 && len(unresolvables) == 0 {
					printDetail("lock files agree, nothing to do")
				}

				for _, notice := range shared {
					printWarning("%s is shared between venvs; fix %q there by hand",
						notice.Pin.FileAbspath, notice.Resolvable.NudgeLock)
				}
				for _, u := range unresolvables {
					printError("unresolvable conflict:\n%s", u.String())
				}

				written += len(msgs)
				conflicts += len(unresolvables)
			}

			verb := "Fixed"
			if dryRun {
				verb = "Would fix"
			}
			prog.done(fmt.Sprintf("%s %d pins", verb, written))

			if conflicts > 0 {
				return fmt.Errorf("%d conflicts need manual resolution", conflicts)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", ".", "project directory or pyproject.toml path")
	cmd.Flags().StringVar(&venv, "venv", "", "operate on a single venv (relative path)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would change without writing")

	return cmd
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reqlock/reqlock/pkg/reqfile"
	"github.com/reqlock/reqlock/pkg/venvs"
)

// unlockCommand creates the unlock command: resolve the ".in" sources of
// each venv and write the ".unlock" files next to them.
func (c *CLI) unlockCommand() *cobra.Command {
	var (
		path string
		venv string
	)

	cmd := &cobra.Command{
		Use:   "unlock",
		Short: "Resolve .in sources and write .unlock files",
		Long: `Unlock reads the ".in" requirement files declared in pyproject.toml,
follows their "-r" and "-c" references to a fixed point, and writes one
".unlock" file per source with the merged, loosely pinned package set.
Shared pins files are inputs only and are never regenerated.`,
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

			total := 0
			for _, venvRel := range selected {
				ins, err := venvs.NewIns(loader, venvRel, logger)
				if err != nil {
					return err
				}
				if err := ins.Load(reqfile.SuffixIn); err != nil {
					return err
				}

				written, err := ins.Collection().Write(reqfile.SuffixUnlock)
				if err != nil {
					return err
				}

				printInfo("venv %s", venvRel)
				pins := 0
				for _, f := range ins.Files() {
					pins += len(f.Pins)
				}
				for _, w := range written {
					printFile(w)
				}
				printStats(ins.Len(), pins, false)
				total += len(written)
			}

			prog.done(fmt.Sprintf("Wrote %d unlock files", total))
			printNextStep("Reconcile lock conflicts", "reqlock lock --dry-run")
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", ".", "project directory or pyproject.toml path")
	cmd.Flags().StringVar(&venv, "venv", "", "operate on a single venv (relative path)")

	return cmd
}

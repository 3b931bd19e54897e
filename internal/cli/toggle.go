package cli

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/reqlock/reqlock/pkg/toggle"
	"github.com/reqlock/reqlock/pkg/venvs"
)

// toggleCommand creates the toggle command: point the ".lnk" files of a
// venv at either the ".lock" or the ".unlock" artifacts.
func (c *CLI) toggleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "toggle",
		Short: "Switch venvs between locked and unlocked requirements",
		Long: `Toggle repoints each "<stem>.lnk" file at the sibling ".lock" or
".unlock" artifact. Build tooling that installs from the ".lnk" path
follows the switch without any configuration change.`,
	}

	cmd.AddCommand(c.toggleStateCommand("lock", "Point .lnk files at the pinned .lock artifacts", toggle.Lock))
	cmd.AddCommand(c.toggleStateCommand("unlock", "Point .lnk files at the loose .unlock artifacts", toggle.Unlock))

	return cmd
}

func (c *CLI) toggleStateCommand(
	use, short string,
	apply func(*venvs.Loader, string, *log.Logger) ([]string, error),
) *cobra.Command {
	var (
		path string
		venv string
	)

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
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
				links, err := apply(loader, venvRel, logger)
				if err != nil {
					return err
				}
				printInfo("venv %s", venvRel)
				for _, link := range links {
					printFile(link)
				}
				total += len(links)
			}

			prog.done(fmt.Sprintf("Repointed %d links to .%s", total, use))
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", ".", "project directory or pyproject.toml path")
	cmd.Flags().StringVar(&venv, "venv", "", "operate on a single venv (relative path)")

	return cmd
}

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/reqlock/reqlock/pkg/reqfile"
	"github.com/reqlock/reqlock/pkg/venvs"
)

// venvsCommand creates the venvs command: list the declared venvs and
// flag requirement artifacts missing on disk.
func (c *CLI) venvsCommand() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "venvs",
		Short: "List declared venvs and their requirement files",
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, err := venvs.NewLoader(path)
			if err != nil {
				return err
			}
			m, err := venvs.NewMap(loader)
			if err != nil {
				return err
			}

			printInfo("%d venvs declared in %s", m.Len(), loader.PyprojectPath)
			for _, venvRel := range m.VenvRelpaths() {
				reqs, err := m.Reqs(venvRel)
				if err != nil {
					return err
				}
				stems := make([]string, len(reqs))
				for i, req := range reqs {
					stems[i] = req.ReqRel
				}
				printKeyValue(venvRel, strings.Join(stems, ", "))
			}

			for _, suffix := range []string{reqfile.SuffixIn, reqfile.SuffixLock, reqfile.SuffixUnlock} {
				missing := m.Missing(suffix)
				if len(missing) == 0 {
					continue
				}
				printWarning("%d %s files missing", len(missing), suffix)
				for _, req := range missing {
					printDetail("%s", req.Abspath(suffix))
				}
			}

			if len(m.Missing(reqfile.SuffixUnlock)) > 0 {
				printNextStep("Generate them", fmt.Sprintf("%s unlock", appName))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", ".", "project directory or pyproject.toml path")

	return cmd
}

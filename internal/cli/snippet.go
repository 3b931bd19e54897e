package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/reqlock/reqlock/pkg/errors"
	"github.com/reqlock/reqlock/pkg/reqfile"
	"github.com/reqlock/reqlock/pkg/snip"
	"github.com/reqlock/reqlock/pkg/venvs"
)

// snippetCommand creates the snippet command: list and refresh the
// marker-delimited generated sections of a hand-edited file.
func (c *CLI) snippetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snippet",
		Short: "Manage generated sections in pyproject.toml",
		Long: fmt.Sprintf(`A generated section is delimited by %q and %q
markers. Reqlock owns the lines between the markers; everything outside
them stays untouched.`, snip.Begin("<id>"), snip.End()),
	}

	cmd.AddCommand(c.snippetListCommand())
	cmd.AddCommand(c.snippetReplaceCommand())
	cmd.AddCommand(c.snippetRefreshCommand())

	return cmd
}

func (c *CLI) snippetListCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the snippet ids present in a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(file)
			if err != nil {
				return errors.Wrap(errors.ErrCodeFileNotFound, err, "read %s", file)
			}
			ids, err := snip.List(string(content))
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				printInfo("no snippets in %s", file)
				return nil
			}
			printInfo("%d snippets in %s", len(ids), file)
			for _, id := range ids {
				printFile(id)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "pyproject.toml", "file holding the snippet markers")

	return cmd
}

func (c *CLI) snippetReplaceCommand() *cobra.Command {
	var (
		file string
		id   string
	)

	cmd := &cobra.Command{
		Use:   "replace",
		Short: "Replace a snippet body with text read from stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())
			prog := newProgress(logger)

			content, err := os.ReadFile(file)
			if err != nil {
				return errors.Wrap(errors.ErrCodeFileNotFound, err, "read %s", file)
			}
			payload, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
			updated, err := snip.Replace(string(content), id, string(payload))
			if err != nil {
				return err
			}
			if updated == string(content) {
				printInfo("snippet %q already up to date", id)
				return nil
			}
			if err := os.WriteFile(file, []byte(updated), 0o644); err != nil {
				return errors.Wrap(errors.ErrCodeInternal, err, "write %s", file)
			}
			printFile(file)
			prog.done(fmt.Sprintf("Replaced snippet %q", id))
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "pyproject.toml", "file holding the snippet markers")
	cmd.Flags().StringVar(&id, "id", "", "id of the snippet to replace")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func (c *CLI) snippetRefreshCommand() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Regenerate [tool.reqlock.dependencies] sections from lock files",
		Long: `Each [tool.reqlock.dependencies] entry maps a snippet id to a
requirement file stem. Refresh rewrites that snippet in pyproject.toml
with a TOML array of the stem's current .lock pins.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())
			prog := newProgress(logger)

			loader, err := venvs.NewLoader(path)
			if err != nil {
				return err
			}
			groups := loader.DependencyGroups()
			if len(groups) == 0 {
				printInfo("no [tool.reqlock.dependencies] sections in %s", loader.PyprojectPath)
				return nil
			}

			content, err := os.ReadFile(loader.PyprojectPath)
			if err != nil {
				return errors.Wrap(errors.ErrCodeFileNotFound, err, "read %s", loader.PyprojectPath)
			}
			updated := string(content)

			for _, id := range groups {
				stem := loader.Dependencies[id]
				abspath := filepath.Join(loader.ProjectBase, filepath.FromSlash(stem)) + reqfile.SuffixLock
				f, err := reqfile.Load(loader.ProjectBase, abspath)
				if err != nil {
					return err
				}
				updated, err = snip.Replace(updated, id, dependencyArray(id, f.Pins))
				if err != nil {
					return err
				}
				printInfo("section %s", id)
				printFile(abspath)
			}

			if updated == string(content) {
				printInfo("pyproject.toml already up to date")
				return nil
			}
			if err := os.WriteFile(loader.PyprojectPath, []byte(updated), 0o644); err != nil {
				return errors.Wrap(errors.ErrCodeInternal, err, "write %s", loader.PyprojectPath)
			}
			prog.done(fmt.Sprintf("Refreshed %d dependency sections", len(groups)))
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", ".", "project directory or pyproject.toml path")

	return cmd
}

// dependencyArray renders lock pins as a TOML key and array of literal
// strings, one pin per line.
func dependencyArray(id string, pins []reqfile.Pin) string {
	var b strings.Builder
	b.WriteString(id + " = [\n")
	for _, pin := range pins {
		b.WriteString("    '" + pin.Render() + "',\n")
	}
	b.WriteString("]")
	return b.String()
}

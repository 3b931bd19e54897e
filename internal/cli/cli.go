// Package cli implements the reqlock command-line interface.
package cli

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/reqlock/reqlock/pkg/buildinfo"
	"github.com/reqlock/reqlock/pkg/cache"
	"github.com/reqlock/reqlock/pkg/venvs"
)

// appName is the application name used for directories and display.
const appName = "reqlock"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "reqlock",
		Short:        "Reqlock keeps pip requirement lock files consistent across venvs",
		Long:         `Reqlock resolves pip-style requirement files ("-r"/"-c" references included), reconciles version conflicts between the lock files of each declared venv, and writes the authoritative pins back.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.unlockCommand())
	root.AddCommand(c.lockCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.venvsCommand())
	root.AddCommand(c.toggleCommand())
	root.AddCommand(c.snippetCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// selectVenvs picks the venvs a command operates on: the one named by
// venvKey, or every declared venv when venvKey is empty.
func selectVenvs(loader *venvs.Loader, venvKey string) ([]string, error) {
	if venvKey == "" {
		return loader.VenvRelpaths(), nil
	}
	rel, err := loader.Relpath(venvKey)
	if err != nil {
		return nil, err
	}
	return []string{rel}, nil
}

func newCache(noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// cacheDir returns the cache directory using XDG standard (~/.cache/reqlock/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

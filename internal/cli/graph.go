package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/reqlock/reqlock/pkg/cache"
	gio "github.com/reqlock/reqlock/pkg/io"
	"github.com/reqlock/reqlock/pkg/render"
	"github.com/reqlock/reqlock/pkg/reqfile"
	"github.com/reqlock/reqlock/pkg/resolve"
	"github.com/reqlock/reqlock/pkg/venvs"
)

// svgCacheTTL bounds how long rendered SVGs are reused. Renders are
// keyed by DOT content, so stale hits are impossible; the TTL only
// keeps the cache directory from growing forever.
const svgCacheTTL = 30 * 24 * time.Hour

// graphCommand creates the graph command: render the requirement file
// reference graph as DOT, JSON, or SVG.
func (c *CLI) graphCommand() *cobra.Command {
	var (
		path     string
		venv     string
		suffix   string
		format   string
		output   string
		noCache  bool
		detailed bool
	)

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Render the requirement file reference graph",
		Long: `Graph draws the requirement files of the selected venvs as nodes, with
"-r" references as solid edges and "-c" references as dashed edges.
SVG rendering goes through Graphviz and is cached by content hash.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			if !reqfile.ValidSuffix(suffix) {
				return fmt.Errorf("unsupported suffix %q (want .in, .lock, or .unlock)", suffix)
			}

			loader, err := venvs.NewLoader(path)
			if err != nil {
				return err
			}
			selected, err := selectVenvs(loader, venv)
			if err != nil {
				return err
			}

			coll := resolve.New(loader.ProjectBase, logger)
			for _, venvRel := range selected {
				reqs, err := loader.Reqs(venvRel)
				if err != nil {
					return err
				}
				for _, req := range reqs {
					if err := coll.Add(req.Abspath(suffix)); err != nil {
						return err
					}
				}
			}
			if err := coll.Resolve(); err != nil {
				return err
			}

			var data []byte
			cached := false
			switch format {
			case "dot":
				data = []byte(render.ToDOT(coll, render.Options{Detailed: detailed}))
			case "json":
				var sb strings.Builder
				if err := gio.WriteJSON(gio.FromCollection(coll), &sb); err != nil {
					return err
				}
				data = []byte(sb.String())
			case "svg":
				data, cached, err = c.renderSVG(cmd, coll, detailed, noCache)
				if err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown format %q (want dot, json, or svg)", format)
			}

			pins := 0
			for _, f := range coll.Resolved() {
				pins += len(f.Pins)
			}
			printStats(coll.Len(), pins, cached)

			if output == "" {
				fmt.Print(string(data))
				return nil
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			printSuccess("Rendered %s graph", format)
			printFile(output)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", ".", "project directory or pyproject.toml path")
	cmd.Flags().StringVar(&venv, "venv", "", "operate on a single venv (relative path)")
	cmd.Flags().StringVar(&suffix, "suffix", reqfile.SuffixIn, "requirement suffix to graph (.in, .lock, .unlock)")
	cmd.Flags().StringVarP(&format, "format", "f", "dot", "output format: dot, json, or svg")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the render cache")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "include pin and reference counts in labels")

	return cmd
}

func (c *CLI) renderSVG(cmd *cobra.Command, coll *resolve.Collection, detailed, noCache bool) ([]byte, bool, error) {
	ctx := cmd.Context()
	dot := render.ToDOT(coll, render.Options{Detailed: detailed})

	store, err := newCache(noCache)
	if err != nil {
		return nil, false, err
	}
	defer store.Close()

	key := cache.Key("svg", cache.Hash([]byte(dot)))
	if data, ok, err := store.Get(ctx, key); err == nil && ok {
		return data, true, nil
	}

	spinner := newSpinnerWithContext(ctx, "Rendering graph...")
	spinner.Start()
	svg, err := render.SVG(ctx, dot)
	spinner.Stop()
	if err != nil {
		return nil, false, err
	}

	if err := store.Set(ctx, key, svg, svgCacheTTL); err != nil {
		loggerFromContext(ctx).Debug("cache write failed", "err", err)
	}
	return svg, false, nil
}

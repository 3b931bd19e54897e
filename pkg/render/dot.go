// Package render draws the requirement file graph: files as nodes,
// "-r" references as solid edges, "-c" references as dashed edges.
package render

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/reqlock/reqlock/pkg/reqfile"
	"github.com/reqlock/reqlock/pkg/resolve"
)

// Options configures node-link diagram rendering.
type Options struct {
	// Detailed includes pin and reference counts in node labels.
	// When false, only the file path is shown.
	Detailed bool
}

// ToDOT converts a resolved collection to Graphviz DOT format. The
// resulting DOT string can be rendered with [SVG].
//
// Shared files are drawn with dashed outlines and grey fill to flag
// that several venvs consume them.
func ToDOT(c *resolve.Collection, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=24, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	files := c.Resolved()
	for _, f := range files {
		label := fmtLabel(f, opts.Detailed)
		attrs := fmtAttrs(f, label)
		fmt.Fprintf(&buf, "  %q [%s];\n", f.Relpath, strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, f := range files {
		for _, target := range sortedKeys(f.Requirements) {
			fmt.Fprintf(&buf, "  %q -> %q;\n", f.Relpath, target)
		}
		for _, target := range sortedKeys(f.Constraints) {
			fmt.Fprintf(&buf, "  %q -> %q [style=dashed];\n", f.Relpath, target)
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func fmtLabel(f *reqfile.File, detailed bool) string {
	if !detailed {
		return f.Relpath
	}

	parts := []string{fmt.Sprintf("pins: %d", len(f.Pins))}
	if n := len(f.Requirements); n > 0 {
		parts = append(parts, fmt.Sprintf("requires: %d", n))
	}
	if n := len(f.Constraints); n > 0 {
		parts = append(parts, fmt.Sprintf("constrains: %d", n))
	}

	return f.Relpath + "\n" + strings.Join(parts, "\n")
}

func fmtAttrs(f *reqfile.File, label string) []string {
	attrs := []string{fmt.Sprintf("label=%q", label)}
	if reqfile.IsShared(path.Base(f.Relpath)) {
		attrs = append(attrs, "style=\"rounded,filled,dashed\"", "fillcolor=lightgrey", "fontcolor=black")
	}
	return attrs
}

// SVG renders a DOT graph to SVG using Graphviz.
func SVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}

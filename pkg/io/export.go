// Package io serializes the requirement file graph to and from JSON so
// other tooling can consume the resolved structure without re-parsing
// requirement files.
package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"sort"

	"github.com/reqlock/reqlock/pkg/reqfile"
	"github.com/reqlock/reqlock/pkg/resolve"
)

// Edge kinds in the serialized graph.
const (
	KindRequirement = "requirement"
	KindConstraint  = "constraint"
)

// Graph is the serializable view of a resolved requirement file set.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Node is one requirement file, identified by its project-relative path.
type Node struct {
	ID     string `json:"id"`
	Pins   int    `json:"pins"`
	Shared bool   `json:"shared,omitempty"`
}

// Edge is one "-r" or "-c" reference between two files.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
	Kind string `json:"kind"`
}

// FromCollection flattens a resolved collection into the serializable
// graph form. Node and edge order follows the collection's deterministic
// file ordering.
func FromCollection(c *resolve.Collection) Graph {
	files := c.Resolved()
	g := Graph{Nodes: make([]Node, len(files))}

	for i, f := range files {
		g.Nodes[i] = Node{
			ID:     f.Relpath,
			Pins:   len(f.Pins),
			Shared: reqfile.IsShared(path.Base(f.Relpath)),
		}
	}
	for _, f := range files {
		for _, target := range sortedKeys(f.Requirements) {
			g.Edges = append(g.Edges, Edge{From: f.Relpath, To: target, Kind: KindRequirement})
		}
		for _, target := range sortedKeys(f.Constraints) {
			g.Edges = append(g.Edges, Edge{From: f.Relpath, To: target, Kind: KindConstraint})
		}
	}
	return g
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// WriteJSON encodes the graph as indented JSON and writes it to w.
// The output can be re-imported with [ReadJSON] for round-trip
// processing.
func WriteJSON(g Graph, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(g); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ExportJSON writes the graph to a JSON file at path.
// This is a convenience wrapper around [WriteJSON] for file-based output.
func ExportJSON(g Graph, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return WriteJSON(g, f)
}

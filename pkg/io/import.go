package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// ReadJSON decodes a JSON graph from r.
//
// The input must be a JSON object with "nodes" and "edges" arrays:
//
//	{
//	  "nodes": [{"id": "requirements/prod.in", "pins": 2}],
//	  "edges": [{"from": "requirements/dev.in", "to": "requirements/prod.in", "kind": "requirement"}]
//	}
//
// ReadJSON returns an error when the JSON is malformed, a node id is
// empty or duplicated, an edge references an unknown node, or an edge
// kind is neither "requirement" nor "constraint". ReadJSON does not
// close r.
func ReadJSON(r io.Reader) (Graph, error) {
	var g Graph
	if err := json.NewDecoder(r).Decode(&g); err != nil {
		return Graph{}, fmt.Errorf("decode: %w", err)
	}

	ids := make(map[string]struct{}, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.ID == "" {
			return Graph{}, fmt.Errorf("node with empty id")
		}
		if _, dup := ids[n.ID]; dup {
			return Graph{}, fmt.Errorf("duplicate node id %q", n.ID)
		}
		ids[n.ID] = struct{}{}
	}

	for _, e := range g.Edges {
		if _, ok := ids[e.From]; !ok {
			return Graph{}, fmt.Errorf("edge %s->%s: unknown node %q", e.From, e.To, e.From)
		}
		if _, ok := ids[e.To]; !ok {
			return Graph{}, fmt.Errorf("edge %s->%s: unknown node %q", e.From, e.To, e.To)
		}
		if e.Kind != KindRequirement && e.Kind != KindConstraint {
			return Graph{}, fmt.Errorf("edge %s->%s: unknown kind %q", e.From, e.To, e.Kind)
		}
	}

	return g, nil
}

// ImportJSON reads a JSON file at path and returns the decoded graph.
// It returns the same validation errors as [ReadJSON].
func ImportJSON(path string) (Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return Graph{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadJSON(f)
}

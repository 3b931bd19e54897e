package io

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/reqlock/reqlock/pkg/resolve"
)

func writeFile(t *testing.T, dir, rel, content string) string {
	t.Helper()
	abspath := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abspath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abspath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return abspath
}

func sampleGraph(t *testing.T) Graph {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "pins.shared.in", "urllib3<3\n")
	writeFile(t, dir, "prod.in", "-c pins.shared.in\npip>=24.2\n")
	devPath := writeFile(t, dir, "dev.in", "-r prod.in\ntox\n")

	c := resolve.New(dir, nil)
	if err := c.Add(devPath); err != nil {
		t.Fatal(err)
	}
	if err := c.Resolve(); err != nil {
		t.Fatal(err)
	}
	return FromCollection(c)
}

func TestFromCollection(t *testing.T) {
	g := sampleGraph(t)

	if len(g.Nodes) != 3 {
		t.Fatalf("nodes = %d, want 3", len(g.Nodes))
	}
	byID := map[string]Node{}
	for _, n := range g.Nodes {
		byID[n.ID] = n
	}
	if n := byID["dev.in"]; n.Pins != 2 {
		t.Errorf("dev.in pins = %d, want 2", n.Pins)
	}
	if !byID["pins.shared.in"].Shared {
		t.Error("pins.shared.in should be marked shared")
	}

	want := []Edge{
		{From: "dev.in", To: "prod.in", Kind: KindRequirement},
		{From: "prod.in", To: "pins.shared.in", Kind: KindConstraint},
	}
	if !reflect.DeepEqual(g.Edges, want) {
		t.Errorf("edges = %v, want %v", g.Edges, want)
	}
}

func TestRoundTrip(t *testing.T) {
	g := sampleGraph(t)

	var buf bytes.Buffer
	if err := WriteJSON(g, &buf); err != nil {
		t.Fatalf("WriteJSON error: %v", err)
	}

	got, err := ReadJSON(&buf)
	if err != nil {
		t.Fatalf("ReadJSON error: %v", err)
	}
	if !reflect.DeepEqual(got, g) {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", got, g)
	}
}

func TestExportImportFile(t *testing.T) {
	g := sampleGraph(t)
	path := filepath.Join(t.TempDir(), "graph.json")

	if err := ExportJSON(g, path); err != nil {
		t.Fatalf("ExportJSON error: %v", err)
	}
	got, err := ImportJSON(path)
	if err != nil {
		t.Fatalf("ImportJSON error: %v", err)
	}
	if !reflect.DeepEqual(got, g) {
		t.Error("file round trip mismatch")
	}
}

func TestReadJSONValidation(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{
			"malformed",
			`{"nodes": [`,
			"decode",
		},
		{
			"empty id",
			`{"nodes": [{"id": ""}], "edges": []}`,
			"empty id",
		},
		{
			"duplicate id",
			`{"nodes": [{"id": "a"}, {"id": "a"}], "edges": []}`,
			"duplicate",
		},
		{
			"unknown edge endpoint",
			`{"nodes": [{"id": "a"}], "edges": [{"from": "a", "to": "b", "kind": "requirement"}]}`,
			"unknown node",
		},
		{
			"unknown edge kind",
			`{"nodes": [{"id": "a"}, {"id": "b"}], "edges": [{"from": "a", "to": "b", "kind": "link"}]}`,
			"unknown kind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadJSON(strings.NewReader(tt.input))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestImportJSONMissingFile(t *testing.T) {
	if _, err := ImportJSON(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

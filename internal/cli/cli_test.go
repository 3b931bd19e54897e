package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/reqlock/reqlock/pkg/venvs"
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

func setupProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "pyproject.toml", `
[[tool.venvs]]
venv_base_path = ".venv"
reqs = ["requirements/prod", "requirements/dev"]
`)
	if err := os.MkdirAll(filepath.Join(dir, ".venv"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, dir, "requirements/prod.in", "pip!=25.3\nrequests>=2.31\n")
	writeFile(t, dir, "requirements/dev.in", "-r prod.in\ntox\n")
	writeFile(t, dir, "requirements/prod.lock", "pip==25.0\nrequests==2.31.0\n")
	writeFile(t, dir, "requirements/dev.lock", "pip==25.3\ntox==4.11.0\n")
	return dir
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	c := New(os.Stderr, LogInfo)
	root := c.RootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	c := New(os.Stderr, LogInfo)
	root := c.RootCommand()

	want := []string{"unlock", "lock", "graph", "venvs", "toggle", "snippet", "cache", "completion"}
	for _, name := range want {
		found := false
		for _, sub := range root.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestSelectVenvs(t *testing.T) {
	dir := setupProject(t)
	loader, err := venvs.NewLoader(dir)
	if err != nil {
		t.Fatal(err)
	}

	all, err := selectVenvs(loader, "")
	if err != nil || len(all) != 1 || all[0] != ".venv" {
		t.Errorf("selectVenvs(all) = %v, %v", all, err)
	}

	one, err := selectVenvs(loader, ".venv")
	if err != nil || len(one) != 1 {
		t.Errorf("selectVenvs(.venv) = %v, %v", one, err)
	}

	if _, err := selectVenvs(loader, "nope"); err == nil {
		t.Error("unknown venv should fail")
	}
}

func TestUnlockCommand(t *testing.T) {
	dir := setupProject(t)

	if err := execute(t, "unlock", "--path", dir); err != nil {
		t.Fatalf("unlock error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "requirements", "dev.unlock"))
	if err != nil {
		t.Fatalf("dev.unlock not written: %v", err)
	}
	content := string(data)
	for _, pkg := range []string{"pip!=25.3", "requests>=2.31", "tox"} {
		if !strings.Contains(content, pkg) {
			t.Errorf("dev.unlock missing %q:\n%s", pkg, content)
		}
	}
}

func TestLockCommandDryRun(t *testing.T) {
	dir := setupProject(t)
	lockPath := filepath.Join(dir, "requirements", "dev.lock")
	before, _ := os.ReadFile(lockPath)

	if err := execute(t, "lock", "--dry-run", "--path", dir); err != nil {
		t.Fatalf("lock --dry-run error: %v", err)
	}

	after, _ := os.ReadFile(lockPath)
	if string(before) != string(after) {
		t.Error("dry run must not modify lock files")
	}
}

func TestLockCommandApplies(t *testing.T) {
	dir := setupProject(t)

	if err := execute(t, "lock", "--path", dir); err != nil {
		t.Fatalf("lock error: %v", err)
	}

	data, _ := os.ReadFile(filepath.Join(dir, "requirements", "dev.lock"))
	if !strings.Contains(string(data), "pip==25.0") {
		t.Errorf("dev.lock not nudged:\n%s", data)
	}
}

func TestGraphCommandDOT(t *testing.T) {
	dir := setupProject(t)
	out := filepath.Join(t.TempDir(), "graph.dot")

	if err := execute(t, "graph", "--path", dir, "--format", "dot", "--output", out); err != nil {
		t.Fatalf("graph error: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	dot := string(data)
	if !strings.Contains(dot, "digraph G {") || !strings.Contains(dot, `"requirements/dev.in" -> "requirements/prod.in";`) {
		t.Errorf("unexpected DOT output:\n%s", dot)
	}
}

func TestGraphCommandJSON(t *testing.T) {
	dir := setupProject(t)
	out := filepath.Join(t.TempDir(), "graph.json")

	if err := execute(t, "graph", "--path", dir, "--format", "json", "--output", out); err != nil {
		t.Fatalf("graph error: %v", err)
	}

	data, _ := os.ReadFile(out)
	if !strings.Contains(string(data), `"kind": "requirement"`) {
		t.Errorf("unexpected JSON output:\n%s", data)
	}
}

func TestGraphCommandBadSuffix(t *testing.T) {
	dir := setupProject(t)
	if err := execute(t, "graph", "--path", dir, "--suffix", ".txt"); err == nil {
		t.Error("bad suffix should fail")
	}
}

func TestVenvsCommand(t *testing.T) {
	dir := setupProject(t)
	if err := execute(t, "venvs", "--path", dir); err != nil {
		t.Fatalf("venvs error: %v", err)
	}
}

func TestToggleCommand(t *testing.T) {
	dir := setupProject(t)

	if err := execute(t, "toggle", "lock", "--path", dir); err != nil {
		t.Fatalf("toggle lock error: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "requirements", "prod.lnk"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "pip==25.0\nrequests==2.31.0\n" {
		t.Errorf("prod.lnk = %q", data)
	}
}

func TestSnippetReplaceCommand(t *testing.T) {
	dir := t.TempDir()
	py := writeFile(t, dir, "pyproject.toml", `[project]
name = "demo"
# @@ reqlock deps @@
dependencies = ["pip==25.0"]
# @@ end @@
`)

	c := New(os.Stderr, LogInfo)
	root := c.RootCommand()
	root.SetIn(strings.NewReader(`dependencies = ["pip==25.3"]`))
	root.SetArgs([]string{"snippet", "replace", "--file", py, "--id", "deps"})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("snippet replace error: %v", err)
	}

	data, _ := os.ReadFile(py)
	content := string(data)
	if !strings.Contains(content, `dependencies = ["pip==25.3"]`) {
		t.Errorf("snippet body not replaced:\n%s", content)
	}
	if !strings.Contains(content, "# @@ reqlock deps @@") || !strings.Contains(content, "# @@ end @@") {
		t.Errorf("markers must survive replacement:\n%s", content)
	}
}

func TestSnippetReplaceUnknownID(t *testing.T) {
	dir := t.TempDir()
	py := writeFile(t, dir, "pyproject.toml", "[project]\nname = \"demo\"\n")

	c := New(os.Stderr, LogInfo)
	root := c.RootCommand()
	root.SetIn(strings.NewReader("x = 1"))
	root.SetArgs([]string{"snippet", "replace", "--file", py, "--id", "deps"})
	if err := root.ExecuteContext(context.Background()); err == nil {
		t.Error("replacing a missing snippet should fail")
	}
}

func TestSnippetRefreshCommand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pyproject.toml", `[project]
name = "demo"
# @@ reqlock dependencies @@
# @@ end @@

[[tool.venvs]]
venv_base_path = ".venv"
reqs = ["requirements/prod"]

[tool.reqlock.dependencies]
dependencies = "requirements/prod"
`)
	if err := os.MkdirAll(filepath.Join(dir, ".venv"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, dir, "requirements/prod.in", "pip\nrequests\n")
	writeFile(t, dir, "requirements/prod.lock", "pip==25.0\nrequests==2.31.0\n")

	if err := execute(t, "snippet", "refresh", "--path", dir); err != nil {
		t.Fatalf("snippet refresh error: %v", err)
	}

	data, _ := os.ReadFile(filepath.Join(dir, "pyproject.toml"))
	content := string(data)
	want := "dependencies = [\n    'pip==25.0',\n    'requests==2.31.0',\n]"
	if !strings.Contains(content, want) {
		t.Errorf("refreshed section missing:\n%s", content)
	}
	if !strings.Contains(content, "[[tool.venvs]]") {
		t.Errorf("text outside the markers must survive:\n%s", content)
	}
}

func TestSnippetRefreshMissingMarkers(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pyproject.toml", `[[tool.venvs]]
venv_base_path = ".venv"
reqs = ["requirements/prod"]

[tool.reqlock.dependencies]
dependencies = "requirements/prod"
`)
	if err := os.MkdirAll(filepath.Join(dir, ".venv"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, dir, "requirements/prod.lock", "pip==25.0\n")

	if err := execute(t, "snippet", "refresh", "--path", dir); err == nil {
		t.Error("refresh without snippet markers should fail")
	}
}

func TestSnippetListCommand(t *testing.T) {
	dir := t.TempDir()
	py := writeFile(t, dir, "pyproject.toml", `# @@ reqlock deps @@
# @@ end @@
# @@ reqlock docs @@
# @@ end @@
`)

	if err := execute(t, "snippet", "list", "--file", py); err != nil {
		t.Fatalf("snippet list error: %v", err)
	}
}

func TestToggleUnlockRequiresArtifacts(t *testing.T) {
	dir := setupProject(t)
	// No .unlock files generated yet.
	if err := execute(t, "toggle", "unlock", "--path", dir); err == nil {
		t.Error("toggle unlock without .unlock files should fail")
	}
}

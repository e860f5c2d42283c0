package project

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/crewscontrol/internal/crewerr"
	"github.com/ShayCichocki/crewscontrol/pkg/models"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestResolve_Traversal(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"..", "../other", "."} {
		_, err := Resolve(root, name)
		if !errors.Is(err, crewerr.ErrPathSafety) {
			t.Errorf("Resolve(%q) error = %v, want path safety", name, err)
		}
	}
	if _, err := Resolve(root, ""); !errors.Is(err, crewerr.ErrConfiguration) {
		t.Errorf("empty name error = %v", err)
	}
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(t.TempDir(), "nope")
	if !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("expected ErrProjectNotFound, got %v", err)
	}
}

func TestLoadExecutionAndBenchmark(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "demo", ExecutionFile), `
crews:
  b: {}
  a:
    depends_on: [b]
`)
	writeFile(t, filepath.Join(root, "demo", BenchmarkFile), `
executions:
  - user_inputs: {repo: api}
    validations:
      a:
        compare_to: expected.md
        metrics: [check_status]
`)

	p, err := Open(root, "demo")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	cfg, err := p.LoadExecution()
	if err != nil {
		t.Fatalf("LoadExecution failed: %v", err)
	}
	if keys := cfg.Crews.Keys(); len(keys) != 2 || keys[0] != "b" {
		t.Errorf("crews = %v", keys)
	}

	if !p.HasBenchmark() {
		t.Fatal("expected a benchmark")
	}
	bench, err := p.LoadBenchmark()
	if err != nil {
		t.Fatalf("LoadBenchmark failed: %v", err)
	}
	if len(bench.Executions) != 1 {
		t.Fatalf("executions = %d", len(bench.Executions))
	}
	exec := bench.Executions[0]
	if v, _ := exec.UserInputs.Get("repo"); v != "api" {
		t.Errorf("repo = %q", v)
	}
	if spec := exec.Validations["a"]; spec.CompareTo != "expected.md" || len(spec.Metrics) != 1 {
		t.Errorf("validation = %+v", spec)
	}
}

func TestLoadBenchmark_Missing(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "plain", ExecutionFile), "crews: {}\n")
	p, err := Open(root, "plain")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if p.HasBenchmark() {
		t.Fatal("project should have no benchmark")
	}
	_, err = p.LoadBenchmark()
	if !errors.Is(err, crewerr.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if !strings.Contains(err.Error(), "has no benchmark.yaml") {
		t.Errorf("error = %q", err)
	}
}

func TestLoadExecution_Invalid(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "bad", ExecutionFile), "crews: [not, a, map]\n")
	p, _ := Open(root, "bad")
	if _, err := p.LoadExecution(); !errors.Is(err, crewerr.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}

	writeFile(t, filepath.Join(root, "empty", "placeholder"), "")
	p, _ = Open(root, "empty")
	if _, err := p.LoadExecution(); !errors.Is(err, crewerr.ErrConfiguration) {
		t.Errorf("missing execution.yaml should be a configuration error, got %v", err)
	}
}

func TestContextReader(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "demo", ContextDir, "readme.md"), "# Demo")
	writeFile(t, filepath.Join(root, "nocontext", ExecutionFile), "")
	writeFile(t, filepath.Join(root, "secret.txt"), "secret")

	r := ContextReader{ProjectsDir: root}

	got, err := r.Read("demo", "readme.md")
	if err != nil || got != "# Demo" {
		t.Fatalf("Read = %q, %v", got, err)
	}

	tests := []struct {
		name    string
		project string
		file    string
		target  error
	}{
		{"missing file", "demo", "other.md", ErrContextNotFound},
		{"missing dir", "nocontext", "readme.md", ErrContextNotFound},
		{"traversal", "demo", "../../secret.txt", crewerr.ErrPathSafety},
		{"empty name", "demo", "", crewerr.ErrConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Read(tt.project, tt.file)
			if !errors.Is(err, tt.target) {
				t.Errorf("Read(%q, %q) error = %v, want %v", tt.project, tt.file, err, tt.target)
			}
		})
	}
}

func TestValidateInputs(t *testing.T) {
	var decls models.OrderedMap[models.InputSpec]
	if err := yaml.Unmarshal([]byte(`
repo: {title: repository}
mode: {title: mode, optional: true, enum: [fast, full]}
note: {title: note, optional: true}
`), &decls); err != nil {
		t.Fatal(err)
	}

	supplied := models.NewOrderedMap[string]()
	supplied.Set("extra", "x")
	supplied.Set("repo", "api")

	got, err := ValidateInputs(decls, supplied)
	if err != nil {
		t.Fatalf("ValidateInputs failed: %v", err)
	}
	keys := got.Keys()
	want := []string{"repo", "mode", "note", "extra"}
	if len(keys) != len(want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("keys[%d] = %q, want %q", i, keys[i], want[i])
		}
	}
	if v, ok := got.Get("mode"); !ok || v != "" {
		t.Errorf("optional input should default to empty, got %q", v)
	}

	missing := models.NewOrderedMap[string]()
	var inputErr *InputError
	if _, err := ValidateInputs(decls, missing); !errors.As(err, &inputErr) || inputErr.Name != "repo" {
		t.Errorf("expected missing repo error, got %v", err)
	}

	badEnum := models.NewOrderedMap[string]()
	badEnum.Set("repo", "api")
	badEnum.Set("mode", "slow")
	_, err = ValidateInputs(decls, badEnum)
	if !errors.As(err, &inputErr) || len(inputErr.Allowed) != 2 {
		t.Errorf("expected enum error, got %v", err)
	}
	if !errors.Is(err, crewerr.ErrConfiguration) {
		t.Error("input errors are configuration errors")
	}
}

func TestParseParams(t *testing.T) {
	got, err := ParseParams([]string{"repo=api", "query=a=b", "repo=web"})
	if err != nil {
		t.Fatalf("ParseParams failed: %v", err)
	}
	if v, _ := got.Get("repo"); v != "web" {
		t.Errorf("repo = %q", v)
	}
	if v, _ := got.Get("query"); v != "a=b" {
		t.Errorf("query = %q", v)
	}
	if keys := got.Keys(); keys[0] != "repo" {
		t.Errorf("order = %v", keys)
	}

	if _, err := ParseParams([]string{"novalue"}); !errors.Is(err, crewerr.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestCreateAndList(t *testing.T) {
	root := filepath.Join(t.TempDir(), "projects")

	p, err := Create(root, "demo", []byte("```yaml\ncrews:\n  a: {}\n```"))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	data, err := os.ReadFile(p.Path(ExecutionFile))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "crews:\n  a: {}" {
		t.Errorf("execution.yaml = %q", data)
	}

	if _, err := Create(root, "../escape", []byte("x")); !errors.Is(err, crewerr.ErrPathSafety) {
		t.Errorf("expected path safety error, got %v", err)
	}

	if _, err := Create(root, "alpha", []byte("crews: {}\n")); err != nil {
		t.Fatal(err)
	}
	names, err := List(root)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(names) != 2 || names[0] != "alpha" || names[1] != "demo" {
		t.Errorf("List = %v", names)
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"```yaml\na: 1\n```", "a: 1"},
		{"  ```yaml\na: 1\n```\n", "a: 1"},
		{"a: 1\n", "a: 1\n"},
		{"```\na: 1\n```", "```\na: 1\n```"},
	}
	for _, tt := range tests {
		if got := StripCodeFence(tt.in); got != tt.want {
			t.Errorf("StripCodeFence(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

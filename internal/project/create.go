package project

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// StripCodeFence removes a surrounding ```yaml ... ``` fence, as produced
// when a plan is generated by a language model.
func StripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "```yaml") && strings.HasSuffix(trimmed, "```") && len(trimmed) >= len("```yaml```") {
		return strings.TrimSpace(trimmed[len("```yaml") : len(trimmed)-len("```")])
	}
	return content
}

// Create makes the project directory and writes source as its
// execution.yaml. An existing project keeps its other files.
func Create(projectsDir, name string, source []byte) (*Project, error) {
	if err := os.MkdirAll(projectsDir, 0755); err != nil {
		return nil, fmt.Errorf("create projects dir: %w", err)
	}
	p, err := Resolve(projectsDir, name)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(p.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create project dir: %w", err)
	}
	content := StripCodeFence(string(source))
	if err := os.WriteFile(p.Path(ExecutionFile), []byte(content), 0644); err != nil {
		return nil, fmt.Errorf("write %s: %w", ExecutionFile, err)
	}
	return p, nil
}

// List returns the names of the project directories, sorted.
func List(projectsDir string) ([]string, error) {
	entries, err := os.ReadDir(projectsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read projects dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

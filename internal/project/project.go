// Package project reads and writes crew projects on disk.
//
// A project is a directory under the projects root:
//
//	<projects>/<name>/execution.yaml   declared plan
//	<projects>/<name>/benchmark.yaml   optional benchmark sweep
//	<projects>/<name>/context/         context files
//	<projects>/<name>/output/          cached unit results
//	<projects>/<name>/validations/     expected outputs and .result artifacts
package project

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/crewscontrol/internal/cache"
	"github.com/ShayCichocki/crewscontrol/internal/crewerr"
	"github.com/ShayCichocki/crewscontrol/internal/fsutil"
	"github.com/ShayCichocki/crewscontrol/pkg/models"
)

// File and directory names inside a project.
const (
	ExecutionFile  = "execution.yaml"
	BenchmarkFile  = "benchmark.yaml"
	ContextDir     = "context"
	OutputDir      = "output"
	ValidationsDir = "validations"
)

// ErrProjectNotFound is returned when a project directory does not exist.
var ErrProjectNotFound = errors.New("project not found")

// Project is a project directory.
type Project struct {
	Name string
	Dir  string
}

// Resolve returns the project called name under projectsDir without
// checking that it exists. Names that escape projectsDir are rejected.
func Resolve(projectsDir, name string) (*Project, error) {
	if name == "" {
		return nil, crewerr.New(crewerr.ErrConfiguration, "project name is required")
	}
	dir := filepath.Join(projectsDir, name)
	if !fsutil.IsStrictlyInside(projectsDir, dir) {
		return nil, &cache.PathTraversalError{Root: projectsDir, Path: name}
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve project dir: %w", err)
	}
	return &Project{Name: name, Dir: abs}, nil
}

// Open resolves an existing project.
func Open(projectsDir, name string) (*Project, error) {
	p, err := Resolve(projectsDir, name)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(p.Dir)
	if err != nil || !info.IsDir() {
		return nil, crewerr.Wrap(crewerr.ErrConfiguration, name, ErrProjectNotFound)
	}
	return p, nil
}

// Path joins elem onto the project directory.
func (p *Project) Path(elem ...string) string {
	return filepath.Join(append([]string{p.Dir}, elem...)...)
}

// OutputDir returns the result cache directory.
func (p *Project) OutputDir() string { return p.Path(OutputDir) }

// ValidationsDir returns the validations directory.
func (p *Project) ValidationsDir() string { return p.Path(ValidationsDir) }

// HasBenchmark reports whether the project has a benchmark.yaml.
func (p *Project) HasBenchmark() bool {
	_, err := os.Stat(p.Path(BenchmarkFile))
	return err == nil
}

// LoadExecution parses execution.yaml.
func (p *Project) LoadExecution() (*models.ExecutionConfig, error) {
	var cfg models.ExecutionConfig
	if err := loadYAML(p.Path(ExecutionFile), &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadBenchmark parses benchmark.yaml.
func (p *Project) LoadBenchmark() (*models.Benchmark, error) {
	if !p.HasBenchmark() {
		return nil, crewerr.New(crewerr.ErrConfiguration,
			fmt.Sprintf("project %s has no %s, cannot run in benchmark mode", p.Name, BenchmarkFile))
	}
	var b models.Benchmark
	if err := loadYAML(p.Path(BenchmarkFile), &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return crewerr.Wrap(crewerr.ErrConfiguration, "missing "+filepath.Base(path), err)
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return crewerr.Wrap(crewerr.ErrConfiguration, "parse "+filepath.Base(path), err)
	}
	return nil
}

package project

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ShayCichocki/crewscontrol/internal/cache"
	"github.com/ShayCichocki/crewscontrol/internal/crewerr"
	"github.com/ShayCichocki/crewscontrol/internal/fsutil"
)

// ErrContextNotFound is returned when a project's context directory or a
// context file is absent.
var ErrContextNotFound = errors.New("context not found")

// ContextReader reads files from <projects>/<project>/context.
type ContextReader struct {
	ProjectsDir string
}

// ContextReader returns a reader rooted at the project's parent directory.
func (p *Project) ContextReader() ContextReader {
	return ContextReader{ProjectsDir: filepath.Dir(p.Dir)}
}

// Read returns the content of the named context file.
func (r ContextReader) Read(project, name string) (string, error) {
	if name == "" {
		return "", crewerr.New(crewerr.ErrConfiguration, "context name is required")
	}
	p, err := Resolve(r.ProjectsDir, project)
	if err != nil {
		return "", err
	}

	dir := p.Path(ContextDir)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return "", crewerr.Wrap(crewerr.ErrConfiguration, fmt.Sprintf("context directory %s", dir), ErrContextNotFound)
	}

	path := filepath.Join(dir, name)
	if !fsutil.IsStrictlyInside(dir, path) {
		return "", &cache.PathTraversalError{Root: dir, Path: name}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", crewerr.Wrap(crewerr.ErrConfiguration, fmt.Sprintf("context file %s", name), ErrContextNotFound)
		}
		return "", fmt.Errorf("read context %s: %w", name, err)
	}
	return string(data), nil
}

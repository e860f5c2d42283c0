// Package cache stores unit results on disk. The existence of a unit's
// output file is the cache hit signal; there is no separate index.
package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ShayCichocki/crewscontrol/internal/crewerr"
	"github.com/ShayCichocki/crewscontrol/internal/fsutil"
	"github.com/ShayCichocki/crewscontrol/internal/interp"
)

// PathTraversalError reports an output or artifact path that resolves
// outside its sanctioned root.
type PathTraversalError struct {
	Root string
	Path string
}

func (e *PathTraversalError) Error() string {
	return fmt.Sprintf("directory traversal detected: %q escapes %q", e.Path, e.Root)
}

func (e *PathTraversalError) Unwrap() error { return crewerr.ErrPathSafety }

// Options are the per-run cache toggles.
type Options struct {
	// IgnoreCache forces execution even when an output file exists.
	IgnoreCache bool
	// Export enables writing results. Without it nothing is ever cached.
	Export bool
	// Logger receives cache activity. Defaults to slog.Default().
	Logger *slog.Logger
}

// Cache is the on-disk result store for one project's output directory.
type Cache struct {
	dir  string
	opts Options
	log  *slog.Logger
}

// New creates a cache rooted at outputDir. The directory is created lazily
// on the first Store.
func New(outputDir string, opts Options) *Cache {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{dir: outputDir, opts: opts, log: logger}
}

// Dir returns the output directory.
func (c *Cache) Dir() string {
	return c.dir
}

// ResolveOutputPath interpolates template and returns the absolute path of
// the result file. Path separators in the interpolated name are flattened
// to '-'. An empty template yields "" meaning the unit has no cache entry.
func (c *Cache) ResolveOutputPath(template string, scopes interp.Scopes) (string, error) {
	if strings.TrimSpace(template) == "" {
		return "", nil
	}

	name, err := interp.Interpolate(template, scopes)
	if err != nil {
		return "", fmt.Errorf("output naming template: %w", err)
	}
	name = strings.ReplaceAll(name, "/", "-")
	if filepath.Separator != '/' {
		name = strings.ReplaceAll(name, string(filepath.Separator), "-")
	}

	path := filepath.Join(c.dir, name)
	if !fsutil.IsStrictlyInside(c.dir, path) {
		return "", &PathTraversalError{Root: c.dir, Path: name}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", crewerr.Wrap(crewerr.ErrCacheIO, "resolve output path", err)
	}
	return abs, nil
}

// Get returns the cached result at path. The boolean is false when caching
// is disabled for the run, path is empty or the file does not exist.
func (c *Cache) Get(path string) (string, bool, error) {
	if path == "" || c.opts.IgnoreCache {
		return "", false, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, crewerr.Wrap(crewerr.ErrCacheIO, "read cached result", err)
	}
	c.log.Debug("cache hit", "path", path)
	return string(data), true, nil
}

// Store writes content to path, creating parent directories and replacing
// any existing file. It reports whether anything was written: nothing is
// stored when export is disabled or path is empty.
func (c *Cache) Store(path, content string) (bool, error) {
	if path == "" || !c.opts.Export {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, crewerr.Wrap(crewerr.ErrCacheIO, "create output directory", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return false, crewerr.Wrap(crewerr.ErrCacheIO, "write result", err)
	}
	c.log.Info("result stored", "path", path)
	return true, nil
}

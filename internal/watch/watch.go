// Package watch re-runs a project when its definition or context files
// change.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ShayCichocki/crewscontrol/internal/project"
)

// DefaultDebounce is how long the watcher waits for changes to settle.
const DefaultDebounce = 500 * time.Millisecond

// Config configures Watch.
type Config struct {
	// Dir is the project directory.
	Dir string
	// Debounce defaults to DefaultDebounce.
	Debounce time.Duration
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// TriggerFunc is called with the changed paths, sorted. Its error is
// logged and watching continues.
type TriggerFunc func(ctx context.Context, changed []string) error

// Watch blocks until ctx is done, calling trigger after each settled batch
// of changes to execution.yaml, benchmark.yaml or files under context/.
// Triggers never overlap.
func Watch(ctx context.Context, cfg Config, trigger TriggerFunc) error {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(cfg.Dir); err != nil {
		return fmt.Errorf("watch %s: %w", cfg.Dir, err)
	}
	contextDir := filepath.Join(cfg.Dir, project.ContextDir)
	if info, err := os.Stat(contextDir); err == nil && info.IsDir() {
		if err := watcher.Add(contextDir); err != nil {
			return fmt.Errorf("watch %s: %w", contextDir, err)
		}
	}
	log.Info("watching project", "dir", cfg.Dir)

	pending := make(map[string]bool)
	timer := time.NewTimer(cfg.Debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create != 0 && event.Name == contextDir {
				if err := watcher.Add(contextDir); err != nil {
					log.Warn("watch context directory failed", "err", err)
				}
			}
			if !Relevant(cfg.Dir, event.Name) || event.Op == fsnotify.Chmod {
				continue
			}
			log.Debug("change detected", "path", event.Name, "op", event.Op.String())
			pending[event.Name] = true
			timer.Reset(cfg.Debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", "err", err)

		case <-timer.C:
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			sort.Strings(changed)
			clear(pending)

			log.Info("project changed, re-running", "files", len(changed))
			if err := trigger(ctx, changed); err != nil {
				log.Error("run after change failed", "err", err)
			}
		}
	}
}

// Relevant reports whether a change at path should re-run the project in dir.
func Relevant(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	switch rel {
	case project.ExecutionFile, project.BenchmarkFile:
		return true
	}
	parent := filepath.ToSlash(filepath.Dir(rel))
	return parent == project.ContextDir && filepath.Base(rel)[0] != '.'
}

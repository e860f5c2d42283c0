package cache

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ShayCichocki/crewscontrol/internal/crewerr"
	"github.com/ShayCichocki/crewscontrol/internal/interp"
)

func scopes(inputs map[string]string) interp.Scopes {
	return interp.NewScopes(nil, inputs, nil)
}

func TestResolveOutputPath(t *testing.T) {
	dir := t.TempDir()
	c := New(dir, Options{Export: true})

	path, err := c.ResolveOutputPath("{repo}/summary.md", scopes(map[string]string{"repo": "acme/api"}))
	if err != nil {
		t.Fatalf("ResolveOutputPath failed: %v", err)
	}
	want, _ := filepath.Abs(filepath.Join(dir, "acme-api-summary.md"))
	if path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
}

func TestResolveOutputPath_Empty(t *testing.T) {
	c := New(t.TempDir(), Options{Export: true})
	path, err := c.ResolveOutputPath("", nil)
	if err != nil || path != "" {
		t.Errorf("ResolveOutputPath(\"\") = %q, %v", path, err)
	}
}

func TestResolveOutputPath_Traversal(t *testing.T) {
	c := New(t.TempDir(), Options{Export: true})

	for _, value := range []string{"..", "."} {
		_, err := c.ResolveOutputPath("{name}", scopes(map[string]string{"name": value}))
		var traversal *PathTraversalError
		if !errors.As(err, &traversal) {
			t.Fatalf("value %q: expected PathTraversalError, got %v", value, err)
		}
		if !errors.Is(err, crewerr.ErrPathSafety) || !crewerr.IsFatal(err) {
			t.Errorf("value %q: traversal must be a fatal path-safety error", value)
		}
	}

	// Slashes are flattened, so "../x" stays inside.
	if _, err := c.ResolveOutputPath("../x", nil); err != nil {
		t.Errorf("flattened path rejected: %v", err)
	}
}

func TestResolveOutputPath_MissingVariable(t *testing.T) {
	c := New(t.TempDir(), Options{})
	_, err := c.ResolveOutputPath("{nope}.md", nil)
	var missing *interp.MissingVariableError
	if !errors.As(err, &missing) {
		t.Errorf("expected MissingVariableError, got %v", err)
	}
}

func TestGetAndStore(t *testing.T) {
	dir := t.TempDir()
	c := New(dir, Options{Export: true})
	path := filepath.Join(dir, "nested", "result.md")

	if _, ok, err := c.Get(path); ok || err != nil {
		t.Fatalf("Get on empty cache = %v, %v", ok, err)
	}

	stored, err := c.Store(path, "first")
	if err != nil || !stored {
		t.Fatalf("Store = %v, %v", stored, err)
	}
	if stored, err := c.Store(path, "second"); err != nil || !stored {
		t.Fatalf("overwrite = %v, %v", stored, err)
	}

	got, ok, err := c.Get(path)
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if got != "second" {
		t.Errorf("content = %q, want %q", got, "second")
	}
}

func TestGet_IgnoreCache(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "result.md")
	if err := os.WriteFile(path, []byte("cached"), 0644); err != nil {
		t.Fatal(err)
	}

	c := New(dir, Options{IgnoreCache: true, Export: true})
	if _, ok, _ := c.Get(path); ok {
		t.Error("IgnoreCache should force a miss")
	}
}

func TestStore_ExportDisabled(t *testing.T) {
	dir := t.TempDir()
	c := New(dir, Options{})
	path := filepath.Join(dir, "result.md")

	stored, err := c.Store(path, "content")
	if err != nil || stored {
		t.Fatalf("Store = %v, %v", stored, err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("nothing should be written when export is disabled")
	}
}

func TestGet_ReadError(t *testing.T) {
	dir := t.TempDir()
	c := New(dir, Options{})

	// A directory at the path is a read failure, not a miss.
	_, _, err := c.Get(dir)
	if !errors.Is(err, crewerr.ErrCacheIO) {
		t.Errorf("expected cache io error, got %v", err)
	}
}

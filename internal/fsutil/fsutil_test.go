package fsutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsSafePath(t *testing.T) {
	base := t.TempDir()

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"child", filepath.Join(base, "output", "a.md"), true},
		{"base itself", base, true},
		{"parent", filepath.Join(base, ".."), false},
		{"traversal", filepath.Join(base, "output", "..", "..", "etc"), false},
		{"sibling prefix", base + "-other", false},
		{"absolute elsewhere", "/etc/passwd", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSafePath(base, tt.path); got != tt.want {
				t.Errorf("IsSafePath(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestIsStrictlyInside(t *testing.T) {
	base := t.TempDir()
	if IsStrictlyInside(base, base) {
		t.Error("base itself is not strictly inside")
	}
	if !IsStrictlyInside(base, filepath.Join(base, "x")) {
		t.Error("child should be strictly inside")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Acme_API v2", "acme_api_v2"},
		{"../../etc/passwd", "______etc_passwd"},
		{"héllo", "h_llo"},
		{"", "unnamed"},
		{"abc123", "abc123"},
	}

	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFindFilesByExtension(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.result", "a.result", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	nested := filepath.Join(dir, "nested")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(nested, "c.result"), []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}

	files, err := FindFilesByExtension(dir, ".result")
	if err != nil {
		t.Fatalf("FindFilesByExtension failed: %v", err)
	}

	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d: %v", len(files), files)
	}
	if filepath.Base(files[0]) != "a.result" || filepath.Base(files[1]) != "b.result" {
		t.Errorf("unexpected order: %v", files)
	}
}

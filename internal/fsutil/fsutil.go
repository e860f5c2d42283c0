// Package fsutil provides file system utility functions.
package fsutil

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// IsSafePath reports whether path, once made absolute and cleaned, lies
// inside base (or is base itself).
func IsSafePath(base, path string) bool {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}

	rel, err := filepath.Rel(absBase, absPath)
	if err != nil {
		return false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return !filepath.IsAbs(rel)
}

// IsStrictlyInside is IsSafePath excluding base itself.
func IsStrictlyInside(base, path string) bool {
	if !IsSafePath(base, path) {
		return false
	}
	absBase, _ := filepath.Abs(base)
	absPath, _ := filepath.Abs(path)
	return absBase != absPath
}

// SanitizeFilename maps every rune outside [a-zA-Z0-9] to '_' and lowercases
// the result. Multi-byte runes collapse to a single '_'. An empty result
// becomes "unnamed" so the name is always usable.
func SanitizeFilename(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "unnamed"
	}
	return b.String()
}

// FindFilesByExtension lists the files directly inside dir whose name ends
// with extension, in lexical order.
func FindFilesByExtension(dir string, extension string) ([]string, error) {
	if extension == "" {
		panic("extension must not be empty")
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(d.Name(), extension) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

// Package fsutil holds the write-then-publish helpers shared by the history
// and report stores.
package fsutil

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// WriteTemp streams write into a hidden temp file in dir, syncs it and
// returns its path. The caller removes the temp file once it is published.
func WriteTemp(dir, pattern string, write func(w io.Writer) error) (string, error) {
	f, err := os.CreateTemp(dir, "."+pattern)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	path := f.Name()

	fail := func(step string, err error) (string, error) {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to %s temp file: %w", step, err)
	}

	if err := write(f); err != nil {
		return fail("write", err)
	}
	if err := f.Sync(); err != nil {
		return fail("sync", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	return path, nil
}

// PublishUnique hard-links tmp into dir under the first name returned by
// name(0), name(1), ... that does not exist yet, and returns that name.
// Existing files are never replaced.
func PublishUnique(tmp, dir string, name func(n int) string) (string, error) {
	for n := 0; n < 10000; n++ {
		candidate := name(n)
		err := os.Link(tmp, filepath.Join(dir, candidate))
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to publish %s: %w", candidate, err)
		}
		return candidate, nil
	}
	return "", fmt.Errorf("failed to publish: no free name in %s", dir)
}

// Disambiguate returns base+ext for n == 0 and base_<n>+ext otherwise.
func Disambiguate(base, ext string) func(n int) string {
	return func(n int) string {
		if n == 0 {
			return base + ext
		}
		return fmt.Sprintf("%s_%d%s", base, n, ext)
	}
}

// ClearFiles removes every regular file directly inside dir and returns how
// many were removed. Sub-directories are left alone. A missing
// dir counts as empty.
func ClearFiles(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	removed := 0
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", e.Name(), err)
		}
		removed++
	}
	return removed, nil
}

// ValidName reports whether name is a plain, non-hidden file name with ext
// (compared case-insensitively).
func ValidName(name, ext string) bool {
	if name == "" || strings.HasPrefix(name, ".") {
		return false
	}
	if strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return false
	}
	return strings.EqualFold(filepath.Ext(name), ext)
}

package filehandler

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

// ScanImages walks dirPath recursively and returns every supported image file.
//
// The result is ordered by parent directory, then by file name, so scanning
// the same tree twice always yields the same sequence. Symlinks are not followed.
func ScanImages(dirPath string) ([]string, error) {
	info, err := os.Stat(dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("directory not found: %s", dirPath)
		}
		return nil, fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dirPath)
	}

	var images []string
	err = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			log.Debug().Str("path", path).Msg("Skipping symlink in extracted tree")
			return nil
		}
		if !IsImage(filepath.Ext(d.Name())) {
			return nil
		}
		images = append(images, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	sortByDirThenName(images)

	log.Debug().
		Str("directory", dirPath).
		Int("images", len(images)).
		Msg("Image scan complete")

	return images, nil
}

// sortByDirThenName orders paths by their parent directory, then by base name.
func sortByDirThenName(paths []string) {
	sort.SliceStable(paths, func(i, j int) bool {
		di, dj := filepath.Dir(paths[i]), filepath.Dir(paths[j])
		if di != dj {
			return di < dj
		}
		return filepath.Base(paths[i]) < filepath.Base(paths[j])
	})
}

func sortStrings(s []string) {
	sort.Slice(s, func(i, j int) bool {
		return strings.ToLower(s[i]) < strings.ToLower(s[j])
	})
}

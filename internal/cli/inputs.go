package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/fpang/wildlife-vision/internal/filehandler"
)

// ResolveInputs checks that every path exists and returns absolute paths.
// A directory is replaced by the images found under it, in scan order.
// Files are passed through whatever their extension; the executor rejects
// unsupported ones.
func ResolveInputs(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("input not found: %s", p)
			}
			return nil, fmt.Errorf("failed to access %s: %w", p, err)
		}

		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}

		if info.IsDir() {
			images, err := filehandler.ScanImages(p)
			if err != nil {
				return nil, err
			}
			log.Debug().Str("dir", p).Int("images", len(images)).Msg("Expanded input directory")
			out = append(out, images...)
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

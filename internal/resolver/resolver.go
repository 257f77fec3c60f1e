// Package resolver expands user-selected inputs into ordered batches of image
// paths, unpacking zip archives into a scratch directory.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fpang/wildlife-vision/internal/filehandler"
	"github.com/rs/zerolog/log"
)

// ErrArchive is returned when an archive cannot be read or contains an
// entry that would escape the extraction directory.
var ErrArchive = errors.New("archive error")

// Batch is the list of image paths produced from one input. Kind is
// KindUnsupported for inputs the pipeline cannot process; Images is then empty.
type Batch struct {
	Input  string
	Kind   filehandler.Kind
	Images []string
}

// Resolver turns inputs into batches. Archives are extracted under
// scratchDir, one sub-directory per archive.
type Resolver struct {
	scratchDir string
	next       int
}

// New returns a Resolver that extracts archives below scratchDir.
func New(scratchDir string) *Resolver {
	return &Resolver{scratchDir: scratchDir}
}

// Resolve expands one input. Images pass through unchanged. Archives are
// extracted and walked; their images are returned ordered by directory then
// file name. Unsupported extensions yield a Batch with KindUnsupported and a
// nil error.
func (r *Resolver) Resolve(ctx context.Context, path string) (Batch, error) {
	kind := filehandler.KindOf(path)
	batch := Batch{Input: path, Kind: kind}

	switch kind {
	case filehandler.KindImage:
		batch.Images = []string{path}
		return batch, nil

	case filehandler.KindArchive:
		images, err := r.expandArchive(ctx, path)
		if err != nil {
			return Batch{}, err
		}
		batch.Images = images
		return batch, nil

	default:
		log.Debug().Str("input", path).Str("kind", kind.String()).Msg("Input is not classifiable")
		batch.Kind = filehandler.KindUnsupported
		return batch, nil
	}
}

func (r *Resolver) expandArchive(ctx context.Context, archivePath string) ([]string, error) {
	r.next++
	base := strings.TrimSuffix(filepath.Base(archivePath), filepath.Ext(archivePath))
	dest := filepath.Join(r.scratchDir, fmt.Sprintf("%d-%s", r.next, base))

	if _, err := filehandler.ExtractZip(ctx, archivePath, dest); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrArchive, filepath.Base(archivePath), err)
	}

	images, err := filehandler.ScanImages(dest)
	if err != nil {
		return nil, fmt.Errorf("failed to scan extracted archive: %w", err)
	}

	log.Info().
		Str("archive", filepath.Base(archivePath)).
		Int("images", len(images)).
		Msg("Archive resolved")

	return images, nil
}

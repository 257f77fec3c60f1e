package filehandler

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
)

// zipMethodZstd is the ZIP compression method ID for Zstandard (WinZip/APPNOTE 6.3.8).
const zipMethodZstd uint16 = zstd.ZipMethodWinZip

// ErrUnsafeEntry is returned when an archive entry would be written outside
// the extraction root.
var ErrUnsafeEntry = errors.New("archive entry escapes extraction root")

// ExtractZip unpacks archivePath into destDir and returns the number of files
// written. destDir is created if needed. Entries are extracted in archive
// order and ctx is checked between entries.
//
// Deflate entries are decoded with klauspost/compress/flate and Zstandard
// entries (method 93) with klauspost/compress/zstd, so bundles produced with
// a zstd compressor registered on the writer side are readable.
func ExtractZip(ctx context.Context, archivePath, destDir string) (int, error) {
	r, err := zip.OpenReader(archivePath)
	if errors.Is(err, zip.ErrInsecurePath) {
		if r != nil {
			r.Close()
		}
		return 0, fmt.Errorf("%s: %w", archivePath, ErrUnsafeEntry)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to open archive %s: %w", archivePath, err)
	}
	defer r.Close()

	r.RegisterDecompressor(zip.Deflate, flate.NewReader)
	r.RegisterDecompressor(zipMethodZstd, zstd.ZipDecompressor())

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create extraction directory: %w", err)
	}

	root, err := filepath.Abs(destDir)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve extraction directory: %w", err)
	}

	written := 0
	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		target, err := safeJoin(root, f.Name)
		if err != nil {
			return written, fmt.Errorf("%s: %w", f.Name, err)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return written, fmt.Errorf("failed to create directory %s: %w", f.Name, err)
			}
			continue
		}
		if !f.Mode().IsRegular() {
			log.Debug().Str("entry", f.Name).Msg("Skipping non-regular archive entry")
			continue
		}

		if err := extractEntry(f, target); err != nil {
			return written, err
		}
		written++
	}

	log.Debug().
		Str("archive", archivePath).
		Str("dest", destDir).
		Int("files", written).
		Msg("Archive extracted")

	return written, nil
}

func extractEntry(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", f.Name, err)
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}

	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}
	return out.Close()
}

// safeJoin joins name onto root and rejects results outside root.
func safeJoin(root, name string) (string, error) {
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", ErrUnsafeEntry
	}
	target := filepath.Join(root, filepath.FromSlash(name))
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrUnsafeEntry
	}
	return target, nil
}

// WriteZip bundles files into a zstd-compressed ZIP at archivePath. Entry names
// are the files' base names. Used to package reports for download.
func WriteZip(archivePath string, files []string) error {
	out, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}

	zw := zip.NewWriter(out)
	zw.RegisterCompressor(zipMethodZstd, func(w io.Writer) (io.WriteCloser, error) {
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	})

	for _, path := range files {
		if err := addZipEntry(zw, path); err != nil {
			zw.Close()
			out.Close()
			return err
		}
	}

	if err := zw.Close(); err != nil {
		out.Close()
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	return out.Close()
}

func addZipEntry(zw *zip.Writer, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("failed to build header for %s: %w", path, err)
	}
	header.Name = filepath.Base(path)
	header.Method = zipMethodZstd

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", path, err)
	}

	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer in.Close()

	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

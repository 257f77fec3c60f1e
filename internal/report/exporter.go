// Package report turns history records into tabular report files.
//
// A report holds one row per (image, label) pair of the record, in record
// order, under localized column headers. Reports are written to a hidden
// temp file and published with a hard link next to the other reports, named
// <record base>_<YYYYmmdd_HHMMSS>.<xlsx|csv>.
package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fpang/wildlife-vision/internal/fsutil"
	"github.com/fpang/wildlife-vision/internal/history"
	"github.com/rs/zerolog/log"
)

// ErrNotFound is returned by Path for a report that does not exist.
var ErrNotFound = errors.New("report not found")

const timestampLayout = "20060102_150405"

// Records loads history records by ID.
type Records interface {
	Load(id string) (history.Record, error)
}

// Mirror copies a finished report somewhere else, such as an S3 bucket.
type Mirror interface {
	Upload(ctx context.Context, path string) (string, error)
}

// Config configures an Exporter.
type Config struct {
	Dir    string
	Format Format
	Locale Locale

	// Now overrides the clock used for report names.
	Now func() time.Time
}

// Row is one (image, label) pair of a record.
type Row struct {
	Image string
	Class string
}

// Exporter writes reports for history records.
type Exporter struct {
	dir    string
	format Format
	locale Locale
	now    func() time.Time

	records Records
	mirror  Mirror
}

// New returns an Exporter. mirror may be nil.
func New(cfg Config, records Records, mirror Mirror) *Exporter {
	e := &Exporter{
		dir:     cfg.Dir,
		format:  cfg.Format,
		locale:  cfg.Locale,
		now:     cfg.Now,
		records: records,
		mirror:  mirror,
	}
	if e.format == "" {
		e.format = FormatXLSX
	}
	if e.locale == "" {
		e.locale = LocaleEnglish
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Dir returns the report directory.
func (e *Exporter) Dir() string {
	return e.dir
}

// Rows flattens rec into one row per (image, label) pair. Images without
// labels produce no rows.
func Rows(rec history.Record) []Row {
	rows := []Row{}
	for _, ic := range rec.ImageClassifications {
		for _, class := range ic.Classes {
			rows = append(rows, Row{Image: ic.Image, Class: class})
		}
	}
	return rows
}

// Export writes a report for the record with the given ID and returns the
// report file name. Errors from loading the record are returned unchanged
// so history.ErrNotFound can be matched by the caller.
func (e *Exporter) Export(ctx context.Context, recordID string) (string, error) {
	rec, err := e.records.Load(recordID)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	rows := Rows(rec)
	table := make([][]string, len(rows))
	for i, r := range rows {
		table[i] = []string{r.Image, e.locale.Translate(r.Class)}
	}

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create reports directory: %w", err)
	}

	tmp, err := fsutil.WriteTemp(e.dir, "report-*.tmp", func(w io.Writer) error {
		return writeTable(w, e.format, e.locale.Headers(), table)
	})
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp)

	base := strings.TrimSuffix(recordID, filepath.Ext(recordID)) + "_" + e.now().Format(timestampLayout)
	name, err := fsutil.PublishUnique(tmp, e.dir, fsutil.Disambiguate(base, e.format.Ext()))
	if err != nil {
		return "", fmt.Errorf("failed to save report: %w", err)
	}

	log.Info().
		Str("record", recordID).
		Str("report", name).
		Str("format", string(e.format)).
		Str("locale", string(e.locale)).
		Int("rows", len(rows)).
		Msg("Report exported")

	if e.mirror != nil {
		if key, err := e.mirror.Upload(ctx, filepath.Join(e.dir, name)); err != nil {
			log.Warn().Err(err).Str("report", name).Msg("Failed to mirror report")
		} else {
			log.Debug().Str("report", name).Str("key", key).Msg("Report mirrored")
		}
	}
	return name, nil
}

// List returns report file names in ascending order.
func (e *Exporter) List() ([]string, error) {
	entries, err := os.ReadDir(e.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read reports directory: %w", err)
	}

	names := []string{}
	for _, ent := range entries {
		if !ent.Type().IsRegular() || !isReportName(ent.Name()) {
			continue
		}
		names = append(names, ent.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Path returns the full path of a report, or ErrNotFound.
func (e *Exporter) Path(name string) (string, error) {
	if !isReportName(name) {
		return "", fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	path := filepath.Join(e.dir, name)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return path, nil
}

// Clear deletes every regular file in the report directory.
func (e *Exporter) Clear() (int, error) {
	n, err := fsutil.ClearFiles(e.dir)
	if err != nil {
		return n, err
	}
	log.Info().Str("dir", e.dir).Int("removed", n).Msg("Reports cleared")
	return n, nil
}

// Sync uploads every report through the mirror and returns how many were
// uploaded. Individual failures are collected and returned together.
func (e *Exporter) Sync(ctx context.Context) (int, error) {
	if e.mirror == nil {
		return 0, errors.New("no report mirror configured")
	}
	names, err := e.List()
	if err != nil {
		return 0, err
	}

	var errs []error
	uploaded := 0
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return uploaded, err
		}
		if _, err := e.mirror.Upload(ctx, filepath.Join(e.dir, name)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		uploaded++
	}

	log.Info().Int("uploaded", uploaded).Int("failed", len(errs)).Msg("Reports synced")
	return uploaded, errors.Join(errs...)
}

func isReportName(name string) bool {
	return fsutil.ValidName(name, FormatXLSX.Ext()) || fsutil.ValidName(name, FormatCSV.Ext())
}

// Package history is the append-only store of completed classification runs.
//
// Each record is one JSON file named classification_results_<YYYYmmdd_HHMMSS>.json
// in the store directory, with an _<n> suffix when two records land in the
// same second. Records are written to a hidden temp file and published with a
// hard link, so a record is either fully present or absent and an existing
// file is never overwritten.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fpang/wildlife-vision/internal/aggregate"
	"github.com/fpang/wildlife-vision/internal/fsutil"
	"github.com/rs/zerolog/log"
)

// ErrNotFound is returned when a record does not exist or cannot be parsed.
var ErrNotFound = errors.New("history record not found")

const (
	recordPrefix    = "classification_results_"
	recordExt       = ".json"
	timestampLayout = "20060102_150405"
)

// Record is one completed run. Only the count and classification fields are
// serialised; ID and Timestamp come from the file name.
type Record struct {
	ID        string    `json:"-"`
	Timestamp time.Time `json:"-"`

	ClassCounts          aggregate.ClassCounts           `json:"class_counts"`
	ImageClassifications []aggregate.ImageClassification `json:"image_classifications"`
}

// Result returns the record as an aggregate result.
func (r Record) Result() aggregate.Result {
	return aggregate.Result{ClassCounts: r.ClassCounts, ImageClassifications: r.ImageClassifications}
}

// Config configures a Store.
type Config struct {
	// Dir holds the record files. Created on first save.
	Dir string

	// Now overrides the clock used for record names.
	Now func() time.Time
}

// Store reads and writes history records in one directory.
type Store struct {
	dir string
	now func() time.Time
}

// New returns a Store for cfg.Dir.
func New(cfg Config) *Store {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Store{dir: cfg.Dir, now: now}
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes a new record and returns it with its ID and timestamp set.
// Counts that disagree with classifications are rejected with
// aggregate.ErrInconsistent and nothing is written.
func (s *Store) Save(counts aggregate.ClassCounts, classifications []aggregate.ImageClassification) (Record, error) {
	ts := s.now().Local().Truncate(time.Second)
	rec := Record{
		Timestamp:            ts,
		ClassCounts:          counts.Clone(),
		ImageClassifications: normalize(classifications),
	}
	if err := rec.Result().Verify(); err != nil {
		return Record{}, fmt.Errorf("refusing to save record: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return Record{}, fmt.Errorf("failed to create history directory: %w", err)
	}

	tmp, err := fsutil.WriteTemp(s.dir, "record-*.tmp", func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "    ")
		return enc.Encode(rec)
	})
	if err != nil {
		return Record{}, err
	}
	defer os.Remove(tmp)

	name, err := fsutil.PublishUnique(tmp, s.dir, fsutil.Disambiguate(recordPrefix+ts.Format(timestampLayout), recordExt))
	if err != nil {
		return Record{}, fmt.Errorf("failed to save record: %w", err)
	}

	rec.ID = name
	log.Info().
		Str("record", name).
		Int("images", len(rec.ImageClassifications)).
		Int("labels", rec.ClassCounts.Total()).
		Msg("History record saved")
	return rec, nil
}

// List returns record IDs in chronological order.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history directory: %w", err)
	}

	ids := []string{}
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || strings.HasPrefix(name, ".") || !strings.EqualFold(filepath.Ext(name), recordExt) {
			continue
		}
		ids = append(ids, name)
	}
	sortRecordIDs(ids)
	return ids, nil
}

// Latest returns the newest record ID, or ErrNotFound for an empty store.
func (s *Store) Latest() (string, error) {
	ids, err := s.List()
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", ErrNotFound
	}
	return ids[len(ids)-1], nil
}

// Load reads the record with the given ID.
func (s *Store) Load(id string) (Record, error) {
	if !fsutil.ValidName(id, recordExt) {
		return Record{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	path := filepath.Join(s.dir, id)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, fmt.Errorf("failed to read record %s: %w", id, err)
	}

	rec, err := decodeRecord(data)
	if err != nil {
		log.Warn().Err(err).Str("record", id).Msg("Unparseable history record")
		return Record{}, fmt.Errorf("%w: %s: %v", ErrNotFound, id, err)
	}

	rec.ID = id
	rec.Timestamp = timestampOf(id, info.ModTime())

	if err := rec.Result().Verify(); err != nil {
		log.Warn().Err(err).Str("record", id).Msg("History record counts disagree with classifications")
	}
	return rec, nil
}

// Clear deletes every regular file in the store and returns how many were removed.
func (s *Store) Clear() (int, error) {
	n, err := fsutil.ClearFiles(s.dir)
	if err != nil {
		return n, err
	}
	log.Info().Str("dir", s.dir).Int("removed", n).Msg("History cleared")
	return n, nil
}

func decodeRecord(data []byte) (Record, error) {
	var raw struct {
		ClassCounts          *aggregate.ClassCounts           `json:"class_counts"`
		ImageClassifications *[]aggregate.ImageClassification `json:"image_classifications"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Record{}, err
	}
	if raw.ClassCounts == nil || raw.ImageClassifications == nil {
		return Record{}, errors.New("missing class_counts or image_classifications")
	}
	return Record{
		ClassCounts:          (*raw.ClassCounts).Clone(),
		ImageClassifications: normalize(*raw.ImageClassifications),
	}, nil
}

// normalize copies list, replacing nil class lists with empty ones so the
// JSON form always has an array.
func normalize(list []aggregate.ImageClassification) []aggregate.ImageClassification {
	out := make([]aggregate.ImageClassification, len(list))
	for i, ic := range list {
		classes := make([]string, len(ic.Classes))
		copy(classes, ic.Classes)
		out[i] = aggregate.ImageClassification{Image: ic.Image, Classes: classes}
	}
	return out
}

// parseRecordID splits a record file name into its timestamp text and
// disambiguator. ok is false for names not produced by Save.
func parseRecordID(id string) (stamp string, n int, ok bool) {
	if !strings.HasPrefix(id, recordPrefix) || !strings.HasSuffix(id, recordExt) {
		return "", 0, false
	}
	rest := strings.TrimSuffix(strings.TrimPrefix(id, recordPrefix), recordExt)
	if len(rest) < len(timestampLayout) {
		return "", 0, false
	}
	stamp, suffix := rest[:len(timestampLayout)], rest[len(timestampLayout):]
	if suffix == "" {
		return stamp, 0, true
	}
	if !strings.HasPrefix(suffix, "_") {
		return "", 0, false
	}
	n, err := strconv.Atoi(suffix[1:])
	if err != nil || n <= 0 {
		return "", 0, false
	}
	return stamp, n, true
}

func timestampOf(id string, fallback time.Time) time.Time {
	stamp, _, ok := parseRecordID(id)
	if !ok {
		return fallback
	}
	ts, err := time.ParseInLocation(timestampLayout, stamp, time.Local)
	if err != nil {
		return fallback
	}
	return ts
}

// sortRecordIDs orders Save-produced names by timestamp then disambiguator,
// and any other names after them alphabetically.
func sortRecordIDs(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool {
		si, ni, oki := parseRecordID(ids[i])
		sj, nj, okj := parseRecordID(ids[j])
		switch {
		case oki && okj:
			if si != sj {
				return si < sj
			}
			return ni < nj
		case oki != okj:
			return oki
		default:
			return ids[i] < ids[j]
		}
	})
}

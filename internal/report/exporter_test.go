package report

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/fpang/wildlife-vision/internal/aggregate"
	"github.com/fpang/wildlife-vision/internal/history"
	"github.com/xuri/excelize/v2"
)

var exportTime = time.Date(2024, 6, 2, 14, 5, 9, 0, time.Local)

type fakeMirror struct {
	mu       sync.Mutex
	uploaded []string
	err      error
}

func (m *fakeMirror) Upload(ctx context.Context, path string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.uploaded = append(m.uploaded, filepath.Base(path))
	return "reports/" + filepath.Base(path), nil
}

func seedRecord(t *testing.T) (*history.Store, string) {
	t.Helper()
	store := history.New(history.Config{
		Dir: filepath.Join(t.TempDir(), "metadata"),
		Now: func() time.Time { return time.Date(2024, 6, 1, 10, 0, 0, 0, time.Local) },
	})
	rec, err := store.Save(
		aggregate.ClassCounts{"deer": 2, "roedeer": 1, "muskdeer": 1},
		[]aggregate.ImageClassification{
			{Image: "IMG_001.jpg", Classes: []string{"deer", "roedeer"}},
			{Image: "IMG_002.jpg", Classes: []string{}},
			{Image: "IMG_003.jpg", Classes: []string{"muskdeer"}},
			{Image: "IMG_004.jpg", Classes: []string{"deer"}},
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	return store, rec.ID
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return rows
}

func TestRows(t *testing.T) {
	store, id := seedRecord(t)
	rec, err := store.Load(id)
	if err != nil {
		t.Fatal(err)
	}

	want := []Row{
		{"IMG_001.jpg", "deer"},
		{"IMG_001.jpg", "roedeer"},
		{"IMG_003.jpg", "muskdeer"},
		{"IMG_004.jpg", "deer"},
	}
	if got := Rows(rec); !reflect.DeepEqual(got, want) {
		t.Errorf("Rows() = %v, want %v", got, want)
	}
	if got := Rows(history.Record{}); len(got) != 0 {
		t.Errorf("Rows(empty) = %v", got)
	}
}

func TestExportCSVTwiceIsIdentical(t *testing.T) {
	store, id := seedRecord(t)
	dir := t.TempDir()
	exp := New(Config{Dir: dir, Format: FormatCSV, Now: func() time.Time { return exportTime }}, store, nil)

	first, err := exp.Export(context.Background(), id)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	second, err := exp.Export(context.Background(), id)
	if err != nil {
		t.Fatalf("second Export() error = %v", err)
	}

	if first != "classification_results_20240601_100000_20240602_140509.csv" {
		t.Errorf("first report = %q", first)
	}
	if second != "classification_results_20240601_100000_20240602_140509_1.csv" {
		t.Errorf("second report = %q", second)
	}

	a := readCSV(t, filepath.Join(dir, first))
	b := readCSV(t, filepath.Join(dir, second))
	if !reflect.DeepEqual(a, b) {
		t.Errorf("exports differ:\n%v\n%v", a, b)
	}

	want := [][]string{
		{"Image", "Class"},
		{"IMG_001.jpg", "deer"},
		{"IMG_001.jpg", "roedeer"},
		{"IMG_003.jpg", "muskdeer"},
		{"IMG_004.jpg", "deer"},
	}
	if !reflect.DeepEqual(a, want) {
		t.Errorf("rows = %v, want %v", a, want)
	}

	names, err := exp.List()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(names, []string{first, second}) {
		t.Errorf("List() = %v", names)
	}
}

func TestExportXLSXRussian(t *testing.T) {
	store, id := seedRecord(t)
	dir := t.TempDir()
	exp := New(Config{Dir: dir, Format: FormatXLSX, Locale: LocaleRussian, Now: func() time.Time { return exportTime }}, store, nil)

	name, err := exp.Export(context.Background(), id)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if filepath.Ext(name) != ".xlsx" {
		t.Errorf("report name = %q, want .xlsx", name)
	}

	f, err := excelize.OpenFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatal(err)
	}
	want := [][]string{
		{"Изображение", "Класс"},
		{"IMG_001.jpg", "Олень"},
		{"IMG_001.jpg", "Косуля"},
		{"IMG_003.jpg", "Кабарга"},
		{"IMG_004.jpg", "Олень"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("rows = %v, want %v", rows, want)
	}

	// The stored record keeps its original labels.
	rec, err := store.Load(id)
	if err != nil {
		t.Fatal(err)
	}
	if rec.ImageClassifications[0].Classes[1] != "roedeer" {
		t.Errorf("record label changed to %q", rec.ImageClassifications[0].Classes[1])
	}
}

func TestExportMissingRecord(t *testing.T) {
	store, _ := seedRecord(t)
	dir := t.TempDir()
	exp := New(Config{Dir: dir, Format: FormatCSV}, store, nil)

	_, err := exp.Export(context.Background(), "nonexistent.json")
	if !errors.Is(err, history.ErrNotFound) {
		t.Fatalf("Export() error = %v, want history.ErrNotFound", err)
	}
	names, _ := exp.List()
	if len(names) != 0 {
		t.Errorf("reports written for a missing record: %v", names)
	}
}

func TestExportMirror(t *testing.T) {
	store, id := seedRecord(t)

	t.Run("uploaded", func(t *testing.T) {
		mirror := &fakeMirror{}
		exp := New(Config{Dir: t.TempDir(), Format: FormatCSV}, store, mirror)
		name, err := exp.Export(context.Background(), id)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(mirror.uploaded, []string{name}) {
			t.Errorf("uploaded = %v, want [%s]", mirror.uploaded, name)
		}
	})

	t.Run("failure is not fatal", func(t *testing.T) {
		mirror := &fakeMirror{err: errors.New("bucket unreachable")}
		dir := t.TempDir()
		exp := New(Config{Dir: dir, Format: FormatCSV}, store, mirror)
		name, err := exp.Export(context.Background(), id)
		if err != nil {
			t.Fatalf("Export() error = %v, want nil", err)
		}
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("report not written: %v", err)
		}
	})
}

func TestSync(t *testing.T) {
	store, id := seedRecord(t)
	dir := t.TempDir()
	mirror := &fakeMirror{}

	noMirror := New(Config{Dir: dir, Format: FormatCSV}, store, nil)
	if _, err := noMirror.Export(context.Background(), id); err != nil {
		t.Fatal(err)
	}
	if _, err := noMirror.Sync(context.Background()); err == nil {
		t.Error("Sync() without a mirror succeeded")
	}

	exp := New(Config{Dir: dir, Format: FormatCSV}, store, mirror)
	n, err := exp.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if n != 1 || len(mirror.uploaded) != 1 {
		t.Errorf("Sync() uploaded %d (%v), want 1", n, mirror.uploaded)
	}
}

func TestPathAndClear(t *testing.T) {
	store, id := seedRecord(t)
	dir := t.TempDir()
	exp := New(Config{Dir: dir, Format: FormatCSV}, store, nil)

	name, err := exp.Export(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := exp.Path(name); err != nil {
		t.Errorf("Path(%q) error = %v", name, err)
	}
	for _, bad := range []string{"missing.csv", "../x.csv", "notes.txt"} {
		if _, err := exp.Path(bad); !errors.Is(err, ErrNotFound) {
			t.Errorf("Path(%q) error = %v, want ErrNotFound", bad, err)
		}
	}

	n, err := exp.Clear()
	if err != nil || n != 1 {
		t.Errorf("Clear() = %d, %v; want 1, nil", n, err)
	}
	if _, err := exp.Path(name); !errors.Is(err, ErrNotFound) {
		t.Errorf("Path() after Clear() error = %v", err)
	}
}

func TestParseOptions(t *testing.T) {
	tests := []struct {
		format, locale string
		wantFormat     Format
		wantLocale     Locale
		wantErr        bool
	}{
		{"", "", FormatXLSX, LocaleEnglish, false},
		{"CSV", "RU", FormatCSV, LocaleRussian, false},
		{"xlsx", "en", FormatXLSX, LocaleEnglish, false},
		{"pdf", "en", "", "", true},
		{"csv", "de", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.format+"/"+tt.locale, func(t *testing.T) {
			f, ferr := ParseFormat(tt.format)
			l, lerr := ParseLocale(tt.locale)
			if tt.wantErr {
				if ferr == nil && lerr == nil {
					t.Error("expected an error")
				}
				return
			}
			if ferr != nil || lerr != nil {
				t.Fatalf("unexpected errors %v, %v", ferr, lerr)
			}
			if f != tt.wantFormat || l != tt.wantLocale {
				t.Errorf("got %q/%q, want %q/%q", f, l, tt.wantFormat, tt.wantLocale)
			}
		})
	}
}

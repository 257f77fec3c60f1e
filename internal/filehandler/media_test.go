package filehandler

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestIsImage(t *testing.T) {
	tests := []struct {
		ext      string
		expected bool
	}{
		{".jpg", true},
		{".jpeg", true},
		{".JPG", true},
		{".JPEG", true},
		{".png", true},
		{".PNG", true},
		{".gif", false},
		{".heic", false},
		{".zip", false},
		{".mp4", false},
		{".txt", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			result := IsImage(tt.ext)
			if result != tt.expected {
				t.Errorf("IsImage(%q) = %v, want %v", tt.ext, result, tt.expected)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		path     string
		expected Kind
	}{
		{"/data/a.jpg", KindImage},
		{"/data/A.PNG", KindImage},
		{"b.jpeg", KindImage},
		{"/data/batch.zip", KindArchive},
		{"/data/BATCH.ZIP", KindArchive},
		{"clip.mp4", KindVideo},
		{"clip.AVI", KindVideo},
		{"notes.txt", KindUnsupported},
		{"archive.tar.gz", KindUnsupported},
		{"noext", KindUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := KindOf(tt.path); got != tt.expected {
				t.Errorf("KindOf(%q) = %v, want %v", tt.path, got, tt.expected)
			}
		})
	}
}

func TestGetMIMEType(t *testing.T) {
	tests := []struct {
		ext      string
		expected string
		wantErr  bool
	}{
		{".jpg", "image/jpeg", false},
		{".JPEG", "image/jpeg", false},
		{".png", "image/png", false},
		{".zip", "application/zip", false},
		{".avi", "video/x-msvideo", false},
		{".txt", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			result, err := GetMIMEType(tt.ext)
			if (err != nil) != tt.wantErr {
				t.Fatalf("GetMIMEType(%q) error = %v, wantErr %v", tt.ext, err, tt.wantErr)
			}
			if result != tt.expected {
				t.Errorf("GetMIMEType(%q) = %q, want %q", tt.ext, result, tt.expected)
			}
		})
	}
}

func TestImagePatterns(t *testing.T) {
	want := []string{"*.jpeg", "*.jpg", "*.png"}
	if got := ImagePatterns(); !reflect.DeepEqual(got, want) {
		t.Errorf("ImagePatterns() = %v, want %v", got, want)
	}
}

func TestScanImages(t *testing.T) {
	root := t.TempDir()
	files := []string{
		"b/2.jpg",
		"b/1.PNG",
		"a/z.jpeg",
		"a/nested/x.jpg",
		"top.jpg",
		"a/readme.txt",
	}
	for _, f := range files {
		p := filepath.Join(root, filepath.FromSlash(f))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := ScanImages(root)
	if err != nil {
		t.Fatalf("ScanImages() error = %v", err)
	}

	want := []string{
		filepath.Join(root, "top.jpg"),
		filepath.Join(root, "a", "z.jpeg"),
		filepath.Join(root, "a", "nested", "x.jpg"),
		filepath.Join(root, "b", "1.PNG"),
		filepath.Join(root, "b", "2.jpg"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ScanImages() =\n%v\nwant\n%v", got, want)
	}

	again, err := ScanImages(root)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, again) {
		t.Error("ScanImages() is not stable across calls")
	}
}

func TestScanImagesErrors(t *testing.T) {
	if _, err := ScanImages(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing directory")
	}

	file := filepath.Join(t.TempDir(), "f.jpg")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ScanImages(file); err == nil {
		t.Error("expected error for file path")
	}
}

package filehandler

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTestPNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{G: 200, A: 255})
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestDecodeImage(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.png")
	writeTestPNG(t, good, 20, 10)

	img, err := DecodeImage(good)
	if err != nil {
		t.Fatalf("DecodeImage() error = %v", err)
	}
	if img.Bounds().Dx() != 20 || img.Bounds().Dy() != 10 {
		t.Errorf("DecodeImage() bounds = %v, want 20x10", img.Bounds())
	}

	corrupt := filepath.Join(dir, "corrupt.jpg")
	if err := os.WriteFile(corrupt, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := DecodeImage(corrupt); !errors.Is(err, ErrUndecodable) {
		t.Errorf("DecodeImage(corrupt) error = %v, want ErrUndecodable", err)
	}

	if _, err := DecodeImage(filepath.Join(dir, "missing.jpg")); err == nil || errors.Is(err, ErrUndecodable) {
		t.Errorf("DecodeImage(missing) error = %v, want open error", err)
	}
}

func TestCalculateThumbnailDimensions(t *testing.T) {
	tests := []struct {
		name         string
		w, h, max    int
		wantW, wantH int
	}{
		{"within limit", 300, 200, 544, 300, 200},
		{"landscape", 1088, 544, 544, 544, 272},
		{"portrait", 500, 1000, 544, 272, 544},
		{"square", 2000, 2000, 544, 544, 544},
		{"extreme ratio", 10000, 5, 544, 544, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := calculateThumbnailDimensions(tt.w, tt.h, tt.max)
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("calculateThumbnailDimensions(%d, %d, %d) = (%d, %d), want (%d, %d)",
					tt.w, tt.h, tt.max, w, h, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestEncodeForModel(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 1200, 600))

	data, mime, err := EncodeForModel(src, 300)
	if err != nil {
		t.Fatalf("EncodeForModel() error = %v", err)
	}
	if mime != "image/jpeg" {
		t.Errorf("mime = %q, want image/jpeg", mime)
	}

	decoded, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("encoded bytes are not JPEG: %v", err)
	}
	if decoded.Bounds().Dx() != 300 || decoded.Bounds().Dy() != 150 {
		t.Errorf("encoded bounds = %v, want 300x150", decoded.Bounds())
	}

	if got := ScaleFactor(src.Bounds(), 300); got != 4 {
		t.Errorf("ScaleFactor() = %v, want 4", got)
	}
}

func TestImageMetadataCamera(t *testing.T) {
	meta := &ImageMetadata{
		DateTaken:   time.Date(2024, 12, 31, 10, 30, 0, 0, time.UTC),
		HasDate:     true,
		CameraMake:  "Bushnell",
		CameraModel: "Core DS",
	}
	if got := meta.Camera(); got != "Bushnell Core DS" {
		t.Errorf("Camera() = %q", got)
	}

	empty := &ImageMetadata{}
	if got := empty.Camera(); got != "" {
		t.Errorf("Camera() on empty metadata = %q, want empty", got)
	}
}

package filehandler

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

// DefaultModelInputSize is the longest edge, in pixels, of images sent to a model.
const DefaultModelInputSize = 544

// modelJPEGQuality is the JPEG quality used when encoding model inputs.
const modelJPEGQuality = 90

// EncodeForModel downsizes img so its longest edge is at most maxDimension
// and encodes it as JPEG. Images already within the limit are re-encoded
// without resizing. Returns the encoded bytes and their MIME type.
func EncodeForModel(img image.Image, maxDimension int) ([]byte, string, error) {
	if maxDimension <= 0 {
		maxDimension = DefaultModelInputSize
	}

	bounds := img.Bounds()
	w, h := calculateThumbnailDimensions(bounds.Dx(), bounds.Dy(), maxDimension)

	src := img
	if w != bounds.Dx() || h != bounds.Dy() {
		resized := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
		src = resized
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: modelJPEGQuality}); err != nil {
		return nil, "", fmt.Errorf("failed to encode model input: %w", err)
	}

	return buf.Bytes(), "image/jpeg", nil
}

// ScaleFactor returns the ratio between the original image and the size
// EncodeForModel produces for it. Box coordinates reported against the
// encoded image are multiplied by this factor to map back to the original.
func ScaleFactor(bounds image.Rectangle, maxDimension int) float64 {
	if maxDimension <= 0 {
		maxDimension = DefaultModelInputSize
	}
	w, _ := calculateThumbnailDimensions(bounds.Dx(), bounds.Dy(), maxDimension)
	if w == 0 {
		return 1
	}
	return float64(bounds.Dx()) / float64(w)
}

// calculateThumbnailDimensions fits width x height inside a maxDimension square,
// preserving aspect ratio. Dimensions already inside the square are returned as-is.
func calculateThumbnailDimensions(width, height, maxDimension int) (int, int) {
	if width <= maxDimension && height <= maxDimension {
		return width, height
	}
	if width >= height {
		newHeight := height * maxDimension / width
		if newHeight < 1 {
			newHeight = 1
		}
		return maxDimension, newHeight
	}
	newWidth := width * maxDimension / height
	if newWidth < 1 {
		newWidth = 1
	}
	return newWidth, maxDimension
}

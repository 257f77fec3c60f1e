package filehandler

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Box is one rectangle to draw on an overlay, in source image pixels.
type Box struct {
	Rect    image.Rectangle
	Caption string
}

var (
	boxColor     = color.RGBA{R: 255, A: 255}
	captionColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

const boxThickness = 2

// DrawDetections returns a copy of img with every box outlined in red and its
// caption written on a red strip above the top-left corner.
func DrawDetections(img image.Image, boxes []Box) *image.RGBA {
	bounds := img.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, img, bounds.Min, draw.Src)

	face := basicfont.Face7x13
	for _, b := range boxes {
		r := b.Rect.Intersect(bounds)
		if r.Empty() {
			continue
		}
		strokeRect(out, r, boxThickness)
		if b.Caption != "" {
			drawCaption(out, face, r.Min, b.Caption)
		}
	}
	return out
}

func strokeRect(dst *image.RGBA, r image.Rectangle, t int) {
	src := image.NewUniform(boxColor)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t),
		image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+t, r.Max.Y),
		image.Rect(r.Max.X-t, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(r), src, image.Point{}, draw.Src)
	}
}

func drawCaption(dst *image.RGBA, face font.Face, at image.Point, caption string) {
	metrics := face.Metrics()
	height := (metrics.Ascent + metrics.Descent).Ceil()
	width := font.MeasureString(face, caption).Ceil() + 4

	top := at.Y - height
	if top < dst.Bounds().Min.Y {
		top = at.Y
	}
	strip := image.Rect(at.X, top, at.X+width, top+height).Intersect(dst.Bounds())
	draw.Draw(dst, strip, image.NewUniform(boxColor), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(captionColor),
		Face: face,
		Dot:  fixed.P(at.X+2, top+metrics.Ascent.Ceil()),
	}
	d.DrawString(caption)
}

// SaveOverlay writes img as PNG next to sourcePath, named
// <base>_detections.png, and returns the written path.
func SaveOverlay(sourcePath string, img image.Image) (string, error) {
	base := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	outPath := filepath.Join(filepath.Dir(sourcePath), base+"_detections.png")
	return outPath, WritePNG(outPath, img)
}

// WritePNG encodes img as PNG at path.
func WritePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}

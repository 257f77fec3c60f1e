// Package filehandler provides file handling for the vision pipeline: input
// kind detection, image decoding, EXIF extraction, zip extraction, video frame
// extraction and detection overlays.
//
// Extension matching is case-insensitive everywhere. Only the formats listed in
// the Supported* tables are accepted as pipeline inputs.
package filehandler

import (
	"fmt"
	"path/filepath"
	"strings"
)

// SupportedImageExtensions defines the image file extensions that can be classified.
var SupportedImageExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// SupportedArchiveExtensions defines the archive extensions that are expanded into images.
var SupportedArchiveExtensions = map[string]string{
	".zip": "application/zip",
}

// SupportedVideoExtensions defines the video extensions accepted by the detection path.
var SupportedVideoExtensions = map[string]string{
	".mp4": "video/mp4",
	".avi": "video/x-msvideo",
}

// Kind identifies what a user-supplied path is.
type Kind int

const (
	// KindUnsupported is any path whose extension is not recognised.
	KindUnsupported Kind = iota
	// KindImage is a single image file.
	KindImage
	// KindArchive is a zip archive of images.
	KindArchive
	// KindVideo is a video file (detection only).
	KindVideo
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindArchive:
		return "archive"
	case KindVideo:
		return "video"
	default:
		return "unsupported"
	}
}

// KindOf classifies a path by its extension.
func KindOf(path string) Kind {
	ext := filepath.Ext(path)
	switch {
	case IsImage(ext):
		return KindImage
	case IsArchive(ext):
		return KindArchive
	case IsVideo(ext):
		return KindVideo
	default:
		return KindUnsupported
	}
}

// GetMIMEType returns the MIME type for a given file extension.
func GetMIMEType(ext string) (string, error) {
	ext = strings.ToLower(ext)

	if mimeType, ok := SupportedImageExtensions[ext]; ok {
		return mimeType, nil
	}
	if mimeType, ok := SupportedArchiveExtensions[ext]; ok {
		return mimeType, nil
	}
	if mimeType, ok := SupportedVideoExtensions[ext]; ok {
		return mimeType, nil
	}

	return "", fmt.Errorf("unsupported file extension: %s", ext)
}

// IsImage returns true if the file extension corresponds to a classifiable image.
func IsImage(ext string) bool {
	_, ok := SupportedImageExtensions[strings.ToLower(ext)]
	return ok
}

// IsArchive returns true if the file extension corresponds to a zip archive.
func IsArchive(ext string) bool {
	_, ok := SupportedArchiveExtensions[strings.ToLower(ext)]
	return ok
}

// IsVideo returns true if the file extension corresponds to a video.
func IsVideo(ext string) bool {
	_, ok := SupportedVideoExtensions[strings.ToLower(ext)]
	return ok
}

// ImagePatterns returns glob patterns for every supported image extension,
// suitable for native file dialogs.
func ImagePatterns() []string {
	return patterns(SupportedImageExtensions)
}

// ArchivePatterns returns glob patterns for every supported archive extension.
func ArchivePatterns() []string {
	return patterns(SupportedArchiveExtensions)
}

// VideoPatterns returns glob patterns for every supported video extension.
func VideoPatterns() []string {
	return patterns(SupportedVideoExtensions)
}

func patterns(table map[string]string) []string {
	out := make([]string, 0, len(table))
	for ext := range table {
		out = append(out, "*"+ext)
	}
	sortStrings(out)
	return out
}

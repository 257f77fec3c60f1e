// Package vision defines the model capability used by the pipeline and two
// implementations of it: a Gemini-backed model and a remote HTTP inference
// server.
package vision

import (
	"context"
	"errors"
	"image"
	"strings"
)

// ErrEmptyResponse is returned when a model answers with no usable content.
var ErrEmptyResponse = errors.New("model returned an empty response")

// Kind tags which variant a Prediction carries.
type Kind int

const (
	// KindTopClass predictions carry a single best label.
	KindTopClass Kind = iota
	// KindDetections predictions carry zero or more bounding boxes.
	KindDetections
)

func (k Kind) String() string {
	if k == KindDetections {
		return "detections"
	}
	return "top_class"
}

// TopClass is the best label for an image with its confidence in [0, 1].
type TopClass struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Detection is one labelled box in source image pixels.
type Detection struct {
	Label      string          `json:"label"`
	Confidence float64         `json:"confidence"`
	Box        image.Rectangle `json:"box"`
}

// Prediction is the model output for one image. Top is nil when the model
// found nothing it could name.
type Prediction struct {
	Kind       Kind
	Top        *TopClass
	Detections []Detection
}

// Capability is a vision model that can be asked about one image at a time.
type Capability interface {
	// Predict runs the model on img. Implementations must return promptly
	// once ctx is cancelled.
	Predict(ctx context.Context, img image.Image) (Prediction, error)

	// Labels returns the model vocabulary. An empty slice means any
	// non-empty label is accepted.
	Labels() []string
}

// Task selects what a capability is asked to produce.
type Task string

const (
	TaskClassify Task = "classify"
	TaskDetect   Task = "detect"
)

// DefaultLabels is the vocabulary of the bundled deer classifier.
var DefaultLabels = []string{"deer", "roedeer", "muskdeer"}

// InVocabulary reports whether label is acceptable for vocab.
// Matching is exact after trimming whitespace.
func InVocabulary(label string, vocab []string) bool {
	label = strings.TrimSpace(label)
	if label == "" {
		return false
	}
	if len(vocab) == 0 {
		return true
	}
	for _, v := range vocab {
		if v == label {
			return true
		}
	}
	return false
}

// normalizeLabel lowercases and trims a model-reported label.
func normalizeLabel(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

func cloneLabels(labels []string) []string {
	out := make([]string, len(labels))
	copy(out, labels)
	return out
}

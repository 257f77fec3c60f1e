// Package inference runs a vision capability over single image files,
// isolating per-image failures and honouring cancellation.
package inference

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"time"

	"github.com/fpang/wildlife-vision/internal/aggregate"
	"github.com/fpang/wildlife-vision/internal/filehandler"
	"github.com/fpang/wildlife-vision/internal/vision"
	"github.com/rs/zerolog/log"
)

// ErrCancelled is returned when the context is cancelled before or during
// an image. It wraps the context error so errors.Is(err, context.Canceled)
// also holds.
var ErrCancelled = errors.New("inference cancelled")

// Skip reasons reported in Outcome.Reason.
const (
	ReasonUndecodable  = "undecodable"
	ReasonModelError   = "model_error"
	ReasonInvalidLabel = "invalid_label"
)

// Outcome is the result of classifying one image. When Skipped is true the
// image contributes nothing to the run.
type Outcome struct {
	Classification aggregate.ImageClassification
	Counts         aggregate.ClassCounts
	Confidence     float64
	Duration       time.Duration

	Skipped bool
	Reason  string
	Err     error
}

// Result returns the outcome as a one-image aggregate built from
// Classification and Counts. Skipped outcomes produce an empty result.
func (o Outcome) Result() aggregate.Result {
	if o.Skipped {
		return aggregate.NewResult()
	}
	return aggregate.Result{
		ClassCounts:          o.Counts.Clone(),
		ImageClassifications: aggregate.Extend(nil, []aggregate.ImageClassification{o.Classification}),
	}
}

// DetectionResult is the result of running detection on one image.
type DetectionResult struct {
	Image      image.Image
	Detections []vision.Detection
}

// Adapter wraps a capability with per-image failure isolation.
type Adapter struct {
	capability vision.Capability
	vocab      []string
}

// New returns an Adapter around capability.
func New(capability vision.Capability) *Adapter {
	return &Adapter{capability: capability, vocab: capability.Labels()}
}

// Classify decodes path, asks the model for its top class and converts the
// answer into a one-image classification. Only a cancelled ctx produces an
// error; every other failure is reported as a skipped Outcome.
func (a *Adapter) Classify(ctx context.Context, path string) (Outcome, error) {
	if err := cancelled(ctx); err != nil {
		return Outcome{}, err
	}

	name := filepath.Base(path)
	img, err := filehandler.DecodeImage(path)
	if err != nil {
		log.Warn().Err(err).Str("image", name).Msg("Skipping unreadable image")
		return Outcome{Skipped: true, Reason: ReasonUndecodable, Err: err}, nil
	}

	start := time.Now()
	pred, err := a.capability.Predict(ctx, img)
	duration := time.Since(start)

	if cerr := cancelled(ctx); cerr != nil {
		return Outcome{}, cerr
	}
	if err != nil {
		log.Warn().Err(err).Str("image", name).Dur("duration", duration).Msg("Model failed on image")
		return Outcome{Skipped: true, Reason: ReasonModelError, Err: err, Duration: duration}, nil
	}

	outcome := Outcome{
		Classification: aggregate.ImageClassification{Image: name, Classes: []string{}},
		Counts:         aggregate.ClassCounts{},
		Duration:       duration,
	}

	if pred.Kind != vision.KindTopClass || pred.Top == nil {
		log.Debug().Str("image", name).Msg("No top class for image")
		return outcome, nil
	}

	label := pred.Top.Label
	if !vision.InVocabulary(label, a.vocab) {
		err := fmt.Errorf("label %q is not in the model vocabulary", label)
		log.Warn().Err(err).Str("image", name).Msg("Skipping image with invalid label")
		return Outcome{Skipped: true, Reason: ReasonInvalidLabel, Err: err, Duration: duration}, nil
	}

	outcome.Classification.Classes = []string{label}
	outcome.Counts[label] = 1
	outcome.Confidence = pred.Top.Confidence

	log.Debug().
		Str("image", name).
		Str("label", label).
		Float64("confidence", pred.Top.Confidence).
		Dur("duration", duration).
		Msg("Image classified")

	return outcome, nil
}

// Detect decodes path and returns the model's detections for it. Unlike
// Classify, failures are returned as errors because detection works on a
// single user-chosen image.
func (a *Adapter) Detect(ctx context.Context, path string) (DetectionResult, error) {
	if err := cancelled(ctx); err != nil {
		return DetectionResult{}, err
	}

	img, err := filehandler.DecodeImage(path)
	if err != nil {
		return DetectionResult{}, err
	}

	pred, err := a.capability.Predict(ctx, img)
	if cerr := cancelled(ctx); cerr != nil {
		return DetectionResult{}, cerr
	}
	if err != nil {
		return DetectionResult{}, fmt.Errorf("detection failed for %s: %w", filepath.Base(path), err)
	}

	result := DetectionResult{Image: img, Detections: []vision.Detection{}}
	for _, d := range pred.Detections {
		if !vision.InVocabulary(d.Label, a.vocab) {
			log.Debug().Str("label", d.Label).Msg("Dropping detection outside vocabulary")
			continue
		}
		result.Detections = append(result.Detections, d)
	}
	return result, nil
}

func cancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	return nil
}

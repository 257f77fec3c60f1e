package vision

import (
	"context"
	"fmt"
	"image"
	"math"
	"time"

	"github.com/fpang/wildlife-vision/internal/assets"
	"github.com/fpang/wildlife-vision/internal/filehandler"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model name is configured.
const DefaultGeminiModel = "gemini-3-flash-preview"

// contentGenerator is the subset of *genai.Models used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiConfig configures a Gemini capability.
type GeminiConfig struct {
	Model     string
	Task      Task
	Labels    []string
	ImageSize int
}

// Gemini asks a Gemini model to classify or detect animals in an image.
type Gemini struct {
	models contentGenerator
	cfg    GeminiConfig
}

var _ Capability = (*Gemini)(nil)

// NewGeminiClient creates a Gemini API client for apiKey.
func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client, nil
}

// NewGemini wraps client for the configured task.
func NewGemini(client *genai.Client, cfg GeminiConfig) *Gemini {
	return newGemini(client.Models, cfg)
}

func newGemini(models contentGenerator, cfg GeminiConfig) *Gemini {
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	if cfg.Task == "" {
		cfg.Task = TaskClassify
	}
	if cfg.ImageSize <= 0 {
		cfg.ImageSize = filehandler.DefaultModelInputSize
	}
	cfg.Labels = cloneLabels(cfg.Labels)
	return &Gemini{models: models, cfg: cfg}
}

// Labels returns the configured vocabulary.
func (g *Gemini) Labels() []string {
	return cloneLabels(g.cfg.Labels)
}

// Predict sends img inline as JPEG and parses the JSON answer.
func (g *Gemini) Predict(ctx context.Context, img image.Image) (Prediction, error) {
	data, mimeType, err := filehandler.EncodeForModel(img, g.cfg.ImageSize)
	if err != nil {
		return Prediction{}, err
	}

	prompt := assets.RenderClassifyPrompt(g.cfg.Labels)
	if g.cfg.Task == TaskDetect {
		prompt = assets.RenderDetectPrompt(g.cfg.Labels)
	}

	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}},
			{Text: prompt},
		},
	}}
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: assets.ClassifySystemPrompt}}},
		ResponseMIMEType:  "application/json",
		Temperature:       genai.Ptr[float32](0),
	}

	callStart := time.Now()
	resp, err := g.models.GenerateContent(ctx, g.cfg.Model, contents, config)
	duration := time.Since(callStart)
	if err != nil {
		return Prediction{}, fmt.Errorf("failed to generate content: %w", err)
	}
	if resp == nil {
		return Prediction{}, ErrEmptyResponse
	}

	text := resp.Text()
	log.Debug().
		Str("model", g.cfg.Model).
		Str("task", string(g.cfg.Task)).
		Int("image_bytes", len(data)).
		Int("response_length", len(text)).
		Dur("duration", duration).
		Msg("Gemini response received")

	if text == "" {
		return Prediction{}, ErrEmptyResponse
	}

	if g.cfg.Task == TaskDetect {
		return parseGeminiDetections(text, img.Bounds())
	}
	return parseGeminiTopClass(text)
}

type geminiTopClass struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

func parseGeminiTopClass(text string) (Prediction, error) {
	parsed, err := parseJSON[geminiTopClass](text)
	if err != nil {
		return Prediction{}, fmt.Errorf("failed to parse classification: %w", err)
	}

	pred := Prediction{Kind: KindTopClass}
	if label := normalizeLabel(parsed.Label); label != "" {
		pred.Top = &TopClass{Label: label, Confidence: clamp01(parsed.Confidence)}
	}
	return pred, nil
}

type geminiDetection struct {
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	Box2D      []float64 `json:"box_2d"`
}

// parseGeminiDetections maps [ymin, xmin, ymax, xmax] boxes normalised to
// 0-1000 onto bounds.
func parseGeminiDetections(text string, bounds image.Rectangle) (Prediction, error) {
	parsed, err := parseJSON[[]geminiDetection](text)
	if err != nil {
		return Prediction{}, fmt.Errorf("failed to parse detections: %w", err)
	}

	pred := Prediction{Kind: KindDetections, Detections: []Detection{}}
	for _, d := range parsed {
		label := normalizeLabel(d.Label)
		if label == "" || len(d.Box2D) != 4 {
			log.Debug().Str("label", d.Label).Int("box_len", len(d.Box2D)).Msg("Dropping malformed detection")
			continue
		}
		pred.Detections = append(pred.Detections, Detection{
			Label:      label,
			Confidence: clamp01(d.Confidence),
			Box:        denormalizeBox(d.Box2D, bounds),
		})
	}
	return pred, nil
}

func denormalizeBox(box []float64, bounds image.Rectangle) image.Rectangle {
	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	scale := func(v, extent float64) int {
		return int(math.Round(clamp(v, 0, 1000) / 1000 * extent))
	}
	r := image.Rect(
		bounds.Min.X+scale(box[1], w),
		bounds.Min.Y+scale(box[0], h),
		bounds.Min.X+scale(box[3], w),
		bounds.Min.Y+scale(box[2], h),
	)
	return r.Canon()
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func clamp01(v float64) float64 {
	return clamp(v, 0, 1)
}

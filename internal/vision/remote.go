package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/fpang/wildlife-vision/internal/filehandler"
	"github.com/rs/zerolog/log"
)

// DefaultRemoteTimeout bounds a single inference request.
const DefaultRemoteTimeout = 30 * time.Second

// RemoteConfig configures a Remote capability.
type RemoteConfig struct {
	URL       string
	Task      Task
	Labels    []string
	ImageSize int
	Timeout   time.Duration
}

// Remote calls an HTTP inference server, such as a YOLO sidecar, with one
// base64-encoded JPEG per request.
type Remote struct {
	cfg        RemoteConfig
	httpClient *http.Client
}

var _ Capability = (*Remote)(nil)

// NewRemote creates a Remote capability. A nil httpClient uses a client with
// cfg.Timeout.
func NewRemote(cfg RemoteConfig, httpClient *http.Client) *Remote {
	if cfg.Task == "" {
		cfg.Task = TaskClassify
	}
	if cfg.ImageSize <= 0 {
		cfg.ImageSize = filehandler.DefaultModelInputSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRemoteTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	cfg.Labels = cloneLabels(cfg.Labels)
	return &Remote{cfg: cfg, httpClient: httpClient}
}

// Labels returns the configured vocabulary.
func (r *Remote) Labels() []string {
	return cloneLabels(r.cfg.Labels)
}

type remoteRequest struct {
	Task        Task   `json:"task"`
	ImageBase64 string `json:"image_base64"`
	ImageSize   int    `json:"imgsz"`
}

type remoteResponse struct {
	Top1       *TopClass         `json:"top1"`
	Detections []remoteDetection `json:"detections"`
	Error      string            `json:"error"`
}

type remoteDetection struct {
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	Box        []float64 `json:"box"`
}

// Predict posts img to the server and decodes the answer for the configured task.
func (r *Remote) Predict(ctx context.Context, img image.Image) (Prediction, error) {
	data, _, err := filehandler.EncodeForModel(img, r.cfg.ImageSize)
	if err != nil {
		return Prediction{}, err
	}

	body, err := json.Marshal(remoteRequest{
		Task:        r.cfg.Task,
		ImageBase64: base64.StdEncoding.EncodeToString(data),
		ImageSize:   r.cfg.ImageSize,
	})
	if err != nil {
		return Prediction{}, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return Prediction{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return Prediction{}, fmt.Errorf("inference request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return Prediction{}, fmt.Errorf("failed to read inference response: %w", err)
	}

	log.Debug().
		Str("url", r.cfg.URL).
		Int("status", resp.StatusCode).
		Int("response_length", len(raw)).
		Dur("duration", time.Since(start)).
		Msg("Inference server response received")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Prediction{}, fmt.Errorf("inference server returned %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}

	var parsed remoteResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Prediction{}, fmt.Errorf("invalid inference response: %w", err)
	}
	if parsed.Error != "" {
		return Prediction{}, fmt.Errorf("inference server error: %s", parsed.Error)
	}

	if r.cfg.Task == TaskDetect {
		return r.detections(parsed.Detections, img.Bounds()), nil
	}

	pred := Prediction{Kind: KindTopClass}
	if parsed.Top1 != nil {
		if label := normalizeLabel(parsed.Top1.Label); label != "" {
			pred.Top = &TopClass{Label: label, Confidence: clamp01(parsed.Top1.Confidence)}
		}
	}
	return pred, nil
}

// detections maps [x1, y1, x2, y2] boxes in encoded-image pixels back onto bounds.
func (r *Remote) detections(in []remoteDetection, bounds image.Rectangle) Prediction {
	scale := filehandler.ScaleFactor(bounds, r.cfg.ImageSize)

	pred := Prediction{Kind: KindDetections, Detections: []Detection{}}
	for _, d := range in {
		label := normalizeLabel(d.Label)
		if label == "" || len(d.Box) != 4 {
			continue
		}
		px := func(v float64) int { return int(math.Round(v * scale)) }
		box := image.Rect(
			bounds.Min.X+px(d.Box[0]),
			bounds.Min.Y+px(d.Box[1]),
			bounds.Min.X+px(d.Box[2]),
			bounds.Min.Y+px(d.Box[3]),
		)
		pred.Detections = append(pred.Detections, Detection{
			Label:      label,
			Confidence: clamp01(d.Confidence),
			Box:        box.Intersect(bounds),
		})
	}
	return pred
}

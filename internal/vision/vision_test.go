package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/genai"
)

func TestInVocabulary(t *testing.T) {
	vocab := []string{"deer", "roedeer"}
	tests := []struct {
		label    string
		vocab    []string
		expected bool
	}{
		{"deer", vocab, true},
		{" roedeer ", vocab, true},
		{"boar", vocab, false},
		{"", vocab, false},
		{"anything", nil, true},
		{"   ", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			if got := InVocabulary(tt.label, tt.vocab); got != tt.expected {
				t.Errorf("InVocabulary(%q) = %v, want %v", tt.label, got, tt.expected)
			}
		})
	}
}

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"plain object", `{"label":"deer","confidence":0.9}`, "deer", false},
		{"fenced", "```json\n{\"label\":\"roedeer\",\"confidence\":0.5}\n```", "roedeer", false},
		{"prose around", "Here you go: {\"label\":\"muskdeer\"} hope it helps", "muskdeer", false},
		{"no json", "I cannot tell", "", true},
		{"broken json", `{"label": }`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseJSON[geminiTopClass](tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got.Label != tt.want {
				t.Errorf("parseJSON() label = %q, want %q", got.Label, tt.want)
			}
		})
	}
}

type fakeModels struct {
	text   string
	err    error
	calls  int
	model  string
	prompt string
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls++
	f.model = model
	for _, p := range contents[0].Parts {
		if p.Text != "" {
			f.prompt = p.Text
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: f.text}}},
		}},
	}, nil
}

func TestGeminiClassify(t *testing.T) {
	models := &fakeModels{text: "```json\n{\"label\": \"Roedeer\", \"confidence\": 1.4}\n```"}
	g := newGemini(models, GeminiConfig{Labels: DefaultLabels})

	pred, err := g.Predict(context.Background(), image.NewRGBA(image.Rect(0, 0, 64, 48)))
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if pred.Kind != KindTopClass || pred.Top == nil {
		t.Fatalf("Predict() = %+v, want a top class", pred)
	}
	if pred.Top.Label != "roedeer" || pred.Top.Confidence != 1 {
		t.Errorf("Top = %+v, want roedeer with clamped confidence 1", pred.Top)
	}
	if models.model != DefaultGeminiModel {
		t.Errorf("model = %q, want %q", models.model, DefaultGeminiModel)
	}
	if !strings.Contains(models.prompt, "- muskdeer") {
		t.Errorf("prompt does not list the vocabulary:\n%s", models.prompt)
	}
}

func TestGeminiClassifyNoAnimal(t *testing.T) {
	g := newGemini(&fakeModels{text: `{"label": "", "confidence": 0}`}, GeminiConfig{})

	pred, err := g.Predict(context.Background(), image.NewRGBA(image.Rect(0, 0, 8, 8)))
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if pred.Top != nil {
		t.Errorf("Top = %+v, want nil", pred.Top)
	}
}

func TestGeminiErrors(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))

	g := newGemini(&fakeModels{err: errors.New("boom")}, GeminiConfig{})
	if _, err := g.Predict(context.Background(), img); err == nil {
		t.Error("expected error from failing model")
	}

	g = newGemini(&fakeModels{text: ""}, GeminiConfig{})
	if _, err := g.Predict(context.Background(), img); !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("Predict() error = %v, want ErrEmptyResponse", err)
	}
}

func TestGeminiDetect(t *testing.T) {
	text := `[
		{"label": "deer", "confidence": 0.8, "box_2d": [100, 200, 500, 600]},
		{"label": "deer", "box_2d": [1, 2]},
		{"label": "", "box_2d": [0, 0, 10, 10]}
	]`
	g := newGemini(&fakeModels{text: text}, GeminiConfig{Task: TaskDetect})

	pred, err := g.Predict(context.Background(), image.NewRGBA(image.Rect(0, 0, 1000, 500)))
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if pred.Kind != KindDetections || len(pred.Detections) != 1 {
		t.Fatalf("Predict() = %+v, want one detection", pred)
	}
	want := image.Rect(200, 50, 600, 250)
	if got := pred.Detections[0].Box; got != want {
		t.Errorf("Box = %v, want %v", got, want)
	}
}

func TestRemoteClassify(t *testing.T) {
	var got remoteRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"top1": {"label": "deer", "confidence": 0.77}}`))
	}))
	defer srv.Close()

	r := NewRemote(RemoteConfig{URL: srv.URL, Labels: DefaultLabels}, srv.Client())
	pred, err := r.Predict(context.Background(), image.NewRGBA(image.Rect(0, 0, 32, 32)))
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if pred.Top == nil || pred.Top.Label != "deer" || pred.Top.Confidence != 0.77 {
		t.Errorf("Top = %+v, want deer 0.77", pred.Top)
	}

	if got.Task != TaskClassify || got.ImageSize != 544 {
		t.Errorf("request = %+v", got)
	}
	data, err := base64.StdEncoding.DecodeString(got.ImageBase64)
	if err != nil {
		t.Fatalf("image is not base64: %v", err)
	}
	if _, err := jpeg.Decode(bytes.NewReader(data)); err != nil {
		t.Errorf("image is not JPEG: %v", err)
	}
}

func TestRemoteDetect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"detections": [{"label": "muskdeer", "confidence": 0.6, "box": [10, 20, 30, 40]}]}`))
	}))
	defer srv.Close()

	r := NewRemote(RemoteConfig{URL: srv.URL, Task: TaskDetect, ImageSize: 100}, srv.Client())
	pred, err := r.Predict(context.Background(), image.NewRGBA(image.Rect(0, 0, 200, 100)))
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if len(pred.Detections) != 1 {
		t.Fatalf("Detections = %+v, want 1", pred.Detections)
	}
	if want := image.Rect(20, 40, 60, 80); pred.Detections[0].Box != want {
		t.Errorf("Box = %v, want %v", pred.Detections[0].Box, want)
	}
}

func TestRemoteErrors(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))

	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, "model crashed"},
		{"error field", http.StatusOK, `{"error": "bad image"}`},
		{"not json", http.StatusOK, "<html>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			r := NewRemote(RemoteConfig{URL: srv.URL}, srv.Client())
			if _, err := r.Predict(context.Background(), img); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRemoteCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"top1": {"label": "deer", "confidence": 1}}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRemote(RemoteConfig{URL: srv.URL}, srv.Client())
	if _, err := r.Predict(ctx, image.NewRGBA(image.Rect(0, 0, 8, 8))); !errors.Is(err, context.Canceled) {
		t.Errorf("Predict() error = %v, want context.Canceled", err)
	}
}

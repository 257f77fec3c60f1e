package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fpang/wildlife-vision/internal/aggregate"
	"github.com/fpang/wildlife-vision/internal/auth"
	"github.com/fpang/wildlife-vision/internal/config"
	"github.com/fpang/wildlife-vision/internal/vision"
)

func TestFormatDurationShort(t *testing.T) {
	tests := []struct {
		d        time.Duration
		expected string
	}{
		{0, "0:00"},
		{59 * time.Second, "0:59"},
		{61 * time.Second, "1:01"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1:02:03"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := FormatDurationShort(tt.d); got != tt.expected {
				t.Errorf("FormatDurationShort(%v) = %q, want %q", tt.d, got, tt.expected)
			}
		})
	}
}

func TestFormatProgress(t *testing.T) {
	if got := FormatProgress(2, 5, "trap.zip", 12); got != "[2/5]  40% trap.zip (12 labels)" {
		t.Errorf("FormatProgress() = %q", got)
	}
	if got := FormatProgress(0, 0, "x", 0); !strings.Contains(got, "  0%") {
		t.Errorf("FormatProgress(0/0) = %q", got)
	}
}

func TestWriteBarChart(t *testing.T) {
	var buf bytes.Buffer
	WriteBarChart(&buf, aggregate.ClassCounts{"deer": 4, "roedeer": 2, "muskdeer": 0}, nil)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "deer") || !strings.HasSuffix(lines[0], " 4") {
		t.Errorf("first line = %q, want the largest count first", lines[0])
	}
	if got := strings.Count(lines[0], "█"); got != barWidth {
		t.Errorf("largest bar has %d blocks, want %d", got, barWidth)
	}
	if got := strings.Count(lines[1], "█"); got != barWidth/2 {
		t.Errorf("half bar has %d blocks, want %d", got, barWidth/2)
	}
	if strings.Count(lines[2], "█") != 0 {
		t.Errorf("zero count drew a bar: %q", lines[2])
	}

	buf.Reset()
	WriteBarChart(&buf, aggregate.ClassCounts{"deer": 1}, strings.ToUpper)
	if !strings.Contains(buf.String(), "DEER") {
		t.Errorf("display func not applied: %q", buf.String())
	}

	buf.Reset()
	WriteBarChart(&buf, aggregate.ClassCounts{}, nil)
	if !strings.Contains(buf.String(), "no labels") {
		t.Errorf("empty chart = %q", buf.String())
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{" yes ", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"maybe\n", false},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			var out bytes.Buffer
			if got := Confirm(strings.NewReader(tt.input), &out, "Delete 3 records?"); got != tt.expected {
				t.Errorf("Confirm(%q) = %v, want %v", tt.input, got, tt.expected)
			}
			if out.String() != "Delete 3 records? (y/N): " {
				t.Errorf("prompt = %q", out.String())
			}
		})
	}
}

func TestResolveInputs(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "site", "cam1")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{
		filepath.Join(dir, "site", "b.jpg"),
		filepath.Join(nested, "a.png"),
		filepath.Join(dir, "site", "notes.txt"),
		filepath.Join(dir, "loose.zip"),
	} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := ResolveInputs([]string{filepath.Join(dir, "loose.zip"), filepath.Join(dir, "site")})
	if err != nil {
		t.Fatalf("ResolveInputs() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("ResolveInputs() = %v, want archive plus 2 images", got)
	}
	if filepath.Base(got[0]) != "loose.zip" {
		t.Errorf("first input = %q, want the archive", got[0])
	}
	for _, p := range got {
		if !filepath.IsAbs(p) {
			t.Errorf("%q is not absolute", p)
		}
		if strings.HasSuffix(p, ".txt") {
			t.Error("directory expansion included a non-image")
		}
	}

	if _, err := ResolveInputs([]string{filepath.Join(dir, "missing.jpg")}); err == nil {
		t.Error("ResolveInputs(missing) succeeded")
	}
}

func TestValidationHint(t *testing.T) {
	tests := []struct {
		err      error
		contains string
	}{
		{&auth.ValidationError{Type: auth.ErrTypeNoKey}, "GEMINI_API_KEY"},
		{&auth.ValidationError{Type: auth.ErrTypeInvalidKey}, "Invalid API key"},
		{&auth.ValidationError{Type: auth.ErrTypeNetworkError}, "Network"},
		{&auth.ValidationError{Type: auth.ErrTypeQuotaExceeded}, "quota"},
		{errors.New("boom"), "vision model"},
	}

	for _, tt := range tests {
		if got := ValidationHint(tt.err); !strings.Contains(got, tt.contains) {
			t.Errorf("ValidationHint(%v) = %q, want it to mention %q", tt.err, got, tt.contains)
		}
	}
}

func TestInitCapabilityRemote(t *testing.T) {
	capability, err := InitCapability(context.Background(), config.ModelConfig{
		Backend:   config.BackendRemote,
		InferURL:  "http://127.0.0.1:9/predict",
		Labels:    []string{"deer"},
		ImageSize: 320,
	}, vision.TaskDetect)
	if err != nil {
		t.Fatalf("InitCapability() error = %v", err)
	}
	if _, ok := capability.(*vision.Remote); !ok {
		t.Errorf("capability = %T, want *vision.Remote", capability)
	}
	if labels := capability.Labels(); len(labels) != 1 || labels[0] != "deer" {
		t.Errorf("Labels() = %v", labels)
	}

	if _, err := InitCapability(context.Background(), config.ModelConfig{Backend: "torch"}, vision.TaskClassify); err == nil {
		t.Error("unknown backend accepted")
	}
}

func TestInitCapabilityGeminiWithoutKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("SSM_API_KEY_PARAM", "")

	_, err := InitCapability(context.Background(), config.ModelConfig{Backend: config.BackendGemini}, vision.TaskClassify)
	var valErr *auth.ValidationError
	if !errors.As(err, &valErr) || valErr.Type != auth.ErrTypeNoKey {
		t.Errorf("InitCapability() error = %v, want a no-key ValidationError", err)
	}
}

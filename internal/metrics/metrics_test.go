package metrics

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRecorder_FlushOutput(t *testing.T) {
	var buf bytes.Buffer

	New("WildlifeVision").
		WithLogger(zerolog.New(&buf)).
		Dimension("Operation", "classify").
		Metric("LatencyMs", 1234.5, UnitMilliseconds).
		Metric("Images", 3, UnitCount).
		Property("runId", "abc-123").
		Flush()

	var doc map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("failed to parse output as JSON: %v\nOutput: %s", err, buf.String())
	}

	if doc["namespace"] != "WildlifeVision" {
		t.Errorf("expected namespace WildlifeVision, got %v", doc["namespace"])
	}
	if doc["Operation"] != "classify" {
		t.Errorf("expected Operation=classify, got %v", doc["Operation"])
	}
	if doc["LatencyMs"] != 1234.5 {
		t.Errorf("expected LatencyMs=1234.5, got %v", doc["LatencyMs"])
	}
	if doc["Images"] != float64(3) {
		t.Errorf("expected Images=3, got %v", doc["Images"])
	}
	if doc["runId"] != "abc-123" {
		t.Errorf("expected runId=abc-123, got %v", doc["runId"])
	}
	if doc["message"] != "Metrics" {
		t.Errorf("expected message Metrics, got %v", doc["message"])
	}
}

func TestRecorder_FlushEmpty(t *testing.T) {
	var buf bytes.Buffer
	New("Test").WithLogger(zerolog.New(&buf)).Flush()

	if buf.Len() != 0 {
		t.Errorf("expected no output for empty recorder, got: %s", buf.String())
	}
}

func TestRecorder_Add(t *testing.T) {
	rec := New("Test").Add("Skipped", 1).Add("Skipped", 2)

	v, ok := rec.Value("Skipped")
	if !ok || v != 3 {
		t.Errorf("expected Skipped=3, got %v (ok=%v)", v, ok)
	}
	if rec.metrics["Skipped"].Unit != UnitCount {
		t.Errorf("expected unit Count, got %v", rec.metrics["Skipped"].Unit)
	}
}

func TestRecorder_Chaining(t *testing.T) {
	rec := New("Test").
		Dimension("Op", "test").
		Metric("Duration", 100, UnitMilliseconds).
		Count("Calls").
		Since("Elapsed", time.Now()).
		Property("id", "xyz")

	if rec.dimensions["Op"] != "test" {
		t.Error("chaining Dimension failed")
	}
	if v, _ := rec.Value("Duration"); v != 100 {
		t.Error("chaining Metric failed")
	}
	if v, _ := rec.Value("Calls"); v != 1 {
		t.Error("chaining Count failed")
	}
	if _, ok := rec.Value("Elapsed"); !ok {
		t.Error("chaining Since failed")
	}
	if rec.properties["id"] != "xyz" {
		t.Error("chaining Property failed")
	}
}

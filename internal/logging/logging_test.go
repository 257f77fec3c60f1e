package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{" WARN ", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"info", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestTeeWriter(t *testing.T) {
	var a, b bytes.Buffer
	logger := zerolog.New(teeWriter(&a, &b))
	logger.Info().Str("k", "v").Msg("hello")

	if a.String() != b.String() || a.Len() == 0 {
		t.Errorf("tee outputs differ: %q vs %q", a.String(), b.String())
	}
}

func TestStartupLoggerLog(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	defer func() { log.Logger = prev }()

	NewStartupLogger("classify").
		Version("1.2.3").
		Dir("metadata", "/data/metadata").
		S3Bucket("reports", "").
		SSMParam("apiKey", "/wildlife/gemini").
		Feature("mirror", false).
		Config("modelBackend", "remote").
		Log()

	var evt map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &evt); err != nil {
		t.Fatalf("startup event is not JSON: %v (%s)", err, buf.String())
	}
	if evt["message"] != "Startup complete" {
		t.Errorf("message = %v", evt["message"])
	}

	app, _ := evt["app"].(map[string]interface{})
	if app["name"] != "classify" || app["version"] != "1.2.3" {
		t.Errorf("app = %v", app)
	}

	resources, _ := evt["resources"].(map[string]interface{})
	if _, ok := resources["s3Buckets"]; ok {
		t.Error("empty bucket name should not be logged")
	}
	if _, ok := resources["ssmParams"]; !ok {
		t.Error("ssm param missing from resources")
	}

	config, _ := evt["config"].(map[string]interface{})
	if config["modelBackend"] != "remote" {
		t.Errorf("config = %v", config)
	}
}

// Package config loads runtime settings from an optional .env file and the
// environment.
//
// Precedence, lowest first: built-in defaults, .env, process environment,
// command-line flags (applied by the CLI after Load).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/fpang/wildlife-vision/internal/filehandler"
	"github.com/fpang/wildlife-vision/internal/report"
	"github.com/fpang/wildlife-vision/internal/vision"
)

// Backend selects the vision model implementation.
type Backend string

const (
	BackendGemini Backend = "gemini"
	BackendRemote Backend = "remote"
)

// StoreConfig holds the on-disk locations.
type StoreConfig struct {
	MetadataDir string
	ReportsDir  string
	ScratchDir  string
}

// ModelConfig selects and tunes the vision backend.
type ModelConfig struct {
	Backend      Backend
	GeminiModel  string
	InferURL     string
	InferTimeout time.Duration
	ImageSize    int
	Labels       []string
	APIKeyParam  string
}

// ReportConfig controls report files and their optional S3 mirror.
type ReportConfig struct {
	Format report.Format
	Locale report.Locale
	Bucket string
	Prefix string
}

// Config is the full runtime configuration.
type Config struct {
	Store  StoreConfig
	Model  ModelConfig
	Report ReportConfig
}

// Load reads envFile (ignored when missing; pass "" for ".env") and builds
// a Config from the environment. Variables already set in the process
// environment win over the file.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment alone.
func FromEnv() (*Config, error) {
	timeout, err := getEnvDuration("WILDLIFE_INFER_TIMEOUT", vision.DefaultRemoteTimeout)
	if err != nil {
		return nil, err
	}
	size, err := getEnvInt("WILDLIFE_IMAGE_SIZE", filehandler.DefaultModelInputSize)
	if err != nil {
		return nil, err
	}
	format, err := report.ParseFormat(getEnv("WILDLIFE_REPORT_FORMAT", string(report.FormatXLSX)))
	if err != nil {
		return nil, err
	}
	locale, err := report.ParseLocale(getEnv("WILDLIFE_REPORT_LOCALE", string(report.LocaleEnglish)))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Store: StoreConfig{
			MetadataDir: getEnv("WILDLIFE_METADATA_DIR", "metadata"),
			ReportsDir:  getEnv("WILDLIFE_REPORTS_DIR", "reports"),
			ScratchDir:  getEnv("WILDLIFE_SCRATCH_DIR", os.TempDir()),
		},
		Model: ModelConfig{
			Backend:      Backend(strings.ToLower(getEnv("WILDLIFE_MODEL_BACKEND", string(BackendGemini)))),
			GeminiModel:  getEnv("GEMINI_MODEL", vision.DefaultGeminiModel),
			InferURL:     getEnv("WILDLIFE_INFER_URL", ""),
			InferTimeout: timeout,
			ImageSize:    size,
			Labels:       ParseLabels(getEnv("WILDLIFE_LABELS", strings.Join(vision.DefaultLabels, ","))),
			APIKeyParam:  getEnv("SSM_API_KEY_PARAM", ""),
		},
		Report: ReportConfig{
			Format: format,
			Locale: locale,
			Bucket: getEnv("WILDLIFE_REPORT_BUCKET", ""),
			Prefix: getEnv("WILDLIFE_REPORT_PREFIX", "reports"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enum values and required combinations.
func (c *Config) Validate() error {
	switch c.Model.Backend {
	case BackendGemini:
	case BackendRemote:
		if c.Model.InferURL == "" {
			return errors.New("WILDLIFE_INFER_URL is required for the remote model backend")
		}
	default:
		return fmt.Errorf("unsupported model backend %q (want gemini or remote)", c.Model.Backend)
	}
	if c.Model.ImageSize <= 0 {
		return fmt.Errorf("image size must be positive, got %d", c.Model.ImageSize)
	}
	if len(c.Model.Labels) == 0 {
		return errors.New("at least one label is required")
	}
	if _, err := report.ParseFormat(string(c.Report.Format)); err != nil {
		return err
	}
	if _, err := report.ParseLocale(string(c.Report.Locale)); err != nil {
		return err
	}
	if c.Store.MetadataDir == "" || c.Store.ReportsDir == "" {
		return errors.New("metadata and reports directories must be set")
	}
	return nil
}

// MirrorEnabled reports whether reports are copied to S3.
func (c *Config) MirrorEnabled() bool {
	return c.Report.Bucket != ""
}

// ParseLabels splits a comma-separated label list, lower-casing and
// dropping blanks and duplicates.
func ParseLabels(s string) []string {
	var labels []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		l := strings.ToLower(strings.TrimSpace(part))
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		labels = append(labels, l)
	}
	return labels
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	v := getEnv(key, "")
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

// getEnvDuration accepts Go durations ("45s") or a plain number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := getEnv(key, "")
	if v == "" {
		return defaultValue, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/fpang/wildlife-vision/internal/auth"
	"github.com/fpang/wildlife-vision/internal/config"
	"github.com/fpang/wildlife-vision/internal/vision"
)

// InitCapability builds the configured vision backend for task. The Gemini
// backend resolves and validates the API key first.
func InitCapability(ctx context.Context, cfg config.ModelConfig, task vision.Task) (vision.Capability, error) {
	switch cfg.Backend {
	case config.BackendRemote:
		log.Info().Str("url", cfg.InferURL).Str("task", string(task)).Msg("Using remote inference server")
		return vision.NewRemote(vision.RemoteConfig{
			URL:       cfg.InferURL,
			Task:      task,
			Labels:    cfg.Labels,
			ImageSize: cfg.ImageSize,
			Timeout:   cfg.InferTimeout,
		}, nil), nil

	case config.BackendGemini:
		apiKey, err := auth.GetAPIKey(ctx)
		if err != nil {
			return nil, err
		}
		client, err := vision.NewGeminiClient(ctx, apiKey)
		if err != nil {
			return nil, err
		}
		log.Info().Msg("connection successful - Gemini client initialized")

		if err := auth.ValidateAPIKey(ctx, client, cfg.GeminiModel); err != nil {
			return nil, err
		}
		log.Info().Str("model", cfg.GeminiModel).Msg("API key validation complete - ready for operations")

		return vision.NewGemini(client, vision.GeminiConfig{
			Model:     cfg.GeminiModel,
			Task:      task,
			Labels:    cfg.Labels,
			ImageSize: cfg.ImageSize,
		}), nil

	default:
		return nil, fmt.Errorf("unsupported model backend %q", cfg.Backend)
	}
}

// ValidationHint returns a user-facing explanation for a model
// initialisation error.
func ValidationHint(err error) string {
	var validationErr *auth.ValidationError
	if !errors.As(err, &validationErr) {
		return "Failed to initialise the vision model"
	}
	switch validationErr.Type {
	case auth.ErrTypeNoKey:
		return "No API key configured. Set GEMINI_API_KEY or SSM_API_KEY_PARAM"
	case auth.ErrTypeInvalidKey:
		return "Invalid API key. Please check your API key and try again"
	case auth.ErrTypeNetworkError:
		return "Network error. Please check your internet connection"
	case auth.ErrTypeQuotaExceeded:
		return "API quota exceeded. Please try again later or check your usage limits"
	default:
		return "API key validation failed"
	}
}

package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fpang/wildlife-vision/internal/metrics"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// ValidationErrorType categorizes credential and model reachability failures.
type ValidationErrorType int

const (
	ErrTypeNoKey ValidationErrorType = iota
	ErrTypeInvalidKey
	ErrTypeNetworkError
	ErrTypeQuotaExceeded
	ErrTypeUnknown
)

// String returns the metric dimension value for t.
func (t ValidationErrorType) String() string {
	switch t {
	case ErrTypeNoKey:
		return "no_key"
	case ErrTypeInvalidKey:
		return "invalid"
	case ErrTypeNetworkError:
		return "network_error"
	case ErrTypeQuotaExceeded:
		return "quota"
	default:
		return "unknown"
	}
}

// ValidationError reports why the vision model could not be used.
type ValidationError struct {
	Type    ValidationErrorType
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// MetricsNamespace names the validation metrics.
const MetricsNamespace = "WildlifeVision"

// ValidateAPIKey sends a one-word prompt to model so that a bad key or an
// unreachable endpoint fails before any image is read.
func ValidateAPIKey(ctx context.Context, client *genai.Client, model string) error {
	log.Debug().Str("model", model).Msg("Validating Gemini API key")

	start := time.Now()
	resp, err := client.Models.GenerateContent(ctx, model, genai.Text("hi"), nil)
	elapsed := time.Since(start)

	if err != nil {
		valErr := classifyError(err)
		log.Error().Err(err).Str("result", valErr.Type.String()).Msg(valErr.Message)
		recordValidation(valErr.Type.String(), elapsed)
		return valErr
	}
	if resp == nil || len(resp.Candidates) == 0 {
		recordValidation("empty_response", elapsed)
		return &ValidationError{Type: ErrTypeUnknown, Message: "Gemini returned an empty response"}
	}

	recordValidation("success", elapsed)
	log.Info().Dur("duration", elapsed).Str("model", model).Msg("Gemini API key validated")
	return nil
}

func recordValidation(result string, elapsed time.Duration) {
	metrics.New(MetricsNamespace).
		Dimension("Result", result).
		Metric("ApiKeyValidationMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds).
		Count("ApiKeyValidationResult").
		Flush()
}

// messageRules match error text when the failure is not a *genai.APIError,
// e.g. transport errors from the HTTP client. First match wins.
var messageRules = []struct {
	typ     ValidationErrorType
	message string
	needles []string
}{
	{ErrTypeInvalidKey, "API key is invalid or has been revoked",
		[]string{"api key not valid", "invalid api key", "api_key_invalid", "permission denied"}},
	{ErrTypeQuotaExceeded, "API quota exceeded or rate limited",
		[]string{"quota", "resource exhausted", "rate limit"}},
	{ErrTypeNetworkError, "Network error, check the connection to the model endpoint",
		[]string{"connection", "network", "timeout", "dial", "no such host", "unreachable"}},
}

func classifyError(err error) *ValidationError {
	if err == nil {
		return nil
	}

	var apiErr *genai.APIError
	if errors.As(err, &apiErr) {
		return classifyAPIError(apiErr)
	}

	text := strings.ToLower(err.Error())
	for _, rule := range messageRules {
		for _, needle := range rule.needles {
			if strings.Contains(text, needle) {
				return &ValidationError{Type: rule.typ, Message: rule.message, Err: err}
			}
		}
	}
	return &ValidationError{Type: ErrTypeUnknown, Message: "Failed to validate API key", Err: err}
}

func classifyAPIError(err *genai.APIError) *ValidationError {
	v := &ValidationError{Err: err}
	switch {
	case err.Code == 400:
		v.Type, v.Message = ErrTypeInvalidKey, "Bad request, the API key may be malformed"
	case err.Code == 401 || err.Code == 403:
		v.Type, v.Message = ErrTypeInvalidKey, "API key is invalid, expired, or lacks permissions"
	case err.Code == 429:
		v.Type, v.Message = ErrTypeQuotaExceeded, "API rate limit exceeded, try again later"
	case err.Code >= 500 && err.Code <= 504:
		v.Type, v.Message = ErrTypeNetworkError, "Gemini API server error, try again later"
	default:
		v.Type, v.Message = ErrTypeUnknown, err.Message
	}
	return v
}

// Package auth resolves and validates the Gemini API key.
package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"
)

const (
	apiKeyEnv   = "GEMINI_API_KEY"
	ssmParamEnv = "SSM_API_KEY_PARAM"
)

type parameterAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// GetAPIKey retrieves the Gemini API key from available sources.
// Priority order:
//  1. GEMINI_API_KEY environment variable
//  2. SSM Parameter Store SecureString named by SSM_API_KEY_PARAM
func GetAPIKey(ctx context.Context) (string, error) {
	if key := os.Getenv(apiKeyEnv); key != "" {
		log.Debug().Msg("Using API key from environment variable")
		return key, nil
	}

	param := os.Getenv(ssmParamEnv)
	if param == "" {
		return "", &ValidationError{
			Type:    ErrTypeNoKey,
			Message: "API key not found. Set GEMINI_API_KEY or SSM_API_KEY_PARAM",
		}
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return "", &ValidationError{Type: ErrTypeNoKey, Message: "failed to load AWS config", Err: err}
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")

	key, err := getFromSSM(ctx, ssm.NewFromConfig(cfg), param)
	if err != nil {
		log.Error().Err(err).Str("param", param).Msg("Failed to retrieve API key")
		return "", &ValidationError{Type: ErrTypeNoKey, Message: "API key not found in SSM", Err: err}
	}
	log.Debug().Str("param", param).Msg("Using API key from SSM Parameter Store")
	return key, nil
}

// getFromSSM reads and decrypts a SecureString parameter.
func getFromSSM(ctx context.Context, client parameterAPI, name string) (string, error) {
	out, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("SSM GetParameter: %w", err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", errors.New("SSM parameter has no value")
	}
	key := strings.TrimSpace(*out.Parameter.Value)
	if key == "" {
		return "", errors.New("SSM parameter is empty")
	}
	return key, nil
}

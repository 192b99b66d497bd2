package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"slices"
)

// Sentinel errors for configuration validation, checkable with errors.Is().
var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidMaxHistoryTurns indicates the history window is out of range.
	ErrInvalidMaxHistoryTurns = errors.New("invalid max history turns")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresPassword indicates the PostgreSQL password is invalid.
	ErrInvalidPostgresPassword = errors.New("invalid PostgreSQL password")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidInferenceURL indicates the inference base URL is malformed.
	ErrInvalidInferenceURL = errors.New("invalid inference base URL")

	// ErrInvalidTranslateModel indicates a translation model ID is missing.
	ErrInvalidTranslateModel = errors.New("invalid translation model")

	// ErrInvalidTranslatePolicy indicates the retry/timeout settings are out of range.
	ErrInvalidTranslatePolicy = errors.New("invalid translation retry policy")

	// ErrInvalidHTTPAddr indicates the HTTP listen address is empty.
	ErrInvalidHTTPAddr = errors.New("invalid HTTP listen address")
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// GEMINI_API_KEY is read directly by Genkit; all generation and
	// embedding calls fail without it, so fail fast here.
	if os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required\n"+
			"Get your API key at: https://ai.google.dev/gemini-api/docs/api-key",
			ErrMissingAPIKey)
	}

	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}

	// Temperature range: 0.0 (deterministic) to 2.0 (maximum creativity).
	if c.Temperature < 0.0 || c.Temperature > 2.0 {
		return fmt.Errorf("%w: must be between 0.0 and 2.0, got %.2f", ErrInvalidTemperature, c.Temperature)
	}

	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	if c.MaxHistoryTurns < 1 || c.MaxHistoryTurns > 1000 {
		return fmt.Errorf("%w: must be between 1 and 1000, got %d",
			ErrInvalidMaxHistoryTurns, c.MaxHistoryTurns)
	}

	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}
	if c.PostgresPassword == "" {
		return fmt.Errorf("%w: postgres_password must be set", ErrInvalidPostgresPassword)
	}
	if c.PostgresPassword == "shakti_dev_password" {
		slog.Warn("using default development password for PostgreSQL",
			"warning", "change postgres_password for production deployments")
	}
	if len(c.PostgresPassword) < 8 {
		return fmt.Errorf("%w: postgres_password must be at least 8 characters (got %d)",
			ErrInvalidPostgresPassword, len(c.PostgresPassword))
	}

	// Modern SSL modes only; allow/prefer are deprecated.
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	parsed, err := url.Parse(c.InferenceBaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidInferenceURL, c.InferenceBaseURL)
	}
	if c.IndicToEnglishModel == "" || c.EnglishToIndicModel == "" {
		return fmt.Errorf("%w: both indic_to_english_model and english_to_indic_model must be set",
			ErrInvalidTranslateModel)
	}
	if c.TranslateAttempts < 1 || c.TranslateAttempts > 10 {
		return fmt.Errorf("%w: translate_attempts must be between 1 and 10, got %d",
			ErrInvalidTranslatePolicy, c.TranslateAttempts)
	}
	if c.TranslateTimeoutSec < 1 || c.TranslateTimeoutSec > 300 {
		return fmt.Errorf("%w: translate_timeout_sec must be between 1 and 300, got %d",
			ErrInvalidTranslatePolicy, c.TranslateTimeoutSec)
	}

	if c.HTTPAddr == "" {
		return fmt.Errorf("%w: http_addr cannot be empty", ErrInvalidHTTPAddr)
	}

	return nil
}

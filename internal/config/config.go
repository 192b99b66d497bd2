// Package config provides application configuration with multi-source priority.
//
// Sources, highest priority first:
//  1. Environment variables (runtime override)
//  2. Config file (~/.shakti/config.yaml or ./config.yaml)
//  3. Default values
//
// Categories: AI model and embedder selection, PostgreSQL storage (storage.go),
// translation inference endpoint, knowledge-base ingestion, HTTP serving, and
// optional trace export.
//
// Sensitive values (database password, inference API key) are masked in
// MarshalJSON so the config can be logged safely.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

const (
	// DefaultModelName is the generation model used when none is configured.
	DefaultModelName = "googleai/gemini-2.5-flash"

	// DefaultEmbedderModel is the embedding model for the knowledge base.
	// gemini-embedding-001 outputs 3072 dimensions by default; the
	// knowledge store requests truncation to knowledge.VectorDimension
	// (768) on every embed call, matching the knowledge_chunks schema.
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultMaxHistoryTurns bounds how many prior turns feed the composer.
	DefaultMaxHistoryTurns int32 = 100

	// Translation model identifiers on the inference endpoint.
	DefaultIndicToEnglishModel = "ai4bharat/indictrans2-indic-en"
	DefaultEnglishToIndicModel = "ai4bharat/indictrans2-en-indic"
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON.
type Config struct {
	// AI model configuration
	ModelName     string  `mapstructure:"model_name" json:"model_name"`
	Temperature   float64 `mapstructure:"temperature" json:"temperature"`
	EmbedderModel string  `mapstructure:"embedder_model" json:"embedder_model"`

	// Conversation history configuration
	MaxHistoryTurns int32 `mapstructure:"max_history_turns" json:"max_history_turns"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Translation inference endpoint
	InferenceBaseURL    string `mapstructure:"inference_base_url" json:"inference_base_url"`
	InferenceAPIKey     string `mapstructure:"inference_api_key" json:"inference_api_key"` // SENSITIVE
	IndicToEnglishModel string `mapstructure:"indic_to_english_model" json:"indic_to_english_model"`
	EnglishToIndicModel string `mapstructure:"english_to_indic_model" json:"english_to_indic_model"`
	TranslateAttempts   int    `mapstructure:"translate_attempts" json:"translate_attempts"`
	TranslateTimeoutSec int    `mapstructure:"translate_timeout_sec" json:"translate_timeout_sec"`

	// Knowledge base ingestion
	DocsDir string `mapstructure:"docs_dir" json:"docs_dir"`

	// HTTP serving
	HTTPAddr    string `mapstructure:"http_addr" json:"http_addr"`
	CacheTTLSec int    `mapstructure:"cache_ttl_sec" json:"cache_ttl_sec"`

	// Trace export (optional; empty endpoint disables)
	OTLPEndpoint string `mapstructure:"otlp_endpoint" json:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name" json:"service_name"`
	Environment  string `mapstructure:"environment" json:"environment"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".shakti")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings when set.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// TranslateTimeout returns the per-attempt translation timeout as a Duration.
func (c *Config) TranslateTimeout() time.Duration {
	return time.Duration(c.TranslateTimeoutSec) * time.Second
}

// CacheTTL returns the chat-list cache TTL as a Duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSec) * time.Second
}

func setDefaults(v *viper.Viper) {
	// AI defaults. Temperature favors consistency over creativity; the
	// composer cites legal acts and sections verbatim from context.
	v.SetDefault("model_name", DefaultModelName)
	v.SetDefault("temperature", 0.3)
	v.SetDefault("embedder_model", DefaultEmbedderModel)
	v.SetDefault("max_history_turns", DefaultMaxHistoryTurns)

	// PostgreSQL defaults (matching docker-compose.yml)
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "shakti")
	v.SetDefault("postgres_password", "shakti_dev_password")
	v.SetDefault("postgres_db_name", "shakti")
	v.SetDefault("postgres_ssl_mode", "disable")

	// Translation defaults mirror the IndicTrans2 deployment.
	v.SetDefault("inference_base_url", "https://api-inference.huggingface.co")
	v.SetDefault("indic_to_english_model", DefaultIndicToEnglishModel)
	v.SetDefault("english_to_indic_model", DefaultEnglishToIndicModel)
	v.SetDefault("translate_attempts", 3)
	v.SetDefault("translate_timeout_sec", 25)

	// Knowledge base
	v.SetDefault("docs_dir", "data")

	// HTTP
	v.SetDefault("http_addr", "127.0.0.1:8080")
	v.SetDefault("cache_ttl_sec", 300)

	// Tracing disabled unless an endpoint is configured
	v.SetDefault("otlp_endpoint", "")
	v.SetDefault("service_name", "shakti")
	v.SetDefault("environment", "dev")
}

// bindEnvVariables binds environment variables explicitly.
// GEMINI_API_KEY is read directly by Genkit, not via viper; Validate checks
// for its presence.
func bindEnvVariables(v *viper.Viper) {
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("inference_api_key", "HF_API_KEY")
	mustBind("inference_base_url", "SHAKTI_INFERENCE_BASE_URL")
	mustBind("model_name", "SHAKTI_MODEL_NAME")
	mustBind("docs_dir", "SHAKTI_DOCS_DIR")
	mustBind("http_addr", "SHAKTI_HTTP_ADDR")
	mustBind("otlp_endpoint", "SHAKTI_OTLP_ENDPOINT")
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// maskSecret masks a secret for safe logging. Short secrets are fully
// masked; longer ones keep two characters on each end for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with sensitive field masking.
// When adding new secrets to Config, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	a.InferenceAPIKey = maskSecret(a.InferenceAPIKey)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

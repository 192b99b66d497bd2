// Package composer turns an English question, retrieved reference
// chunks, and conversation history into a model-generated answer.
package composer

import (
	"context"
	"errors"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/shakti-ai/shakti/internal/knowledge"
	"github.com/shakti-ai/shakti/internal/log"
	"github.com/shakti-ai/shakti/internal/session"
)

// fallbackResponseMessage is returned when the model produces an empty
// response despite a successful call.
const fallbackResponseMessage = "I apologize, but I couldn't generate a response. Please try rephrasing your question."

// Config contains all required parameters for the Composer.
type Config struct {
	Genkit *genkit.Genkit
	Logger log.Logger

	// ModelName is the provider-qualified model name,
	// e.g. "googleai/gemini-2.5-flash".
	ModelName string

	// Temperature for generation. Kept low so answers stick to the
	// reference material.
	Temperature float64

	// RetryConfig for model calls. The zero value is the default
	// single-attempt policy; set MaxRetries to opt in to retries.
	RetryConfig RetryConfig

	// RateLimiter is optional; nil installs the default
	// 10 req/s sustained, burst 30.
	RateLimiter *rate.Limiter
}

func (cfg Config) validate() error {
	if cfg.Genkit == nil {
		return errors.New("genkit instance is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.ModelName == "" {
		return errors.New("model name is required")
	}
	return nil
}

// Composer generates answers with a fixed persona. It is stateless and
// safe for concurrent use; all configuration is captured at construction.
type Composer struct {
	g           *genkit.Genkit
	logger      log.Logger
	modelName   string
	temperature float32
	retryConfig RetryConfig
	rateLimiter *rate.Limiter
}

// New creates a Composer.
func New(cfg Config) (*Composer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// The zero RetryConfig is the default single-attempt policy; only the
	// backoff intervals need filling in case retries were enabled without
	// them.
	retryConfig := cfg.RetryConfig
	if retryConfig.InitialInterval <= 0 {
		retryConfig.InitialInterval = DefaultRetryConfig().InitialInterval
	}
	if retryConfig.MaxInterval <= 0 {
		retryConfig.MaxInterval = DefaultRetryConfig().MaxInterval
	}

	rl := cfg.RateLimiter
	if rl == nil {
		rl = rate.NewLimiter(10, 30)
	}

	return &Composer{
		g:           cfg.Genkit,
		logger:      cfg.Logger,
		modelName:   cfg.ModelName,
		temperature: float32(cfg.Temperature),
		retryConfig: retryConfig,
		rateLimiter: rl,
	}, nil
}

// Compose generates an answer to message using the retrieved chunks and
// prior turns. message and history must already be in English terms the
// model can work with; translation happens outside this package.
//
// Empty retrieval results are not an error: the prompt tells the model
// to answer from general knowledge and flag the missing sources.
func (c *Composer) Compose(ctx context.Context, message string, chunks []knowledge.Result, history []session.Turn) (string, error) {
	msgs := buildMessages(history, message)

	opts := []ai.GenerateOption{
		ai.WithModelName(c.modelName),
		ai.WithSystem(systemPrompt + "\n\n" + formatContext(chunks)),
		ai.WithMessages(msgs...),
		ai.WithConfig(&genai.GenerateContentConfig{
			Temperature: genai.Ptr(c.temperature),
		}),
	}

	resp, err := c.generateWithRetry(ctx, opts)
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		c.logger.Warn("model returned empty response")
		return fallbackResponseMessage, nil
	}
	return text, nil
}

// buildMessages converts history turns to model messages and appends the
// current question as the final user message.
func buildMessages(history []session.Turn, message string) []*ai.Message {
	msgs := make([]*ai.Message, 0, len(history)+1)
	for _, t := range history {
		switch t.Role {
		case session.RoleUser:
			msgs = append(msgs, ai.NewUserMessage(ai.NewTextPart(t.Content)))
		case session.RoleAssistant:
			msgs = append(msgs, ai.NewModelMessage(ai.NewTextPart(t.Content)))
		}
	}
	return append(msgs, ai.NewUserMessage(ai.NewTextPart(message)))
}

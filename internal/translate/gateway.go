// Package translate bridges user languages and the English pivot via
// hosted IndicTrans2 models.
//
// Translation is best-effort: after retries are exhausted the gateway
// returns the original text unchanged, so a translation outage degrades
// the experience instead of breaking the conversation.
package translate

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shakti-ai/shakti/internal/language"
	"github.com/shakti-ai/shakti/internal/log"
)

// Policy controls retry behavior for translation attempts.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// AttemptTimeout bounds each individual attempt.
	AttemptTimeout time.Duration

	// Backoff returns the wait before the next attempt. attempt is
	// 1-based and names the attempt that just failed.
	Backoff func(attempt int) time.Duration
}

// DefaultPolicy matches the observed cold-start behavior of hosted
// IndicTrans2 deployments: model loading can take tens of seconds, so
// attempts are generous and backoff is short.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		AttemptTimeout: 25 * time.Second,
		Backoff: func(attempt int) time.Duration {
			return time.Duration(attempt) * 500 * time.Millisecond
		},
	}
}

// floresCodes maps language tags to the FLORES-200 codes IndicTrans2
// expects as src_lang/tgt_lang parameters.
var floresCodes = map[language.Tag]string{
	"hi": "hin_Deva",
	"bn": "ben_Beng",
	"ta": "tam_Taml",
	"te": "tel_Telu",
	"mr": "mar_Deva",
	"gu": "guj_Gujr",
	"ml": "mal_Mlym",
	"pa": "pan_Guru",
	"kn": "kan_Knda",
	"or": "ory_Orya",
	"ur": "urd_Arab",
	"en": "eng_Latn",
}

var errNoTranslation = errors.New("no translation in response payload")

type inferenceRequest struct {
	Inputs     string          `json:"inputs"`
	Parameters inferenceParams `json:"parameters"`
}

type inferenceParams struct {
	SrcLang string `json:"src_lang"`
	TgtLang string `json:"tgt_lang"`
}

// Gateway translates between supported Indic languages and English.
type Gateway struct {
	poster         Poster
	indicToEnglish string
	englishToIndic string
	policy         Policy
	logger         log.Logger
}

// NewGateway creates a translation gateway. indicToEnglish and
// englishToIndic name the models on the inference endpoint.
func NewGateway(poster Poster, indicToEnglish, englishToIndic string, policy Policy, logger log.Logger) *Gateway {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.Backoff == nil {
		policy.Backoff = DefaultPolicy().Backoff
	}
	return &Gateway{
		poster:         poster,
		indicToEnglish: indicToEnglish,
		englishToIndic: englishToIndic,
		policy:         policy,
		logger:         logger,
	}
}

// ToEnglish translates text from src into English. English input passes
// through untouched. On failure the original text is returned.
func (g *Gateway) ToEnglish(ctx context.Context, text string, src language.Tag) string {
	if language.IsEnglish(src) || strings.TrimSpace(text) == "" {
		return text
	}
	srcCode, ok := floresCodes[src]
	if !ok {
		g.logger.Warn("unsupported source language, skipping translation", "lang", string(src))
		return text
	}
	return g.translate(ctx, g.indicToEnglish, text, srcCode, floresCodes[language.English])
}

// FromEnglish translates English text into dst. An English destination
// passes through untouched. On failure the original text is returned.
func (g *Gateway) FromEnglish(ctx context.Context, text string, dst language.Tag) string {
	if language.IsEnglish(dst) || strings.TrimSpace(text) == "" {
		return text
	}
	dstCode, ok := floresCodes[dst]
	if !ok {
		g.logger.Warn("unsupported target language, skipping translation", "lang", string(dst))
		return text
	}
	return g.translate(ctx, g.englishToIndic, text, floresCodes[language.English], dstCode)
}

// translate runs the retry loop for a single translation. Each attempt
// gets its own timeout; exhausting all attempts (or the parent context)
// degrades to the original text.
func (g *Gateway) translate(ctx context.Context, model, text, srcCode, tgtCode string) string {
	req := inferenceRequest{
		Inputs:     text,
		Parameters: inferenceParams{SrcLang: srcCode, TgtLang: tgtCode},
	}

	var lastErr error
	for attempt := 1; attempt <= g.policy.MaxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, g.policy.AttemptTimeout)
		raw, err := g.poster.Post(attemptCtx, model, req)
		cancel()

		if err == nil {
			out, ok := extractTranslation(raw)
			if ok && strings.TrimSpace(out) != "" {
				return out
			}
			// The endpoint answered but in a shape we don't recognize.
			// Retrying won't change the shape, so degrade immediately.
			g.logger.Warn("unrecognized translation payload, returning original text",
				"model", model, "error", errNoTranslation)
			return text
		}
		lastErr = err

		if attempt == g.policy.MaxAttempts {
			break
		}

		g.logger.Warn("translation attempt failed, retrying",
			"model", model,
			"attempt", attempt,
			"max_attempts", g.policy.MaxAttempts,
			"error", err)

		select {
		case <-ctx.Done():
			g.logger.Warn("translation canceled, returning original text",
				"model", model, "error", ctx.Err())
			return text
		case <-time.After(g.policy.Backoff(attempt)):
		}
	}

	g.logger.Warn("translation failed, returning original text",
		"model", model,
		"attempts", g.policy.MaxAttempts,
		"error", lastErr)
	return text
}

// Package language detects the language of user messages.
//
// Detection is trigram-based and restricted to the languages the
// translation models support. Anything unrecognized, unreliable, or too
// short to classify is treated as English, which keeps the pipeline on
// its passthrough path instead of mistranslating.
package language

import (
	"strings"

	"github.com/abadojack/whatlanggo"
)

// Tag is a two-letter ISO 639-1 language code.
type Tag string

// English is the pivot language of the pipeline. Retrieval and
// generation always operate on English text.
const English Tag = "en"

// langTags maps detected languages to their ISO 639-1 tags.
// Only languages covered by the IndicTrans2 models are listed.
var langTags = map[whatlanggo.Lang]Tag{
	whatlanggo.Hin: "hi",
	whatlanggo.Ben: "bn",
	whatlanggo.Tam: "ta",
	whatlanggo.Tel: "te",
	whatlanggo.Mar: "mr",
	whatlanggo.Guj: "gu",
	whatlanggo.Mal: "ml",
	whatlanggo.Pan: "pa",
	whatlanggo.Kan: "kn",
	whatlanggo.Ori: "or",
	whatlanggo.Urd: "ur",
	whatlanggo.Eng: "en",
}

// whitelist restricts trigram scoring to the supported languages.
// Without it, short Devanagari text can score closer to related
// languages the models cannot translate.
var whitelist = func() map[whatlanggo.Lang]bool {
	m := make(map[whatlanggo.Lang]bool, len(langTags))
	for lang := range langTags {
		m[lang] = true
	}
	return m
}()

// Detect returns the language tag for text.
//
// Returns English for empty, whitespace-only, or unreliably classified
// input. Detection is deterministic: the same text always yields the
// same tag.
func Detect(text string) Tag {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return English
	}

	info := whatlanggo.DetectWithOptions(trimmed, whatlanggo.Options{Whitelist: whitelist})
	tag, ok := langTags[info.Lang]
	if !ok || !info.IsReliable() {
		return English
	}
	return tag
}

// IsEnglish reports whether t is the English pivot tag.
func IsEnglish(t Tag) bool { return t == English }

// Supported reports whether t is a language the translation models accept.
func Supported(t Tag) bool {
	for _, known := range langTags {
		if known == t {
			return true
		}
	}
	return false
}

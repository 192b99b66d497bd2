package translate

import "encoding/json"

// extractTranslation pulls the translated text out of an inference
// response. Hosted translation endpoints are not consistent about their
// response shape, so every known variant is tried in turn:
//
//	[{"translation_text": "..."}]
//	{"translation_text": "..."}
//	[{"generated_text": "..."}]
//	"..."
//
// Returns false when no variant matches or the extracted text is empty.
func extractTranslation(raw json.RawMessage) (string, bool) {
	type entry struct {
		TranslationText string `json:"translation_text"`
		GeneratedText   string `json:"generated_text"`
	}

	var list []entry
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		if list[0].TranslationText != "" {
			return list[0].TranslationText, true
		}
		if list[0].GeneratedText != "" {
			return list[0].GeneratedText, true
		}
	}

	var single entry
	if err := json.Unmarshal(raw, &single); err == nil {
		if single.TranslationText != "" {
			return single.TranslationText, true
		}
		if single.GeneratedText != "" {
			return single.GeneratedText, true
		}
	}

	var bare string
	if err := json.Unmarshal(raw, &bare); err == nil && bare != "" {
		return bare, true
	}

	return "", false
}

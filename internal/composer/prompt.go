package composer

import (
	"fmt"
	"strings"

	"github.com/shakti-ai/shakti/internal/knowledge"
)

// systemPrompt is the assistant persona. Generation always happens in
// English; answers are translated back afterwards.
const systemPrompt = `You are Shakti, a legal assistant helping women in India understand their legal rights.

Guidelines:
- Answer using the reference material provided below. Cite the relevant act or section when the material names one.
- Be warm, clear, and practical. Avoid legal jargon; when a legal term is unavoidable, explain it in plain words.
- If the reference material does not cover the question, say so honestly, offer general guidance, and suggest consulting a lawyer or a legal aid service.
- For situations involving immediate danger, always mention the women's helpline 181 and police 100/112.
- You provide legal information, not legal advice. Never invent acts, sections, or case law.`

// contextSeparator joins retrieved chunks in the prompt.
const contextSeparator = "\n\n----------------\n\n"

// noContextNotice is appended when retrieval produced nothing, so the
// model answers from general knowledge instead of hallucinating sources.
const noContextNotice = `No reference material matched this question. Answer from general knowledge of Indian law, clearly noting that the user should verify with a qualified lawyer.`

// formatContext renders retrieved chunks as a reference block.
func formatContext(results []knowledge.Result) string {
	if len(results) == 0 {
		return noContextNotice
	}

	blocks := make([]string, len(results))
	for i, r := range results {
		blocks[i] = fmt.Sprintf("Source: %s\nContent: %s", r.Chunk.Source, r.Chunk.Content)
	}
	return "Reference material:\n\n" + strings.Join(blocks, contextSeparator)
}

package knowledge

import "strings"

const (
	// DefaultChunkSize is the target chunk length in runes. Sized so a
	// chunk carries a full statute section or FAQ entry.
	DefaultChunkSize = 1000

	// DefaultChunkOverlap is how many runes consecutive chunks share,
	// so a sentence split across a boundary still appears whole in one
	// of them.
	DefaultChunkOverlap = 200
)

// SplitText splits text into chunks of at most size runes with overlap
// runes shared between consecutive chunks. Chunks prefer to break at a
// newline or space near the limit rather than mid-word.
//
// Splitting is deterministic. Returns nil for empty or whitespace-only
// input. overlap must be smaller than size; callers passing equal or
// larger overlap get the default ratio instead of an infinite loop.
func SplitText(text string, size, overlap int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}

	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}

		// Prefer a natural boundary in the back half of the window.
		cut := end
		for i := end; i > start+size/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
			if cut == end && runes[i-1] == ' ' {
				cut = i
			}
		}

		chunks = append(chunks, string(runes[start:cut]))

		next := cut - overlap
		if next <= start {
			// Boundary cut plus a large overlap could stall; always move
			// forward.
			next = cut
		}
		start = next
	}
	return chunks
}

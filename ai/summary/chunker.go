package summary

import (
	"strings"
	"unicode/utf8"

	"github.com/hrygo/recap/ai/internal/strutil"
)

// DefaultChunkSize is the largest chunk, in bytes.
const DefaultChunkSize = 40000

// Split cuts text into ordered, non-overlapping chunks of at most chunkSize
// bytes whose concatenation is text. A window prefers to end just after its
// last '.' or '\n' when that falls in the final fifth of the window.
// chunkSize <= 0 means DefaultChunkSize.
func Split(text string, chunkSize int) ([]Chunk, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkSize < utf8.UTFMax {
		chunkSize = utf8.UTFMax
	}
	minBoundary := chunkSize - chunkSize/5

	var chunks []Chunk
	for pos := 0; pos < len(text); {
		end := pos + chunkSize
		if end >= len(text) {
			chunks = append(chunks, Chunk{Index: len(chunks), Offset: pos, Text: text[pos:]})
			break
		}

		cut := strutil.RuneStart(text, end)
		if i := strings.LastIndexAny(text[pos:end], ".\n"); i >= minBoundary {
			cut = pos + i + 1
		}

		chunks = append(chunks, Chunk{Index: len(chunks), Offset: pos, Text: text[pos:cut]})
		pos = cut
	}

	if len(chunks) == 0 {
		return nil, ErrChunkingDefect
	}
	return chunks, nil
}

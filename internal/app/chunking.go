// internal/app/chunking.go
package app

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	// transportBodyLimit is the Cloud API text body ceiling; the margin
	// leaves room for the part annotation prefix.
	transportBodyLimit  = 1024
	chunkAnnotationRoom = 100
	maxChunkSize        = transportBodyLimit - chunkAnnotationRoom
)

// sanitizeTemplateParam flattens a message body into a single line suitable
// for a template parameter: the template API rejects newlines and control
// characters outright.
func sanitizeTemplateParam(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\n", " • ")
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// chunkMessage splits body into transport-sized pieces, preferring sentence
// boundaries and falling back to word boundaries. Chunks are annotated with
// a "Part i/n" prefix only when there is more than one.
func chunkMessage(body string) []string {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil
	}
	if len([]rune(body)) <= maxChunkSize {
		return []string{body}
	}

	var chunks []string
	remaining := []rune(body)
	for len(remaining) > 0 {
		if len(remaining) <= maxChunkSize {
			chunks = append(chunks, strings.TrimSpace(string(remaining)))
			break
		}
		cut := splitPoint(remaining, maxChunkSize)
		chunks = append(chunks, strings.TrimSpace(string(remaining[:cut])))
		remaining = remaining[cut:]
		for len(remaining) > 0 && unicode.IsSpace(remaining[0]) {
			remaining = remaining[1:]
		}
	}

	if len(chunks) > 1 {
		for i := range chunks {
			chunks[i] = fmt.Sprintf("Part %d/%d: %s", i+1, len(chunks), chunks[i])
		}
	}
	return chunks
}

// splitPoint finds the best cut index at or before limit: the last sentence
// end, else the last space, else a hard cut.
func splitPoint(runes []rune, limit int) int {
	lastSentence, lastSpace := -1, -1
	for i := 0; i < limit; i++ {
		switch runes[i] {
		case '.', '!', '?':
			// Treat as a sentence end only when followed by whitespace.
			if i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
				lastSentence = i + 1
			}
		default:
			if unicode.IsSpace(runes[i]) {
				lastSpace = i
			}
		}
	}
	if lastSentence > 0 {
		return lastSentence
	}
	if lastSpace > 0 {
		return lastSpace
	}
	return limit
}

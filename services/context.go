package services

import (
	"fmt"
	"strings"
)

// NoContextSentinel is the assembled context when retrieval found
// nothing usable.
const NoContextSentinel = "No relevant information found in the knowledge base."

const truncationMarker = "\n[Content truncated for context limit...]"

// ContextBuilder assembles retrieved chunks into the model context
// under a hard character budget.
type ContextBuilder struct {
	MaxChars     int
	MinRemainder int
}

func NewContextBuilder(maxChars, minRemainder int) *ContextBuilder {
	if maxChars <= 0 {
		maxChars = 8000
	}
	if minRemainder <= 0 {
		minRemainder = 500
	}
	return &ContextBuilder{MaxChars: maxChars, MinRemainder: minRemainder}
}

// Build renders results as labeled source blocks separated by rules.
// When a block does not fit, it is truncated with a marker if at least
// MinRemainder characters of budget remain, otherwise dropped along
// with everything after it.
func (cb *ContextBuilder) Build(results []SearchResult) string {
	if len(results) == 0 {
		return NoContextSentinel
	}

	const separator = "\n\n---\n\n"
	var b strings.Builder

	for i, res := range results {
		name := res.Candidate.SourceName
		if res.Candidate.Topic != "" {
			name = res.Candidate.Topic
		}
		if name == "" {
			name = "untitled"
		}
		block := fmt.Sprintf("[Source %d: %s]\n%s", i+1, name, res.Candidate.Content)

		sep := ""
		if b.Len() > 0 {
			sep = separator
		}

		remaining := cb.MaxChars - b.Len() - len(sep)
		if len(block) <= remaining {
			b.WriteString(sep)
			b.WriteString(block)
			continue
		}

		// Not enough room for the whole block.
		if remaining-len(truncationMarker) >= cb.MinRemainder {
			b.WriteString(sep)
			b.WriteString(block[:remaining-len(truncationMarker)])
			b.WriteString(truncationMarker)
		}
		break
	}

	if b.Len() == 0 {
		return NoContextSentinel
	}
	return b.String()
}

package services

import (
	"regexp"
	"strings"
)

// ChunkerService splits extracted document text into overlapping,
// sentence-aligned chunks sized for the embedding model.
type ChunkerService struct {
	targetTokens  int
	overlapTokens int
	wordsPerToken float64
	boundaryRegex *regexp.Regexp
}

// NewChunkerService creates a chunker. Token counts are approximate:
// a token is estimated as wordsPerToken words.
func NewChunkerService(targetTokens, overlapTokens int, wordsPerToken float64) *ChunkerService {
	if wordsPerToken <= 0 {
		wordsPerToken = 0.75
	}
	return &ChunkerService{
		targetTokens:  targetTokens,
		overlapTokens: overlapTokens,
		wordsPerToken: wordsPerToken,
		boundaryRegex: regexp.MustCompile(`[.!?]+[\s]+`),
	}
}

// TextChunk is one chunk of source text with its position in the sequence.
type TextChunk struct {
	Ordinal int
	Text    string
}

// ChunkText splits text on sentence boundaries, accumulating sentences
// until the approximate token target is reached, then starts the next
// chunk with trailing sentences from the previous one as overlap. A
// single sentence longer than the target is emitted as its own chunk.
func (cs *ChunkerService) ChunkText(text string) []TextChunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	maxWords := int(float64(cs.targetTokens) * cs.wordsPerToken)
	overlapWords := int(float64(cs.overlapTokens) * cs.wordsPerToken)
	if maxWords <= 0 {
		maxWords = 1
	}

	sentences := cs.splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []TextChunk
	var current []string
	currentWords := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		joined := strings.TrimSpace(strings.Join(current, " "))
		if joined == "" {
			current = nil
			currentWords = 0
			return
		}
		chunks = append(chunks, TextChunk{Ordinal: len(chunks), Text: joined})

		// Seed the next chunk with trailing sentences up to the overlap
		// budget so adjacent chunks share context.
		if overlapWords > 0 {
			var carry []string
			carryWords := 0
			for i := len(current) - 1; i >= 0; i-- {
				w := wordCount(current[i])
				if carryWords+w > overlapWords && len(carry) > 0 {
					break
				}
				carry = append([]string{current[i]}, carry...)
				carryWords += w
				if carryWords >= overlapWords {
					break
				}
			}
			// Overlap must never be the whole chunk or chunking stops
			// making progress.
			if len(carry) == len(current) {
				carry = carry[1:]
				carryWords = 0
				for _, s := range carry {
					carryWords += wordCount(s)
				}
			}
			current = carry
			currentWords = carryWords
		} else {
			current = nil
			currentWords = 0
		}
	}

	for _, sentence := range sentences {
		w := wordCount(sentence)

		if currentWords+w > maxWords && currentWords > 0 {
			flush()
		}

		current = append(current, sentence)
		currentWords += w

		// Oversized sentence: emit it whole rather than splitting mid-sentence.
		if w >= maxWords {
			flush()
		}
	}

	if currentWords > 0 && len(current) > 0 {
		// Skip a trailer that is nothing but carried overlap.
		joined := strings.TrimSpace(strings.Join(current, " "))
		if len(chunks) == 0 || !strings.HasSuffix(chunks[len(chunks)-1].Text, joined) {
			chunks = append(chunks, TextChunk{Ordinal: len(chunks), Text: joined})
		}
	}

	return chunks
}

// splitSentences cuts text after sentence-ending punctuation, keeping
// the punctuation with the sentence it ends.
func (cs *ChunkerService) splitSentences(text string) []string {
	locs := cs.boundaryRegex.FindAllStringIndex(text, -1)

	var sentences []string
	start := 0
	for _, loc := range locs {
		// loc[0] is where the punctuation run begins; the sentence ends
		// where the trailing whitespace begins.
		end := loc[1]
		punctEnd := loc[0]
		for punctEnd < end && (text[punctEnd] == '.' || text[punctEnd] == '!' || text[punctEnd] == '?') {
			punctEnd++
		}
		s := strings.TrimSpace(text[start:punctEnd])
		if s != "" {
			sentences = append(sentences, s)
		}
		start = loc[1]
	}
	if tail := strings.TrimSpace(text[start:]); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

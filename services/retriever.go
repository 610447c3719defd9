package services

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"document-qa-platform/internal/ai"
	"document-qa-platform/internal/logger"
)

// Candidate is a chunk considered for retrieval, from either a document
// or an assistant knowledge base.
type Candidate struct {
	ID         string
	SourceID   string
	SourceName string
	Ordinal    int
	Content    string
	Topic      string
	Question   string
	Keywords   []string
	Embedding  []float32
}

// SearchResult is a scored candidate.
type SearchResult struct {
	Candidate Candidate
	Score     float64
}

// ScoreWeights tunes keyword-mode scoring.
type ScoreWeights struct {
	ExactKeyword   float64
	PartialKeyword float64
	ContentTerm    float64
	QuestionTerm   float64
}

func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		ExactKeyword:   3,
		PartialKeyword: 2,
		ContentTerm:    1,
		QuestionTerm:   0.5,
	}
}

// RetrieverService scores candidates against a query. Vector search is
// used when every candidate carries an embedding; otherwise it falls
// back to keyword scoring so corpora ingested without embeddings stay
// searchable.
type RetrieverService struct {
	embedder *ai.Service
	weights  ScoreWeights
}

func NewRetrieverService(embedder *ai.Service, weights ScoreWeights) *RetrieverService {
	return &RetrieverService{embedder: embedder, weights: weights}
}

var nonWord = regexp.MustCompile(`[^a-z0-9\s]`)

// tokenize lowercases, strips punctuation and drops short terms.
func tokenize(s string) []string {
	s = nonWord.ReplaceAllString(strings.ToLower(s), " ")
	fields := strings.Fields(s)
	out := fields[:0]
	for _, f := range fields {
		if len(f) > 2 {
			out = append(out, f)
		}
	}
	return out
}

// Retrieve returns the top scoring candidates, best first. Candidates
// with identical content are deduplicated; ties keep corpus order.
func (r *RetrieverService) Retrieve(ctx context.Context, query string, candidates []Candidate, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 5
	}
	candidates = dedupeByContent(candidates)
	if len(candidates) == 0 {
		return nil, nil
	}

	if allEmbedded(candidates) {
		results, err := r.vectorSearch(ctx, query, candidates)
		if err == nil {
			return top(results, limit), nil
		}
		// Embedding the query can fail (backend down). Retrieval
		// still has to answer, so degrade to keyword mode.
		logger.Warn("vector search unavailable, using keyword scoring", "error", err)
	}

	return top(r.keywordSearch(query, candidates), limit), nil
}

func (r *RetrieverService) vectorSearch(ctx context.Context, query string, candidates []Candidate) ([]SearchResult, error) {
	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(candidates))
	for _, c := range candidates {
		sim, err := ai.CosineSimilarity(queryVec, c.Embedding)
		if err != nil {
			return nil, err
		}
		if sim <= 0 {
			continue
		}
		results = append(results, SearchResult{Candidate: c, Score: sim})
	}
	return results, nil
}

func (r *RetrieverService) keywordSearch(query string, candidates []Candidate) []SearchResult {
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil
	}

	results := make([]SearchResult, 0, len(candidates))
	for _, c := range candidates {
		score := r.scoreCandidate(terms, c)
		if score <= 0 {
			continue
		}
		results = append(results, SearchResult{Candidate: c, Score: score})
	}
	return results
}

// scoreCandidate awards, per query term: the exact-keyword weight when a
// chunk keyword equals the term, the partial weight when one contains
// the other, and the content weight when the chunk text contains the
// term. Overlap with an authored question adds the question weight.
func (r *RetrieverService) scoreCandidate(terms []string, c Candidate) float64 {
	content := strings.ToLower(c.Content)
	keywords := make([]string, len(c.Keywords))
	for i, k := range c.Keywords {
		keywords[i] = strings.ToLower(k)
	}
	questionTerms := tokenize(c.Question + " " + c.Topic)

	var score float64
	for _, term := range terms {
		matchedKeyword := false
		for _, k := range keywords {
			if k == term {
				score += r.weights.ExactKeyword
				matchedKeyword = true
				break
			}
		}
		if !matchedKeyword {
			for _, k := range keywords {
				if strings.Contains(k, term) || strings.Contains(term, k) {
					score += r.weights.PartialKeyword
					break
				}
			}
		}

		if strings.Contains(content, term) {
			score += r.weights.ContentTerm
		}

		for _, qt := range questionTerms {
			if qt == term {
				score += r.weights.QuestionTerm
				break
			}
		}
	}
	return score
}

func allEmbedded(candidates []Candidate) bool {
	for _, c := range candidates {
		if len(c.Embedding) == 0 {
			return false
		}
	}
	return true
}

func dedupeByContent(candidates []Candidate) []Candidate {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		key := strings.TrimSpace(c.Content)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

func top(results []SearchResult, limit int) []SearchResult {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

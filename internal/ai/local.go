package ai

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const localDimension = 384

// LocalBackend is a deterministic hashed bag-of-words embedder used when
// no hosted embedding key is configured. Each term hashes to a handful
// of dimensions, term vectors are mean-pooled and the result is
// L2-normalized. Quality is far below a real model but nearest-neighbor
// ordering over lexically similar text is preserved, which is enough
// for the keyword-heavy corpora this serves.
type LocalBackend struct{}

func NewLocalBackend() *LocalBackend {
	return &LocalBackend{}
}

func (l *LocalBackend) Name() string { return "local-hash" }

func (l *LocalBackend) Dimension() int { return localDimension }

func (l *LocalBackend) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = l.embedOne(text)
	}
	return out, nil
}

func (l *LocalBackend) embedOne(text string) []float32 {
	vec := make([]float32, localDimension)
	terms := localTokenize(text)
	if len(terms) == 0 {
		return vec
	}

	for _, term := range terms {
		// Three hash projections per term keep collisions from
		// collapsing distinct vocabularies onto one axis.
		for seed := 0; seed < 3; seed++ {
			h := fnv.New64a()
			h.Write([]byte{byte(seed)})
			h.Write([]byte(term))
			sum := h.Sum64()
			idx := int(sum % localDimension)
			sign := float32(1)
			if (sum>>63)&1 == 1 {
				sign = -1
			}
			vec[idx] += sign
		}
	}

	// Mean pool over terms.
	inv := float32(1) / float32(len(terms))
	for i := range vec {
		vec[i] *= inv
	}

	// L2 normalize.
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec
}

func localTokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

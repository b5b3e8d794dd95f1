package embedding

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"

	"gonum.org/v1/gonum/floats"
)

// DefaultDimensions is the HashingEmbedder width when none is configured.
const DefaultDimensions = 512

// HashingEmbedder is an offline embedder. Each lowercased word and word
// bigram is hashed into a fixed number of buckets with a signed count, and
// the vector is L2-normalized. Texts sharing vocabulary score high under
// cosine similarity.
type HashingEmbedder struct {
	dims int
}

// NewHashingEmbedder creates a hashing embedder with dims buckets.
func NewHashingEmbedder(dims int) *HashingEmbedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &HashingEmbedder{dims: dims}
}

// Dimensions returns the vector width.
func (h *HashingEmbedder) Dimensions() int { return h.dims }

// Embed generates an embedding for a single text.
func (h *HashingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return h.vector(text), nil
}

// EmbedBatch generates embeddings for texts, in input order.
func (h *HashingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.vector(t)
	}
	return out, nil
}

func (h *HashingEmbedder) vector(text string) []float32 {
	v := make([]float64, h.dims)
	words := tokenize(text)
	for i, w := range words {
		h.add(v, w)
		if i > 0 {
			h.add(v, words[i-1]+" "+w)
		}
	}

	if n := floats.Norm(v, 2); n > 0 {
		floats.Scale(1/n, v)
	}
	out := make([]float32, h.dims)
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func (h *HashingEmbedder) add(v []float64, term string) {
	hf := fnv.New64a()
	hf.Write([]byte(term))
	sum := hf.Sum64()
	bucket := int(sum % uint64(h.dims))
	if sum&(1<<63) != 0 {
		v[bucket]--
	} else {
		v[bucket]++
	}
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

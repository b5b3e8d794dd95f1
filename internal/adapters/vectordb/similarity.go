// Package vectordb provides vector store adapters.
// Clean Architecture: Adapter implementing ports.VectorStore and
// ports.VectorStoreFactory. Search is brute force cosine over one collection.
package vectordb

import (
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/0xcro3dile/ragchat-go/internal/domain/entities"
)

// cosineSimilarity calculates cosine similarity between two vectors.
// Mismatched or zero vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	x, y := widen(a), widen(b)

	na, nb := floats.Norm(x, 2), floats.Norm(y, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(x, y) / (na * nb)
}

func widen(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}

// rank scores chunks against query and keeps the best topK. chunks must be
// in insertion order; equal scores keep that order.
func rank(query []float32, chunks []entities.Chunk, topK int) []entities.QueryResult {
	results := make([]entities.QueryResult, len(chunks))
	for i, c := range chunks {
		results[i] = entities.QueryResult{
			Chunk:     c,
			Score:     cosineSimilarity(query, c.Embedding),
			SourceDoc: c.SourceName,
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if topK >= 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}

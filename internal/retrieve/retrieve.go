// Package retrieve implements the similarity-search pass: embed a query,
// score it against every stored paragraph embedding by dot product (both
// sides are unit-normalized, so dot product is cosine similarity), and
// return the paragraphs that clear a similarity threshold.
package retrieve

import (
	"context"
	"fmt"
	"math"
	"sort"

	"bib/internal/core"
)

const (
	// DefaultThreshold is the minimum cosine similarity a paragraph must
	// clear to be considered relevant.
	DefaultThreshold = 0.30
	// DefaultMaxContexts caps how many paragraphs are carried forward to
	// the reranking/report stage after the threshold filter.
	DefaultMaxContexts = 500
)

// Embedder is the subset of internal/embedder.Embedder the Retriever needs.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Store is the subset of internal/store.Store the Retriever needs.
type Store interface {
	GetAllEmbeddings() ([]core.ParagraphEmbedding, error)
	GetParagraphContexts(ids []int64) ([]core.ParagraphContext, error)
}

// Retriever runs the similarity-search pass against a store.
type Retriever struct {
	Embedder     Embedder
	Store        Store
	Threshold    float64
	MaxContexts  int
}

// New returns a Retriever with the default threshold and context cap.
func New(emb Embedder, st Store) *Retriever {
	return &Retriever{Embedder: emb, Store: st, Threshold: DefaultThreshold, MaxContexts: DefaultMaxContexts}
}

// scored pairs a paragraph id with its similarity to the query.
type scored struct {
	id         int64
	similarity float64
}

// Result is the output of a similarity search: the surviving paragraph
// contexts plus a lookup from paragraph id to its similarity score.
type Result struct {
	Contexts     []core.ParagraphContext
	Similarities map[int64]float64
}

// Empty reports whether the search produced no surviving paragraphs.
func (r *Result) Empty() bool {
	return r == nil || len(r.Contexts) == 0
}

// Search embeds query, scores it against every stored paragraph, keeps
// paragraphs at or above the threshold, sorts by descending similarity,
// truncates to MaxContexts, and loads full contexts for the survivors.
func (r *Retriever) Search(ctx context.Context, query string) (*Result, error) {
	queryVec, err := r.Embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	all, err := r.Store.GetAllEmbeddings()
	if err != nil {
		return nil, fmt.Errorf("loading paragraph embeddings: %w", err)
	}

	var candidates []scored
	for _, pe := range all {
		sim := dot(queryVec, pe.Embedding)
		if sim >= r.Threshold {
			candidates = append(candidates, scored{id: pe.ID, similarity: sim})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return less(candidates[j].similarity, candidates[i].similarity)
	})

	if len(candidates) > r.MaxContexts {
		candidates = candidates[:r.MaxContexts]
	}

	if len(candidates) == 0 {
		return &Result{}, nil
	}

	ids := make([]int64, len(candidates))
	similarities := make(map[int64]float64, len(candidates))
	for i, c := range candidates {
		ids[i] = c.id
		similarities[c.id] = c.similarity
	}

	contexts, err := r.Store.GetParagraphContexts(ids)
	if err != nil {
		return nil, fmt.Errorf("loading paragraph contexts: %w", err)
	}

	return &Result{Contexts: contexts, Similarities: similarities}, nil
}

// dot computes the dot product of two equal-length vectors. Mismatched
// lengths (which should not occur once the embedding dimension is fixed)
// score as NaN, sorting below every real similarity.
func dot(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.NaN()
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// less orders NaN as strictly smaller than any real number, so a
// malformed embedding sorts to the bottom instead of panicking sort.Slice's
// comparator contract.
func less(a, b float64) bool {
	if math.IsNaN(a) {
		return !math.IsNaN(b)
	}
	if math.IsNaN(b) {
		return false
	}
	return a < b
}

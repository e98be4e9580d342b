package retrieve

import (
	"context"
	"math"
	"testing"

	"bib/internal/core"
)

type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return f.vector, f.err
}

type fakeStore struct {
	embeddings []core.ParagraphEmbedding
	contexts   map[int64]core.ParagraphContext
}

func (f *fakeStore) GetAllEmbeddings() ([]core.ParagraphEmbedding, error) {
	return f.embeddings, nil
}

func (f *fakeStore) GetParagraphContexts(ids []int64) ([]core.ParagraphContext, error) {
	out := make([]core.ParagraphContext, 0, len(ids))
	for _, id := range ids {
		out = append(out, f.contexts[id])
	}
	return out, nil
}

func TestSearch_ThresholdAndOrdering(t *testing.T) {
	emb := &fakeEmbedder{vector: []float32{1, 0}}
	st := &fakeStore{
		embeddings: []core.ParagraphEmbedding{
			{ID: 1, Embedding: []float32{1, 0}},    // similarity 1.0
			{ID: 2, Embedding: []float32{0.5, 0.5}}, // similarity 0.5
			{ID: 3, Embedding: []float32{0, 1}},     // similarity 0.0, below threshold
		},
		contexts: map[int64]core.ParagraphContext{
			1: {ID: 1, SourceKey: "a"},
			2: {ID: 2, SourceKey: "b"},
			3: {ID: 3, SourceKey: "c"},
		},
	}

	r := New(emb, st)
	result, err := r.Search(context.Background(), "query")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if len(result.Contexts) != 2 {
		t.Fatalf("len(Contexts) = %d, want 2", len(result.Contexts))
	}
	if result.Contexts[0].SourceKey != "a" {
		t.Errorf("first result = %q, want highest-similarity paragraph first", result.Contexts[0].SourceKey)
	}
	if result.Similarities[3] != 0 {
		t.Errorf("paragraph 3 should not appear in results at all")
	}
}

func TestSearch_EmptyResult(t *testing.T) {
	emb := &fakeEmbedder{vector: []float32{1, 0}}
	st := &fakeStore{
		embeddings: []core.ParagraphEmbedding{{ID: 1, Embedding: []float32{-1, 0}}},
		contexts:   map[int64]core.ParagraphContext{},
	}

	r := New(emb, st)
	result, err := r.Search(context.Background(), "query")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if !result.Empty() {
		t.Error("expected an empty result when nothing clears the threshold")
	}
}

func TestSearch_RespectsMaxContexts(t *testing.T) {
	emb := &fakeEmbedder{vector: []float32{1, 0}}
	embeddings := make([]core.ParagraphEmbedding, 10)
	contexts := make(map[int64]core.ParagraphContext, 10)
	for i := range embeddings {
		embeddings[i] = core.ParagraphEmbedding{ID: int64(i), Embedding: []float32{1, 0}}
		contexts[int64(i)] = core.ParagraphContext{ID: int64(i)}
	}
	st := &fakeStore{embeddings: embeddings, contexts: contexts}

	r := New(emb, st)
	r.MaxContexts = 3
	result, err := r.Search(context.Background(), "query")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(result.Contexts) != 3 {
		t.Errorf("len(Contexts) = %d, want 3", len(result.Contexts))
	}
}

func TestDot_MismatchedLengthIsNaN(t *testing.T) {
	got := dot([]float32{1, 2}, []float32{1})
	if !math.IsNaN(got) {
		t.Errorf("dot of mismatched-length vectors = %v, want NaN", got)
	}
}

func TestLess_NaNSortsBelowRealNumbers(t *testing.T) {
	if !less(math.NaN(), 0.1) {
		t.Error("NaN should be considered less than a real number")
	}
	if less(0.1, math.NaN()) {
		t.Error("a real number should not be considered less than NaN")
	}
}

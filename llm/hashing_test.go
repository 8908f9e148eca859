package llm

import (
	"context"
	"math"
	"testing"
)

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestHashingEmbedderIsDeterministicAndNormalised(t *testing.T) {
	e := NewHashingEmbedder(64)
	ctx := context.Background()
	a, _ := e.Embed(ctx, "Vector databases store embeddings")
	b, _ := e.Embed(ctx, "Vector databases store embeddings")
	if len(a) != 64 {
		t.Fatalf("dim = %d, want 64", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("embedding differs at %d", i)
		}
	}
	if got := cosine(a, a); math.Abs(got-1) > 1e-5 {
		t.Errorf("self similarity = %f, want 1", got)
	}
}

func TestHashingEmbedderRanksRelatedTextHigher(t *testing.T) {
	e := NewHashingEmbedder(256)
	ctx := context.Background()
	q, _ := e.Embed(ctx, "retrieval augmented generation")
	near, _ := e.Embed(ctx, "Retrieval augmented generation combines search with generation.")
	far, _ := e.Embed(ctx, "Bake the bread at two hundred degrees.")
	if cosine(q, near) <= cosine(q, far) {
		t.Errorf("related text should score higher: near=%f far=%f", cosine(q, near), cosine(q, far))
	}
}

func TestHashingEmbedderEmptyText(t *testing.T) {
	v, err := NewHashingEmbedder(8).Embed(context.Background(), "  ")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	for _, x := range v {
		if x != 0 {
			t.Fatal("expected zero vector for empty text")
		}
	}
}

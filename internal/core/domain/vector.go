package domain

import "math"

// Embedding is a model-specific vector for exactly one document or fragment.
type Embedding struct {
	// Model is the embedding model name.
	Model string

	// Target is the owning document or fragment.
	Target EmbeddingTarget

	// DocID is the owning document, also set for fragment embeddings.
	DocID *int64

	// Scale mirrors the fragment type, or FragmentTypeDocument.
	Scale FragmentType

	// AnalyzerID is the analyzer that computed the vector.
	AnalyzerID int64

	// Vector is L2-normalized.
	Vector []float32

	// Language and Collections mirror the target's filter attributes for
	// stores that filter without joins.
	Language    string
	Collections []string
}

// Normalize scales v to unit length in place and returns it.
// A zero vector is returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

// CosineSimilarity returns the cosine of the angle between a and b.
// Mismatched or zero-length inputs return 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// CosineDistance is 1 - CosineSimilarity, matching pgvector's <=> operator.
func CosineDistance(a, b []float32) float64 {
	return 1 - CosineSimilarity(a, b)
}

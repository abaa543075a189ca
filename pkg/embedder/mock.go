package embedder

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// MockProvider is a deterministic test double for the Provider interface.
//
// Vectors are derived from token hashes so that texts sharing words produce
// similar vectors, which gives semantic-search tests a usable notion of
// relatedness without a live embedding service. The same text always maps
// to the same vector.
type MockProvider struct {
	// Dims is the vector dimension. Zero defaults to 8.
	Dims int

	// Err, when set, is returned by every call.
	Err error

	// FailTexts lists exact texts whose embedding should fail (batch
	// partial-failure tests).
	FailTexts []string
}

// Embed returns a deterministic unit vector for the text.
func (m *MockProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	for _, f := range m.FailTexts {
		if f == text {
			return nil, context.DeadlineExceeded
		}
	}
	return m.vector(text), nil
}

// EmbedBatch embeds each text independently, preserving order. Entries for
// texts listed in FailTexts come back nil, mirroring partial batch failure.
func (m *MockProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([][]float64, len(texts))
	var firstErr error
	for i, text := range texts {
		vec, err := m.Embed(ctx, text)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		out[i] = vec
	}
	return out, firstErr
}

// Dimensions returns the configured vector dimension.
func (m *MockProvider) Dimensions() int {
	if m.Dims <= 0 {
		return 8
	}
	return m.Dims
}

// Close is a no-op.
func (m *MockProvider) Close() error {
	return nil
}

// vector builds a normalized bag-of-words hash vector.
func (m *MockProvider) vector(text string) []float64 {
	dims := m.Dimensions()
	vec := make([]float64, dims)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?'\"")
		if word == "" {
			continue
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		vec[int(h.Sum32())%dims] += 1.0
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		vec[0] = 1.0
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
)

// MockProvider is a deterministic offline provider: the same text always maps
// to the same unit vector, and distinct texts map to distinct directions with
// overwhelming likelihood. Mode is ignored so a query for a stored text lands
// exactly on it. Texts containing FailSubstring (when non-empty) fail to
// embed, which lets tests exercise the degraded zero-vector path.
type MockProvider struct {
	dimensions int

	// FailSubstring, when non-empty, makes Embed fail for any text containing it.
	FailSubstring string
}

// NewMockProvider returns a deterministic provider of the given dimension.
func NewMockProvider(dimensions int) *MockProvider {
	if dimensions <= 0 {
		dimensions = 1024
	}
	return &MockProvider{dimensions: dimensions}
}

// Embed returns a hash-derived unit vector for text.
func (p *MockProvider) Embed(_ context.Context, text string, _ Mode) ([]float32, error) {
	if p.FailSubstring != "" && strings.Contains(text, p.FailSubstring) {
		return nil, fmt.Errorf("mock embedding failure for %q", text)
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	v := make([]float32, p.dimensions)
	var sum float64
	for i := range v {
		seed = seed*6364136223846793005 + 1442695040888963407
		f := math.Sin(float64(seed>>16)) // bounded pseudo-random component
		v[i] = float32(f)
		sum += f * f
	}
	if sum > 0 {
		inv := float32(1 / math.Sqrt(sum))
		for i := range v {
			v[i] *= inv
		}
	}
	return v, nil
}

// EmbedBatch embeds each text independently. A failing text fails the whole
// batch, matching how a real provider surfaces batch errors.
func (p *MockProvider) EmbedBatch(ctx context.Context, texts []string, mode Mode) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := p.Embed(ctx, text, mode)
		if err != nil {
			return nil, err
		}
		vectors[i] = v
	}
	return vectors, nil
}

// Dimensions returns the embedding dimension.
func (p *MockProvider) Dimensions() int {
	return p.dimensions
}

// Close is a no-op for MockProvider.
func (p *MockProvider) Close() error {
	return nil
}

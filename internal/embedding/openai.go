package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider embeds text via the OpenAI embeddings API. The API does not
// distinguish document and query inputs, so Mode is accepted and ignored.
type OpenAIProvider struct {
	client     *openai.Client
	model      string
	dimensions int
	maxRetries int
	timeout    time.Duration
}

// OpenAIOption configures an OpenAIProvider.
type OpenAIOption func(*OpenAIProvider)

// WithMaxRetries sets the number of attempts per request (default 3).
func WithMaxRetries(n int) OpenAIOption {
	return func(p *OpenAIProvider) {
		if n > 0 {
			p.maxRetries = n
		}
	}
}

// WithTimeout sets the per-request timeout (default 60s).
func WithTimeout(d time.Duration) OpenAIOption {
	return func(p *OpenAIProvider) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// NewOpenAIProvider creates a provider for the given model producing vectors
// of the given dimension.
func NewOpenAIProvider(apiKey, model string, dimensions int, opts ...OpenAIOption) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key is not set")
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", dimensions)
	}
	p := &OpenAIProvider{
		client:     openai.NewClient(apiKey),
		model:      model,
		dimensions: dimensions,
		maxRetries: 3,
		timeout:    60 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Embed returns the embedding for a single text.
func (p *OpenAIProvider) Embed(ctx context.Context, text string, mode Mode) ([]float32, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text}, mode)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in a single API call, retrying with backoff on
// transient failures. Output order matches input order.
func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string, _ Mode) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var resp openai.EmbeddingResponse
	var err error
	for attempt := 0; attempt < p.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
		reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
		resp, err = p.client.CreateEmbeddings(reqCtx, openai.EmbeddingRequest{
			Model:      openai.EmbeddingModel(p.model),
			Input:      texts,
			Dimensions: p.dimensions,
		})
		cancel()
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: sent %d texts, got %d vectors", len(texts), len(resp.Data))
	}
	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		v := make([]float32, len(d.Embedding))
		for j, f := range d.Embedding {
			v[j] = float32(f)
		}
		if len(v) != p.dimensions {
			return nil, fmt.Errorf("embedding %d has dimension %d, expected %d", i, len(v), p.dimensions)
		}
		vectors[i] = v
	}
	return vectors, nil
}

// Dimensions returns the embedding dimension.
func (p *OpenAIProvider) Dimensions() int {
	return p.dimensions
}

// Close is a no-op for OpenAIProvider.
func (p *OpenAIProvider) Close() error {
	return nil
}

// Package embedding provides the embedding provider capability: text in,
// fixed-length vector out.
package embedding

import "context"

// Mode selects the provider-side representation for a text. Some providers
// encode documents and queries differently; implementations that do not
// distinguish accept either mode.
type Mode string

const (
	// ModeDocument embeds text destined for the index.
	ModeDocument Mode = "search_document"
	// ModeQuery embeds a search query.
	ModeQuery Mode = "search_query"
)

// Provider produces vector embeddings. EmbedBatch is order-preserving with a
// 1:1 input/output correspondence. Dimensions is fixed for the lifetime of
// the provider.
type Provider interface {
	Embed(ctx context.Context, text string, mode Mode) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string, mode Mode) ([][]float32, error)
	Dimensions() int
	Close() error
}

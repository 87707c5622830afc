package interfaces

import "context"

// EmbeddingClient wraps a text-embedding model call. Input text is normalized
// before the call so near-duplicate text yields stable vectors.
type EmbeddingClient interface {
	// Embed returns a fixed-length vector for the input string.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions reports the vector length the model produces.
	Dimensions() int
}

// Package embedding defines the text embedding boundary used by the
// resolution pipeline and similarity search.
package embedding

import "context"

// Embedder turns text into a fixed-dimension vector. Implementations must
// return vectors of exactly Dimensions() length for every input, since the
// memory store rejects mixed dimensions.
type Embedder interface {
	// Embed returns the vector representation of text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the length of every vector Embed produces.
	Dimensions() int
}

package testutil

import (
	"context"
	"crypto/sha256"
	"math"

	"github.com/koopa0/ragd/internal/provider"
	"github.com/koopa0/ragd/internal/store"
)

// DeterministicEmbedder produces stable, content-derived unit vectors
// without calling any external API. The same text always embeds to the
// same vector, and different texts almost always differ, which is enough
// for similarity-ranking assertions in integration tests.
type DeterministicEmbedder struct{}

// Embed derives a normalized vector from the text's SHA-256 digest.
func (DeterministicEmbedder) Embed(_ context.Context, text string) (provider.Embedding, error) {
	digest := sha256.Sum256([]byte(text))

	vec := make([]float32, store.VectorDimension)
	var norm float64
	for i := range vec {
		b := digest[i%len(digest)]
		// spread digest bytes across the dimensions with varying sign
		v := float64(b) - 127.5
		if i%2 == 1 {
			v = -v
		}
		vec[i] = float32(v)
		norm += v * v
	}

	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return provider.Embedding{Vector: vec, ModelVersion: "test/deterministic"}, nil
}

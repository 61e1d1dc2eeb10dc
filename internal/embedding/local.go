package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/DreamCats/hospitalvoice/internal/config"
)

// LocalClient is a deterministic feature-hashing encoder. Words and
// character trigrams are hashed into a fixed number of buckets with a
// signed weight. It needs no network and gives stable vectors across
// build and query, which is all the flat index requires.
type LocalClient struct {
	dims  int
	model string
}

// NewLocalClient creates a local hashing encoder
func NewLocalClient(cfg *config.EmbeddingConfig) (*LocalClient, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("local encoder requires positive dimensions, got %d", cfg.Dimensions)
	}
	model := cfg.Model
	if model == "" {
		model = "local-hash-v1"
	}
	return &LocalClient{dims: cfg.Dimensions, model: model}, nil
}

// Embed hashes text into a dense vector
func (c *LocalClient) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, c.dims)
	for _, word := range tokenize(text) {
		c.add(vec, "w:"+word, 1.0)

		padded := "^" + word + "$"
		runes := []rune(padded)
		for i := 0; i+3 <= len(runes); i++ {
			c.add(vec, "t:"+string(runes[i:i+3]), 0.5)
		}
	}
	return vec, nil
}

// EmbedBatch embeds each text independently
func (c *LocalClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := c.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions returns the configured vector size
func (c *LocalClient) Dimensions() int {
	return c.dims
}

// Model returns the encoder name
func (c *LocalClient) Model() string {
	return c.model
}

func (c *LocalClient) add(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	h.Write([]byte(feature))
	sum := h.Sum64()

	bucket := int(sum % uint64(c.dims))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vec[bucket] += weight
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

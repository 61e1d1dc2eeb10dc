package embedding

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/DreamCats/hospitalvoice/internal/config"
)

// Service provides embedding generation functionality
type Service struct {
	cfg    *config.EmbeddingConfig
	client Client
}

// Client is the interface for embedding API clients
type Client interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Model() string
}

// NewService creates a new embedding service
func NewService(cfg *config.EmbeddingConfig) (*Service, error) {
	var client Client
	var err error

	switch cfg.Provider {
	case "openai":
		client, err = NewOpenAIClient(cfg)
	case "ollama":
		client, err = NewOllamaClient(cfg)
	case "local":
		client, err = NewLocalClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}

	return NewServiceWithClient(cfg, client), nil
}

// NewServiceWithClient wraps an existing client
func NewServiceWithClient(cfg *config.EmbeddingConfig, client Client) *Service {
	return &Service{cfg: cfg, client: client}
}

// Embed generates an L2-normalized embedding for a single text
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("cannot embed empty text")
	}
	vector, err := s.client.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return Normalize(vector), nil
}

// EmbedBatch generates L2-normalized embeddings for multiple texts.
// Batches are sent concurrently, bounded by max_workers; output order
// matches input order.
func (s *Service) EmbedBatch(ctx context.Context, texts []string, onBatch func(n int)) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	for i, text := range texts {
		if text == "" {
			return nil, fmt.Errorf("cannot embed empty text at position %d", i)
		}
	}

	batchSize := s.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}
	workers := s.cfg.MaxWorkers
	if workers <= 0 {
		workers = 1
	}

	results := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := 0; i < len(texts); i += batchSize {
		start := i
		end := min(start+batchSize, len(texts))

		g.Go(func() error {
			embeddings, err := s.client.EmbedBatch(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("failed to embed batch %d-%d: %w", start, end, err)
			}
			if len(embeddings) != end-start {
				return fmt.Errorf("batch %d-%d: expected %d embeddings, got %d", start, end, end-start, len(embeddings))
			}
			for j, emb := range embeddings {
				results[start+j] = Normalize(emb)
			}
			if onBatch != nil {
				onBatch(end - start)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

// Dimensions returns the dimension of the embeddings
func (s *Service) Dimensions() int {
	return s.client.Dimensions()
}

// Model returns the encoder identifier recorded alongside a built index
func (s *Service) Model() string {
	return s.cfg.Provider + ":" + s.client.Model()
}

// Normalize scales v to unit L2 norm. Zero vectors are returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

// SquaredL2Distance is the ranking distance used by the vector index.
// For unit vectors it equals 2 - 2*cos(a, b).
func SquaredL2Distance(a, b []float32) float32 {
	if len(a) != len(b) {
		panic(fmt.Sprintf("vector dimension mismatch: %d vs %d", len(a), len(b)))
	}

	var sum float32
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return sum
}

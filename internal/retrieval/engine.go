package retrieval

import (
	"context"
	"fmt"
	"log"

	"github.com/DreamCats/hospitalvoice/internal/config"
	"github.com/DreamCats/hospitalvoice/internal/embedding"
	"github.com/DreamCats/hospitalvoice/internal/extract"
	"github.com/DreamCats/hospitalvoice/internal/respond"
	"github.com/DreamCats/hospitalvoice/internal/store"
	"github.com/DreamCats/hospitalvoice/internal/vectorindex"
)

// Engine answers directory queries. Everything it holds is read-only after
// construction, so one Engine serves concurrent requests without locking.
type Engine struct {
	records   *store.RecordStore
	index     *vectorindex.Flat
	extractor extract.Extractor
	resolver  *Resolver
	meta      store.IndexMeta
}

// Answer is the outcome of one query
type Answer struct {
	Query    string           `json:"query"`
	Entities extract.Entities `json:"entities"`
	Match    MatchKind        `json:"match"`
	Results  []ScoredResult   `json:"hospitals"`
	Text     string           `json:"response_text"`
}

// NewEngine assembles an engine from loaded artifacts
func NewEngine(art *store.Artifacts, encoder Encoder, extractionMode string, opts SearchOptions) (*Engine, error) {
	index, err := vectorindex.Build(art.Vectors)
	if err != nil {
		return nil, fmt.Errorf("failed to build vector index: %w", err)
	}
	if index.Len() != art.Records.Len() {
		return nil, fmt.Errorf("index has %d vectors but store has %d records", index.Len(), art.Records.Len())
	}

	extractor, err := extract.New(extractionMode, art.Records)
	if err != nil {
		return nil, err
	}

	return &Engine{
		records:   art.Records,
		index:     index,
		extractor: extractor,
		resolver:  NewResolver(art.Records, index, encoder, opts),
		meta:      art.Meta,
	}, nil
}

// LoadEngine opens the built artifacts named by cfg and checks them
// against the configured encoder
func LoadEngine(cfg *config.Config) (*Engine, error) {
	svc, err := embedding.NewService(&cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding service: %w", err)
	}

	art, err := store.Load(cfg.Data.Path, store.LoadOptions{
		Model:     svc.Model(),
		Dimension: svc.Dimensions(),
	})
	if err != nil {
		return nil, err
	}

	engine, err := NewEngine(art, svc, cfg.Search.ExtractionMode, SearchOptions{
		TopK:      cfg.Search.TopK,
		Overfetch: cfg.Search.Overfetch,
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Retriever ready with %d hospitals (model=%s, dim=%d)", art.Records.Len(), art.Meta.Model, art.Meta.Dimension)
	return engine, nil
}

// Answer extracts entities, resolves them and renders the reply
func (e *Engine) Answer(ctx context.Context, query string) (*Answer, error) {
	entities := e.extractor.Extract(query)
	log.Printf("Entities: %s", entities)

	results, match, err := e.resolver.resolve(ctx, query, entities)
	if err != nil {
		return nil, err
	}

	hospitals := make([]respond.Hospital, len(results))
	for i, r := range results {
		hospitals[i] = respond.Hospital{Name: r.HospitalName, Address: r.Address, City: r.City}
	}

	return &Answer{
		Query:    query,
		Entities: entities,
		Match:    match,
		Results:  results,
		Text:     respond.Format(query, hospitals),
	}, nil
}

// Resolve exposes the resolver for callers that supply their own entities
func (e *Engine) Resolve(ctx context.Context, query string, entities extract.Entities) ([]ScoredResult, error) {
	return e.resolver.Resolve(ctx, query, entities)
}

// Len returns the number of indexed hospitals
func (e *Engine) Len() int {
	return e.records.Len()
}

// Meta returns how the loaded index was built
func (e *Engine) Meta() store.IndexMeta {
	return e.meta
}

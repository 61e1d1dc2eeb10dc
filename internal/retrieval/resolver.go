package retrieval

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/DreamCats/hospitalvoice/internal/extract"
	"github.com/DreamCats/hospitalvoice/internal/store"
	"github.com/DreamCats/hospitalvoice/internal/vectorindex"
)

// Encoder embeds query text the same way the index was built
type Encoder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// SearchOptions configures result counts
type SearchOptions struct {
	TopK      int // Maximum results per query
	Overfetch int // Candidate multiplier for the semantic path
}

// DefaultSearchOptions returns default search options
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		TopK:      3,
		Overfetch: 3,
	}
}

// MatchKind records which path produced a result set
type MatchKind string

const (
	MatchNone     MatchKind = "none"
	MatchExact    MatchKind = "exact"
	MatchSemantic MatchKind = "semantic"
)

// ScoredResult is one hospital returned for a query. Score is the vector
// distance (lower is closer) and is nil for exact matches.
type ScoredResult struct {
	HospitalName string   `json:"hospital_name"`
	Address      string   `json:"address"`
	City         string   `json:"city"`
	Score        *float32 `json:"score,omitempty"`
}

// Resolver runs exact matching over the record store and falls back to
// nearest-neighbour search filtered by city.
type Resolver struct {
	records *store.RecordStore
	index   *vectorindex.Flat
	encoder Encoder
	opts    SearchOptions
}

// NewResolver creates a resolver. records and index must be positionally
// aligned.
func NewResolver(records *store.RecordStore, index *vectorindex.Flat, encoder Encoder, opts SearchOptions) *Resolver {
	if opts.TopK <= 0 {
		opts.TopK = DefaultSearchOptions().TopK
	}
	if opts.Overfetch <= 0 {
		opts.Overfetch = DefaultSearchOptions().Overfetch
	}
	return &Resolver{
		records: records,
		index:   index,
		encoder: encoder,
		opts:    opts,
	}
}

// Resolve returns at most TopK results for query. Exact matches win
// whenever there is at least one; otherwise the semantic path runs.
// An empty result is not an error.
func (r *Resolver) Resolve(ctx context.Context, query string, entities extract.Entities) ([]ScoredResult, error) {
	results, _, err := r.resolve(ctx, query, entities)
	return results, err
}

func (r *Resolver) resolve(ctx context.Context, query string, entities extract.Entities) ([]ScoredResult, MatchKind, error) {
	if !entities.Empty() {
		exact := r.exactMatch(entities)
		if len(exact) > 0 {
			log.Printf("Found %d exact matches", len(exact))
			if len(exact) > r.opts.TopK {
				exact = exact[:r.opts.TopK]
			}
			return exact, MatchExact, nil
		}
	}

	results, err := r.semanticSearch(ctx, searchText(query, entities), entities.City)
	if err != nil {
		return nil, MatchNone, err
	}
	if len(results) == 0 {
		return nil, MatchNone, nil
	}
	return results, MatchSemantic, nil
}

// exactMatch collects every record whose fields contain the given
// entities, in store order
func (r *Resolver) exactMatch(entities extract.Entities) []ScoredResult {
	var results []ScoredResult
	for _, rec := range r.records.All() {
		if entities.HospitalName != nil && !strings.Contains(rec.HospitalName, *entities.HospitalName) {
			continue
		}
		if entities.City != nil && !strings.Contains(rec.City, *entities.City) {
			continue
		}
		results = append(results, toResult(rec, nil))
	}
	return results
}

// semanticSearch embeds text, over-fetches candidates and keeps those in
// city until TopK are collected
func (r *Resolver) semanticSearch(ctx context.Context, text string, city *string) ([]ScoredResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	vector, err := r.encoder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	neighbors, err := r.index.Search(vector, r.opts.TopK*r.opts.Overfetch)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	results := make([]ScoredResult, 0, r.opts.TopK)
	for _, n := range neighbors {
		rec := r.records.Get(n.Position)
		if city != nil && !strings.Contains(rec.City, *city) {
			continue
		}

		dist := n.Distance
		results = append(results, toResult(rec, &dist))
		if len(results) >= r.opts.TopK {
			break
		}
	}

	return results, nil
}

// searchText picks the most specific text to embed
func searchText(query string, entities extract.Entities) string {
	switch {
	case entities.HospitalName != nil:
		return *entities.HospitalName
	case entities.City != nil:
		return *entities.City
	default:
		return query
	}
}

func toResult(rec store.HospitalRecord, score *float32) ScoredResult {
	return ScoredResult{
		HospitalName: rec.HospitalName,
		Address:      rec.Address,
		City:         rec.City,
		Score:        score,
	}
}

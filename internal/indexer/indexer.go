package indexer

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/DreamCats/hospitalvoice/internal/config"
	"github.com/DreamCats/hospitalvoice/internal/embedding"
	"github.com/DreamCats/hospitalvoice/internal/store"
	"github.com/DreamCats/hospitalvoice/internal/textindex"
)

// Indexer handles the offline build: CSV in, records + vectors + text
// index out
type Indexer struct {
	cfg          *config.Config
	embedService *embedding.Service
	progress     ProgressReporter
}

// Summary describes a finished build
type Summary struct {
	Files     []string
	Records   int
	Dimension int
	Model     string
	Duration  time.Duration
}

// NewIndexer creates a new indexer
func NewIndexer(cfg *config.Config, progress ProgressReporter) (*Indexer, error) {
	embedService, err := embedding.NewService(&cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding service: %w", err)
	}
	return NewIndexerWithService(cfg, embedService, progress), nil
}

// NewIndexerWithService uses an existing embedding service
func NewIndexerWithService(cfg *config.Config, embedService *embedding.Service, progress ProgressReporter) *Indexer {
	return &Indexer{
		cfg:          cfg,
		embedService: embedService,
		progress:     progress,
	}
}

// Build reads every input file, embeds the records and replaces the
// artifacts at the configured paths
func (idx *Indexer) Build(ctx context.Context) (*Summary, error) {
	startTime := time.Now()

	// Step 1: Read the directory
	files, err := ResolveInputs(idx.cfg.Data.Input)
	if err != nil {
		return nil, err
	}

	var records []store.HospitalRecord
	for _, path := range files {
		recs, err := ReadHospitalsFile(path)
		if err != nil {
			return nil, err
		}
		log.Printf("Loaded %d hospital records from %s", len(recs), path)
		records = append(records, recs...)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no hospital records found in %d file(s)", len(files))
	}
	for i := range records {
		records[i].ID = i
	}

	// Step 2: Embed chunk texts
	log.Printf("Generating embeddings with %s", idx.embedService.Model())
	vectors, err := idx.embed(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}

	// Step 3: Persist records and vectors
	db, err := store.Open(idx.cfg.Data.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.ReplaceAll(records, vectors, idx.embedService.Model()); err != nil {
		return nil, fmt.Errorf("failed to store index: %w", err)
	}

	// Step 4: Text index
	if dir := idx.cfg.Data.TextIndexDir; dir != "" {
		log.Printf("Building text index at %s", dir)
		if err := textindex.Build(dir, records); err != nil {
			return nil, fmt.Errorf("failed to build text index: %w", err)
		}
	}

	summary := &Summary{
		Files:     files,
		Records:   len(records),
		Dimension: len(vectors[0]),
		Model:     idx.embedService.Model(),
		Duration:  time.Since(startTime),
	}
	log.Printf("Index built: %d records, dimension %d, in %v", summary.Records, summary.Dimension, summary.Duration)

	return summary, nil
}

func (idx *Indexer) embed(ctx context.Context, records []store.HospitalRecord) ([][]float32, error) {
	texts := make([]string, len(records))
	for i, rec := range records {
		texts[i] = rec.ChunkText
	}

	var onBatch func(int)
	if idx.progress != nil {
		idx.progress.Start(len(texts))
		defer idx.progress.Finish()
		onBatch = idx.progress.Add
	}

	return idx.embedService.EmbedBatch(ctx, texts, onBatch)
}

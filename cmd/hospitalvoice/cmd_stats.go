package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/DreamCats/hospitalvoice/internal/config"
	"github.com/DreamCats/hospitalvoice/internal/store"
	"github.com/DreamCats/hospitalvoice/internal/textindex"
)

// handleStats implements the stats subcommand
func handleStats(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	var jsonOutput bool
	fs.BoolVar(&jsonOutput, "json", false, "Output as JSON")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    hospitalvoice stats [options]

DESCRIPTION:
    Show statistics about the current index.

OPTIONS:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
EXAMPLES:
    # Show human-readable statistics
    hospitalvoice stats

    # JSON output
    hospitalvoice stats -json
`)
	}

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}

	db, err := store.OpenReadOnly(cfg.Data.Path)
	if err != nil {
		log.Fatalf("Failed to open index: %v", err)
	}
	defer db.Close()

	dbStats, err := db.Stats()
	if err != nil {
		log.Fatalf("Failed to read statistics: %v", err)
	}
	meta, metaErr := db.ReadMeta()

	var checkErr error
	if metaErr == nil {
		checkErr = store.NewVectorStore(db).Check(meta)
	}

	var textDocs uint64
	if ti, err := textindex.Open(cfg.Data.TextIndexDir); err == nil {
		textDocs, _ = ti.Count()
		ti.Close()
	}

	if jsonOutput {
		stats := map[string]interface{}{
			"records":        dbStats.RecordCount,
			"embeddings":     dbStats.VectorCount,
			"text_documents": textDocs,
			"size_bytes":     dbStats.SizeBytes,
		}
		if metaErr == nil {
			stats["meta"] = meta
			stats["consistent"] = checkErr == nil
		}
		if checkErr != nil {
			stats["consistency_error"] = checkErr.Error()
		}
		jsonData, _ := json.MarshalIndent(stats, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	fmt.Println("📊 Index Statistics")
	fmt.Println()
	fmt.Printf("Records:    %6d\n", dbStats.RecordCount)
	fmt.Printf("Embeddings: %6d\n", dbStats.VectorCount)
	fmt.Printf("Text docs:  %6d\n", textDocs)
	fmt.Printf("Size:       %6.1f MB\n", float64(dbStats.SizeBytes)/(1<<20))
	if metaErr != nil {
		fmt.Printf("Meta:       unavailable (%v)\n", metaErr)
		return
	}
	fmt.Printf("Model:      %s\n", meta.Model)
	fmt.Printf("Dimension:  %6d\n", meta.Dimension)
	fmt.Printf("Metric:     %s\n", meta.Metric)
	fmt.Printf("Built at:   %s\n", meta.BuiltAt.Local().Format(time.DateTime))
	if checkErr != nil {
		fmt.Printf("\n⚠️  Index is inconsistent: %v\n", checkErr)
		fmt.Println("   Run 'hospitalvoice build' to rebuild it.")
	}
}

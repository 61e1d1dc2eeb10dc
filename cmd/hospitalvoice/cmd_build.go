package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DreamCats/hospitalvoice/internal/config"
	"github.com/DreamCats/hospitalvoice/internal/indexer"
)

// handleBuild implements the build subcommand
func handleBuild(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)

	var input string
	var noProgress bool
	fs.StringVar(&input, "input", "", "CSV file or glob (default: data.input from config)")
	fs.BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    hospitalvoice build [options]

DESCRIPTION:
    Read hospital CSV files, embed every record and write the index.
    Any previous index at data.path is replaced.

    Expected columns: "HOSPITAL NAME", "Address", "CITY"

OPTIONS:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
EXAMPLES:
    # Build from the configured input
    hospitalvoice build

    # Build from a specific file
    hospitalvoice build -input ./hospitals.csv

    # Build from every CSV under a directory
    hospitalvoice build -input "./data/**/*.csv"
`)
	}

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}

	if input != "" {
		cfg.Data.Input = input
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	progress := indexer.NewProgress(!noProgress && indexer.DefaultProgressEnabled(), "embedding")
	idx, err := indexer.NewIndexer(cfg, progress)
	if err != nil {
		log.Fatalf("Failed to create indexer: %v", err)
	}

	fmt.Printf("🔨 Building index from: %s\n", cfg.Data.Input)

	summary, err := idx.Build(ctx)
	if err != nil {
		log.Fatalf("Build failed: %v", err)
	}

	fmt.Println()
	fmt.Println("✅ Index built")
	fmt.Printf("Files:      %6d\n", len(summary.Files))
	fmt.Printf("Records:    %6d\n", summary.Records)
	fmt.Printf("Dimension:  %6d\n", summary.Dimension)
	fmt.Printf("Model:      %s\n", summary.Model)
	fmt.Printf("Duration:   %s\n", summary.Duration.Round(time.Millisecond))
	fmt.Printf("Database:   %s\n", cfg.Data.Path)
	fmt.Printf("Text index: %s\n", cfg.Data.TextIndexDir)
}

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/DreamCats/hospitalvoice/cmd/hospitalvoice/internal"
	"github.com/DreamCats/hospitalvoice/internal/config"
	"github.com/DreamCats/hospitalvoice/internal/respond"
	"github.com/DreamCats/hospitalvoice/internal/retrieval"
)

// handleQuery implements the query subcommand
func handleQuery(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("query", flag.ExitOnError)

	var topK int
	var mode string
	var jsonOutput, verbose bool
	fs.IntVar(&topK, "k", 0, "Number of hospitals to return (default: search.top_k)")
	fs.StringVar(&mode, "mode", "", "Extraction mode: structured | freetext (default: search.extraction_mode)")
	fs.BoolVar(&jsonOutput, "json", false, "Output the full answer as JSON")
	fs.BoolVar(&verbose, "v", false, "Verbose output (entities, match kind, scores)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    hospitalvoice query [options] "<question>"

DESCRIPTION:
    Answer a question exactly as the voice endpoint would, without audio.

OPTIONS:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
EXAMPLES:
    # Free text question
    hospitalvoice query "Is Apollo Hospital in Chennai in my network?"

    # Structured entity payload
    hospitalvoice query -mode structured '[{"city": "mumbai", "hospital": null, "address": null}]'

    # Show entities and distances
    hospitalvoice query -v "hospitals around bandra"
`)
	}

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}

	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: question is required\n\n")
		fs.Usage()
		os.Exit(1)
	}
	query := strings.Join(fs.Args(), " ")

	if topK > 0 {
		cfg.Search.TopK = topK
	}
	if mode != "" {
		cfg.Search.ExtractionMode = mode
		// query takes text, so the transcriber only has to stay paired
		cfg.Voice.STTProvider = config.STTOpenAI
		if mode == config.ExtractionStructured {
			cfg.Voice.STTProvider = config.STTOpenAIStructured
		}
		if err := cfg.Validate(); err != nil {
			log.Fatalf("Invalid option: %v", err)
		}
	}

	if !verbose {
		internal.QuietLogging()
	}

	engine, err := retrieval.LoadEngine(cfg)
	if err != nil {
		log.Fatalf("Failed to load index: %v", err)
	}

	answer, err := engine.Answer(context.Background(), query)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(answer, "", "  ")
		fmt.Println(string(data))
		return
	}

	if verbose {
		fmt.Printf("🔍 Entities: %s\n", answer.Entities)
		fmt.Printf("   Match:    %s\n", answer.Match)
		for i, h := range answer.Results {
			score := "-"
			if h.Score != nil {
				score = fmt.Sprintf("%.4f", *h.Score)
			}
			fmt.Printf("   %d. %s | %s | %s (distance: %s)\n",
				i+1, respond.TitleCase(h.HospitalName), h.Address, respond.TitleCase(h.City), score)
		}
		fmt.Println()
	}

	fmt.Println(answer.Text)
}

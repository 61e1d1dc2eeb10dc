package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/DreamCats/hospitalvoice/internal/config"
	"github.com/DreamCats/hospitalvoice/internal/respond"
	"github.com/DreamCats/hospitalvoice/internal/textindex"
)

// handleFind implements the find subcommand
func handleFind(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("find", flag.ExitOnError)

	var topK int
	var city string
	var jsonOutput bool
	fs.IntVar(&topK, "k", 10, "Number of results to return")
	fs.StringVar(&city, "city", "", "Only return hospitals in this city")
	fs.BoolVar(&jsonOutput, "json", false, "Output results as JSON")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    hospitalvoice find [options] "<keywords>"

DESCRIPTION:
    Keyword search over the hospital directory (name, address, city).
    Uses the text index written by "hospitalvoice build".

OPTIONS:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
EXAMPLES:
    # Search by name fragment
    hospitalvoice find "apollo"

    # Restrict to a city
    hospitalvoice find "heart institute" -city mumbai

    # JSON output for scripting
    hospitalvoice find "andheri" -json
`)
	}

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}

	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: search keywords are required\n\n")
		fs.Usage()
		os.Exit(1)
	}
	query := strings.Join(fs.Args(), " ")

	idx, err := textindex.Open(cfg.Data.TextIndexDir)
	if err != nil {
		log.Fatalf("Failed to open text index (run 'hospitalvoice build' first): %v", err)
	}
	defer idx.Close()

	hits, err := idx.Search(query, city, topK)
	if err != nil {
		log.Fatalf("Search failed: %v", err)
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(hits, "", "  ")
		fmt.Println(string(data))
		return
	}

	if len(hits) == 0 {
		fmt.Println("No matching hospitals.")
		return
	}

	fmt.Printf("Found %d hospitals:\n\n", len(hits))
	for i, h := range hits {
		fmt.Printf("%d. %s\n", i+1, respond.TitleCase(h.HospitalName))
		fmt.Printf("   %s, %s\n", h.Address, respond.TitleCase(h.City))
		fmt.Printf("   score: %.3f\n", h.Score)
	}
}

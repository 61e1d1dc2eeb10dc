package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/DreamCats/hospitalvoice/internal/config"
	"github.com/DreamCats/hospitalvoice/internal/retrieval"
	"github.com/DreamCats/hospitalvoice/internal/server"
	"github.com/DreamCats/hospitalvoice/internal/voice"
)

// handleServe implements the serve subcommand
func handleServe(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)

	var addr string
	var lazy bool
	fs.StringVar(&addr, "addr", "", "Listen address (default: server.addr from config)")
	fs.BoolVar(&lazy, "lazy", false, "Load the index on first request instead of at startup")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    hospitalvoice serve [options]

DESCRIPTION:
    Run the HTTP API.

ENDPOINTS:
    GET  /                   Service banner
    GET  /health             Index readiness
    POST /voice              Multipart "audio" upload, returns spoken answer
    POST /query              {"query": "..."} text question, returns JSON answer
    GET  /hospitals/search   Keyword search (?q=...&city=...&limit=...)

OPTIONS:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
EXAMPLES:
    # Serve on the configured address
    hospitalvoice serve

    # Serve on a different port
    hospitalvoice serve -addr :9000
`)
	}

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}

	if addr != "" {
		cfg.Server.Addr = addr
	}

	provider := retrieval.NewProvider(func() (*retrieval.Engine, error) {
		return retrieval.LoadEngine(cfg)
	})
	if !lazy {
		// A failed load is remembered by the provider and reported by /health.
		if engine, err := provider.Engine(); err != nil {
			log.Printf("Warning: index unavailable: %v", err)
		} else {
			log.Printf("Index loaded: %d hospitals (%s)", engine.Len(), engine.Meta().Model)
		}
	}

	pipeline, err := voice.NewPipelineFromConfig(&cfg.Voice)
	if err != nil {
		log.Printf("Warning: voice pipeline disabled: %v", err)
	}

	srv := server.New(cfg, provider, pipeline)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.ListenAndServe(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Printf("Server stopped")
}

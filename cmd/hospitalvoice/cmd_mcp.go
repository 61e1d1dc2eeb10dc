package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/DreamCats/hospitalvoice/cmd/hospitalvoice/internal"
	"github.com/DreamCats/hospitalvoice/internal/config"
	"github.com/DreamCats/hospitalvoice/internal/mcpserver"
	"github.com/DreamCats/hospitalvoice/internal/retrieval"
)

// handleMCP implements the MCP stdio server subcommand
func handleMCP(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    hospitalvoice mcp

DESCRIPTION:
    Run an MCP stdio server exposing:
      - hospital_lookup
      - hospital_search
      - index_status
`)
	}

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}

	// stdout carries the protocol
	log.SetOutput(os.Stderr)

	provider := retrieval.NewProvider(func() (*retrieval.Engine, error) {
		return retrieval.LoadEngine(cfg)
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := mcpserver.New(provider, cfg.Data.Path, cfg.Data.TextIndexDir, internal.Version)
	if err := server.Run(ctx); err != nil {
		log.Fatalf("MCP server failed: %v", err)
	}
}

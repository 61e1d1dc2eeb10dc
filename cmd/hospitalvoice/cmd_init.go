package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/DreamCats/hospitalvoice/cmd/hospitalvoice/internal"
	"github.com/DreamCats/hospitalvoice/internal/config"
)

// handleInit implements the init subcommand
func handleInit(configPath string, args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    hospitalvoice [-config <path>] init

DESCRIPTION:
    Write a default configuration file. An existing file is left untouched.

EXAMPLES:
    # Default location
    hospitalvoice init

    # Custom location
    hospitalvoice -config ./hospitalvoice.yaml init
`)
	}

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}

	path, err := internal.ResolveConfigPath(configPath)
	if err != nil {
		log.Fatalf("Failed to resolve config path: %v", err)
	}

	created, err := config.WriteDefaultTemplate(path)
	if err != nil {
		log.Fatalf("Failed to write config template: %v", err)
	}
	if !created {
		fmt.Printf("⚠️  Config already exists: %s\n", path)
		return
	}

	fmt.Printf("✅ Created config template: %s\n", path)
	fmt.Println("   Edit api_key and data.input, then run: hospitalvoice build")
}

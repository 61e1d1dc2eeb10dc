package internal

import (
	"fmt"
	"os"
)

const Version = "0.3.0"

// PrintUsage 向 stderr 输出 hospitalvoice 的用法与可用子命令列表。
func PrintUsage() {
	fmt.Fprintf(os.Stderr, `hospitalvoice - Voice Agent for Hospital Network Lookup

Version: %s

USAGE:
    hospitalvoice [global options] <command> [command options]

GLOBAL OPTIONS:
    -config <path>
        Path to config file (default: ~/.hospitalvoice/config/hospitalvoice.yaml)

    -v, -version
        Show version information

    -h, -help
        Show this help message

COMMANDS:
    init
        Write a default config file

    build
        Build the hospital index from CSV input

    query
        Answer a question the way the voice agent would

    find
        Keyword search over the hospital directory

    stats
        Show index statistics

    serve
        Run the HTTP API (voice, query, health, search)

    mcp
        Run an MCP stdio server for agent tools

EXAMPLES:
    # Create a config template
    hospitalvoice init

    # Build from the configured CSV files
    hospitalvoice build

    # Ask a question
    hospitalvoice query "Is Apollo Hospital in Chennai in my network?"

    # Structured entity payload
    hospitalvoice query -mode structured '[{"city": "mumbai", "hospital": null, "address": null}]'

    # Keyword search
    hospitalvoice find "cardiac" -city bengaluru

    # Serve on a different port
    hospitalvoice serve -addr :9000

For detailed help on each command, use:
    hospitalvoice <command> -help
`, Version)
}
